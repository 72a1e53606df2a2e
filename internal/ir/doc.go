// Package ir provides the value model shared by every factlog package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the value model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Constants are a closed set: Int, Text and Symbol. NO floats.
//   - Constants have a total order (kind first, then value) so every
//     relation, query answer and snapshot iterates deterministically.
//   - Text is NFC normalized at construction.
//   - Facts are immutable values; identity is structural (see Fact.Key).
package ir
