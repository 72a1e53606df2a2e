package ir

import (
	"cmp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Atom is a sealed interface for rule arguments.
// Only Int, Text, Symbol and Variable implement it.
type Atom interface {
	atom() // Sealed
	String() string
}

// Constant is a sealed interface for ground values.
// Only Int, Text and Symbol implement it. NO floats.
type Constant interface {
	Atom
	Kind() ConstKind
}

// ConstKind orders constants of different kinds: Int < Text < Symbol.
type ConstKind int

const (
	KindInt ConstKind = iota
	KindText
	KindSymbol
)

// String returns the kind name.
func (k ConstKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindText:
		return "text"
	case KindSymbol:
		return "symbol"
	default:
		return "unknown"
	}
}

// Int is a signed 64-bit integer constant.
type Int int64

func (Int) atom() {}

// Kind implements Constant.
func (Int) Kind() ConstKind { return KindInt }

// String renders the integer in source syntax.
func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Text is a string constant. Construct with NewText so the value is NFC normalized.
type Text string

func (Text) atom() {}

// Kind implements Constant.
func (Text) Kind() ConstKind { return KindText }

// String renders the text as a double-quoted source literal.
func (t Text) String() string { return QuoteText(string(t)) }

// Symbol is an identifier constant such as open or alice.
type Symbol string

func (Symbol) atom() {}

// Kind implements Constant.
func (Symbol) Kind() ConstKind { return KindSymbol }

// String renders the symbol as a bare identifier.
func (s Symbol) String() string { return string(s) }

// Variable is a rule-scoped placeholder. It is an Atom but never a Constant.
type Variable string

func (Variable) atom() {}

// AnonymousPrefix marks variables the parser generated for _.
// Source text cannot spell it, so generated names never collide.
const AnonymousPrefix = "_#"

// String returns the variable name, or _ for anonymous variables.
func (v Variable) String() string {
	if v.Anonymous() {
		return "_"
	}
	return string(v)
}

// Anonymous reports whether the parser generated v for a _ placeholder.
func (v Variable) Anonymous() bool {
	return strings.HasPrefix(string(v), AnonymousPrefix)
}

// NewText creates a Text value in NFC normal form.
func NewText(s string) Text {
	return Text(norm.NFC.String(s))
}

// QuoteText renders s with the escapes the rule parser accepts: \" \\ \n \t.
func QuoteText(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Compare orders two constants: first by kind, then by value.
// Ints compare numerically, Text and Symbol bytewise.
func Compare(a, b Constant) int {
	if c := cmp.Compare(a.Kind(), b.Kind()); c != 0 {
		return c
	}
	switch av := a.(type) {
	case Int:
		return cmp.Compare(av, b.(Int))
	case Text:
		return strings.Compare(string(av), string(b.(Text)))
	case Symbol:
		return strings.Compare(string(av), string(b.(Symbol)))
	}
	return 0
}

// Equal reports whether two constants are the same value.
func Equal(a, b Constant) bool {
	return a.Kind() == b.Kind() && Compare(a, b) == 0
}

// IsConstant reports whether the atom is ground.
func IsConstant(a Atom) bool {
	_, ok := a.(Constant)
	return ok
}

// writeKey appends an injective encoding of c to b.
// Length prefixes keep Text and Symbol values from bleeding into each other.
func writeKey(b *strings.Builder, c Constant) {
	switch v := c.(type) {
	case Int:
		b.WriteByte('i')
		b.WriteString(strconv.FormatInt(int64(v), 10))
		b.WriteByte(';')
	case Text:
		b.WriteByte('t')
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(string(v))
	case Symbol:
		b.WriteByte('s')
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(string(v))
	}
}
