package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Canonical JSON encoding of constants (RFC 8785 subset):
//
//	Int    -> number            42
//	Text   -> string            "needs triage"
//	Symbol -> {"sym":name}      {"sym":"open"}
//
// Used for the journal and for content hashes. Symbols are wrapped so they
// never collide with Text of the same spelling.

// MarshalConstant produces canonical JSON for a constant.
func MarshalConstant(c Constant) ([]byte, error) {
	switch v := c.(type) {
	case Int:
		return []byte(strconv.FormatInt(int64(v), 10)), nil
	case Text:
		return marshalCanonicalString(string(v))
	case Symbol:
		name, err := marshalCanonicalString(string(v))
		if err != nil {
			return nil, err
		}
		out := make([]byte, 0, len(name)+8)
		out = append(out, `{"sym":`...)
		out = append(out, name...)
		out = append(out, '}')
		return out, nil
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", c)
	}
}

// MarshalTuple produces a canonical JSON array for a tuple.
func MarshalTuple(t Tuple) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, c := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := MarshalConstant(c)
		if err != nil {
			return nil, fmt.Errorf("tuple[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalFact produces canonical JSON for a fact: {"args":[...],"pred":"name"}.
func MarshalFact(f Fact) ([]byte, error) {
	args, err := MarshalTuple(f.Args)
	if err != nil {
		return nil, fmt.Errorf("fact %s: %w", f.Predicate, err)
	}
	pred, err := marshalCanonicalString(f.Predicate)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"args":`)
	buf.Write(args)
	buf.WriteString(`,"pred":`)
	buf.Write(pred)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalTuple decodes a canonical JSON array back into a tuple.
// Floats are rejected.
func UnmarshalTuple(data []byte) (Tuple, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("tuple: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	t := make(Tuple, len(raw))
	for i, elem := range raw {
		c, err := unmarshalConstant(elem)
		if err != nil {
			return nil, fmt.Errorf("tuple[%d]: %w", i, err)
		}
		t[i] = c
	}
	return t, nil
}

func unmarshalConstant(data []byte) (Constant, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return NewText(s), nil
	case '{':
		var obj map[string]string
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("symbol: %w", err)
		}
		name, ok := obj["sym"]
		if !ok || len(obj) != 1 {
			return nil, fmt.Errorf("symbol object must have exactly the key \"sym\"")
		}
		return Symbol(name), nil
	case 'n':
		return nil, fmt.Errorf("null is forbidden")
	case 't', 'f':
		return nil, fmt.Errorf("booleans are not constants")
	case '[':
		return nil, fmt.Errorf("nested arrays are not constants")
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var n json.Number
		if err := dec.Decode(&n); err != nil {
			return nil, err
		}
		if _, err := dec.Token(); err != io.EOF {
			return nil, fmt.Errorf("trailing data after number")
		}
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("floats are forbidden: %s", n)
		}
		return Int(i), nil
	}
}

// marshalCanonicalString produces a canonical JSON string with NFC normalization.
// RFC 8785: no HTML escaping, U+2028/U+2029 left literal; only control
// characters, backslash and quote are escaped.
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	result := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
	return unescapeLineSeparators(result), nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes json.Encoder
// emits back into literal characters, leaving \\u2028 (escaped backslash) alone.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+5 < len(data) && data[i+1] == 'u' &&
			string(data[i+2:i+5]) == "202" && (data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		if data[i] == '\\' && i+1 < len(data) {
			// Copy any other escape pair verbatim so \\ never starts a match.
			out = append(out, data[i], data[i+1])
			i++
			continue
		}
		out = append(out, data[i])
	}
	return out
}
