package token

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the type of a scalar claim value.
type Kind int

// Scalar kinds supported by the flat object parser.
const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
)

// Value is a scalar claim value.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
	Bool  bool
}

// String renders the value the way it is forwarded in headers.
// Null renders as the empty string.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

// Number returns the value as an integer. Reals are truncated.
func (v Value) Number() (int64, bool) {
	switch v.Kind {
	case KindInt:
		return v.Int, true
	case KindFloat:
		return int64(v.Float), true
	default:
		return 0, false
	}
}

// IsNull reports whether the value is JSON null.
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// ErrUnexpectedEnd is returned when the input ends before the object closes.
var ErrUnexpectedEnd = errors.New("unexpected end of object")

// SyntaxError describes where the flat object parser gave up.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("flat object: %s at offset %d", e.Msg, e.Offset)
}

type scanState int

const (
	scanObjectStart scanState = iota
	scanKeyStart
	scanKey
	scanColon
	scanValueStart
	scanStringValue
	scanLiteral
	scanAfterValue
	scanEnd
)

// ParseFlatObject parses a JSON object whose values are all scalars.
// Nested objects, arrays and \u escapes are rejected. Duplicate keys keep
// the last value.
func ParseFlatObject(data []byte) (map[string]Value, error) {
	out := make(map[string]Value)

	var (
		state      = scanObjectStart
		buf        strings.Builder
		key        string
		escaped    bool
		allowClose bool
		litStart   int
	)

	for i := 0; i < len(data); i++ {
		ch := data[i]

		switch state {
		case scanObjectStart:
			if isSpace(ch) {
				continue
			}
			if ch != '{' {
				return nil, &SyntaxError{Offset: i, Msg: "expected '{'"}
			}
			state = scanKeyStart
			allowClose = true

		case scanKeyStart:
			if isSpace(ch) {
				continue
			}
			switch {
			case ch == '"':
				buf.Reset()
				state = scanKey
			case ch == '}' && allowClose:
				state = scanEnd
			default:
				return nil, &SyntaxError{Offset: i, Msg: "expected key"}
			}

		case scanKey, scanStringValue:
			if escaped {
				r, err := unescape(ch)
				if err != nil {
					return nil, &SyntaxError{Offset: i, Msg: err.Error()}
				}
				buf.WriteByte(r)
				escaped = false
				continue
			}
			switch {
			case ch == '\\':
				escaped = true
			case ch == '"':
				if state == scanKey {
					key = buf.String()
					state = scanColon
				} else {
					out[key] = Value{Kind: KindString, Str: buf.String()}
					state = scanAfterValue
				}
			case ch < 0x20:
				return nil, &SyntaxError{Offset: i, Msg: "control character in string"}
			default:
				buf.WriteByte(ch)
			}

		case scanColon:
			if isSpace(ch) {
				continue
			}
			if ch != ':' {
				return nil, &SyntaxError{Offset: i, Msg: "expected ':'"}
			}
			state = scanValueStart

		case scanValueStart:
			if isSpace(ch) {
				continue
			}
			switch {
			case ch == '"':
				buf.Reset()
				state = scanStringValue
			case ch == '{' || ch == '[':
				return nil, &SyntaxError{Offset: i, Msg: "nested values are not supported"}
			case isLiteralByte(ch):
				litStart = i
				state = scanLiteral
			default:
				return nil, &SyntaxError{Offset: i, Msg: "unexpected character"}
			}

		case scanLiteral:
			if isLiteralByte(ch) {
				continue
			}
			v, err := parseLiteral(string(data[litStart:i]))
			if err != nil {
				return nil, &SyntaxError{Offset: litStart, Msg: err.Error()}
			}
			out[key] = v
			state = scanAfterValue
			i-- // the terminator belongs to the next state

		case scanAfterValue:
			if isSpace(ch) {
				continue
			}
			switch ch {
			case ',':
				state = scanKeyStart
				allowClose = false
			case '}':
				state = scanEnd
			default:
				return nil, &SyntaxError{Offset: i, Msg: "expected ',' or '}'"}
			}

		case scanEnd:
			if !isSpace(ch) {
				return nil, &SyntaxError{Offset: i, Msg: "trailing data"}
			}
		}
	}

	if state != scanEnd {
		return nil, ErrUnexpectedEnd
	}
	return out, nil
}

func parseLiteral(lit string) (Value, error) {
	switch lit {
	case "null":
		return Value{Kind: KindNull}, nil
	case "true":
		return Value{Kind: KindBool, Bool: true}, nil
	case "false":
		return Value{Kind: KindBool, Bool: false}, nil
	}

	if strings.ContainsAny(lit, ".eE") {
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q", lit)
		}
		return Value{Kind: KindFloat, Float: f}, nil
	}

	n, err := strconv.ParseInt(lit, 10, 64)
	if err != nil {
		return Value{}, fmt.Errorf("invalid literal %q", lit)
	}
	return Value{Kind: KindInt, Int: n}, nil
}

func unescape(ch byte) (byte, error) {
	switch ch {
	case '"', '\\', '/':
		return ch, nil
	case 'b':
		return '\b', nil
	case 'f':
		return '\f', nil
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 't':
		return '\t', nil
	case 'u':
		return 0, errors.New("unicode escapes are not supported")
	default:
		return 0, fmt.Errorf("invalid escape '\\%c'", ch)
	}
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isLiteralByte(ch byte) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') ||
		ch == '-' || ch == '+' || ch == '.'
}
