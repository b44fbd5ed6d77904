package normalize

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Decode parses a JSON payload as produced by the scraping layer.
//
// Besides strict JSON it accepts the loose literal style some dumps use:
// single-quoted strings and the bare words True, False, None and nan. Objects
// keep their key order.
func Decode(text string) (Value, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Value{}, &ParseError{Offset: 0, Msg: "empty payload"}
	}
	if !gjson.Valid(text) {
		requoted, err := requote(text)
		if err != nil {
			return Value{}, err
		}
		if !gjson.Valid(requoted) {
			return Value{}, &ParseError{Offset: -1, Msg: "invalid JSON"}
		}
		text = requoted
	}
	return fromResult(gjson.Parse(text)), nil
}

// DecodeBytes is Decode for a byte slice.
func DecodeBytes(data []byte) (Value, error) {
	return Decode(string(data))
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.Null:
		return Null()
	case gjson.False:
		return Bool(false)
	case gjson.True:
		return Bool(true)
	case gjson.Number:
		return Value{kind: KindNumber, num: r.Num, raw: strings.TrimSpace(r.Raw)}
	case gjson.String:
		return String(r.Str)
	}

	if r.IsArray() {
		items := make([]Value, 0, 8)
		r.ForEach(func(_, item gjson.Result) bool {
			items = append(items, fromResult(item))
			return true
		})
		return Array(items...)
	}

	fields := make([]Field, 0, 8)
	r.ForEach(func(key, item gjson.Result) bool {
		fields = setField(fields, key.Str, fromResult(item))
		return true
	})
	return Value{kind: KindObject, fields: fields}
}

// requote rewrites single-quoted strings as JSON strings and bare literal
// words as their JSON equivalents. Double-quoted strings pass through.
func requote(text string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(text) + 16)

	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '"':
			end, err := scanDoubleQuoted(text, i)
			if err != nil {
				return "", err
			}
			sb.WriteString(text[i:end])
			i = end
		case c == '\'':
			end, err := writeSingleQuoted(&sb, text, i)
			if err != nil {
				return "", err
			}
			i = end
		case isWordByte(c):
			j := i
			for j < len(text) && isWordByte(text[j]) {
				j++
			}
			sb.WriteString(literalWord(text[i:j]))
			i = j
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), nil
}

func scanDoubleQuoted(text string, start int) (int, error) {
	for i := start + 1; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case '"':
			return i + 1, nil
		}
	}
	return 0, &ParseError{Offset: start, Msg: "unterminated string"}
}

func writeSingleQuoted(sb *strings.Builder, text string, start int) (int, error) {
	sb.WriteByte('"')
	for i := start + 1; i < len(text); i++ {
		c := text[i]
		switch c {
		case '\\':
			if i+1 >= len(text) {
				return 0, &ParseError{Offset: i, Msg: "dangling escape"}
			}
			next := text[i+1]
			if next == '\'' {
				sb.WriteByte('\'')
			} else {
				sb.WriteByte('\\')
				sb.WriteByte(next)
			}
			i++
		case '"':
			sb.WriteString(`\"`)
		case '\'':
			sb.WriteByte('"')
			return i + 1, nil
		default:
			sb.WriteByte(c)
		}
	}
	return 0, &ParseError{Offset: start, Msg: "unterminated string"}
}

func isWordByte(c byte) bool {
	return c == '_' || c == '.' || c == '+' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func literalWord(w string) string {
	switch w {
	case "True":
		return "true"
	case "False":
		return "false"
	case "None", "nan", "NaN":
		return "null"
	default:
		return w
	}
}
