package understat

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// unescapeJS decodes the body of a single-quoted JavaScript string literal.
// \xNN and \uNNNN name code points (surrogate pairs are joined); the usual
// single-character escapes are honoured and any other escaped character
// stands for itself.
func unescapeJS(s string) ([]byte, error) {
	if !strings.Contains(s, `\`) {
		return []byte(s), nil
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i >= len(s) {
			return nil, fmt.Errorf("trailing backslash")
		}
		switch e := s[i]; e {
		case 'x':
			r, err := hexRune(s, i+1, 2)
			if err != nil {
				return nil, err
			}
			out = utf8.AppendRune(out, r)
			i += 2
		case 'u':
			r, err := hexRune(s, i+1, 4)
			if err != nil {
				return nil, err
			}
			i += 4
			if utf16.IsSurrogate(r) && i+2 < len(s) && s[i+1] == '\\' && s[i+2] == 'u' {
				if low, err := hexRune(s, i+3, 4); err == nil {
					if dec := utf16.DecodeRune(r, low); dec != utf8.RuneError {
						r = dec
						i += 6
					}
				}
			}
			out = utf8.AppendRune(out, r)
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case 'r':
			out = append(out, '\r')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'v':
			out = append(out, '\v')
		case '0':
			out = append(out, 0)
		default:
			out = append(out, e)
		}
	}
	return out, nil
}

func hexRune(s string, start, n int) (rune, error) {
	if start+n > len(s) {
		return 0, fmt.Errorf("short escape at offset %d", start)
	}
	v, err := strconv.ParseUint(s[start:start+n], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("bad escape %q at offset %d", s[start:start+n], start)
	}
	return rune(v), nil
}
