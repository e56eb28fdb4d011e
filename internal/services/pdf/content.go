package pdf

import (
	"encoding/hex"
	"strings"
	"unicode/utf16"
)

// ContentStreamText collects the strings shown by text operators (Tj, TJ, ' and ")
// in a decoded page content stream. Text positioning operators start a new line.
func ContentStreamText(content []byte) string {
	var out strings.Builder
	var pending []string
	s := content
	lineDirty := false

	newline := func() {
		if lineDirty {
			out.WriteString("\n")
			lineDirty = false
		}
	}

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '(':
			str, next := readLiteral(s, i)
			pending = append(pending, str)
			i = next

		case c == '<' && i+1 < len(s) && s[i+1] != '<':
			end := i + 1
			for end < len(s) && s[end] != '>' {
				end++
			}
			pending = append(pending, decodeHexString(string(s[i+1:end])))
			i = end + 1

		case c == '%':
			for i < len(s) && s[i] != '\n' && s[i] != '\r' {
				i++
			}

		case isRegular(c):
			start := i
			for i < len(s) && isRegular(s[i]) {
				i++
			}
			switch string(s[start:i]) {
			case "Tj", "TJ":
				for _, p := range pending {
					out.WriteString(p)
				}
				if len(pending) > 0 {
					lineDirty = true
				}
				pending = pending[:0]
			case "'", "\"":
				newline()
				for _, p := range pending {
					out.WriteString(p)
				}
				if len(pending) > 0 {
					lineDirty = true
				}
				pending = pending[:0]
			case "Td", "TD", "T*", "ET", "Tm":
				newline()
				pending = pending[:0]
			default:
				if start < i && s[start] != '-' && (s[start] < '0' || s[start] > '9') && s[start] != '.' {
					pending = pending[:0]
				}
			}

		default:
			i++
		}
	}

	return strings.TrimSpace(out.String())
}

func isRegular(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0, '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return false
	}
	return true
}

// readLiteral reads a balanced literal string starting at s[start] == '('
func readLiteral(s []byte, start int) (string, int) {
	var b strings.Builder
	depth := 0
	i := start
	for i < len(s) {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			i++
			switch e := s[i]; e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b', 'f':
			case '\r', '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					v := 0
					n := 0
					for n < 3 && i < len(s) && s[i] >= '0' && s[i] <= '7' {
						v = v*8 + int(s[i]-'0')
						i++
						n++
					}
					b.WriteByte(byte(v))
					continue
				}
				b.WriteByte(e)
			}
			i++
			continue
		case c == '(':
			depth++
			if depth > 1 {
				b.WriteByte(c)
			}
		case c == ')':
			depth--
			if depth == 0 {
				return latin1(b.String()), i + 1
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
		i++
	}
	return latin1(b.String()), i
}

// latin1 maps single-byte font codes to runes
func latin1(s string) string {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return s
	}
	runes := make([]rune, len(s))
	for i := 0; i < len(s); i++ {
		runes[i] = rune(s[i])
	}
	return string(runes)
}

func decodeHexString(h string) string {
	h = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, h)
	if len(h)%2 == 1 {
		h += "0"
	}
	raw, err := hex.DecodeString(h)
	if err != nil {
		return ""
	}

	// Two-byte codes with a zero high byte are treated as UTF-16BE
	if len(raw) >= 2 && len(raw)%2 == 0 && raw[0] == 0 {
		units := make([]uint16, len(raw)/2)
		for i := range units {
			units[i] = uint16(raw[2*i])<<8 | uint16(raw[2*i+1])
		}
		return string(utf16.Decode(units))
	}
	return latin1(string(raw))
}
