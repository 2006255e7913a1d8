package pdf

import (
	"strconv"
	"strings"
)

// tjSpaceThreshold is the TJ kerning adjustment (thousandths of an em) read as a word gap
const tjSpaceThreshold = 200

type tokenKind int

const (
	tokOperator tokenKind = iota
	tokNumber
	tokString
	tokArrayStart
	tokArrayEnd
	tokOther
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

// ContentText decodes the text-showing operators (Tj, TJ, ', ") of a page
// content stream. Positioning operators become spaces or line breaks, which
// is enough to keep bulletin rows on one line each.
func ContentText(stream string) string {
	var (
		out      strings.Builder
		operands []token
		inArray  bool
		array    []token
		lineY    float64
		hasLineY bool
	)

	newline := func() {
		s := out.String()
		if s != "" && !strings.HasSuffix(s, "\n") {
			out.WriteString("\n")
		}
	}
	space := func() {
		s := out.String()
		if s != "" && !strings.HasSuffix(s, " ") && !strings.HasSuffix(s, "\n") {
			out.WriteString(" ")
		}
	}

	lex := newLexer(stream)
	for {
		tok, ok := lex.next()
		if !ok {
			break
		}

		switch tok.kind {
		case tokArrayStart:
			inArray, array = true, nil
			continue
		case tokArrayEnd:
			inArray = false
			operands = append(operands, token{kind: tokOther, text: "array"})
			continue
		}
		if inArray {
			array = append(array, tok)
			continue
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "Tj":
			if s, ok := lastString(operands); ok {
				out.WriteString(s)
			}
		case "'", "\"":
			newline()
			if s, ok := lastString(operands); ok {
				out.WriteString(s)
			}
		case "TJ":
			for _, el := range array {
				switch el.kind {
				case tokString:
					out.WriteString(el.text)
				case tokNumber:
					if el.num <= -tjSpaceThreshold {
						space()
					}
				}
			}
			array = nil
		case "Td", "TD":
			if len(operands) >= 2 && operands[len(operands)-1].kind == tokNumber && operands[len(operands)-1].num != 0 {
				newline()
			} else {
				space()
			}
		case "T*", "ET":
			newline()
		case "Tm":
			// Tm sets an absolute matrix; only a new baseline starts a new line.
			if n := len(operands); n >= 6 && operands[n-1].kind == tokNumber {
				y := operands[n-1].num
				if hasLineY && y == lineY {
					space()
				} else {
					newline()
				}
				lineY, hasLineY = y, true
			} else {
				newline()
			}
		}
		operands = operands[:0]
	}

	return strings.TrimSpace(out.String())
}

func lastString(operands []token) (string, bool) {
	for i := len(operands) - 1; i >= 0; i-- {
		if operands[i].kind == tokString {
			return operands[i].text, true
		}
	}
	return "", false
}

type lexer struct {
	s   string
	pos int
}

func newLexer(s string) *lexer {
	return &lexer{s: s}
}

func isDelimiter(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func (l *lexer) next() (token, bool) {
	for l.pos < len(l.s) {
		c := l.s[l.pos]
		switch {
		case isSpace(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.s) && l.s[l.pos] != '\n' && l.s[l.pos] != '\r' {
				l.pos++
			}
		case c == '(':
			return token{kind: tokString, text: l.literal()}, true
		case c == '<':
			if l.pos+1 < len(l.s) && l.s[l.pos+1] == '<' {
				l.pos += 2
				return token{kind: tokOther, text: "<<"}, true
			}
			return token{kind: tokString, text: l.hex()}, true
		case c == '>':
			l.pos++
			if l.pos < len(l.s) && l.s[l.pos] == '>' {
				l.pos++
			}
			return token{kind: tokOther, text: ">>"}, true
		case c == '[':
			l.pos++
			return token{kind: tokArrayStart}, true
		case c == ']':
			l.pos++
			return token{kind: tokArrayEnd}, true
		case c == '/':
			start := l.pos
			l.pos++
			for l.pos < len(l.s) && !isSpace(l.s[l.pos]) && !isDelimiter(l.s[l.pos]) {
				l.pos++
			}
			return token{kind: tokOther, text: l.s[start:l.pos]}, true
		case c == '{' || c == '}':
			l.pos++
		default:
			start := l.pos
			for l.pos < len(l.s) && !isSpace(l.s[l.pos]) && !isDelimiter(l.s[l.pos]) {
				l.pos++
			}
			word := l.s[start:l.pos]
			if word == "" {
				l.pos++
				continue
			}
			if n, err := strconv.ParseFloat(word, 64); err == nil {
				return token{kind: tokNumber, text: word, num: n}, true
			}
			return token{kind: tokOperator, text: word}, true
		}
	}
	return token{}, false
}

// literal reads a (...) string, handling nesting and escapes
func (l *lexer) literal() string {
	var b strings.Builder
	depth := 0
	l.pos++ // (
	for l.pos < len(l.s) {
		c := l.s[l.pos]
		switch c {
		case '\\':
			l.pos++
			if l.pos >= len(l.s) {
				return b.String()
			}
			e := l.s[l.pos]
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case '\r', '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					end := l.pos
					for end < len(l.s) && end < l.pos+3 && l.s[end] >= '0' && l.s[end] <= '7' {
						end++
					}
					v, _ := strconv.ParseUint(l.s[l.pos:end], 8, 8)
					b.WriteByte(byte(v))
					l.pos = end
					continue
				}
				b.WriteByte(e)
			}
		case '(':
			depth++
			b.WriteByte(c)
		case ')':
			if depth == 0 {
				l.pos++
				return b.String()
			}
			depth--
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
		l.pos++
	}
	return b.String()
}

// hex reads a <...> string. Two-byte codes with a zero high byte are read as Latin-1.
func (l *lexer) hex() string {
	l.pos++ // <
	start := l.pos
	for l.pos < len(l.s) && l.s[l.pos] != '>' {
		l.pos++
	}
	digits := strings.Map(func(r rune) rune {
		if isSpace(byte(r)) {
			return -1
		}
		return r
	}, l.s[start:l.pos])
	if l.pos < len(l.s) {
		l.pos++ // >
	}
	if len(digits)%2 == 1 {
		digits += "0"
	}

	raw := make([]byte, 0, len(digits)/2)
	for i := 0; i+1 < len(digits); i += 2 {
		v, err := strconv.ParseUint(digits[i:i+2], 16, 8)
		if err != nil {
			return ""
		}
		raw = append(raw, byte(v))
	}

	if len(raw)%2 == 0 && len(raw) > 0 {
		wide := true
		for i := 0; i < len(raw); i += 2 {
			if raw[i] != 0 {
				wide = false
				break
			}
		}
		if wide {
			narrow := make([]byte, 0, len(raw)/2)
			for i := 1; i < len(raw); i += 2 {
				narrow = append(narrow, raw[i])
			}
			raw = narrow
		}
	}
	return string(raw)
}
