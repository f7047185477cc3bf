package planner

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// parseLooseLiteral is the last-resort repair strategy: a small recursive
// descent over Python-style literal syntax. It accepts single- or
// double-quoted strings, dict/list/tuple literals, numbers, True/False/None,
// and bare identifiers (read as strings), and decodes them into the same
// value shapes encoding/json produces.
func parseLooseLiteral(s string) (any, error) {
	p := &literalParser{input: s}
	p.skipSpace()
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, fmt.Errorf("trailing data at offset %d", p.pos)
	}
	return v, nil
}

type literalParser struct {
	input string
	pos   int
}

func (p *literalParser) errf(format string, args ...any) error {
	return fmt.Errorf("loose literal at offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *literalParser) peek() (byte, bool) {
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

func (p *literalParser) value() (any, error) {
	c, ok := p.peek()
	if !ok {
		return nil, p.errf("unexpected end of input")
	}
	switch {
	case c == '{':
		return p.dict()
	case c == '[':
		return p.list(']')
	case c == '(':
		return p.list(')')
	case c == '\'' || c == '"':
		return p.quotedString(c)
	case c == '-' || c == '+' || (c >= '0' && c <= '9'):
		return p.number()
	default:
		return p.bareWord()
	}
}

func (p *literalParser) dict() (map[string]any, error) {
	p.pos++ // consume '{'
	out := map[string]any{}
	p.skipSpace()
	if c, ok := p.peek(); ok && c == '}' {
		p.pos++
		return out, nil
	}
	for {
		p.skipSpace()
		key, err := p.value()
		if err != nil {
			return nil, err
		}
		keyStr, ok := key.(string)
		if !ok {
			keyStr = fmt.Sprintf("%v", key)
		}
		p.skipSpace()
		if c, ok := p.peek(); !ok || c != ':' {
			return nil, p.errf("expected ':' after key %q", keyStr)
		}
		p.pos++
		p.skipSpace()
		val, err := p.value()
		if err != nil {
			return nil, err
		}
		out[keyStr] = val

		p.skipSpace()
		c, ok := p.peek()
		switch {
		case !ok:
			return nil, p.errf("unterminated dict")
		case c == ',':
			p.pos++
			p.skipSpace()
			// tolerate a trailing comma
			if c, ok := p.peek(); ok && c == '}' {
				p.pos++
				return out, nil
			}
		case c == '}':
			p.pos++
			return out, nil
		default:
			return nil, p.errf("expected ',' or '}' in dict, got %q", c)
		}
	}
}

func (p *literalParser) list(closing byte) ([]any, error) {
	p.pos++ // consume opening bracket
	out := []any{}
	p.skipSpace()
	if c, ok := p.peek(); ok && c == closing {
		p.pos++
		return out, nil
	}
	for {
		p.skipSpace()
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)

		p.skipSpace()
		c, ok := p.peek()
		switch {
		case !ok:
			return nil, p.errf("unterminated list")
		case c == ',':
			p.pos++
			p.skipSpace()
			if c, ok := p.peek(); ok && c == closing {
				p.pos++
				return out, nil
			}
		case c == closing:
			p.pos++
			return out, nil
		default:
			return nil, p.errf("expected ',' or %q in list, got %q", closing, c)
		}
	}
}

func (p *literalParser) quotedString(quote byte) (string, error) {
	p.pos++ // consume opening quote
	var b strings.Builder
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch c {
		case '\\':
			if p.pos+1 >= len(p.input) {
				return "", p.errf("dangling escape")
			}
			next := p.input[p.pos+1]
			switch next {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(next)
			}
			p.pos += 2
		case quote:
			p.pos++
			return b.String(), nil
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errf("unterminated string")
}

func (p *literalParser) number() (float64, error) {
	start := p.pos
	if c, _ := p.peek(); c == '-' || c == '+' {
		p.pos++
	}
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' ||
			((c == '-' || c == '+') && (p.input[p.pos-1] == 'e' || p.input[p.pos-1] == 'E')) {
			p.pos++
			continue
		}
		break
	}
	n, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, p.errf("bad number %q", p.input[start:p.pos])
	}
	return n, nil
}

// bareWord reads an unquoted identifier. True/False/None map to their JSON
// counterparts; anything else is kept as a plain string.
func (p *literalParser) bareWord() (any, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == ',' || c == ':' || c == '}' || c == ']' || c == ')' || unicode.IsSpace(rune(c)) {
			break
		}
		p.pos++
	}
	word := p.input[start:p.pos]
	if word == "" {
		return nil, p.errf("unexpected character %q", p.input[start])
	}
	switch word {
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	case "None", "null":
		return nil, nil
	default:
		return word, nil
	}
}
