package parser

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

// tokEOF is deliberately the zero kind: the token the cursor hands out
// past end of input must never read as a word
const (
	tokEOF tokenKind = iota
	tokWord
	tokQuotedIdent
	tokString
	tokPunct
)

type token struct {
	kind tokenKind
	text string
}

// tokenize splits statement text into words, quoted identifiers, string
// literals, and punctuation. Comments have already been stripped by the
// scanner.
func tokenize(s string) []token {
	var toks []token
	runes := []rune(s)
	i := 0
	for i < len(runes) {
		ch := runes[i]
		switch {
		case unicode.IsSpace(ch):
			i++
		case ch == '\'' || ch == '"':
			quote := ch
			j := i + 1
			var body strings.Builder
			for j < len(runes) {
				if runes[j] == quote {
					if j+1 < len(runes) && runes[j+1] == quote {
						body.WriteRune(quote)
						j += 2
						continue
					}
					break
				}
				body.WriteRune(runes[j])
				j++
			}
			kind := tokString
			if quote == '"' {
				kind = tokQuotedIdent
			}
			toks = append(toks, token{kind: kind, text: body.String()})
			i = j + 1
		case ch == '(' || ch == ')' || ch == ',' || ch == '.' || ch == ';':
			toks = append(toks, token{kind: tokPunct, text: string(ch)})
			i++
		default:
			j := i
			for j < len(runes) && !unicode.IsSpace(runes[j]) &&
				runes[j] != '(' && runes[j] != ')' && runes[j] != ',' &&
				runes[j] != '.' && runes[j] != ';' && runes[j] != '\'' && runes[j] != '"' {
				j++
			}
			toks = append(toks, token{kind: tokWord, text: string(runes[i:j])})
			i = j
		}
	}
	return toks
}

// cursor walks a token slice
type cursor struct {
	toks []token
	pos  int
}

func newCursor(s string) *cursor {
	return &cursor{toks: tokenize(s)}
}

func (c *cursor) eof() bool {
	return c.pos >= len(c.toks)
}

func (c *cursor) peek() token {
	if c.eof() {
		return token{}
	}
	return c.toks[c.pos]
}

func (c *cursor) next() token {
	t := c.peek()
	c.pos++
	return t
}

// peekWord reports whether the next token is the given keyword
func (c *cursor) peekWord(word string) bool {
	t := c.peek()
	return t.kind == tokWord && strings.EqualFold(t.text, word)
}

// matchWords consumes the given keyword sequence if it is next, in full
func (c *cursor) matchWords(words ...string) bool {
	save := c.pos
	for _, w := range words {
		t := c.next()
		if t.kind != tokWord || !strings.EqualFold(t.text, w) {
			c.pos = save
			return false
		}
	}
	return true
}

func (c *cursor) peekPunct(p string) bool {
	t := c.peek()
	return t.kind == tokPunct && t.text == p
}

// identParts reads a possibly schema-qualified identifier, returning each
// dotted part with dialect case folding applied: unquoted identifiers are
// lower-cased, quoted identifiers kept verbatim.
func (c *cursor) identParts() ([]string, error) {
	var parts []string
	for {
		t := c.peek()
		switch t.kind {
		case tokWord:
			c.next()
			parts = append(parts, strings.ToLower(t.text))
		case tokQuotedIdent:
			c.next()
			parts = append(parts, t.text)
		default:
			if len(parts) == 0 {
				return nil, fmt.Errorf("expected identifier, got %q", t.text)
			}
			return parts, nil
		}
		if !c.peekPunct(".") {
			return parts, nil
		}
		c.next()
	}
}

// ident reads an identifier, discarding any schema qualification
func (c *cursor) ident() (string, error) {
	parts, err := c.identParts()
	if err != nil {
		return "", err
	}
	return parts[len(parts)-1], nil
}

// parenGroup consumes a parenthesized group and returns the inner tokens
func (c *cursor) parenGroup() ([]token, error) {
	if !c.peekPunct("(") {
		return nil, fmt.Errorf("expected '(', got %q", c.peek().text)
	}
	c.next()
	depth := 1
	start := c.pos
	for !c.eof() {
		t := c.next()
		if t.kind == tokPunct {
			switch t.text {
			case "(":
				depth++
			case ")":
				depth--
				if depth == 0 {
					return c.toks[start : c.pos-1], nil
				}
			}
		}
	}
	return nil, fmt.Errorf("unbalanced parentheses")
}

// identList reads a parenthesized, comma-separated identifier list
func (c *cursor) identList() ([]string, error) {
	inner, err := c.parenGroup()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, group := range splitTopLevel(inner) {
		gc := &cursor{toks: group}
		name, err := gc.ident()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// splitTopLevel splits tokens on commas outside nested parentheses
func splitTopLevel(toks []token) [][]token {
	var groups [][]token
	depth := 0
	start := 0
	for i, t := range toks {
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "(":
			depth++
		case ")":
			depth--
		case ",":
			if depth == 0 {
				groups = append(groups, toks[start:i])
				start = i + 1
			}
		}
	}
	if start < len(toks) {
		groups = append(groups, toks[start:])
	}
	return groups
}

// joinTokens reconstructs expression text from tokens, used for opaque
// fragments such as CHECK expressions, defaults, and index predicates
func joinTokens(toks []token) string {
	var b strings.Builder
	for i, t := range toks {
		text := t.text
		switch t.kind {
		case tokString:
			text = "'" + strings.ReplaceAll(t.text, "'", "''") + "'"
		case tokQuotedIdent:
			text = `"` + t.text + `"`
		}
		if i > 0 && !noSpaceBefore(t) && !noSpaceAfter(toks[i-1]) {
			b.WriteString(" ")
		}
		b.WriteString(text)
	}
	return b.String()
}

func noSpaceBefore(t token) bool {
	return t.kind == tokPunct && (t.text == ")" || t.text == "," || t.text == "." || t.text == "(")
}

func noSpaceAfter(t token) bool {
	return t.kind == tokPunct && (t.text == "(" || t.text == ".")
}
