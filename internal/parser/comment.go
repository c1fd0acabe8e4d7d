package parser

import "fmt"

// CommentStatement is a parsed COMMENT ON TABLE/COLUMN statement. Comments
// on other object kinds return Table == "".
type CommentStatement struct {
	Table  string
	Column string
	Text   string
}

// ParseComment parses COMMENT ON TABLE t IS '...' and
// COMMENT ON COLUMN t.c IS '...'
func ParseComment(text string) (*CommentStatement, error) {
	c := newCursor(text)
	if !c.matchWords("COMMENT", "ON") {
		return nil, fmt.Errorf("not a COMMENT statement")
	}
	stmt := &CommentStatement{}
	switch {
	case c.matchWords("TABLE"):
		name, err := c.ident()
		if err != nil {
			return nil, fmt.Errorf("COMMENT ON TABLE: %w", err)
		}
		stmt.Table = name
	case c.matchWords("COLUMN"):
		parts, err := c.identParts()
		if err != nil {
			return nil, fmt.Errorf("COMMENT ON COLUMN: %w", err)
		}
		if len(parts) < 2 {
			return nil, fmt.Errorf("COMMENT ON COLUMN: unqualified column %q", parts[0])
		}
		stmt.Table = parts[len(parts)-2]
		stmt.Column = parts[len(parts)-1]
	default:
		// Comments on other object kinds carry no schema structure
		return stmt, nil
	}
	if !c.matchWords("IS") {
		return nil, fmt.Errorf("COMMENT ON %s: missing IS", stmt.Table)
	}
	t := c.next()
	if t.kind == tokString {
		stmt.Text = t.text
	}
	return stmt, nil
}
