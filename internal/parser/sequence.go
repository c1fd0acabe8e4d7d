package parser

import "fmt"

// SequenceStatement is a parsed CREATE SEQUENCE or ALTER SEQUENCE ... OWNED
// BY statement. OwnedTable/OwnedColumn are set only for the latter.
type SequenceStatement struct {
	Name        string
	OwnedTable  string
	OwnedColumn string
}

// ParseCreateSequence extracts the sequence name
func ParseCreateSequence(text string) (*SequenceStatement, error) {
	c := newCursor(text)
	if !c.matchWords("CREATE", "SEQUENCE") {
		return nil, fmt.Errorf("not a CREATE SEQUENCE statement")
	}
	c.matchWords("IF", "NOT", "EXISTS")
	name, err := c.ident()
	if err != nil {
		return nil, fmt.Errorf("CREATE SEQUENCE: %w", err)
	}
	return &SequenceStatement{Name: name}, nil
}

// ParseAlterSequence parses ALTER SEQUENCE statements, keeping only the
// OWNED BY linkage used to collapse auto-incrementing primary keys. Other
// forms return a statement with no owner set.
func ParseAlterSequence(text string) (*SequenceStatement, error) {
	c := newCursor(text)
	if !c.matchWords("ALTER", "SEQUENCE") {
		return nil, fmt.Errorf("not an ALTER SEQUENCE statement")
	}
	c.matchWords("IF", "EXISTS")
	name, err := c.ident()
	if err != nil {
		return nil, fmt.Errorf("ALTER SEQUENCE: %w", err)
	}
	seq := &SequenceStatement{Name: name}
	for !c.eof() {
		if c.matchWords("OWNED", "BY") {
			parts, err := c.identParts()
			if err != nil {
				return nil, fmt.Errorf("ALTER SEQUENCE %s OWNED BY: %w", name, err)
			}
			if len(parts) >= 2 {
				seq.OwnedTable = parts[len(parts)-2]
				seq.OwnedColumn = parts[len(parts)-1]
			}
			break
		}
		c.next()
	}
	return seq, nil
}
