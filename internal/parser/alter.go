package parser

import (
	"fmt"

	"github.com/vitebski/schema-analyzer/pkg/models"
)

// AlterAction identifies what an ALTER TABLE statement does to the model
type AlterAction int

const (
	// AlterAddConstraint attaches a table-level constraint
	AlterAddConstraint AlterAction = iota
	// AlterAddColumn appends a column
	AlterAddColumn
	// AlterOwnerTo records the owning role (schema header metadata)
	AlterOwnerTo
	// AlterSetDefault sets a column default (pg_dump emits sequence
	// defaults this way)
	AlterSetDefault
	// AlterIgnored covers clauses with no structural effect
	AlterIgnored
)

// AlterStatement is a parsed ALTER TABLE statement
type AlterStatement struct {
	Table       string
	Action      AlterAction
	Constraint  *models.Constraint
	Column      *models.Column
	Owner       string
	ColumnName  string
	DefaultExpr string
}

// ParseAlterTable parses an ALTER TABLE statement. The action kind is
// decided by the first structurally-distinguishing keyword after the table
// identifier (ADD CONSTRAINT vs ADD COLUMN vs OWNER TO ...), not by keyword
// order of appearance elsewhere in the statement.
func ParseAlterTable(text string) (*AlterStatement, error) {
	c := newCursor(text)
	if !c.matchWords("ALTER", "TABLE") {
		return nil, fmt.Errorf("not an ALTER TABLE statement")
	}
	c.matchWords("ONLY")
	c.matchWords("IF", "EXISTS")
	name, err := c.ident()
	if err != nil {
		return nil, fmt.Errorf("ALTER TABLE: %w", err)
	}
	alter := &AlterStatement{Table: name, Action: AlterIgnored}

	switch {
	case c.matchWords("ADD"):
		if c.peekWord("CONSTRAINT") || c.peekWord("PRIMARY") || c.peekWord("FOREIGN") ||
			c.peekWord("UNIQUE") || c.peekWord("CHECK") {
			con, err := parseConstraint(c)
			if err != nil {
				return nil, fmt.Errorf("ALTER TABLE %s: %w", name, err)
			}
			alter.Action = AlterAddConstraint
			alter.Constraint = con
			return alter, nil
		}
		c.matchWords("COLUMN")
		c.matchWords("IF", "NOT", "EXISTS")
		col, cons, err := parseColumnDef(c)
		if err != nil {
			return nil, fmt.Errorf("ALTER TABLE %s ADD COLUMN: %w", name, err)
		}
		alter.Action = AlterAddColumn
		alter.Column = col
		if len(cons) > 0 {
			alter.Constraint = cons[0]
		}
		return alter, nil

	case c.matchWords("OWNER", "TO"):
		owner, err := c.ident()
		if err != nil {
			return nil, fmt.Errorf("ALTER TABLE %s OWNER TO: %w", name, err)
		}
		alter.Action = AlterOwnerTo
		alter.Owner = owner
		return alter, nil

	case c.matchWords("ALTER"):
		c.matchWords("COLUMN")
		colName, err := c.ident()
		if err != nil {
			return nil, fmt.Errorf("ALTER TABLE %s ALTER COLUMN: %w", name, err)
		}
		if c.matchWords("SET", "DEFAULT") {
			alter.Action = AlterSetDefault
			alter.ColumnName = colName
			alter.DefaultExpr = parseDefaultExpr(c)
		}
		return alter, nil
	}
	return alter, nil
}
