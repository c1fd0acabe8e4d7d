package parser

import (
	"fmt"
	"strings"

	"github.com/vitebski/schema-analyzer/pkg/models"
)

// columnModifiers are the keywords that terminate a column's type tokens
var columnModifiers = map[string]bool{
	"NOT": true, "NULL": true, "DEFAULT": true, "PRIMARY": true,
	"UNIQUE": true, "REFERENCES": true, "CHECK": true, "CONSTRAINT": true,
	"GENERATED": true, "AUTO_INCREMENT": true, "COLLATE": true,
}

// ParseCreateTable parses a CREATE TABLE statement into a table model
func ParseCreateTable(text string) (*models.Table, error) {
	c := newCursor(text)
	if !c.matchWords("CREATE", "TABLE") {
		return nil, fmt.Errorf("not a CREATE TABLE statement")
	}
	c.matchWords("IF", "NOT", "EXISTS")
	name, err := c.ident()
	if err != nil {
		return nil, fmt.Errorf("CREATE TABLE: %w", err)
	}
	body, err := c.parenGroup()
	if err != nil {
		return nil, fmt.Errorf("CREATE TABLE %s: %w", name, err)
	}

	table := &models.Table{Name: name}
	for _, part := range splitTopLevel(body) {
		pc := &cursor{toks: part}
		if pc.eof() {
			continue
		}
		if isConstraintStart(pc) {
			con, err := parseConstraint(pc)
			if err != nil {
				return nil, fmt.Errorf("CREATE TABLE %s: %w", name, err)
			}
			table.Constraints = append(table.Constraints, con)
			continue
		}
		col, cons, err := parseColumnDef(pc)
		if err != nil {
			return nil, fmt.Errorf("CREATE TABLE %s: %w", name, err)
		}
		if err := table.AddColumn(col); err != nil {
			return nil, err
		}
		table.Constraints = append(table.Constraints, cons...)
	}
	return table, nil
}

func isConstraintStart(c *cursor) bool {
	return c.peekWord("CONSTRAINT") || c.peekWord("PRIMARY") ||
		c.peekWord("FOREIGN") || c.peekWord("UNIQUE") || c.peekWord("CHECK")
}

// parseConstraint parses a table-level constraint, with or without a
// leading CONSTRAINT <name>
func parseConstraint(c *cursor) (*models.Constraint, error) {
	con := &models.Constraint{}
	if c.matchWords("CONSTRAINT") {
		name, err := c.ident()
		if err != nil {
			return nil, err
		}
		con.Name = name
	}
	switch {
	case c.matchWords("PRIMARY", "KEY"):
		con.Kind = models.PrimaryKey
		cols, err := c.identList()
		if err != nil {
			return nil, fmt.Errorf("PRIMARY KEY: %w", err)
		}
		con.Columns = cols
	case c.matchWords("FOREIGN", "KEY"):
		con.Kind = models.ForeignKey
		cols, err := c.identList()
		if err != nil {
			return nil, fmt.Errorf("FOREIGN KEY: %w", err)
		}
		con.Columns = cols
		if !c.matchWords("REFERENCES") {
			return nil, fmt.Errorf("FOREIGN KEY %s: missing REFERENCES", con.Name)
		}
		if err := parseReferences(c, con); err != nil {
			return nil, err
		}
	case c.matchWords("UNIQUE"):
		con.Kind = models.Unique
		cols, err := c.identList()
		if err != nil {
			return nil, fmt.Errorf("UNIQUE: %w", err)
		}
		con.Columns = cols
	case c.matchWords("CHECK"):
		con.Kind = models.Check
		expr, err := c.parenGroup()
		if err != nil {
			return nil, fmt.Errorf("CHECK: %w", err)
		}
		con.Expression = joinTokens(expr)
	default:
		return nil, fmt.Errorf("unsupported constraint near %q", c.peek().text)
	}
	parseConstraintTail(c, con)
	return con, nil
}

// parseReferences parses "table [(cols)]" plus referential action clauses
func parseReferences(c *cursor, con *models.Constraint) error {
	ref, err := c.ident()
	if err != nil {
		return fmt.Errorf("REFERENCES: %w", err)
	}
	con.RefTable = ref
	if c.peekPunct("(") {
		cols, err := c.identList()
		if err != nil {
			return fmt.Errorf("REFERENCES %s: %w", ref, err)
		}
		con.RefColumns = cols
	}
	return nil
}

// parseConstraintTail consumes trailing clauses (ON DELETE/UPDATE actions,
// deferrability), recording what the model keeps
func parseConstraintTail(c *cursor, con *models.Constraint) {
	for !c.eof() {
		if c.matchWords("DEFERRABLE") {
			con.Deferrable = true
			continue
		}
		c.next()
	}
}

// parseColumnDef parses one column definition, returning the column and any
// constraints declared inline on it
func parseColumnDef(c *cursor) (*models.Column, []*models.Constraint, error) {
	name, err := c.ident()
	if err != nil {
		return nil, nil, err
	}
	col := &models.Column{Name: name}

	// Type: words up to the first modifier keyword, plus one optional
	// parenthesized argument list (length/precision)
	var typeWords []string
	for {
		t := c.peek()
		if t.kind == tokWord && !columnModifiers[strings.ToUpper(t.text)] {
			typeWords = append(typeWords, c.next().text)
			continue
		}
		if t.kind == tokPunct && t.text == "(" && len(typeWords) > 0 {
			args, err := c.parenGroup()
			if err != nil {
				return nil, nil, fmt.Errorf("column %s: %w", name, err)
			}
			typeWords[len(typeWords)-1] += "(" + joinTokens(args) + ")"
			continue
		}
		break
	}
	if len(typeWords) == 0 {
		return nil, nil, fmt.Errorf("column %s: missing type", name)
	}
	col.DataType = simplifyType(strings.Join(typeWords, " "))
	if serial, base := serialType(col.DataType); serial {
		col.AutoIncrement = true
		col.DataType = base
	}

	var cons []*models.Constraint
	for !c.eof() {
		switch {
		case c.matchWords("NOT", "NULL"):
			col.NotNull = true
		case c.matchWords("NULL"):
			// explicit nullability, the default
		case c.matchWords("DEFAULT"):
			col.Default = parseDefaultExpr(c)
		case c.matchWords("PRIMARY", "KEY"):
			cons = append(cons, &models.Constraint{Kind: models.PrimaryKey, Columns: []string{name}})
			col.NotNull = true
		case c.matchWords("UNIQUE"):
			cons = append(cons, &models.Constraint{Kind: models.Unique, Columns: []string{name}})
		case c.matchWords("REFERENCES"):
			con := &models.Constraint{Kind: models.ForeignKey, Columns: []string{name}}
			if err := parseReferences(c, con); err != nil {
				return nil, nil, fmt.Errorf("column %s: %w", name, err)
			}
			cons = append(cons, con)
		case c.matchWords("CHECK"):
			expr, err := c.parenGroup()
			if err != nil {
				return nil, nil, fmt.Errorf("column %s CHECK: %w", name, err)
			}
			cons = append(cons, &models.Constraint{Kind: models.Check, Columns: []string{name}, Expression: joinTokens(expr)})
		case c.matchWords("AUTO_INCREMENT"):
			col.AutoIncrement = true
		case c.matchWords("GENERATED"):
			parseGenerated(c, col)
		case c.matchWords("CONSTRAINT"):
			// Named inline constraint: CONSTRAINT name <kind ...>
			conName, err := c.ident()
			if err != nil {
				return nil, nil, fmt.Errorf("column %s: %w", name, err)
			}
			save := c.pos
			con, err := parseInlineNamed(c, name, conName)
			if err != nil {
				c.pos = save
				c.next()
				continue
			}
			if con.Kind == models.NotNull {
				col.NotNull = true
			}
			if con.Kind == models.PrimaryKey {
				col.NotNull = true
			}
			cons = append(cons, con)
		default:
			c.next() // COLLATE and friends carry no structural meaning here
		}
	}
	return col, cons, nil
}

// parseInlineNamed handles CONSTRAINT <name> after a column definition
func parseInlineNamed(c *cursor, colName, conName string) (*models.Constraint, error) {
	switch {
	case c.matchWords("PRIMARY", "KEY"):
		return &models.Constraint{Kind: models.PrimaryKey, Name: conName, Columns: []string{colName}}, nil
	case c.matchWords("UNIQUE"):
		return &models.Constraint{Kind: models.Unique, Name: conName, Columns: []string{colName}}, nil
	case c.matchWords("REFERENCES"):
		con := &models.Constraint{Kind: models.ForeignKey, Name: conName, Columns: []string{colName}}
		if err := parseReferences(c, con); err != nil {
			return nil, err
		}
		return con, nil
	case c.matchWords("CHECK"):
		expr, err := c.parenGroup()
		if err != nil {
			return nil, err
		}
		return &models.Constraint{Kind: models.Check, Name: conName, Columns: []string{colName}, Expression: joinTokens(expr)}, nil
	case c.matchWords("NOT", "NULL"):
		return &models.Constraint{Kind: models.NotNull, Name: conName, Columns: []string{colName}}, nil
	}
	return nil, fmt.Errorf("unsupported inline constraint %s", conName)
}

// parseGenerated consumes an identity clause, marking the column
// auto-incrementing for GENERATED ... AS IDENTITY
func parseGenerated(c *cursor, col *models.Column) {
	c.matchWords("ALWAYS")
	c.matchWords("BY", "DEFAULT")
	if c.matchWords("AS", "IDENTITY") {
		col.AutoIncrement = true
		if c.peekPunct("(") {
			c.parenGroup() //nolint:errcheck // sequence options are opaque
		}
	}
}

// parseDefaultExpr collects the default expression tokens up to the next
// column modifier keyword
func parseDefaultExpr(c *cursor) string {
	var toks []token
	for !c.eof() {
		t := c.peek()
		if t.kind == tokWord {
			upper := strings.ToUpper(t.text)
			if upper == "NOT" || upper == "PRIMARY" || upper == "UNIQUE" ||
				upper == "REFERENCES" || upper == "CHECK" || upper == "CONSTRAINT" ||
				upper == "GENERATED" || upper == "AUTO_INCREMENT" {
				break
			}
		}
		if t.kind == tokPunct && t.text == "(" {
			group, err := c.parenGroup()
			if err != nil {
				break
			}
			toks = append(toks, token{kind: tokPunct, text: "("})
			toks = append(toks, group...)
			toks = append(toks, token{kind: tokPunct, text: ")"})
			continue
		}
		toks = append(toks, c.next())
	}
	return joinTokens(toks)
}

// simplifyType folds verbose type spellings into their compact aliases,
// dropping character lengths the way the canonical notation expects
func simplifyType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	switch {
	case strings.HasPrefix(t, "character varying"):
		return "varchar"
	case strings.HasPrefix(t, "varchar"):
		return "varchar"
	case strings.HasPrefix(t, "character("), t == "character":
		return "char"
	case strings.HasPrefix(t, "char("), t == "char":
		return "char"
	case t == "timestamp with time zone", t == "timestamptz":
		return "timestamptz"
	case strings.HasPrefix(t, "timestamp"):
		return "timestamp"
	case t == "double precision":
		return "double"
	case t == "int", t == "int4":
		return "integer"
	case t == "int8":
		return "bigint"
	}
	return t
}

// serialType reports whether the type is a serial alias, and its base type
func serialType(t string) (bool, string) {
	switch t {
	case "serial", "serial4":
		return true, "integer"
	case "bigserial", "serial8":
		return true, "bigint"
	case "smallserial", "serial2":
		return true, "smallint"
	}
	return false, t
}
