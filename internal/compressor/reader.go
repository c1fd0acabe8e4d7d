package compressor

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/vitebski/schema-analyzer/pkg/models"
)

// Reader parses the canonical notation back into a schema model, the
// inverse of Writer: Read(Write(s)) is structurally equal to s.
type Reader struct {
	r *bufio.Scanner
}

// NewReader creates a canonical notation reader
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{r: sc}
}

// Read parses the full canonical text
func (cr *Reader) Read() (*models.Schema, error) {
	schema := models.NewSchema()
	var current *models.Table
	lineNo := 0

	for cr.r.Scan() {
		lineNo++
		line := cr.r.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "--") {
			parseHeader(trimmed, schema)
			continue
		}
		if !strings.HasPrefix(line, " ") {
			table, err := parseTableHeader(trimmed)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if err := schema.AddTable(table); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			current = table
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("line %d: indented line before any table header", lineNo)
		}
		if err := parseBodyLine(trimmed, current); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := cr.r.Err(); err != nil {
		return nil, err
	}
	return schema, nil
}

// parseHeader extracts schema name and owner from the "-- Schema:" line;
// other comment lines are ignored
func parseHeader(line string, schema *models.Schema) {
	body := strings.TrimSpace(strings.TrimPrefix(line, "--"))
	if !strings.HasPrefix(body, "Schema:") {
		return
	}
	for _, part := range strings.Split(body, ",") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, "Schema:"); ok {
			schema.Name = strings.TrimSpace(v)
		}
		if v, ok := strings.CutPrefix(part, "Owner:"); ok {
			schema.Owner = strings.TrimSpace(v)
		}
	}
}

func parseTableHeader(line string) (*models.Table, error) {
	name, rest, found := strings.Cut(line, ":")
	if !found || name == "" {
		return nil, fmt.Errorf("malformed table header %q", line)
	}
	return &models.Table{Name: unquoteName(name), Category: strings.TrimSpace(rest)}, nil
}

// unquoteName strips the double quotes the writer adds around identifiers
// that carry whitespace
func unquoteName(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

// splitFields splits a body line on whitespace, keeping quoted identifiers
// together as single fields
func splitFields(s string) []string {
	var fields []string
	var b strings.Builder
	inQuote := false
	for _, ch := range s {
		switch {
		case ch == '"':
			inQuote = !inQuote
			b.WriteRune(ch)
		case !inQuote && (ch == ' ' || ch == '\t'):
			if b.Len() > 0 {
				fields = append(fields, b.String())
				b.Reset()
			}
		default:
			b.WriteRune(ch)
		}
	}
	if b.Len() > 0 {
		fields = append(fields, b.String())
	}
	return fields
}

func parseBodyLine(line string, table *models.Table) error {
	switch {
	case strings.HasPrefix(line, "PK ("):
		cols, _, err := parseParenList(strings.TrimPrefix(line, "PK "))
		if err != nil {
			return fmt.Errorf("PK: %w", err)
		}
		table.Constraints = append(table.Constraints, &models.Constraint{Kind: models.PrimaryKey, Columns: cols})
		for _, name := range cols {
			if col := table.Column(name); col != nil {
				col.NotNull = true
			}
		}
		return nil

	case strings.HasPrefix(line, "FK ("):
		return parseTableFK(line, table)

	case strings.HasPrefix(line, "UNIQUE ("):
		cols, _, err := parseParenList(strings.TrimPrefix(line, "UNIQUE "))
		if err != nil {
			return fmt.Errorf("UNIQUE: %w", err)
		}
		table.Constraints = append(table.Constraints, &models.Constraint{Kind: models.Unique, Columns: cols})
		return nil

	case strings.HasPrefix(line, "CHECK ("):
		expr := strings.TrimPrefix(line, "CHECK (")
		expr = strings.TrimSuffix(expr, ")")
		table.Constraints = append(table.Constraints, &models.Constraint{Kind: models.Check, Expression: expr})
		return nil

	case strings.HasPrefix(line, "IDX "):
		return parseIDX(line, table)
	}
	return parseColumnLine(line, table)
}

// parseParenList parses "(a, b, c)..." returning the names and the rest of
// the line after the matching closing parenthesis. Entries may themselves
// contain balanced parentheses (expression index keys).
func parseParenList(s string) ([]string, string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") {
		return nil, "", fmt.Errorf("expected '(' in %q", s)
	}
	depth := 0
	end := -1
	var names []string
	start := 1
	for i, ch := range s {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				end = i
			}
		case ',':
			if depth == 1 {
				if part := strings.TrimSpace(s[start:i]); part != "" {
					names = append(names, unquoteName(part))
				}
				start = i + 1
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return nil, "", fmt.Errorf("missing ')' in %q", s)
	}
	if part := strings.TrimSpace(s[start:end]); part != "" {
		names = append(names, unquoteName(part))
	}
	return names, strings.TrimSpace(s[end+1:]), nil
}

func parseTableFK(line string, table *models.Table) error {
	cols, rest, err := parseParenList(strings.TrimPrefix(line, "FK "))
	if err != nil {
		return fmt.Errorf("FK: %w", err)
	}
	if !strings.HasPrefix(rest, ">") {
		return fmt.Errorf("FK: missing '>' in %q", line)
	}
	rest = strings.TrimSpace(rest[1:])
	open := strings.Index(rest, "(")
	if open < 0 {
		// Bare table target: the referenced columns were never resolved
		fields := splitFields(rest)
		if len(fields) == 0 {
			return fmt.Errorf("FK: missing target in %q", line)
		}
		con := &models.Constraint{
			Kind:       models.ForeignKey,
			Columns:    cols,
			RefTable:   unquoteName(fields[0]),
			Deferrable: len(fields) > 1 && strings.EqualFold(fields[1], "DEFERRABLE"),
		}
		table.Constraints = append(table.Constraints, con)
		return nil
	}
	refTable := unquoteName(strings.TrimSpace(rest[:open]))
	refCols, tail, err := parseParenList(rest[open:])
	if err != nil {
		return fmt.Errorf("FK: %w", err)
	}
	con := &models.Constraint{
		Kind:       models.ForeignKey,
		Columns:    cols,
		RefTable:   refTable,
		RefColumns: refCols,
		Deferrable: strings.Contains(strings.ToUpper(tail), "DEFERRABLE"),
	}
	table.Constraints = append(table.Constraints, con)
	return nil
}

func parseIDX(line string, table *models.Table) error {
	rest := strings.TrimPrefix(line, "IDX ")
	open := strings.Index(rest, "(")
	if open < 0 {
		return fmt.Errorf("IDX: missing column list in %q", line)
	}
	name := unquoteName(strings.TrimSpace(rest[:open]))
	cols, tail, err := parseParenList(rest[open:])
	if err != nil {
		return fmt.Errorf("IDX %s: %w", name, err)
	}
	idx := &models.Index{Name: name, Columns: cols}
	if strings.HasPrefix(tail, "UNIQUE") {
		idx.Unique = true
		tail = strings.TrimSpace(strings.TrimPrefix(tail, "UNIQUE"))
	}
	if strings.HasPrefix(tail, "WHERE ") {
		idx.Predicate = strings.TrimPrefix(tail, "WHERE ")
	}
	table.Indexes = append(table.Indexes, idx)
	return nil
}

// parseColumnLine parses a column line:
// name type [PK] [FK > table.col [DEFERRABLE]] [UNIQUE] [NOT NULL] [DEFAULT expr]
// or the auto-increment shorthand "name PK".
func parseColumnLine(line string, table *models.Table) error {
	fields := splitFields(line)
	if len(fields) < 2 {
		return fmt.Errorf("malformed column line %q", line)
	}
	col := &models.Column{Name: unquoteName(fields[0])}

	if fields[1] == "PK" && len(fields) == 2 {
		col.AutoPK = true
		col.AutoIncrement = true
		col.NotNull = true
		col.DataType = "integer"
		return table.AddColumn(col)
	}

	// Type runs until the first marker keyword; written types are
	// lower-cased so markers are unambiguous
	i := 1
	var typeWords []string
	for i < len(fields) && !isMarker(fields[i]) {
		typeWords = append(typeWords, fields[i])
		i++
	}
	col.DataType = strings.Join(typeWords, " ")
	if col.DataType == "" {
		return fmt.Errorf("column %s: missing type in %q", col.Name, line)
	}

	if err := table.AddColumn(col); err != nil {
		return err
	}

	for i < len(fields) {
		switch fields[i] {
		case "PK":
			table.Constraints = append(table.Constraints,
				&models.Constraint{Kind: models.PrimaryKey, Columns: []string{col.Name}})
			col.NotNull = true
			i++
		case "FK":
			if i+2 >= len(fields) || fields[i+1] != ">" {
				return fmt.Errorf("column %s: malformed FK marker in %q", col.Name, line)
			}
			target := fields[i+2]
			con := &models.Constraint{
				Kind:    models.ForeignKey,
				Columns: []string{col.Name},
			}
			// A dot-less target is a bare table reference with no
			// resolved columns
			if refTable, refCol, found := strings.Cut(target, "."); found {
				con.RefTable = unquoteName(refTable)
				con.RefColumns = []string{unquoteName(refCol)}
			} else {
				con.RefTable = unquoteName(target)
			}
			i += 3
			if i < len(fields) && fields[i] == "DEFERRABLE" {
				con.Deferrable = true
				i++
			}
			table.Constraints = append(table.Constraints, con)
		case "UNIQUE":
			table.Constraints = append(table.Constraints,
				&models.Constraint{Kind: models.Unique, Columns: []string{col.Name}})
			i++
		case "NOT":
			if i+1 < len(fields) && fields[i+1] == "NULL" {
				col.NotNull = true
				i += 2
			} else {
				i++
			}
		case "DEFAULT":
			// The default expression runs to the end of the line
			col.Default = strings.Join(fields[i+1:], " ")
			i = len(fields)
		default:
			i++
		}
	}
	return nil
}

func isMarker(f string) bool {
	switch f {
	case "PK", "FK", "UNIQUE", "NOT", "DEFAULT":
		return true
	}
	return false
}
