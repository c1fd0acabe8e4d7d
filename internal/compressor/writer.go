package compressor

import (
	"fmt"
	"io"
	"strings"

	"github.com/vitebski/schema-analyzer/pkg/models"
)

// Writer renders a schema into the canonical compact notation. The output
// is deterministic: tables in declaration order, columns in ordinal order,
// constraints and indexes in first-seen order.
type Writer struct {
	w io.Writer
}

// NewWriter creates a canonical notation writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write renders the whole schema
func (cw *Writer) Write(s *models.Schema) error {
	header := fmt.Sprintf("-- Schema: %s", s.Name)
	if s.Owner != "" {
		header += fmt.Sprintf(", Owner: %s", s.Owner)
	}
	if _, err := fmt.Fprintln(cw.w, header); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(cw.w); err != nil {
		return err
	}
	for _, table := range s.Tables {
		if err := cw.writeTable(table); err != nil {
			return err
		}
	}
	return nil
}

func (cw *Writer) writeTable(t *models.Table) error {
	header := quoteName(t.Name) + ":"
	if t.Category != "" {
		header += " " + t.Category
	}
	if _, err := fmt.Fprintln(cw.w, header); err != nil {
		return err
	}

	inline := inlineConstraints(t)
	for _, col := range t.Columns {
		if _, err := fmt.Fprintf(cw.w, "  %s\n", formatColumn(col, inline[col.Name])); err != nil {
			return err
		}
	}
	for _, con := range t.Constraints {
		line, ok := formatTableConstraint(con, inline)
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(cw.w, "  %s\n", line); err != nil {
			return err
		}
	}
	for _, idx := range t.Indexes {
		if _, err := fmt.Fprintf(cw.w, "  %s\n", formatIndex(idx)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(cw.w)
	return err
}

// inlineConstraints maps column names to the single-column constraints that
// render inline on the column's own line
func inlineConstraints(t *models.Table) map[string][]*models.Constraint {
	inline := make(map[string][]*models.Constraint)
	for _, con := range t.Constraints {
		if len(con.Columns) != 1 {
			continue
		}
		switch con.Kind {
		case models.PrimaryKey, models.ForeignKey, models.Unique:
			inline[con.Columns[0]] = append(inline[con.Columns[0]], con)
		}
	}
	return inline
}

func formatColumn(col *models.Column, cons []*models.Constraint) string {
	if col.AutoPK {
		return quoteName(col.Name) + " PK"
	}
	parts := []string{quoteName(col.Name), col.DataType}
	for _, con := range cons {
		switch con.Kind {
		case models.PrimaryKey:
			parts = append(parts, "PK")
		case models.ForeignKey:
			parts = append(parts, "FK >", fkTarget(con))
			if con.Deferrable {
				parts = append(parts, "DEFERRABLE")
			}
		case models.Unique:
			parts = append(parts, "UNIQUE")
		}
	}
	if col.NotNull && !hasPK(cons) {
		parts = append(parts, "NOT NULL")
	}
	if col.Default != "" {
		parts = append(parts, "DEFAULT "+col.Default)
	}
	return strings.Join(parts, " ")
}

func hasPK(cons []*models.Constraint) bool {
	for _, con := range cons {
		if con.Kind == models.PrimaryKey {
			return true
		}
	}
	return false
}

// fkTarget renders the referenced side of an inline FK. A constraint whose
// referenced columns were never resolved serializes as the bare table name
// rather than a guessed column.
func fkTarget(con *models.Constraint) string {
	if len(con.RefColumns) == 0 {
		return quoteName(con.RefTable)
	}
	return quoteName(con.RefTable) + "." + quoteName(con.RefColumns[0])
}

// formatTableConstraint renders the constraints that stay at table level;
// ok is false for constraints already rendered inline on a column
func formatTableConstraint(con *models.Constraint, inline map[string][]*models.Constraint) (string, bool) {
	if len(con.Columns) == 1 {
		switch con.Kind {
		case models.PrimaryKey, models.ForeignKey, models.Unique:
			return "", false
		}
	}
	switch con.Kind {
	case models.PrimaryKey:
		return fmt.Sprintf("PK (%s)", strings.Join(quoteNames(con.Columns), ", ")), true
	case models.ForeignKey:
		line := fmt.Sprintf("FK (%s) > %s",
			strings.Join(quoteNames(con.Columns), ", "), quoteName(con.RefTable))
		if len(con.RefColumns) > 0 {
			line += fmt.Sprintf("(%s)", strings.Join(quoteNames(con.RefColumns), ", "))
		}
		if con.Deferrable {
			line += " DEFERRABLE"
		}
		return line, true
	case models.Unique:
		return fmt.Sprintf("UNIQUE (%s)", strings.Join(quoteNames(con.Columns), ", ")), true
	case models.Check:
		return fmt.Sprintf("CHECK (%s)", con.Expression), true
	case models.NotNull:
		return "", false // already carried on the column line
	}
	return "", false
}

func formatIndex(idx *models.Index) string {
	line := fmt.Sprintf("IDX %s (%s)", quoteName(idx.Name), strings.Join(quoteNames(idx.Columns), ", "))
	if idx.Unique {
		line += " UNIQUE"
	}
	if idx.Predicate != "" {
		line += " WHERE " + idx.Predicate
	}
	return line
}

// quoteName wraps an identifier in double quotes when it carries
// whitespace, which the line format would otherwise split on re-parse
func quoteName(name string) string {
	if strings.ContainsAny(name, " \t") {
		return `"` + name + `"`
	}
	return name
}

func quoteNames(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteName(n)
	}
	return out
}
