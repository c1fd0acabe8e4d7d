package models

import (
	"errors"
	"fmt"
)

// ErrDuplicate marks duplicate-definition errors, which are fatal: a
// duplicate indicates a corrupt or unsupported dump
var ErrDuplicate = errors.New("duplicate definition")

// ConstraintKind identifies the kind of a table constraint
type ConstraintKind string

const (
	PrimaryKey ConstraintKind = "PRIMARY KEY"
	ForeignKey ConstraintKind = "FOREIGN KEY"
	Unique     ConstraintKind = "UNIQUE"
	Check      ConstraintKind = "CHECK"
	NotNull    ConstraintKind = "NOT NULL"
)

// Column represents a table column with its declared properties.
// AutoIncrement records the raw auto-increment/serial/identity signal from
// the source; AutoPK is set by the model builder once the column is known
// to be the table's sole primary key column.
type Column struct {
	Name          string
	DataType      string
	NotNull       bool
	Default       string
	Ordinal       int
	AutoIncrement bool
	AutoPK        bool
	Comment       string
}

// Constraint represents a table-level constraint
type Constraint struct {
	Kind       ConstraintKind
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string
	Expression string
	Deferrable bool
}

// Index represents a database index
type Index struct {
	Name      string
	Columns   []string
	Unique    bool
	Predicate string
}

// Table represents a database table with its columns, constraints, and indexes
type Table struct {
	Name        string
	Columns     []*Column
	Constraints []*Constraint
	Indexes     []*Index
	Category    string
	Comment     string
}

// Column returns the column with the given name, or nil if absent
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// AddColumn appends a column, assigning the next ordinal position
func (t *Table) AddColumn(c *Column) error {
	if t.Column(c.Name) != nil {
		return fmt.Errorf("duplicate column %s in table %s: %w", c.Name, t.Name, ErrDuplicate)
	}
	c.Ordinal = len(t.Columns) + 1
	t.Columns = append(t.Columns, c)
	return nil
}

// ForeignKeys returns the table's foreign key constraints in declaration order
func (t *Table) ForeignKeys() []*Constraint {
	var fks []*Constraint
	for _, c := range t.Constraints {
		if c.Kind == ForeignKey {
			fks = append(fks, c)
		}
	}
	return fks
}

// PrimaryKeyColumns returns the primary key column names, whether declared
// inline on a column or as a table-level constraint
func (t *Table) PrimaryKeyColumns() []string {
	for _, c := range t.Constraints {
		if c.Kind == PrimaryKey {
			return c.Columns
		}
	}
	var cols []string
	for _, col := range t.Columns {
		if col.AutoPK {
			cols = append(cols, col.Name)
		}
	}
	return cols
}

// Schema is the top-level aggregate owning all tables
type Schema struct {
	Name   string
	Owner  string
	Tables []*Table

	byName map[string]*Table
}

// NewSchema creates an empty schema with the default schema name
func NewSchema() *Schema {
	return &Schema{
		Name:   "public",
		byName: make(map[string]*Table),
	}
}

// AddTable registers a table, failing on a duplicate name
func (s *Schema) AddTable(t *Table) error {
	if s.byName == nil {
		s.byName = make(map[string]*Table)
	}
	if _, exists := s.byName[t.Name]; exists {
		return fmt.Errorf("duplicate table definition %s: %w", t.Name, ErrDuplicate)
	}
	s.byName[t.Name] = t
	s.Tables = append(s.Tables, t)
	return nil
}

// Table returns the table with the given name, or nil if absent
func (s *Schema) Table(name string) *Table {
	if s.byName == nil {
		return nil
	}
	return s.byName[name]
}

// TableNames returns all table names in declaration order
func (s *Schema) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}
