package builder

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vitebski/schema-analyzer/internal/parser"
	"github.com/vitebski/schema-analyzer/pkg/models"
)

// Builder folds a statement sequence into a schema model. It holds no state
// beyond the schema under construction, the buffered retry queues, and the
// accumulated diagnostics.
type Builder struct {
	Logger *logrus.Logger

	schema    *models.Schema
	diags     []models.Diagnostic
	sequences map[string]seqOwner

	pendingAlters   []pendingStatement[*parser.AlterStatement]
	pendingIndexes  []pendingStatement[*parser.IndexStatement]
	pendingComments []pendingStatement[*parser.CommentStatement]
}

type pendingStatement[T any] struct {
	stmt   T
	offset int64
}

type seqOwner struct {
	table  string
	column string
}

// New creates a schema builder
func New(logger *logrus.Logger) *Builder {
	return &Builder{Logger: logger}
}

// Build scans the DDL text and produces the schema plus the diagnostics for
// every entry that had to be dropped. A non-nil error is fatal (duplicate
// definition, unfindable statement boundary) and reported with its offset.
func (b *Builder) Build(r io.Reader) (*models.Schema, []models.Diagnostic, error) {
	b.schema = models.NewSchema()
	b.diags = nil
	b.sequences = make(map[string]seqOwner)
	b.pendingAlters = nil
	b.pendingIndexes = nil
	b.pendingComments = nil

	scanner := parser.NewScanner(r, b.Logger)
	for {
		stmt, err := scanner.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, b.diags, err
		}
		if err := b.fold(stmt); err != nil {
			return nil, b.diags, err
		}
	}

	b.resolvePending()
	b.validateForeignKeys()
	b.collapseAutoPK()

	if dropped := models.CountDropped(b.diags); dropped > 0 {
		b.Logger.Warningf("schema built with %d dropped entries (%d tables kept)", dropped, len(b.schema.Tables))
	}
	return b.schema, b.diags, nil
}

func (b *Builder) fold(stmt *parser.Statement) error {
	switch stmt.Kind {
	case parser.CreateTable:
		table, err := parser.ParseCreateTable(stmt.Text)
		if err != nil {
			if errors.Is(err, models.ErrDuplicate) {
				return fmt.Errorf("%w (byte offset %d)", err, stmt.Offset)
			}
			b.structural(stmt.Offset, "CREATE TABLE", err.Error())
			return nil
		}
		if err := b.schema.AddTable(table); err != nil {
			return fmt.Errorf("%w (byte offset %d)", err, stmt.Offset)
		}
		b.Logger.Debugf("table %s: %d columns", table.Name, len(table.Columns))

	case parser.AlterTable:
		alter, err := parser.ParseAlterTable(stmt.Text)
		if err != nil {
			b.structural(stmt.Offset, "ALTER TABLE", err.Error())
			return nil
		}
		if alter.Action == parser.AlterIgnored {
			return nil
		}
		if !b.applyAlter(alter) {
			b.pendingAlters = append(b.pendingAlters, pendingStatement[*parser.AlterStatement]{alter, stmt.Offset})
		}

	case parser.CreateIndex:
		idx, err := parser.ParseCreateIndex(stmt.Text)
		if err != nil {
			b.structural(stmt.Offset, "CREATE INDEX", err.Error())
			return nil
		}
		if !b.applyIndex(idx) {
			b.pendingIndexes = append(b.pendingIndexes, pendingStatement[*parser.IndexStatement]{idx, stmt.Offset})
		}

	case parser.CreateSequence:
		seq, err := parser.ParseCreateSequence(stmt.Text)
		if err != nil {
			b.structural(stmt.Offset, "CREATE SEQUENCE", err.Error())
			return nil
		}
		if _, ok := b.sequences[seq.Name]; !ok {
			b.sequences[seq.Name] = seqOwner{}
		}

	case parser.AlterSequence:
		seq, err := parser.ParseAlterSequence(stmt.Text)
		if err != nil {
			b.structural(stmt.Offset, "ALTER SEQUENCE", err.Error())
			return nil
		}
		if seq.OwnedTable != "" {
			b.sequences[seq.Name] = seqOwner{table: seq.OwnedTable, column: seq.OwnedColumn}
		}

	case parser.Comment:
		comment, err := parser.ParseComment(stmt.Text)
		if err != nil || comment.Table == "" {
			return nil
		}
		if !b.applyComment(comment) {
			b.pendingComments = append(b.pendingComments, pendingStatement[*parser.CommentStatement]{comment, stmt.Offset})
		}

	case parser.Unrecognized:
		if stmt.Diag != "" {
			b.structural(stmt.Offset, "statement", stmt.Diag)
			return nil
		}
		if benignStatement(stmt.Text) {
			b.Logger.Debugf("ignoring non-structural statement at byte %d", stmt.Offset)
			return nil
		}
		b.structural(stmt.Offset, "statement", fmt.Sprintf("unrecognized statement kind: %.60s", stmt.Text))
	}
	return nil
}

// applyAlter attaches the alter to its table, reporting false when the
// table is not defined yet so the statement can be buffered
func (b *Builder) applyAlter(alter *parser.AlterStatement) bool {
	if alter.Action == parser.AlterOwnerTo {
		if b.schema.Owner == "" {
			b.schema.Owner = alter.Owner
		}
		return true
	}
	table := b.schema.Table(alter.Table)
	if table == nil {
		return false
	}
	switch alter.Action {
	case parser.AlterAddConstraint:
		table.Constraints = append(table.Constraints, alter.Constraint)
	case parser.AlterAddColumn:
		if err := table.AddColumn(alter.Column); err != nil {
			b.structural(0, alter.Table, err.Error())
			return true
		}
		if alter.Constraint != nil {
			table.Constraints = append(table.Constraints, alter.Constraint)
		}
	case parser.AlterSetDefault:
		col := table.Column(alter.ColumnName)
		if col == nil {
			b.structural(0, alter.Table, fmt.Sprintf("SET DEFAULT on unknown column %s", alter.ColumnName))
			return true
		}
		col.Default = alter.DefaultExpr
		if strings.Contains(strings.ToLower(alter.DefaultExpr), "nextval(") {
			col.AutoIncrement = true
		}
	}
	return true
}

func (b *Builder) applyIndex(stmt *parser.IndexStatement) bool {
	table := b.schema.Table(stmt.Table)
	if table == nil {
		return false
	}
	table.Indexes = append(table.Indexes, stmt.Index)
	return true
}

func (b *Builder) applyComment(stmt *parser.CommentStatement) bool {
	table := b.schema.Table(stmt.Table)
	if table == nil {
		return false
	}
	if stmt.Column == "" {
		table.Comment = stmt.Text
		return true
	}
	if col := table.Column(stmt.Column); col != nil {
		col.Comment = stmt.Text
	}
	return true
}

// resolvePending retries buffered statements now that the full table set is
// known. Anything still unresolved is dropped with a diagnostic.
func (b *Builder) resolvePending() {
	for _, p := range b.pendingAlters {
		if !b.applyAlter(p.stmt) {
			subject := p.stmt.Table
			if p.stmt.Constraint != nil && p.stmt.Constraint.Name != "" {
				subject = p.stmt.Constraint.Name
			}
			b.structural(p.offset, subject, fmt.Sprintf("ALTER TABLE references undefined table %s", p.stmt.Table))
		}
	}
	for _, p := range b.pendingIndexes {
		if !b.applyIndex(p.stmt) {
			b.structural(p.offset, p.stmt.Index.Name, fmt.Sprintf("CREATE INDEX references undefined table %s", p.stmt.Table))
		}
	}
	for _, p := range b.pendingComments {
		if !b.applyComment(p.stmt) {
			b.Logger.Debugf("dropping comment on undefined table %s", p.stmt.Table)
		}
	}
	b.pendingAlters = nil
	b.pendingIndexes = nil
	b.pendingComments = nil
}

// validateForeignKeys drops FK constraints whose target table does not
// exist; a dangling reference is recoverable, not fatal. Shorthand
// REFERENCES without a column list is resolved to the target's primary key.
func (b *Builder) validateForeignKeys() {
	for _, table := range b.schema.Tables {
		kept := table.Constraints[:0]
		for _, con := range table.Constraints {
			if con.Kind == models.ForeignKey {
				target := b.schema.Table(con.RefTable)
				if target == nil {
					subject := con.Name
					if subject == "" {
						subject = fmt.Sprintf("%s(%s)", table.Name, strings.Join(con.Columns, ","))
					}
					b.structural(0, subject, fmt.Sprintf("foreign key references undefined table %s", con.RefTable))
					continue
				}
				if len(con.RefColumns) == 0 {
					con.RefColumns = target.PrimaryKeyColumns()
				}
			}
			kept = append(kept, con)
		}
		table.Constraints = kept
	}
}

// collapseAutoPK marks single-column primary keys backed by a sequence or
// auto-increment signal, removing the now-implied PK constraint
func (b *Builder) collapseAutoPK() {
	owned := make(map[string]bool)
	for _, owner := range b.sequences {
		if owner.table != "" {
			owned[owner.table+"."+owner.column] = true
		}
	}
	for _, table := range b.schema.Tables {
		for i, con := range table.Constraints {
			if con.Kind != models.PrimaryKey {
				continue
			}
			// PK membership implies NOT NULL
			for _, name := range con.Columns {
				if col := table.Column(name); col != nil {
					col.NotNull = true
				}
			}
			if len(con.Columns) != 1 {
				break
			}
			col := table.Column(con.Columns[0])
			if col == nil {
				continue
			}
			auto := col.AutoIncrement ||
				owned[table.Name+"."+col.Name] ||
				strings.Contains(strings.ToLower(col.Default), "nextval(")
			if auto {
				col.AutoPK = true
				col.NotNull = true
				table.Constraints = append(table.Constraints[:i], table.Constraints[i+1:]...)
			}
			break
		}
	}
}

func (b *Builder) structural(offset int64, subject, message string) {
	d := models.Diagnostic{
		Severity: models.SeverityStructural,
		Subject:  subject,
		Message:  message,
		Offset:   offset,
	}
	b.Logger.Warningf("%s", d)
	b.diags = append(b.diags, d)
}

// benignStatement reports statements that are valid in a dump but carry no
// schema structure, so skipping them is not worth a diagnostic
func benignStatement(text string) bool {
	upper := strings.ToUpper(text)
	for _, prefix := range []string{
		"SET ", "SELECT ", "GRANT ", "REVOKE ", "BEGIN", "COMMIT",
		"START TRANSACTION", "LOCK ", "UNLOCK ",
	} {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}
