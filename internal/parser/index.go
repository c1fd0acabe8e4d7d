package parser

import (
	"fmt"
	"strings"

	"github.com/vitebski/schema-analyzer/pkg/models"
)

// IndexStatement is a parsed CREATE INDEX statement
type IndexStatement struct {
	Table string
	Index *models.Index
}

// ParseCreateIndex parses CREATE [UNIQUE] INDEX name ON table (...) with an
// optional USING clause and partial-index predicate
func ParseCreateIndex(text string) (*IndexStatement, error) {
	c := newCursor(text)
	if !c.matchWords("CREATE") {
		return nil, fmt.Errorf("not a CREATE INDEX statement")
	}
	unique := c.matchWords("UNIQUE")
	if !c.matchWords("INDEX") {
		return nil, fmt.Errorf("not a CREATE INDEX statement")
	}
	c.matchWords("CONCURRENTLY")
	c.matchWords("IF", "NOT", "EXISTS")
	name, err := c.ident()
	if err != nil {
		return nil, fmt.Errorf("CREATE INDEX: %w", err)
	}
	if !c.matchWords("ON") {
		return nil, fmt.Errorf("CREATE INDEX %s: missing ON", name)
	}
	c.matchWords("ONLY")
	table, err := c.ident()
	if err != nil {
		return nil, fmt.Errorf("CREATE INDEX %s: %w", name, err)
	}
	if c.matchWords("USING") {
		c.next() // access method
	}
	inner, err := c.parenGroup()
	if err != nil {
		return nil, fmt.Errorf("CREATE INDEX %s: %w", name, err)
	}

	idx := &models.Index{Name: name, Unique: unique}
	for _, group := range splitTopLevel(inner) {
		idx.Columns = append(idx.Columns, indexColumn(group))
	}

	for !c.eof() {
		if c.matchWords("WHERE") {
			idx.Predicate = joinTokens(c.toks[c.pos:])
			break
		}
		c.next()
	}
	return &IndexStatement{Table: table, Index: idx}, nil
}

// indexColumn extracts the column name from one index key part, stripping
// operator classes and ordering options. Expression keys are kept opaque.
func indexColumn(toks []token) string {
	var kept []token
	for _, t := range toks {
		if t.kind == tokWord {
			upper := strings.ToUpper(t.text)
			if upper == "ASC" || upper == "DESC" || upper == "NULLS" ||
				upper == "FIRST" || upper == "LAST" ||
				strings.HasSuffix(strings.ToLower(t.text), "_pattern_ops") {
				continue
			}
		}
		kept = append(kept, t)
	}
	if len(kept) == 1 && kept[0].kind == tokWord {
		return strings.ToLower(kept[0].text)
	}
	if len(kept) == 1 && kept[0].kind == tokQuotedIdent {
		return kept[0].text
	}
	return joinTokens(kept)
}
