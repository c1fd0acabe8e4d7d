package analyzer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/vitebski/schema-analyzer/pkg/models"
)

// maxRankedTables bounds the ranked listings in the statistics export
const maxRankedTables = 10

// Engine computes per-table and whole-schema statistics and assigns
// categories. The schema and graph are read-only at this point, so
// independent tables are processed by a bounded worker pool.
type Engine struct {
	Schema  *models.Schema
	Graph   *RelationshipGraph
	Rules   []CategoryRule
	Remote  Classifier
	Workers int
	Logger  *logrus.Logger
}

// NewEngine creates a statistics engine with the given categorization rules
func NewEngine(schema *models.Schema, g *RelationshipGraph, rules []CategoryRule, logger *logrus.Logger) *Engine {
	return &Engine{
		Schema:  schema,
		Graph:   g,
		Rules:   rules,
		Workers: 4,
		Logger:  logger,
	}
}

// Run categorizes every table and produces the statistics export. The
// result is deterministic for a given schema and rule table; the optional
// remote classifier can only refine tables the keyword rules left
// uncategorized, and any remote failure falls back to the keyword result
// with an advisory diagnostic.
func (e *Engine) Run(ctx context.Context) (*models.SchemaStats, []models.Diagnostic) {
	diags := e.categorize(ctx)
	stats := e.collect()
	return stats, diags
}

// categorize assigns a category to every table using the worker pool
func (e *Engine) categorize(ctx context.Context) []models.Diagnostic {
	keyword := &KeywordClassifier{Rules: e.Rules}
	n := len(e.Schema.Tables)
	results := make([]string, n)
	tableDiags := make([][]models.Diagnostic, n)

	workers := e.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > n && n > 0 {
		workers = n
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i], tableDiags[i] = e.classifyTable(ctx, keyword, e.Schema.Tables[i])
			}
		}()
	}

	for i := 0; i < n; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			// Abort: remaining tables get the deterministic keyword result
			// synchronously, never an unset category
			close(jobs)
			wg.Wait()
			for j := 0; j < n; j++ {
				if results[j] == "" {
					c, _ := keyword.Classify(context.Background(), e.Schema.Tables[j])
					results[j] = c.Category
				}
			}
			e.apply(results)
			return flatten(tableDiags)
		}
	}
	close(jobs)
	wg.Wait()
	e.apply(results)
	return flatten(tableDiags)
}

// classifyTable resolves one table's category: keyword rules first, the
// remote classifier only for tables the rules could not place
func (e *Engine) classifyTable(ctx context.Context, keyword *KeywordClassifier, table *models.Table) (string, []models.Diagnostic) {
	result, _ := keyword.Classify(ctx, table)
	if result.Confidence > 0 || e.Remote == nil {
		return result.Category, nil
	}

	remote, err := e.Remote.Classify(ctx, table)
	if err != nil {
		d := models.Diagnostic{
			Severity: models.SeverityAdvisory,
			Subject:  table.Name,
			Message:  fmt.Sprintf("external classifier unavailable, keeping %s: %v", result.Category, err),
		}
		e.Logger.Debugf("%s", d)
		return result.Category, []models.Diagnostic{d}
	}
	e.Logger.Debugf("external classifier placed %s into %s", table.Name, remote.Category)
	return remote.Category, nil
}

func (e *Engine) apply(categories []string) {
	for i, table := range e.Schema.Tables {
		table.Category = categories[i]
	}
}

func flatten(groups [][]models.Diagnostic) []models.Diagnostic {
	var out []models.Diagnostic
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// collect builds the statistics export from the finalized schema and graph
func (e *Engine) collect() *models.SchemaStats {
	stats := &models.SchemaStats{
		TableCount:           len(e.Schema.Tables),
		DataTypeDistribution: make(map[string]int),
		Categories:           make(map[string][]string),
	}

	n := len(e.Schema.Tables)
	var inCounts, outCounts []models.TableCount

	for _, table := range e.Schema.Tables {
		ts := models.TableStats{
			Name:             table.Name,
			ColumnCount:      len(table.Columns),
			ConstraintCounts: make(map[string]int),
			InDegree:         e.Graph.InDegree(table.Name),
			OutDegree:        e.Graph.OutDegree(table.Name),
			Centrality:       centrality(e.Graph, table.Name, n),
			Category:         table.Category,
		}
		for _, con := range table.Constraints {
			ts.ConstraintCounts[string(con.Kind)]++
		}
		if pk := table.PrimaryKeyColumns(); len(pk) > 0 {
			// Collapsed auto-increment PKs still count as a primary key
			if ts.ConstraintCounts[string(models.PrimaryKey)] == 0 {
				ts.ConstraintCounts[string(models.PrimaryKey)] = 1
			}
		}
		stats.Tables = append(stats.Tables, ts)

		stats.TotalColumns += len(table.Columns)
		for _, col := range table.Columns {
			dt := col.DataType
			if col.AutoPK {
				dt = "integer"
			}
			stats.DataTypeDistribution[dt]++
			if col.NotNull {
				stats.RequiredColumns++
			} else {
				stats.NullableColumns++
			}
		}
		stats.TotalForeignKeys += len(table.ForeignKeys())
		stats.TotalIndexes += len(table.Indexes)
		for _, con := range table.Constraints {
			if con.Kind == models.Unique {
				stats.TotalUniqueConstraints++
			}
		}

		if ts.OutDegree == 0 {
			stats.RootTables = append(stats.RootTables, table.Name)
		}
		if ts.InDegree == 0 {
			stats.LeafTables = append(stats.LeafTables, table.Name)
		}
		if ts.InDegree > 0 {
			inCounts = append(inCounts, models.TableCount{Table: table.Name, Count: ts.InDegree})
		}
		if ts.OutDegree > 0 {
			outCounts = append(outCounts, models.TableCount{Table: table.Name, Count: ts.OutDegree})
		}

		pk := table.PrimaryKeyColumns()
		switch {
		case len(pk) > 1:
			stats.CompositePKTables = append(stats.CompositePKTables, table.Name)
		case len(pk) == 0:
			stats.TablesWithoutPK = append(stats.TablesWithoutPK, table.Name)
		}

		stats.Categories[table.Category] = append(stats.Categories[table.Category], table.Name)
	}

	if n > 0 {
		stats.AvgColumnsPerTable = round2(float64(stats.TotalColumns) / float64(n))
		stats.AvgFKsPerTable = round2(float64(stats.TotalForeignKeys) / float64(n))
	}

	stats.MostReferencedTables = rank(inCounts)
	stats.MostReferencingTables = rank(outCounts)
	stats.SelfReferencingTables = e.Graph.SelfReferencing()
	stats.HasCycles = e.Graph.HasCycles()
	stats.Cycles = e.Graph.CyclicComponents()
	return stats
}

// centrality is the normalized degree centrality: combined degree over the
// maximum possible for a simple digraph of n nodes. Parallel edges and
// self-loops can push the combined degree past that maximum, so the score
// is clamped to keep it in [0, 1].
func centrality(g *RelationshipGraph, table string, n int) float64 {
	if n <= 1 {
		return 0
	}
	score := float64(g.InDegree(table)+g.OutDegree(table)) / float64(2*(n-1))
	if score > 1 {
		return 1
	}
	return score
}

// rank sorts by count descending, name ascending for stable output, and
// keeps the top entries
func rank(counts []models.TableCount) []models.TableCount {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Table < counts[j].Table
	})
	if len(counts) > maxRankedTables {
		counts = counts[:maxRankedTables]
	}
	return counts
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
