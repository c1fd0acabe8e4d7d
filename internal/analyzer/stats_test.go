package analyzer

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/vitebski/schema-analyzer/pkg/models"
)

// statsSchema is a small shop schema: users <- orders, orders self-contained
func statsSchema(t *testing.T) *models.Schema {
	t.Helper()
	schema := models.NewSchema()

	users := &models.Table{Name: "users"}
	addCol(t, users, &models.Column{Name: "id", DataType: "integer", AutoPK: true, AutoIncrement: true, NotNull: true})
	addCol(t, users, &models.Column{Name: "email", DataType: "varchar", NotNull: true})
	users.Constraints = append(users.Constraints, &models.Constraint{Kind: models.Unique, Columns: []string{"email"}})

	orders := &models.Table{Name: "orders"}
	addCol(t, orders, &models.Column{Name: "id", DataType: "integer", AutoPK: true, AutoIncrement: true, NotNull: true})
	addCol(t, orders, &models.Column{Name: "user_id", DataType: "integer", NotNull: true})
	addCol(t, orders, &models.Column{Name: "total", DataType: "numeric(10, 2)"})
	orders.Constraints = append(orders.Constraints, &models.Constraint{
		Kind:       models.ForeignKey,
		Columns:    []string{"user_id"},
		RefTable:   "users",
		RefColumns: []string{"id"},
	})

	for _, table := range []*models.Table{users, orders} {
		if err := schema.AddTable(table); err != nil {
			t.Fatalf("AddTable returned error: %v", err)
		}
	}
	return schema
}

func addCol(t *testing.T, table *models.Table, col *models.Column) {
	t.Helper()
	if err := table.AddColumn(col); err != nil {
		t.Fatalf("AddColumn returned error: %v", err)
	}
}

func newTestEngine(t *testing.T, schema *models.Schema) *Engine {
	t.Helper()
	return NewEngine(schema, BuildGraph(schema, testLogger()), DefaultRules(), testLogger())
}

func TestEngineStats(t *testing.T) {
	schema := statsSchema(t)
	stats, diags := newTestEngine(t, schema).Run(context.Background())

	if len(diags) != 0 {
		t.Errorf("Expected no diagnostics, got %v", diags)
	}
	if stats.TableCount != 2 {
		t.Errorf("Expected 2 tables, got %d", stats.TableCount)
	}
	if stats.TotalColumns != 5 {
		t.Errorf("Expected 5 columns, got %d", stats.TotalColumns)
	}
	if stats.TotalForeignKeys != 1 {
		t.Errorf("Expected 1 foreign key, got %d", stats.TotalForeignKeys)
	}
	if stats.TotalUniqueConstraints != 1 {
		t.Errorf("Expected 1 unique constraint, got %d", stats.TotalUniqueConstraints)
	}
	if stats.AvgColumnsPerTable != 2.5 {
		t.Errorf("Expected average 2.5 columns per table, got %v", stats.AvgColumnsPerTable)
	}
	if stats.RequiredColumns != 4 || stats.NullableColumns != 1 {
		t.Errorf("Expected 4 required and 1 nullable column, got %d and %d",
			stats.RequiredColumns, stats.NullableColumns)
	}
	if stats.HasCycles {
		t.Error("Expected no cycles")
	}
	if len(stats.MostReferencedTables) != 1 || stats.MostReferencedTables[0].Table != "users" {
		t.Errorf("Expected users as most referenced, got %v", stats.MostReferencedTables)
	}
	// AutoPK columns count toward the integer type distribution
	if stats.DataTypeDistribution["integer"] != 3 {
		t.Errorf("Expected 3 integer columns, got %d", stats.DataTypeDistribution["integer"])
	}

	for _, ts := range stats.Tables {
		if ts.Name == "users" {
			if ts.InDegree != 1 || ts.OutDegree != 0 {
				t.Errorf("Expected users in=1 out=0, got in=%d out=%d", ts.InDegree, ts.OutDegree)
			}
			// (1+0) / (2*(2-1))
			if ts.Centrality != 0.5 {
				t.Errorf("Expected users centrality 0.5, got %v", ts.Centrality)
			}
			// The collapsed auto PK still counts as a primary key
			if ts.ConstraintCounts[string(models.PrimaryKey)] != 1 {
				t.Errorf("Expected users primary key counted, got %v", ts.ConstraintCounts)
			}
		}
	}
}

func TestEngineCategorizesEveryTable(t *testing.T) {
	schema := statsSchema(t)
	zzz := &models.Table{Name: "zzz"}
	addCol(t, zzz, &models.Column{Name: "val", DataType: "text"})
	if err := schema.AddTable(zzz); err != nil {
		t.Fatalf("AddTable returned error: %v", err)
	}

	stats, _ := newTestEngine(t, schema).Run(context.Background())

	for _, table := range schema.Tables {
		if table.Category == "" {
			t.Errorf("Expected table %s to receive a category", table.Name)
		}
		if !ValidCategory(table.Category) {
			t.Errorf("Expected a valid category for %s, got '%s'", table.Name, table.Category)
		}
	}
	if schema.Table("zzz").Category != Uncategorized {
		t.Errorf("Expected zzz to fall back to uncategorized, got '%s'", schema.Table("zzz").Category)
	}
	if got := stats.Categories[UserManagement]; len(got) != 1 || got[0] != "users" {
		t.Errorf("Expected users under user_management, got %v", got)
	}
}

func TestEngineDeterministic(t *testing.T) {
	run := func() map[string][]string {
		schema := statsSchema(t)
		engine := newTestEngine(t, schema)
		engine.Workers = 8
		stats, _ := engine.Run(context.Background())
		return stats.Categories
	}
	first := run()
	for i := 0; i < 5; i++ {
		if next := run(); !reflect.DeepEqual(first, next) {
			t.Fatalf("Expected identical categorization across runs, got %v then %v", first, next)
		}
	}
}

func TestCentralityClamped(t *testing.T) {
	// Three parallel edges between two tables push the combined degree past
	// the simple-digraph maximum; the score must stay within [0, 1]
	schema := models.NewSchema()
	users := &models.Table{Name: "users"}
	addCol(t, users, &models.Column{Name: "id", DataType: "integer", NotNull: true})
	orders := &models.Table{Name: "orders"}
	for _, name := range []string{"buyer_id", "seller_id", "payer_id"} {
		addCol(t, orders, &models.Column{Name: name, DataType: "integer"})
		orders.Constraints = append(orders.Constraints, &models.Constraint{
			Kind:       models.ForeignKey,
			Columns:    []string{name},
			RefTable:   "users",
			RefColumns: []string{"id"},
		})
	}
	for _, table := range []*models.Table{users, orders} {
		if err := schema.AddTable(table); err != nil {
			t.Fatalf("AddTable returned error: %v", err)
		}
	}

	stats, _ := newTestEngine(t, schema).Run(context.Background())
	for _, ts := range stats.Tables {
		if ts.Centrality < 0 || ts.Centrality > 1 {
			t.Errorf("Expected centrality of %s in [0, 1], got %v", ts.Name, ts.Centrality)
		}
	}
	// users: in-degree 3, out-degree 0 over 2 tables, clamped from 1.5
	if stats.Tables[0].Centrality != 1.0 {
		t.Errorf("Expected users centrality clamped to 1.0, got %v", stats.Tables[0].Centrality)
	}
}

// stubClassifier is a canned remote classifier for engine tests
type stubClassifier struct {
	result Classification
	err    error
	called bool
}

func (s *stubClassifier) Classify(_ context.Context, _ *models.Table) (Classification, error) {
	s.called = true
	return s.result, s.err
}

func TestEngineRemoteRefinesUncategorized(t *testing.T) {
	schema := models.NewSchema()
	zzz := &models.Table{Name: "zzz"}
	if err := schema.AddTable(zzz); err != nil {
		t.Fatalf("AddTable returned error: %v", err)
	}

	engine := newTestEngine(t, schema)
	engine.Remote = &stubClassifier{result: Classification{Category: FinancialCommerce, Confidence: 0.5}}
	_, diags := engine.Run(context.Background())

	if zzz.Category != FinancialCommerce {
		t.Errorf("Expected remote refinement to financial_commerce, got '%s'", zzz.Category)
	}
	if len(diags) != 0 {
		t.Errorf("Expected no diagnostics on remote success, got %v", diags)
	}
}

func TestEngineRemoteNotConsultedOnKeywordMatch(t *testing.T) {
	schema := models.NewSchema()
	if err := schema.AddTable(&models.Table{Name: "payments"}); err != nil {
		t.Fatalf("AddTable returned error: %v", err)
	}

	stub := &stubClassifier{err: errors.New("should not be called")}
	engine := newTestEngine(t, schema)
	engine.Workers = 1
	engine.Remote = stub
	engine.Run(context.Background())

	if stub.called {
		t.Error("Expected remote classifier to be skipped for keyword-matched tables")
	}
	if schema.Table("payments").Category != FinancialCommerce {
		t.Errorf("Expected keyword category, got '%s'", schema.Table("payments").Category)
	}
}

func TestEngineRemoteFailureFallsBack(t *testing.T) {
	schema := models.NewSchema()
	zzz := &models.Table{Name: "zzz"}
	if err := schema.AddTable(zzz); err != nil {
		t.Fatalf("AddTable returned error: %v", err)
	}

	engine := newTestEngine(t, schema)
	engine.Remote = &stubClassifier{err: errors.New("connection refused")}
	_, diags := engine.Run(context.Background())

	if zzz.Category != Uncategorized {
		t.Errorf("Expected fallback to uncategorized, got '%s'", zzz.Category)
	}
	if len(diags) != 1 || diags[0].Severity != models.SeverityAdvisory {
		t.Fatalf("Expected 1 advisory diagnostic, got %v", diags)
	}
	if diags[0].Subject != "zzz" {
		t.Errorf("Expected diagnostic to name the table, got '%s'", diags[0].Subject)
	}
}

func TestEngineCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	schema := statsSchema(t)
	stats, _ := newTestEngine(t, schema).Run(ctx)

	// Cancellation aborts remote work but never leaves a table uncategorized
	for _, table := range schema.Tables {
		if table.Category == "" {
			t.Errorf("Expected table %s categorized despite cancellation", table.Name)
		}
	}
	if stats.TableCount != 2 {
		t.Errorf("Expected statistics still collected, got %d tables", stats.TableCount)
	}
}
