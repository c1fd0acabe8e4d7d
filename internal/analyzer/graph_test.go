package analyzer

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/vitebski/schema-analyzer/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests
	return logger
}

// fkTable builds a table with one foreign key per target
func fkTable(name string, targets ...string) *models.Table {
	table := &models.Table{Name: name}
	for _, target := range targets {
		table.Constraints = append(table.Constraints, &models.Constraint{
			Kind:       models.ForeignKey,
			Columns:    []string{target + "_id"},
			RefTable:   target,
			RefColumns: []string{"id"},
		})
	}
	return table
}

func mustSchema(t *testing.T, tables ...*models.Table) *models.Schema {
	t.Helper()
	schema := models.NewSchema()
	for _, table := range tables {
		if err := schema.AddTable(table); err != nil {
			t.Fatalf("AddTable returned error: %v", err)
		}
	}
	return schema
}

func TestGraphDegrees(t *testing.T) {
	schema := mustSchema(t,
		fkTable("users"),
		fkTable("orders", "users"),
		fkTable("order_items", "orders", "products"),
		fkTable("products"),
	)
	g := BuildGraph(schema, testLogger())

	if len(g.Edges) != 3 {
		t.Fatalf("Expected 3 edges, got %d", len(g.Edges))
	}
	if g.InDegree("users") != 1 || g.OutDegree("users") != 0 {
		t.Errorf("Expected users in=1 out=0, got in=%d out=%d", g.InDegree("users"), g.OutDegree("users"))
	}
	if g.InDegree("order_items") != 0 || g.OutDegree("order_items") != 2 {
		t.Errorf("Expected order_items in=0 out=2, got in=%d out=%d", g.InDegree("order_items"), g.OutDegree("order_items"))
	}
	if g.HasCycles() {
		t.Error("Expected acyclic graph")
	}
}

func TestGraphParallelEdges(t *testing.T) {
	orders := &models.Table{Name: "orders"}
	for _, col := range []string{"buyer_id", "seller_id"} {
		orders.Constraints = append(orders.Constraints, &models.Constraint{
			Kind:       models.ForeignKey,
			Columns:    []string{col},
			RefTable:   "users",
			RefColumns: []string{"id"},
		})
	}
	schema := mustSchema(t, mustTable(t, "users"), orders)
	g := BuildGraph(schema, testLogger())

	// Both edges are kept distinct and both count toward the degrees
	if len(g.Edges) != 2 {
		t.Fatalf("Expected 2 parallel edges, got %d", len(g.Edges))
	}
	if g.InDegree("users") != 2 {
		t.Errorf("Expected users in-degree 2, got %d", g.InDegree("users"))
	}
	if g.OutDegree("orders") != 2 {
		t.Errorf("Expected orders out-degree 2, got %d", g.OutDegree("orders"))
	}
	if g.HasCycles() {
		t.Error("Expected parallel edges not to create a cycle")
	}
}

func mustTable(t *testing.T, name string) *models.Table {
	t.Helper()
	return &models.Table{Name: name}
}

func TestGraphSelfLoop(t *testing.T) {
	employees := &models.Table{Name: "employees"}
	employees.Constraints = append(employees.Constraints, &models.Constraint{
		Kind:       models.ForeignKey,
		Columns:    []string{"manager_id"},
		RefTable:   "employees",
		RefColumns: []string{"id"},
	})
	schema := mustSchema(t, employees)
	g := BuildGraph(schema, testLogger())

	selfRefs := g.SelfReferencing()
	if len(selfRefs) != 1 || selfRefs[0] != "employees" {
		t.Fatalf("Expected self-referencing [employees], got %v", selfRefs)
	}
	if !g.HasCycles() {
		t.Error("Expected self-loop to count as a cycle")
	}
	cyclic := g.CyclicComponents()
	if len(cyclic) != 1 || len(cyclic[0]) != 1 || cyclic[0][0] != "employees" {
		t.Errorf("Expected single-table cyclic component, got %v", cyclic)
	}
	if g.InDegree("employees") != 1 || g.OutDegree("employees") != 1 {
		t.Errorf("Expected self-loop to count in both degrees, got in=%d out=%d",
			g.InDegree("employees"), g.OutDegree("employees"))
	}
	if _, ok := g.TopologicalOrder(); ok {
		t.Error("Expected no full topological order with a self-loop")
	}
}

func TestGraphCycleReported(t *testing.T) {
	// a -> b -> c -> a: circular foreign keys are legal (deferred
	// constraints), so this is a signal rather than an error
	schema := mustSchema(t,
		fkTable("a", "b"),
		fkTable("b", "c"),
		fkTable("c", "a"),
		fkTable("standalone"),
	)
	g := BuildGraph(schema, testLogger())

	if !g.HasCycles() {
		t.Fatal("Expected cycle to be detected")
	}
	cyclic := g.CyclicComponents()
	if len(cyclic) != 1 {
		t.Fatalf("Expected 1 cyclic component, got %d", len(cyclic))
	}
	comp := cyclic[0]
	if len(comp) != 3 || comp[0] != "a" || comp[1] != "b" || comp[2] != "c" {
		t.Errorf("Expected component [a b c], got %v", comp)
	}
	if _, ok := g.TopologicalOrder(); ok {
		t.Error("Expected no full topological order with a cycle")
	}
}

func TestGraphTopologicalOrder(t *testing.T) {
	schema := mustSchema(t,
		mustTable(t, "users"),
		fkTable("orders", "users"),
		fkTable("order_items", "orders"),
	)
	g := BuildGraph(schema, testLogger())

	order, ok := g.TopologicalOrder()
	if !ok {
		t.Fatal("Expected a full topological order for an acyclic graph")
	}
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	// Dependents come before the tables they reference
	if pos["order_items"] > pos["orders"] || pos["orders"] > pos["users"] {
		t.Errorf("Expected order_items before orders before users, got %v", order)
	}
}
