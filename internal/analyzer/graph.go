package analyzer

import (
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/yourbasic/graph"
	"github.com/vitebski/schema-analyzer/pkg/models"
)

// Edge is one foreign key relationship between two tables. Parallel edges
// between the same pair are kept distinct, labeled by their column lists.
type Edge struct {
	From       string
	To         string
	Columns    []string
	RefColumns []string
	Constraint string
}

// RelationshipGraph is the directed multigraph of foreign key edges. Node
// identity is the table name; the graph never owns table objects.
type RelationshipGraph struct {
	Edges         []Edge
	TableIndexMap map[string]int
	IndexTableMap map[int]string
	Logger        *logrus.Logger

	tables    []string
	dependent *graph.Mutable
	inDegree  map[string]int
	outDegree map[string]int
	selfLoops map[string]bool
}

// BuildGraph constructs the relationship graph in one pass over all
// foreign key constraints
func BuildGraph(schema *models.Schema, logger *logrus.Logger) *RelationshipGraph {
	rg := &RelationshipGraph{
		TableIndexMap: make(map[string]int),
		IndexTableMap: make(map[int]string),
		Logger:        logger,
		tables:        schema.TableNames(),
		inDegree:      make(map[string]int),
		outDegree:     make(map[string]int),
		selfLoops:     make(map[string]bool),
	}
	for i, name := range rg.tables {
		rg.TableIndexMap[name] = i
		rg.IndexTableMap[i] = name
	}
	rg.dependent = graph.New(len(rg.tables))

	for _, table := range schema.Tables {
		for _, fk := range table.ForeignKeys() {
			edge := Edge{
				From:       table.Name,
				To:         fk.RefTable,
				Columns:    fk.Columns,
				RefColumns: fk.RefColumns,
				Constraint: fk.Name,
			}
			rg.Edges = append(rg.Edges, edge)
			rg.outDegree[edge.From]++
			rg.inDegree[edge.To]++
			src, srcOK := rg.TableIndexMap[edge.From]
			dst, dstOK := rg.TableIndexMap[edge.To]
			if !srcOK || !dstOK {
				continue
			}
			if src == dst {
				rg.selfLoops[edge.From] = true
				continue
			}
			rg.dependent.AddCost(src, dst, 1)
		}
	}
	logger.Debugf("relationship graph: %d tables, %d edges", len(rg.tables), len(rg.Edges))
	return rg
}

// InDegree returns the number of foreign keys referencing the table
func (rg *RelationshipGraph) InDegree(table string) int {
	return rg.inDegree[table]
}

// OutDegree returns the number of foreign keys the table declares
func (rg *RelationshipGraph) OutDegree(table string) int {
	return rg.outDegree[table]
}

// SelfReferencing returns tables with a foreign key onto themselves, in
// declaration order
func (rg *RelationshipGraph) SelfReferencing() []string {
	var out []string
	for _, name := range rg.tables {
		if rg.selfLoops[name] {
			out = append(out, name)
		}
	}
	return out
}

// HasCycles reports whether the graph contains any cycle, self-loops
// included. Circular foreign keys are legal SQL (deferred constraints),
// so this is a signal, not an error.
func (rg *RelationshipGraph) HasCycles() bool {
	if len(rg.selfLoops) > 0 {
		return true
	}
	return !graph.Acyclic(rg.dependent)
}

// StronglyConnectedComponents returns every SCC, each sorted by table name,
// components ordered by their smallest member for reproducibility
func (rg *RelationshipGraph) StronglyConnectedComponents() [][]string {
	components := graph.StrongComponents(rg.dependent)
	named := make([][]string, 0, len(components))
	for _, comp := range components {
		names := make([]string, len(comp))
		for i, v := range comp {
			names[i] = rg.IndexTableMap[v]
		}
		sort.Strings(names)
		named = append(named, names)
	}
	sort.Slice(named, func(i, j int) bool { return named[i][0] < named[j][0] })
	return named
}

// CyclicComponents returns only the components involved in a cycle:
// multi-table components and self-referencing single tables
func (rg *RelationshipGraph) CyclicComponents() [][]string {
	var cyclic [][]string
	for _, comp := range rg.StronglyConnectedComponents() {
		if len(comp) > 1 || rg.selfLoops[comp[0]] {
			cyclic = append(cyclic, comp)
		}
	}
	return cyclic
}

// TopologicalOrder returns a dependency ordering of table names when the
// graph is acyclic. ok is false when cycles make a full ordering
// impossible; the partial order over the acyclic part is still returned.
func (rg *RelationshipGraph) TopologicalOrder() ([]string, bool) {
	order, acyclic := graph.TopSort(rg.dependent)
	names := make([]string, len(order))
	for i, v := range order {
		names[i] = rg.IndexTableMap[v]
	}
	if len(rg.selfLoops) > 0 {
		acyclic = false
	}
	return names, acyclic
}
