package models

// TableStats is the per-table statistics record exported to downstream
// consumers. Fields are append-only across versions.
type TableStats struct {
	Name             string         `json:"name"`
	ColumnCount      int            `json:"column_count"`
	ConstraintCounts map[string]int `json:"constraint_counts"`
	InDegree         int            `json:"in_degree"`
	OutDegree        int            `json:"out_degree"`
	Centrality       float64        `json:"centrality"`
	Category         string         `json:"category"`
}

// TableCount pairs a table name with a count for ranked listings
type TableCount struct {
	Table string `json:"table"`
	Count int    `json:"count"`
}

// SchemaStats is the whole-schema statistics export. Fields are append-only
// across versions.
type SchemaStats struct {
	TableCount             int                 `json:"table_count"`
	TotalColumns           int                 `json:"total_columns"`
	TotalForeignKeys       int                 `json:"total_foreign_keys"`
	TotalUniqueConstraints int                 `json:"total_unique_constraints"`
	TotalIndexes           int                 `json:"total_indexes"`
	RequiredColumns        int                 `json:"total_required_columns"`
	NullableColumns        int                 `json:"total_nullable_columns"`
	AvgColumnsPerTable     float64             `json:"avg_columns_per_table"`
	AvgFKsPerTable         float64             `json:"avg_fks_per_table"`
	DataTypeDistribution   map[string]int      `json:"data_type_distribution"`
	MostReferencedTables   []TableCount        `json:"most_referenced_tables"`
	MostReferencingTables  []TableCount        `json:"most_outgoing_fks"`
	RootTables             []string            `json:"tables_without_outgoing_fks"`
	LeafTables             []string            `json:"never_referenced_tables"`
	SelfReferencingTables  []string            `json:"self_referencing_tables"`
	CompositePKTables      []string            `json:"tables_with_composite_pk"`
	TablesWithoutPK        []string            `json:"tables_without_pk"`
	HasCycles              bool                `json:"has_cycles"`
	Cycles                 [][]string          `json:"cycles"`
	Categories             map[string][]string `json:"table_categories"`
	Tables                 []TableStats        `json:"tables"`
	DroppedEntries         int                 `json:"dropped_entries"`
}
