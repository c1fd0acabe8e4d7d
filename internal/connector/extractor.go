package connector

import (
	"fmt"
	"strings"

	"github.com/vitebski/schema-analyzer/pkg/models"
)

// ExtractSchema builds the same schema model the DDL parser produces, but
// from information_schema of a live database. Tables come back in name
// order, which stands in for declaration order on this input path.
func (c *Connector) ExtractSchema() (*models.Schema, []models.Diagnostic, error) {
	schema := models.NewSchema()
	schema.Name = c.Database
	var diags []models.Diagnostic

	tablesQuery := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ?
		AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
	tableRows, err := c.ExecuteQuery(tablesQuery, c.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("listing tables: %w", err)
	}

	for _, row := range tableRows {
		table := &models.Table{Name: asString(row["table_name"])}
		if err := schema.AddTable(table); err != nil {
			return nil, diags, err
		}
		if err := c.extractColumns(table); err != nil {
			return nil, diags, fmt.Errorf("table %s: %w", table.Name, err)
		}
		if err := c.extractIndexes(table); err != nil {
			return nil, diags, fmt.Errorf("table %s: %w", table.Name, err)
		}
	}

	fkDiags, err := c.extractForeignKeys(schema)
	if err != nil {
		return nil, diags, err
	}
	diags = append(diags, fkDiags...)

	c.Logger.Infof("extracted %d tables from %s", len(schema.Tables), c.Database)
	return schema, diags, nil
}

func (c *Connector) extractColumns(table *models.Table) error {
	columnsQuery := `
		SELECT
			column_name,
			column_type,
			is_nullable,
			column_default,
			column_key,
			extra,
			column_comment
		FROM information_schema.columns
		WHERE table_schema = ?
		AND table_name = ?
		ORDER BY ordinal_position
	`
	rows, err := c.ExecuteQuery(columnsQuery, c.Database, table.Name)
	if err != nil {
		return err
	}

	var pkCols []string
	for _, row := range rows {
		col := &models.Column{
			Name:          asString(row["column_name"]),
			DataType:      asString(row["column_type"]),
			NotNull:       asString(row["is_nullable"]) == "NO",
			Default:       asString(row["column_default"]),
			AutoIncrement: strings.Contains(asString(row["extra"]), "auto_increment"),
			Comment:       asString(row["column_comment"]),
		}
		if err := table.AddColumn(col); err != nil {
			return err
		}
		if asString(row["column_key"]) == "PRI" {
			pkCols = append(pkCols, col.Name)
		}
	}

	// Same collapse rule as the dump path: a lone auto-increment PK column
	// is marked AutoPK instead of carrying an explicit constraint
	if len(pkCols) == 1 {
		if col := table.Column(pkCols[0]); col != nil && col.AutoIncrement {
			col.AutoPK = true
			return nil
		}
	}
	if len(pkCols) > 0 {
		table.Constraints = append(table.Constraints, &models.Constraint{
			Kind:    models.PrimaryKey,
			Columns: pkCols,
		})
	}
	return nil
}

func (c *Connector) extractIndexes(table *models.Table) error {
	indexQuery := `
		SELECT index_name, non_unique, seq_in_index, column_name
		FROM information_schema.statistics
		WHERE table_schema = ?
		AND table_name = ?
		AND index_name != 'PRIMARY'
		ORDER BY index_name, seq_in_index
	`
	rows, err := c.ExecuteQuery(indexQuery, c.Database, table.Name)
	if err != nil {
		return err
	}

	byName := make(map[string]*models.Index)
	for _, row := range rows {
		name := asString(row["index_name"])
		idx, ok := byName[name]
		if !ok {
			idx = &models.Index{
				Name:   name,
				Unique: asString(row["non_unique"]) == "0",
			}
			byName[name] = idx
			table.Indexes = append(table.Indexes, idx)
		}
		idx.Columns = append(idx.Columns, asString(row["column_name"]))
	}
	return nil
}

func (c *Connector) extractForeignKeys(schema *models.Schema) ([]models.Diagnostic, error) {
	fkQuery := `
		SELECT
			table_name,
			column_name,
			referenced_table_name,
			referenced_column_name,
			constraint_name,
			ordinal_position
		FROM information_schema.key_column_usage
		WHERE table_schema = ?
		AND referenced_table_name IS NOT NULL
		ORDER BY table_name, constraint_name, ordinal_position
	`
	rows, err := c.ExecuteQuery(fkQuery, c.Database)
	if err != nil {
		return nil, fmt.Errorf("listing foreign keys: %w", err)
	}

	var diags []models.Diagnostic
	type fkKey struct{ table, constraint string }
	grouped := make(map[fkKey]*models.Constraint)

	for _, row := range rows {
		tableName := asString(row["table_name"])
		table := schema.Table(tableName)
		if table == nil {
			continue
		}
		key := fkKey{tableName, asString(row["constraint_name"])}
		con, ok := grouped[key]
		if !ok {
			con = &models.Constraint{
				Kind:     models.ForeignKey,
				Name:     key.constraint,
				RefTable: asString(row["referenced_table_name"]),
			}
			grouped[key] = con
			table.Constraints = append(table.Constraints, con)
		}
		con.Columns = append(con.Columns, asString(row["column_name"]))
		con.RefColumns = append(con.RefColumns, asString(row["referenced_column_name"]))
	}

	// Cross-schema references land outside the extracted table set and are
	// dropped the same way the dump path drops dangling references
	for _, table := range schema.Tables {
		kept := table.Constraints[:0]
		for _, con := range table.Constraints {
			if con.Kind == models.ForeignKey && schema.Table(con.RefTable) == nil {
				d := models.Diagnostic{
					Severity: models.SeverityStructural,
					Subject:  con.Name,
					Message:  fmt.Sprintf("foreign key references table %s outside schema %s", con.RefTable, c.Database),
				}
				c.Logger.Warningf("%s", d)
				diags = append(diags, d)
				continue
			}
			kept = append(kept, con)
		}
		table.Constraints = kept
	}
	return diags, nil
}

func asString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
