package connector

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/vitebski/schema-analyzer/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests
	return logger
}

func TestNewConnector(t *testing.T) {
	// Environment variables fill in unset parameters
	t.Setenv("MYSQL_HOST", "test-host")
	t.Setenv("MYSQL_USER", "test-user")
	t.Setenv("MYSQL_PASSWORD", "test-password")
	t.Setenv("MYSQL_DATABASE", "test-database")
	t.Setenv("MYSQL_PORT", "3307")

	logger := testLogger()
	c := NewConnector("", "", "", "", "", logger)

	if c.Host != "test-host" {
		t.Errorf("Expected host to be 'test-host', got '%s'", c.Host)
	}
	if c.User != "test-user" {
		t.Errorf("Expected user to be 'test-user', got '%s'", c.User)
	}
	if c.Password != "test-password" {
		t.Errorf("Expected password to be 'test-password', got '%s'", c.Password)
	}
	if c.Database != "test-database" {
		t.Errorf("Expected database to be 'test-database', got '%s'", c.Database)
	}
	if c.Port != "3307" {
		t.Errorf("Expected port to be '3307', got '%s'", c.Port)
	}

	// Explicit parameters win over the environment
	c = NewConnector("explicit-host", "explicit-user", "explicit-password", "explicit-database", "3308", logger)
	if c.Host != "explicit-host" || c.Port != "3308" {
		t.Errorf("Expected explicit parameters to win, got host '%s' port '%s'", c.Host, c.Port)
	}
}

func TestConnectRequiresDatabase(t *testing.T) {
	t.Setenv("MYSQL_DATABASE", "")
	c := NewConnector("localhost", "root", "", "", "3306", testLogger())
	if err := c.Connect(); err == nil {
		t.Error("Expected Connect to fail without a database name")
	}
}

func TestExtractSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New returned error: %v", err)
	}
	defer db.Close()

	c := &Connector{Database: "shop", DB: db, Logger: testLogger()}

	mock.ExpectQuery("information_schema.tables").
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).
			AddRow("orders").
			AddRow("users"))

	columnHeader := []string{"column_name", "column_type", "is_nullable", "column_default", "column_key", "extra", "column_comment"}
	indexHeader := []string{"index_name", "non_unique", "seq_in_index", "column_name"}

	// orders
	mock.ExpectQuery("information_schema.columns").
		WithArgs("shop", "orders").
		WillReturnRows(sqlmock.NewRows(columnHeader).
			AddRow("id", "int", "NO", nil, "PRI", "auto_increment", "").
			AddRow("user_id", "int", "NO", nil, "MUL", "", "").
			AddRow("total", "decimal(10,2)", "YES", nil, "", "", ""))
	mock.ExpectQuery("information_schema.statistics").
		WithArgs("shop", "orders").
		WillReturnRows(sqlmock.NewRows(indexHeader).
			AddRow("orders_user_idx", "1", "1", "user_id"))

	// users
	mock.ExpectQuery("information_schema.columns").
		WithArgs("shop", "users").
		WillReturnRows(sqlmock.NewRows(columnHeader).
			AddRow("id", "int", "NO", nil, "PRI", "auto_increment", "").
			AddRow("email", "varchar(255)", "NO", nil, "UNI", "", "login address"))
	mock.ExpectQuery("information_schema.statistics").
		WithArgs("shop", "users").
		WillReturnRows(sqlmock.NewRows(indexHeader).
			AddRow("users_email_uq", "0", "1", "email"))

	mock.ExpectQuery("information_schema.key_column_usage").
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{
			"table_name", "column_name", "referenced_table_name",
			"referenced_column_name", "constraint_name", "ordinal_position",
		}).AddRow("orders", "user_id", "users", "id", "orders_user_fk", "1"))

	schema, diags, err := c.ExtractSchema()
	if err != nil {
		t.Fatalf("ExtractSchema returned error: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("Expected no diagnostics, got %v", diags)
	}
	if schema.Name != "shop" {
		t.Errorf("Expected schema name 'shop', got '%s'", schema.Name)
	}
	if len(schema.Tables) != 2 {
		t.Fatalf("Expected 2 tables, got %d", len(schema.Tables))
	}

	orders := schema.Table("orders")
	if orders.Columns[0].Name != "id" || !orders.Columns[0].AutoPK {
		t.Errorf("Expected auto-increment PK collapsed, got %+v", orders.Columns[0])
	}
	if orders.Column("total").NotNull {
		t.Error("Expected nullable total column")
	}
	fks := orders.ForeignKeys()
	if len(fks) != 1 || fks[0].RefTable != "users" || fks[0].RefColumns[0] != "id" {
		t.Errorf("Expected foreign key orders -> users(id), got %v", fks)
	}
	if len(orders.Indexes) != 1 || orders.Indexes[0].Unique {
		t.Errorf("Expected 1 non-unique index on orders, got %v", orders.Indexes)
	}

	users := schema.Table("users")
	if users.Column("email").Comment != "login address" {
		t.Errorf("Expected column comment extracted, got '%s'", users.Column("email").Comment)
	}
	if len(users.Indexes) != 1 || !users.Indexes[0].Unique {
		t.Errorf("Expected unique email index, got %v", users.Indexes)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet query expectations: %v", err)
	}
}

func TestExtractSchemaDanglingForeignKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New returned error: %v", err)
	}
	defer db.Close()

	c := &Connector{Database: "shop", DB: db, Logger: testLogger()}

	mock.ExpectQuery("information_schema.tables").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("orders"))
	mock.ExpectQuery("information_schema.columns").
		WillReturnRows(sqlmock.NewRows([]string{
			"column_name", "column_type", "is_nullable", "column_default", "column_key", "extra", "column_comment",
		}).AddRow("id", "int", "NO", nil, "PRI", "auto_increment", ""))
	mock.ExpectQuery("information_schema.statistics").
		WillReturnRows(sqlmock.NewRows([]string{"index_name", "non_unique", "seq_in_index", "column_name"}))
	mock.ExpectQuery("information_schema.key_column_usage").
		WillReturnRows(sqlmock.NewRows([]string{
			"table_name", "column_name", "referenced_table_name",
			"referenced_column_name", "constraint_name", "ordinal_position",
		}).AddRow("orders", "customer_id", "other_schema_table", "id", "orders_cust_fk", "1"))

	schema, diags, err := c.ExtractSchema()
	if err != nil {
		t.Fatalf("ExtractSchema returned error: %v", err)
	}
	if models.CountDropped(diags) != 1 {
		t.Fatalf("Expected 1 dropped entry, got %d", models.CountDropped(diags))
	}
	if len(schema.Table("orders").ForeignKeys()) != 0 {
		t.Error("Expected dangling foreign key dropped")
	}
}
