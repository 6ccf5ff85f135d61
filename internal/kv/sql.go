package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Supported values for the database driver setting.
const (
	DriverMemory = "memory"
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// schemas hold the table definition per SQL driver.
var schemas = map[string]string{
	DriverMySQL: `
		CREATE TABLE IF NOT EXISTS kv_records (
			record_key   VARCHAR(255) NOT NULL PRIMARY KEY,
			record_value MEDIUMTEXT   NOT NULL
		)`,
	DriverSQLite: `
		CREATE TABLE IF NOT EXISTS kv_records (
			record_key   TEXT NOT NULL PRIMARY KEY,
			record_value TEXT NOT NULL
		)`,
}

// upserts hold the insert-or-replace statement per SQL driver.
var upserts = map[string]string{
	DriverMySQL: `
		INSERT INTO kv_records (record_key, record_value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE record_value = VALUES(record_value)`,
	DriverSQLite: `
		INSERT INTO kv_records (record_key, record_value) VALUES (?, ?)
		ON CONFLICT(record_key) DO UPDATE SET record_value = excluded.record_value`,
}

// SQL is a Backend storing every key as one row of the kv_records table.
type SQL struct {
	db *sqlx.DB

	// selectValue is a prepared statement for reading the value of a key.
	selectValue *sqlx.Stmt

	// upsert is a prepared statement for inserting or replacing the value of a key.
	upsert *sqlx.Stmt

	// deleteKey is a prepared statement for removing a key.
	deleteKey *sqlx.Stmt
}

// MySQLDSN builds a MySQL data source name from its parts.
func MySQLDSN(user string, password string, host string, database string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = host
	cfg.DBName = database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// Open opens a connection pool for one of the SQL drivers.
func Open(driver string, dsn string) (*sql.DB, error) {
	if _, ok := schemas[driver]; !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite allows a single writer, and an in-memory database exists per connection.
		sqlDB.SetMaxOpenConns(1)
	}
	return sqlDB, nil
}

// Schema returns the statement creating the kv_records table for driver.
func Schema(driver string) (string, error) {
	schema, ok := schemas[driver]
	if !ok {
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
	return schema, nil
}

// Migrate creates the kv_records table if it does not exist yet.
func Migrate(ctx context.Context, sqlDB *sql.DB, driver string) error {
	schema, err := Schema(driver)
	if err != nil {
		return err
	}
	if _, err := sqlDB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create kv_records table: %w", err)
	}
	return nil
}

// NewSQL wraps sqlDB and prepares all statements. The database argument can be a real database
// for production use or a mock database within unit tests. The table must already exist.
func NewSQL(sqlDB *sql.DB, driver string) (*SQL, error) {
	upsertQuery, ok := upserts[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	b := &SQL{db: sqlx.NewDb(sqlDB, driver)}

	// Prepared statements offer a significant speed increase if executed many times.
	var err error
	b.selectValue, err = b.db.Preparex(`
		SELECT record_value FROM kv_records WHERE record_key = ?
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare select: %w", err)
	}
	b.upsert, err = b.db.Preparex(upsertQuery)
	if err != nil {
		b.closeStatements()
		return nil, fmt.Errorf("prepare upsert: %w", err)
	}
	b.deleteKey, err = b.db.Preparex(`
		DELETE FROM kv_records WHERE record_key = ?
	`)
	if err != nil {
		b.closeStatements()
		return nil, fmt.Errorf("prepare delete: %w", err)
	}
	return b, nil
}

// Get returns the value stored under key.
func (b *SQL) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := b.selectValue.GetContext(ctx, &value, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key.
func (b *SQL) Set(ctx context.Context, key string, value string) error {
	if _, err := b.upsert.ExecContext(ctx, key, value); err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (b *SQL) Delete(ctx context.Context, key string) error {
	if _, err := b.deleteKey.ExecContext(ctx, key); err != nil {
		return fmt.Errorf("kv delete %q: %w", key, err)
	}
	return nil
}

// Ping checks the database connection.
func (b *SQL) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Close releases the prepared statements and the connection pool.
func (b *SQL) Close() error {
	return errors.Join(b.closeStatements(), b.db.Close())
}

// closeStatements closes the statements prepared so far.
func (b *SQL) closeStatements() error {
	var errs []error
	for _, stmt := range []*sqlx.Stmt{b.selectValue, b.upsert, b.deleteKey} {
		if stmt != nil {
			errs = append(errs, stmt.Close())
		}
	}
	return errors.Join(errs...)
}
