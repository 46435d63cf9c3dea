package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS flowgraph_memory (
			mem_key VARCHAR(255) NOT NULL PRIMARY KEY,
			value JSON NOT NULL,
			updated_at BIGINT NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS flowgraph_workflows (
			id VARCHAR(255) NOT NULL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			data JSON NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			INDEX idx_workflows_updated (updated_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS flowgraph_runs (
			id VARCHAR(255) NOT NULL PRIMARY KEY,
			workflow_id VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(32) NOT NULL,
			started_at BIGINT NOT NULL,
			data JSON NOT NULL,
			INDEX idx_runs_workflow (workflow_id, started_at),
			INDEX idx_runs_started (started_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	},
	upsertMemory: `
		INSERT INTO flowgraph_memory (mem_key, value, updated_at)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE
			value = VALUES(value),
			updated_at = VALUES(updated_at)`,
	upsertWorkflow: `
		INSERT INTO flowgraph_workflows (id, name, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			data = VALUES(data),
			updated_at = VALUES(updated_at)`,
	upsertRun: `
		INSERT INTO flowgraph_runs (id, workflow_id, status, started_at, data)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			workflow_id = VALUES(workflow_id),
			status = VALUES(status),
			started_at = VALUES(started_at),
			data = VALUES(data)`,
}

// MySQLStore is a Store on MySQL or MariaDB, for servers that share workflows,
// run history and memory across processes.
type MySQLStore struct {
	sqlStore
}

// NewMySQLStore connects to dsn, verifies the connection and migrates the
// schema. The DSN format is the go-sql-driver one:
//
//	user:password@tcp(localhost:3306)/flowgraph
//
// Keep credentials out of source; read the DSN from configuration or the
// environment.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	store := &MySQLStore{sqlStore: sqlStore{db: db, dialect: mysqlDialect}}
	if err := store.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
