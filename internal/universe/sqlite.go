package universe

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"HiTrade/internal/logger"
)

// Catalog is a SQLite-backed equity list that keeps catalog order.
type Catalog struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenCatalog opens (or creates) the catalog database and runs migrations.
func OpenCatalog(dbPath string) (*Catalog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the server read while import-universe rewrites the table.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	c := &Catalog{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Debug("universe catalog opened", zap.String("path", dbPath))
	return c, nil
}

func (c *Catalog) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS equities (
			symbol      TEXT PRIMARY KEY,
			name        TEXT,
			position    INTEGER NOT NULL,
			imported_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_equities_position ON equities(position)`,
	}
	for _, s := range stmts {
		if _, err := c.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// Equities returns every row in catalog order.
func (c *Catalog) Equities(ctx context.Context) ([]Equity, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT symbol, COALESCE(name, '') FROM equities ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query equities: %w", err)
	}
	defer rows.Close()

	var out []Equity
	for rows.Next() {
		var e Equity
		if err := rows.Scan(&e.Symbol, &e.Name); err != nil {
			return nil, fmt.Errorf("scan equity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Replace swaps the whole catalog for equities in one transaction.
// Duplicate symbols keep their first position.
func (c *Catalog) Replace(ctx context.Context, equities []Equity) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM equities`); err != nil {
		return 0, fmt.Errorf("clear equities: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO equities (symbol, name, position, imported_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	n := 0
	for i, e := range equities {
		sym := strings.ToUpper(strings.TrimSpace(e.Symbol))
		if sym == "" {
			continue
		}
		res, err := stmt.ExecContext(ctx, sym, e.Name, i, now)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", sym, err)
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	logger.Info("universe catalog replaced", zap.Int("equities", n))
	return n, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}
