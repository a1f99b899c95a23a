package db

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

const (
	upMarker   = "-- +up"
	downMarker = "-- +down"
)

// ErrNoMigrations is returned by Down when nothing has been applied.
var ErrNoMigrations = errors.New("platform/db: no applied migrations")

// Migration is one versioned schema change with its reverse.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// MigrationStatus pairs a migration with its applied state.
type MigrationStatus struct {
	Migration
	Applied bool
}

// LoadMigrations reads NNNN_name.sql files from fsys, ordered by version.
// Every file must carry an up section and may carry a down section.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("platform/db: read migrations: %w", err)
	}
	seen := make(map[int]string)
	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		base := strings.TrimSuffix(entry.Name(), ".sql")
		prefix, name, ok := strings.Cut(base, "_")
		if !ok {
			return nil, fmt.Errorf("platform/db: migration %q: expected NNNN_name.sql", entry.Name())
		}
		version, err := strconv.Atoi(prefix)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("platform/db: migration %q: invalid version", entry.Name())
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("platform/db: migrations %q and %q share version %d", other, entry.Name(), version)
		}
		seen[version] = entry.Name()

		raw, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("platform/db: read %s: %w", entry.Name(), err)
		}
		up, down, err := splitMigration(string(raw))
		if err != nil {
			return nil, fmt.Errorf("platform/db: migration %q: %w", entry.Name(), err)
		}
		out = append(out, Migration{Version: version, Name: name, Up: up, Down: down})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func splitMigration(body string) (string, string, error) {
	upIdx := strings.Index(body, upMarker)
	if upIdx < 0 {
		return "", "", errors.New("missing " + upMarker + " section")
	}
	rest := body[upIdx+len(upMarker):]
	up, down := rest, ""
	if downIdx := strings.Index(rest, downMarker); downIdx >= 0 {
		up, down = rest[:downIdx], rest[downIdx+len(downMarker):]
	}
	up, down = strings.TrimSpace(up), strings.TrimSpace(down)
	if up == "" {
		return "", "", errors.New("empty " + upMarker + " section")
	}
	return up, down, nil
}

type migratorDB interface {
	DBTX
	TxBeginner
}

// Migrator applies migrations and records them in schema_migrations.
type Migrator struct {
	db         migratorDB
	migrations []Migration
	logger     *slog.Logger
}

// NewMigrator constructs a Migrator.
func NewMigrator(db migratorDB, migrations []Migration, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{db: db, migrations: migrations, logger: logger}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`)
	if err != nil {
		return fmt.Errorf("platform/db: ensure schema_migrations: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]bool, error) {
	rows, err := m.db.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("platform/db: list applied: %w", err)
	}
	defer rows.Close()
	out := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

// Up applies every pending migration, each in its own transaction.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, mig := range m.migrations {
		if done[mig.Version] {
			continue
		}
		err := WithTx(ctx, m.db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.Up); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return count, fmt.Errorf("platform/db: apply %04d_%s: %w", mig.Version, mig.Name, err)
		}
		m.logger.Info("migration applied", slog.Int("version", mig.Version), slog.String("name", mig.Name))
		count++
	}
	return count, nil
}

// Down reverts the most recently applied migration.
func (m *Migrator) Down(ctx context.Context) (Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return Migration{}, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return Migration{}, err
	}
	for i := len(m.migrations) - 1; i >= 0; i-- {
		mig := m.migrations[i]
		if !done[mig.Version] {
			continue
		}
		if mig.Down == "" {
			return mig, fmt.Errorf("platform/db: %04d_%s has no down section", mig.Version, mig.Name)
		}
		err := WithTx(ctx, m.db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.Down); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, mig.Version)
			return err
		})
		if err != nil {
			return mig, fmt.Errorf("platform/db: revert %04d_%s: %w", mig.Version, mig.Name, err)
		}
		m.logger.Info("migration reverted", slog.Int("version", mig.Version), slog.String("name", mig.Name))
		return mig, nil
	}
	return Migration{}, ErrNoMigrations
}

// Status lists every known migration with its applied flag.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MigrationStatus, 0, len(m.migrations))
	for _, mig := range m.migrations {
		out = append(out, MigrationStatus{Migration: mig, Applied: done[mig.Version]})
	}
	return out, nil
}
