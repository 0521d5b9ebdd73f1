// Package migrations applies the embedded Postgres schema with
// golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
)

//go:embed sql/*.sql
var files embed.FS

// LatestVersion must be bumped with every new migration pair.
const LatestVersion uint = 1

// ErrDowngrade is returned when the database is newer than this binary.
var ErrDowngrade = errors.New("database version newer than latest migration")

type logger struct {
	log *slog.Logger
}

func (l *logger) Printf(format string, v ...any) {
	l.log.Info(fmt.Sprintf(strings.TrimRight(format, "\n"), v...))
}

func (l *logger) Verbose() bool { return false }

// Migrator wraps a migrate instance bound to the embedded sources.
type Migrator struct {
	m   *migrate.Migrate
	log *slog.Logger
}

// New opens a migrator for dsn, which must use the pgx5:// scheme.
func New(dsn string, log *slog.Logger) (*Migrator, error) {
	src, err := httpfs.New(http.FS(files), "sql")
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("httpfs", src, dsn)
	if err != nil {
		return nil, fmt.Errorf("open migrator: %w", err)
	}
	m.Log = &logger{log: log}
	return &Migrator{m: m, log: log}, nil
}

// Up applies all pending migrations. A dirty or newer database is refused.
func (mg *Migrator) Up() error {
	version, dirty, err := mg.m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is dirty at version %d, manual intervention required", version)
	}
	if version > LatestVersion {
		return fmt.Errorf("%w: db_version=%d latest=%d", ErrDowngrade, version, LatestVersion)
	}

	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, _, _ = mg.m.Version()
	mg.log.Info("database migrated", slog.Int("version", int(version)))
	return nil
}

// Down rolls back a single migration step.
func (mg *Migrator) Down() error {
	if err := mg.m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("roll back migration: %w", err)
	}
	return nil
}

// Version reports the applied version. A fresh database reports 0.
func (mg *Migrator) Version() (uint, bool, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}
