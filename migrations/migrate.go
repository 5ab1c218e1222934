// Package migrations carries the schema as numbered SQL files embedded in the
// binary. A file named 0002_add_index.sql is version 2.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed *.sql
var files embed.FS

type Migration struct {
	Version int
	Label   string
	SQL     string
}

// Load parses every embedded migration and returns them by ascending version.
func Load() ([]Migration, error) {
	return load(files)
}

func load(fsys fs.FS) ([]Migration, error) {
	paths, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}

	seen := make(map[int]string, len(paths))
	out := make([]Migration, 0, len(paths))
	for _, p := range paths {
		version, label, err := parseName(p)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("migration version %d declared by %s and %s", version, prev, p)
		}
		seen[version] = p

		body, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		out = append(out, Migration{Version: version, Label: label, SQL: strings.TrimSpace(string(body))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func parseName(name string) (int, string, error) {
	prefix, label, ok := strings.Cut(strings.TrimSuffix(name, ".sql"), "_")
	if !ok || label == "" {
		return 0, "", fmt.Errorf("migration %s: want <version>_<label>.sql", name)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return 0, "", fmt.Errorf("migration %s: version must be a positive number", name)
	}
	return version, label, nil
}

const versionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
	version    INTEGER PRIMARY KEY,
	label      TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Pending returns the migrations newer than current.
func Pending(all []Migration, current int) []Migration {
	i := sort.Search(len(all), func(i int) bool { return all[i].Version > current })
	return all[i:]
}

// Apply brings the schema up to the newest embedded version. Each migration
// runs in its own transaction together with its schema_version row, under a
// transaction lock so concurrent starts apply it once.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	all, err := Load()
	if err != nil {
		return err
	}

	for _, m := range all {
		if err := applyOne(ctx, pool, m); err != nil {
			return fmt.Errorf("migration %04d_%s: %w", m.Version, m.Label, err)
		}
	}
	return nil
}

func applyOne(ctx context.Context, pool *pgxpool.Pool, m Migration) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('busbooking:schema'))`); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, versionTable); err != nil {
			return err
		}

		var current int
		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
			return err
		}
		if len(Pending([]Migration{m}, current)) == 0 {
			return nil
		}

		if m.SQL != "" {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `INSERT INTO schema_version (version, label) VALUES ($1, $2)`, m.Version, m.Label)
		return err
	})
}
