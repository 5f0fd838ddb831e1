package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const migrationsDir = "migrations"

// RunMigrations executes the .sql files in the migrations directory in
// lexical order and returns the applied filenames. Non-SQL entries are
// skipped so editor droppings next to the migrations cannot break startup.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) ([]string, error) {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil, nil
	}

	filenames, err := migrationFiles(migrationsDir)
	if err != nil {
		return nil, err
	}

	applied := make([]string, 0, len(filenames))
	for _, name := range filenames {
		content, err := os.ReadFile(filepath.Join(migrationsDir, name))
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", name, err)
		}

		logger.Info("applying migration", zap.String("file", name))
		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", name, err)
		}
		applied = append(applied, name)
	}

	logger.Info("migrations applied", zap.Strings("files", applied))
	return applied, nil
}

// migrationFiles lists the .sql entries of dir in lexical order.
func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	filenames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		filenames = append(filenames, entry.Name())
	}
	sort.Strings(filenames)
	return filenames, nil
}
