package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrateOptions selects the schema and the direction of a migrate run.
type MigrateOptions struct {
	Driver           string
	ConnectionString string
	// Dir holds one subdirectory per driver ("postgresql", "mysql"). Defaults to "migrations".
	Dir string
	// Down reverts the most recent migration instead of applying the pending ones.
	Down bool
}

func migrationsSource(opts MigrateOptions) string {
	dir := opts.Dir
	if dir == "" {
		dir = "migrations"
	}
	sub := "postgresql"
	if opts.Driver == "mysql" {
		sub = "mysql"
	}
	return "file://" + path.Join(dir, sub)
}

// RunMigrations applies the pending reseal and outbox migrations, or reverts one with
// opts.Down, and prints the resulting schema version. An up-to-date schema is not an error.
func RunMigrations(logger *slog.Logger, writer io.Writer, opts MigrateOptions) error {
	source := migrationsSource(opts)
	logger.Info("running database migrations",
		slog.String("driver", opts.Driver),
		slog.String("source", source),
		slog.Bool("down", opts.Down),
	)

	m, err := migrate.New(source, opts.ConnectionString)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate(m, logger)

	if opts.Down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		_, err = fmt.Fprintln(writer, "Schema version: none")
		return err
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	logger.Info("migrations completed", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	_, err = fmt.Fprintf(writer, "Schema version: %d\n", version)
	return err
}
