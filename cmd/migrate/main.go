package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/chrissnell/moonshade/internal/log"
	"github.com/chrissnell/moonshade/internal/store"
	"github.com/chrissnell/moonshade/pkg/migrate"
)

func main() {
	var (
		dbPath        = flag.String("db", "moonshade.db", "Path to the moonshade SQLite database")
		command       = flag.String("command", "status", "Migration command: up, down, to, version, status")
		targetVersion = flag.String("target", "", "Target version for down/to commands")
		debug         = flag.Bool("debug", false, "Log each applied migration")
	)
	flag.Parse()

	if *debug {
		if err := log.Init(true); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer log.Sync()
	}

	db, err := store.OpenSQLite(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := run(store.NewMigrator(db), *command, *targetVersion, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Migration command failed: %v\n", err)
		os.Exit(1)
	}
}

func run(m *migrate.Migrator, command, target string, out io.Writer) error {
	switch command {
	case "up":
		if err := m.MigrateUp(); err != nil {
			return err
		}
	case "down", "to":
		if target == "" {
			return fmt.Errorf("-target is required for %s", command)
		}
		v, err := strconv.Atoi(target)
		if err != nil {
			return fmt.Errorf("invalid target version: %w", err)
		}
		if command == "down" {
			err = m.MigrateDown(v)
		} else {
			err = m.MigrateTo(v)
		}
		if err != nil {
			return err
		}
	case "version":
		v, err := m.CurrentVersion()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Current version: %d\n", v)
		return nil
	case "status":
		return showStatus(m, out)
	default:
		return errors.New("unknown command " + strconv.Quote(command))
	}

	fmt.Fprintln(out, "Migration completed successfully")
	return nil
}

func showStatus(m *migrate.Migrator, out io.Writer) error {
	current, err := m.CurrentVersion()
	if err != nil {
		return err
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Current version: %d\n", current)
	fmt.Fprintf(out, "Pending migrations: %d\n", len(pending))
	for _, mg := range pending {
		fmt.Fprintf(out, "  %d: %s\n", mg.Version, mg.Name)
	}
	return nil
}
