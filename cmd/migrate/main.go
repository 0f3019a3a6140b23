package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"approvalhub/migrations"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

var openDB = sql.Open

func run(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dsn := fs.String("dsn", os.Getenv("DATABASE_URL"), "postgres DSN (default $DATABASE_URL)")
	dir := fs.String("dir", "./migrations", "migrations dir")
	action := fs.String("action", "", "up/down/status/version/redo")
	useEmbed := fs.Bool("embed", true, "use embedded migrations")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*dsn) == "" {
		return errors.New("dsn required")
	}
	switch *action {
	case "":
		return errors.New("action required")
	case "up", "down", "status", "version", "redo":
	default:
		return fmt.Errorf("unknown action %q", *action)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if *useEmbed {
		goose.SetBaseFS(migrations.EmbeddedFS)
		*dir = "."
	}

	db, err := openDB("postgres", *dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	switch *action {
	case "up":
		return goose.UpContext(ctx, db, *dir)
	case "down":
		return goose.DownContext(ctx, db, *dir)
	case "status":
		return goose.StatusContext(ctx, db, *dir)
	case "version":
		version, err := goose.GetDBVersionContext(ctx, db)
		if err != nil {
			return err
		}
		fmt.Printf("version %d\n", version)
		return nil
	default:
		return goose.RedoContext(ctx, db, *dir)
	}
}
