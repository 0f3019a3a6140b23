package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"approvalhub/migrations"
)

var gooseMu sync.Mutex

// gooseUp is replaced in tests.
var gooseUp = goose.UpContext

// Migrate applies the embedded schema migrations. goose tracks applied
// versions, so running it against an up-to-date database is a no-op.
func Migrate(ctx context.Context, conn *sql.DB) error {
	if conn == nil {
		return errNotInitialized
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.EmbeddedFS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := gooseUp(ctx, conn, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
