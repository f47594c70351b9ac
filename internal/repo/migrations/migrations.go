package migrations

import (
    "database/sql"
    "embed"
    "fmt"

    _ "github.com/jackc/pgx/v5/stdlib"
    "github.com/pressly/goose/v3"
)

//go:embed *.sql
var fs embed.FS

// Up applies all pending migrations against the given DSN.
func Up(dsn string) error {
    db, err := sql.Open("pgx", dsn)
    if err != nil { return fmt.Errorf("migrations: open: %w", err) }
    defer db.Close()
    goose.SetBaseFS(fs)
    if err := goose.SetDialect("postgres"); err != nil { return err }
    if err := goose.Up(db, "."); err != nil { return fmt.Errorf("migrations: up: %w", err) }
    return nil
}
