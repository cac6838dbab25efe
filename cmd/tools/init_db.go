package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joyfill/joydoc"
	"github.com/joyfill/joydoc/internal/store"
	"go.uber.org/zap"
)

type initDBOptions struct {
	host     string
	port     int
	database string
	user     string
	password string
	sslMode  string
	table    string
	print    bool
}

func runInitDB(args []string) error {
	flags := flag.NewFlagSet("init-db", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: joydoc-tools init-db [options]")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	defaults := joydoc.DefaultConfig().Store
	opts := initDBOptions{}
	flags.StringVar(&opts.host, "db-host", getenvDefault("JOYDOC_STORE_HOST", defaults.Host), "database host")
	flags.IntVar(&opts.port, "db-port", getenvDefaultInt("JOYDOC_STORE_PORT", defaults.Port), "database port")
	flags.StringVar(&opts.database, "db-name", getenvDefault("JOYDOC_STORE_DATABASE", defaults.Database), "database name")
	flags.StringVar(&opts.user, "db-user", getenvDefault("JOYDOC_STORE_USERNAME", defaults.Username), "database user")
	flags.StringVar(&opts.password, "db-password", getenvDefault("JOYDOC_STORE_PASSWORD", "postgres"), "database password")
	flags.StringVar(&opts.sslMode, "db-ssl-mode", getenvDefault("JOYDOC_STORE_SSL_MODE", defaults.SSLMode), "database sslmode")
	flags.StringVar(&opts.table, "table", getenvDefault("JOYDOC_STORE_TABLE", defaults.Table), "validation report table name")
	flags.BoolVar(&opts.print, "print", false, "print the DDL instead of executing it")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	statements, err := reportTableDDL(opts.table)
	if err != nil {
		return err
	}
	if opts.print {
		fmt.Println(strings.Join(statements, ";\n\n") + ";")
		return nil
	}
	return initDatabase(opts, statements)
}

// reportTableDDL returns the statements that create table and its index.
func reportTableDDL(table string) ([]string, error) {
	reports, err := store.NewReportStore(nil, table, zap.L())
	if err != nil {
		return nil, err
	}
	return reports.SchemaStatements(), nil
}

func initDatabase(opts initDBOptions, statements []string) error {
	ctx := context.Background()

	cfg := joydoc.StoreConfig{
		Host:     opts.host,
		Port:     opts.port,
		Database: opts.database,
		Username: opts.user,
		SSLMode:  opts.sslMode,
	}
	pool, err := pgxpool.New(ctx, store.DSN(cfg, opts.password))
	if err != nil {
		return fmt.Errorf("create connection pool: %w", err)
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if err := withTx(ctx, conn, func(tx pgx.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("ensure report table: %w", err)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	fmt.Printf("Created validation report table: %s\n", opts.table)
	return nil
}

func withTx(ctx context.Context, conn *pgxpool.Conn, fn func(pgx.Tx) error) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w; rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getenvDefaultInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}
