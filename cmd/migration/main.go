package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gitlab.com/dirk.krummacker/keepintouch/internal/config"
	"gitlab.com/dirk.krummacker/keepintouch/internal/kv"
)

var (
	configFile string
	sqlFile    string
	printOnly  bool
)

// Usage examples on the command line:
// > KEEPINTOUCH_DATABASE_DRIVER=mysql DBHOST=localhost:3306 DBUSER=dirk DBPWD=secret go run main.go
// > go run main.go --config keepintouch.yaml --file=schema.sql
// > go run main.go --print
var rootCmd = &cobra.Command{
	Use:          "migration",
	Short:        "Creates the kv_records table or executes a SQL file",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if cfg.Database.Driver == kv.DriverMemory {
			return fmt.Errorf("the memory driver has no schema")
		}
		if printOnly {
			schema, err := kv.Schema(cfg.Database.Driver)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(schema)+";")
			return nil
		}

		sqlDB, err := kv.Open(cfg.Database.Driver, cfg.DataSource())
		if err != nil {
			return err
		}
		db := sqlx.NewDb(sqlDB, cfg.Database.Driver)
		defer db.Close()

		if sqlFile == "" {
			return kv.Migrate(cmd.Context(), sqlDB, cfg.Database.Driver)
		}
		return executeFile(cmd.Context(), db, sqlFile)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "path of the configuration file")
	rootCmd.Flags().StringVar(&sqlFile, "file", "", "the sql file to execute instead of the built-in schema")
	rootCmd.Flags().BoolVar(&printOnly, "print", false, "print the built-in schema instead of executing it")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// executeFile runs every statement of the file. Statements end with a line containing a
// semicolon.
func executeFile(ctx context.Context, db *sqlx.DB, path string) error {
	readFile, err := os.Open(path) // nosemgrep
	if err != nil {
		return err
	}
	defer readFile.Close()

	fileScanner := bufio.NewScanner(readFile)
	fileScanner.Split(bufio.ScanLines)
	builder := strings.Builder{}
	for fileScanner.Scan() {
		line := fileScanner.Text()
		builder.WriteString(line)
		builder.WriteString(" ")
		if strings.Contains(line, ";") {
			if _, err := db.ExecContext(ctx, builder.String()); err != nil {
				return fmt.Errorf("execute %s: %w", path, err)
			}
			builder.Reset()
		}
	}
	return fileScanner.Err()
}
