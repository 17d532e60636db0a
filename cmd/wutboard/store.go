package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/kamilpajak/wutboard/internal/database"
	"github.com/kamilpajak/wutboard/internal/snapshot"
	"github.com/spf13/cobra"
)

var migrateDown bool

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Record one snapshot of every chart in the database",
	Args:  cobra.NoArgs,
	RunE:  runSnapshot,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "Roll back all migrations")
}

var errNoDatabase = errors.New("no database configured; set database.url or WUT_DATABASE_URL")

func runSnapshot(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	if a.cfg.Database.URL == "" {
		return errNoDatabase
	}

	client, ctx, err := a.client(cmd.Context())
	if err != nil {
		return err
	}

	db, err := database.New(ctx, a.cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	recorder := snapshot.NewRecorder(client, db, snapshot.Options{
		Logger:    a.logger,
		Retention: a.cfg.Snapshot.Retention,
	})

	p := startProgress(os.Stderr, "Recording snapshots...")
	n, err := recorder.RecordOnce(ctx)
	p.Stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "Recorded %d of %d snapshots\n", n, len(database.SnapshotKinds))
	if err != nil {
		yellow := color.New(color.FgYellow)
		_, _ = yellow.Fprintf(cmd.ErrOrStderr(), "Some views failed: %v\n", err)
		if n == 0 {
			return err
		}
	}
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	if a.cfg.Database.URL == "" {
		return errNoDatabase
	}

	if migrateDown {
		if err := database.MigrateDown(a.cfg.Database.URL); err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Migrations rolled back.")
		return nil
	}
	if err := database.Migrate(a.cfg.Database.URL); err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Migrations applied.")
	return nil
}
