package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wadjakorntonsri/go-collections/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-collections/pkg/config"
	"github.com/wadjakorntonsri/go-collections/pkg/core/services"
	"go.uber.org/zap"
)

const (
	exitSuccess   = 0
	exitUserError = 1
)

type rootFlags struct {
	databaseURL string
	verbose     bool
}

// session is the store opened for one command run.
type session struct {
	repo    *sqlite.SQLiteRepository
	service *services.CollectionService
}

func NewRootCmd() *cobra.Command {
	var flags rootFlags
	var s session

	root := &cobra.Command{
		Use:   "collections",
		Short: "Maintenance tool for the collections store",
		Long:  "collections exports, imports and repairs the collection tree\nstored behind DATABASE_URL.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			dbURL := flags.databaseURL
			if dbURL == "" {
				dbURL = config.Load().DatabaseURL
			}
			logger := zap.NewNop()
			if flags.verbose {
				var err error
				if logger, err = zap.NewDevelopment(); err != nil {
					return err
				}
			}

			repo, err := sqlite.NewSQLiteRepository(dbURL)
			if err != nil {
				return fmt.Errorf("connect to db: %w", err)
			}
			s.repo = repo
			s.service = services.NewCollectionService(repo, repo, nil, logger)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if s.repo != nil {
				return s.repo.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flags.databaseURL, "database-url", "", "database URL (default: DATABASE_URL)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log service activity to stderr")

	root.AddCommand(newExportCmd(&s))
	root.AddCommand(newImportCmd(&s))
	root.AddCommand(newRecountCmd(&s))

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(exitUserError)
	}
	os.Exit(exitSuccess)
}
