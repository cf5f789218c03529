package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aradaody/defi-technique/internal/config"
	"github.com/aradaody/defi-technique/internal/database"
	"github.com/aradaody/defi-technique/internal/logger"
	"github.com/aradaody/defi-technique/internal/notify"
	"github.com/aradaody/defi-technique/internal/repository"
	"github.com/aradaody/defi-technique/internal/service"
)

const serviceName = "dwh-etl"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          serviceName,
		Short:        "Hospital data warehouse loader",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to the INI configuration file (default ./"+config.DefaultFile+")")

	rootCmd.AddCommand(patientsCmd())
	rootCmd.AddCommand(documentsCmd())
	rootCmd.AddCommand(migrateCmd())
	return rootCmd
}

func patientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patients",
		Short: "Load the patient spreadsheet into the warehouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			if err := env.cfg.RequirePatientSource(); err != nil {
				return err
			}

			var repo repository.PatientsRepository
			if dryRun {
				env.logger.Info("Dry run, patients are kept in memory")
				repo = repository.NewMemoryPatientsRepo()
			} else {
				db, dialect, err := env.openDB()
				if err != nil {
					return err
				}
				repo = repository.NewSQLPatientsRepository(db, dialect, env.logger)
			}

			loader := service.NewPatientLoader(patientLoaderConfig(env.cfg), repo, env.notifier, env.logger)
			res, err := loader.Run(cmd.Context())
			if res != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Run %s (upload %d): %d inserted, %d merged, %d rejected, %d failed\n",
					res.RunID, res.UploadID, res.Inserted, res.Merged, res.Rejected, res.Failed)
				if res.ErrorReport != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Error report: %s\n", res.ErrorReport)
				}
			}
			return err
		},
	}
	cmd.Flags().Bool("dry-run", false, "Run against an in-memory warehouse")
	return cmd
}

func documentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Load the documents folder into the warehouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			if err := env.cfg.RequireDocumentSource(); err != nil {
				return err
			}

			var repo repository.DocumentsRepository
			if dryRun {
				env.logger.Info("Dry run, documents are kept in memory")
				repo = repository.NewMemoryDocumentsRepo(env.patientLookup())
			} else {
				db, _, err := env.openDB()
				if err != nil {
					return err
				}
				repo = repository.NewSQLDocumentsRepository(db, env.logger)
			}

			loader := service.NewDocumentLoader(env.cfg.Sources.DocumentsDir, repo, nil, env.notifier, env.logger)
			res, err := loader.Run(cmd.Context())
			if res != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Run %s (upload %d): %d loaded, %d skipped, %d failed, %d linked to a patient\n",
					res.RunID, res.UploadID, res.Loaded, res.Skipped, res.Failed, res.Linked)
			}
			return err
		},
	}
	cmd.Flags().Bool("dry-run", false, "Keep documents in memory; patient numbers are still read from the warehouse when it exists")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the warehouse tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			db, dialect, err := env.openDB()
			if err != nil {
				return err
			}

			count, err := database.Migrate(cmd.Context(), db, dialect)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			env.logger.Info("Schema applied", zap.String("dialect", string(dialect)), zap.Int("statements", count))
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d statement(s) successfully.\n", count)
			return nil
		},
	}
}

// environment shared by every subcommand.
type environment struct {
	cfg      *config.Config
	logger   *zap.Logger
	notifier *notify.Multi
	db       *sql.DB
	stop     context.CancelFunc
}

func setup(cmd *cobra.Command) (*environment, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	cmd.SetContext(ctx)

	env := &environment{
		cfg:    cfg,
		logger: log,
		stop:   stop,
	}
	env.notifier = notify.New(&cfg.Notify, log)
	if n := env.notifier.Len(); n > 0 {
		log.Info("Batch notifications enabled", zap.Int("targets", n))
	}
	return env, nil
}

func (e *environment) openDB() (*sql.DB, database.Dialect, error) {
	db, dialect, err := database.NewDB(&e.cfg.Database)
	if err != nil {
		e.logger.Error("Failed to connect to warehouse", zap.String("driver", e.cfg.Database.Driver), zap.Error(err))
		return nil, "", err
	}
	e.db = db
	e.logger.Info("Connected to warehouse", zap.String("driver", string(dialect)))
	return db, dialect, nil
}

func (e *environment) close() {
	if err := e.notifier.Close(); err != nil {
		e.logger.Warn("Failed to close notifiers", zap.Error(err))
	}
	if err := database.Close(e.db); err != nil {
		e.logger.Warn("Failed to close database", zap.Error(err))
	}
	e.stop()
	_ = e.logger.Sync()
}

// patientLookup read-only patient number resolution for a documents dry run: the configured
// warehouse when it can be reached, otherwise an empty in-memory store. A missing SQLite file
// is not created.
func (e *environment) patientLookup() repository.PatientNumFinder {
	if e.cfg.Database.Driver == string(database.DialectSQLite) {
		if _, err := os.Stat(e.cfg.Database.Path); err != nil {
			e.logger.Warn("No warehouse file, documents will not be linked to patients", zap.String("path", e.cfg.Database.Path))
			return repository.NewMemoryPatientsRepo()
		}
	}
	db, _, err := e.openDB()
	if err != nil {
		e.logger.Warn("Warehouse unreachable, documents will not be linked to patients", zap.Error(err))
		return repository.NewMemoryPatientsRepo()
	}
	return repository.NewSQLDocumentsRepository(db, e.logger)
}

func patientLoaderConfig(cfg *config.Config) service.PatientLoaderConfig {
	return service.PatientLoaderConfig{
		SourceFile:      cfg.Sources.PatientFile,
		DateFormat:      cfg.Date.Format,
		DateSeparator:   cfg.Date.Separator,
		MatchingCount:   cfg.Duplication.MatchingCount,
		OriginPatientID: cfg.Sources.OriginPatientID,
		MasterPatientID: cfg.Constant.LastMasterPatientID,
		ErrorDir:        cfg.Output.ErrorDir,
	}
}
