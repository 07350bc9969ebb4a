package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"quiz-assessment-engine/internal/app"
	"quiz-assessment-engine/internal/config"
	"quiz-assessment-engine/internal/domain"
	pgstore "quiz-assessment-engine/internal/infra/postgres"
)

// NewImportCmd loads quiz fixtures from YAML files into the database. Each
// file holds one quiz document; validation is the same as on the API path.
func NewImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import [files...]",
		Short: "Import quiz YAML files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), *configPath, args)
		},
	}
}

func runImport(ctx context.Context, configPath string, files []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	authoring := app.NewAuthoringService(pgstore.NewQuizStore(pool), pgstore.NewAttemptStore(pool))

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		var quiz domain.Quiz
		if err := yaml.Unmarshal(data, &quiz); err != nil {
			return fmt.Errorf("parse %s: %w", file, err)
		}
		if err := authoring.SaveQuiz(ctx, quiz); err != nil {
			return fmt.Errorf("import %s: %w", file, err)
		}
		log.Printf("imported quiz %s from %s", quiz.ID, file)
	}
	return nil
}
