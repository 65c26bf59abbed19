package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"timed-quiz-service/internal/infra/memory"
	"timed-quiz-service/internal/infra/postgres"
)

// NewSeedCmd loads a YAML question bank into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var (
		file    string
		replace bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a YAML question bank into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.Quiz.QuestionsFile
			}
			if file == "" {
				return fmt.Errorf("no question file: pass --file or set quiz.questions_file")
			}
			questions, err := memory.LoadQuestionFile(file)
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
				return err
			}

			db := postgres.OpenBun(cfg.Postgres.URL)
			defer db.Close()
			if err := postgres.NewSeeder(db).Seed(cmd.Context(), questions, replace); err != nil {
				return err
			}
			slog.Info("question bank seeded", "file", file, "questions", len(questions), "replace", replace)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "question bank YAML (defaults to quiz.questions_file)")
	cmd.Flags().BoolVar(&replace, "replace", false, "delete questions missing from the file")
	return cmd
}
