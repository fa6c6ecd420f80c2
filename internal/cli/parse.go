package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"quiz-session-service/internal/config"
	"quiz-session-service/internal/domain"
	pgstore "quiz-session-service/internal/infra/postgres"
	"quiz-session-service/internal/parser"
)

// NewParseCmd builds the ingestion subcommand: parse extracted document text
// into questions and optionally seed them into Postgres as a new set.
func NewParseCmd(configPath *string) *cobra.Command {
	var (
		file      string
		category  string
		seed      bool
		setID     string
		eventID   string
		setName   string
		timeLimit int
	)

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse extracted quiz text into questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}

			questions, dropped := parser.New().Parse(string(data), category)
			log.Printf("parsed %d questions (%d dropped)", len(questions), dropped)
			if len(questions) == 0 {
				return fmt.Errorf("no questions parsed from %s", file)
			}

			breakdown := make(map[string]int)
			for _, q := range questions {
				breakdown[q.Topic+"-"+q.Level]++
			}
			for key, count := range breakdown {
				log.Printf("  %s: %d questions", key, count)
			}

			if !seed {
				return nil
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
				return err
			}
			pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if setID == "" {
				setID = uuid.NewString()
			}
			set := domain.QuestionSet{
				ID:               setID,
				EventID:          eventID,
				Name:             setName,
				TimeLimitMinutes: timeLimit,
				Questions:        questions,
			}
			if err := pgstore.NewSetStore(pool).CreateSet(cmd.Context(), set); err != nil {
				return err
			}
			log.Printf("seeded set %s with %d questions", setID, len(questions))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to extracted text file")
	cmd.Flags().StringVar(&category, "category", "", "question category (aptitude, reasoning, coding, technical)")
	cmd.Flags().BoolVar(&seed, "seed", false, "insert parsed questions into Postgres as a set")
	cmd.Flags().StringVar(&setID, "set-id", "", "set ID for seeding (random when empty)")
	cmd.Flags().StringVar(&eventID, "event", "", "parent event ID for seeding")
	cmd.Flags().StringVar(&setName, "set-name", "", "display name for the seeded set")
	cmd.Flags().IntVar(&timeLimit, "time-limit", 10, "time limit in minutes for the seeded set")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}
