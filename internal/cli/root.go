// Package cli implements quizctl, the operator tool for importing quizzes and minting host tokens.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gokatarajesh/livequiz/internal/authoring"
	"github.com/gokatarajesh/livequiz/internal/config"
	"github.com/gokatarajesh/livequiz/internal/db/repository"
	"github.com/gokatarajesh/livequiz/internal/logging"
	"github.com/gokatarajesh/livequiz/internal/quiz"
)

// StoreOpener returns a quiz store and a function releasing it.
type StoreOpener func(ctx context.Context) (quiz.QuizStore, func(), error)

// TriviaFetcher supplies questions for the trivia command.
type TriviaFetcher interface {
	Fetch(ctx context.Context, q authoring.TriviaQuery) ([]authoring.QuestionInput, error)
}

type deps struct {
	openStore StoreOpener
	trivia    TriviaFetcher
	logger    zerolog.Logger
	out       io.Writer
}

// Execute runs the CLI against the configured Postgres database.
func Execute() error {
	_ = godotenv.Load("configs/.env")
	logger := logging.New("quizctl", os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	return newRootCmd(deps{
		openStore: openPostgres,
		trivia:    authoring.NewTriviaSource(os.Getenv("TRIVIA_BASE_URL"), nil),
		logger:    logger,
		out:       os.Stdout,
	}).Execute()
}

func newRootCmd(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "quizctl",
		Short:         "Operator tool for the live quiz service",
		SilenceUsage: true,
	}
	cmd.SetOut(d.out)
	cmd.AddCommand(newImportCmd(d))
	cmd.AddCommand(newTokenCmd(d))
	cmd.AddCommand(newTriviaCmd(d))
	return cmd
}

func openPostgres(ctx context.Context) (quiz.QuizStore, func(), error) {
	pg, err := config.LoadPostgres()
	if err != nil {
		return nil, nil, err
	}
	pool, err := pgxpool.New(ctx, pg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	return repository.NewStore(pool), pool.Close, nil
}
