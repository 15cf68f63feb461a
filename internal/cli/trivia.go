package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gokatarajesh/livequiz/internal/authoring"
)

func newTriviaCmd(d deps) *cobra.Command {
	var (
		hostID   string
		title    string
		hasTimer bool
		lock     bool
		query    authoring.TriviaQuery
	)
	cmd := &cobra.Command{
		Use:   "trivia",
		Short: "Create a quiz from Open Trivia DB questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := uuid.Parse(hostID); err != nil {
				return fmt.Errorf("--host-id must be a UUID: %w", err)
			}

			inputs, err := d.trivia.Fetch(cmd.Context(), query)
			if err != nil {
				return err
			}

			store, release, err := d.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			svc := authoring.NewService(store, nil, d.logger)
			created, err := svc.CreateQuiz(cmd.Context(), hostID, authoring.QuizInput{
				Title:           title,
				HasTimer:        hasTimer,
				ShowLeaderboard: true,
				Questions:       inputs,
			})
			if err != nil {
				return err
			}
			if lock {
				if created, err = svc.Lock(cmd.Context(), hostID, created.ID); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created quiz %d (%d questions, locked=%t)\n", created.ID, len(inputs), created.IsLocked)
			return nil
		},
	}
	cmd.Flags().StringVar(&hostID, "host-id", "", "owner host id (UUID)")
	cmd.Flags().StringVar(&title, "title", "Trivia Night", "quiz title")
	cmd.Flags().BoolVar(&hasTimer, "timer", true, "score answers by speed")
	cmd.Flags().BoolVar(&lock, "lock", false, "lock the quiz after import")
	cmd.Flags().IntVar(&query.Amount, "amount", 10, "number of questions (1-50)")
	cmd.Flags().StringVar(&query.Difficulty, "difficulty", "", "easy, medium or hard")
	cmd.Flags().IntVar(&query.Category, "category", 0, "Open Trivia DB category id")
	_ = cmd.MarkFlagRequired("host-id")
	return cmd
}
