package cli

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gokatarajesh/livequiz/internal/authoring"
	"github.com/gokatarajesh/livequiz/internal/quiz"
)

func newImportCmd(d deps) *cobra.Command {
	var (
		hostID string
		lock   bool
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create a quiz from a YAML definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := uuid.Parse(hostID); err != nil {
				return fmt.Errorf("--host-id must be a UUID: %w", err)
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open quiz file: %w", err)
			}
			defer f.Close()

			in, err := authoring.DecodeYAML(f)
			if err != nil {
				return err
			}

			if dryRun {
				questions, err := authoring.BuildQuestions(quiz.Quiz{HasTimer: in.HasTimer}, in.Questions)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "valid: %q with %d questions\n", in.Title, len(questions))
				return nil
			}

			store, release, err := d.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			svc := authoring.NewService(store, nil, d.logger)
			created, err := svc.CreateQuiz(cmd.Context(), hostID, in)
			if err != nil {
				return err
			}
			if lock {
				if created, err = svc.Lock(cmd.Context(), hostID, created.ID); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created quiz %d (%d questions, locked=%t)\n", created.ID, len(in.Questions), created.IsLocked)
			return nil
		},
	}
	cmd.Flags().StringVar(&hostID, "host-id", "", "owner host id (UUID)")
	cmd.Flags().BoolVar(&lock, "lock", false, "lock the quiz after import")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without touching the database")
	_ = cmd.MarkFlagRequired("host-id")
	return cmd
}
