package cli

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gokatarajesh/livequiz/internal/auth"
	"github.com/gokatarajesh/livequiz/internal/auth/jwt"
	"github.com/gokatarajesh/livequiz/internal/config"
)

func newTokenCmd(d deps) *cobra.Command {
	var (
		hostID string
		name   string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a host token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			var signing struct {
				Issuer   string `env:"APP_NAME" envDefault:"livequiz"`
				Security config.Security
			}
			if err := env.Parse(&signing); err != nil {
				return fmt.Errorf("parse config: %w", err)
			}
			if len(signing.Security.JWTSecret) < 16 {
				return fmt.Errorf("parse config: JWT_SECRET must be at least 16 bytes")
			}

			var id uuid.UUID
			if hostID != "" {
				parsed, err := uuid.Parse(hostID)
				if err != nil {
					return fmt.Errorf("--host-id must be a UUID: %w", err)
				}
				id = parsed
			}

			svc := auth.NewService(auth.ServiceOptions{TokenConfig: jwt.TokenConfig{
				Secret:  []byte(signing.Security.JWTSecret),
				HostTTL: signing.Security.HostTTL,
				Issuer:  signing.Issuer,
			}}, d.logger)
			user, token, err := svc.IssueHostToken(auth.HostRequest{HostID: id, DisplayName: name})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "host_id=%s\nexpires_at=%s\n%s\n", user.ID, token.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z"), token.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&hostID, "host-id", "", "host id to embed (random when empty)")
	cmd.Flags().StringVar(&name, "name", "Host", "display name")
	return cmd
}
