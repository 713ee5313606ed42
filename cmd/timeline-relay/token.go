package main

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/estudio-ia-videos/timeline-relay/internal/server/middleware"
	"github.com/estudio-ia-videos/timeline-relay/pkg/config"
	"github.com/estudio-ia-videos/timeline-relay/pkg/logging"
)

// token mints a development JWT signed with the configured secret, for
// pointing editor clients at a local relay.
func newTokenCommand(configFlag *string) *cobra.Command {
	var userID string
	var userName string
	var perms []string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development JWT for connecting to the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			cfg, err := config.Load(logging.New("error", "text"), *configFlag)
			if err != nil {
				return err
			}

			now := time.Now()
			claims := middleware.AppClaims{
				Name:        userName,
				Permissions: perms,
				RegisteredClaims: jwt.RegisteredClaims{
					Subject:   userID,
					IssuedAt:  jwt.NewNumericDate(now),
					ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
				},
			}

			token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
			signed, err := token.SignedString([]byte(cfg.Server.Auth.JWTSecret))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id (JWT subject)")
	cmd.Flags().StringVar(&userName, "name", "", "Display name")
	cmd.Flags().StringSliceVar(&perms, "perms", []string{"read", "write"}, "Permission names to grant")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	return cmd
}
