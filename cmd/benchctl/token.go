package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/benchlink-core/internal/auth"
	"github.com/nerrad567/benchlink-core/internal/infrastructure/config"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API access token",
		Long: "Sign a bearer token for the BenchLink API with the server's JWT secret.\n" +
			"The secret and issuer come from the config file; " + config.EnvPrefix + "JWT_SECRET overrides the secret.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := os.Getenv(config.EnvPrefix + "JWT_SECRET")
			issuer := "benchlink"

			cfg, ok, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if ok {
				secret = cfg.Security.JWT.Secret
				issuer = cfg.Security.JWT.Issuer
				if ttl == 0 {
					ttl = cfg.AccessTokenTTL()
				}
			}
			if secret == "" {
				return fmt.Errorf("no JWT secret: set security.jwt.secret or %sJWT_SECRET", config.EnvPrefix)
			}

			signer, err := auth.NewSigner(secret, issuer, ttl)
			if err != nil {
				return err
			}
			token, claims, err := signer.Issue(subject, auth.Role(role))
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "subject=%s role=%s expires=%s\n",
				claims.Subject, claims.Role, claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject, e.g. an operator or service name")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleViewer), "role: viewer, operator or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default from config, else 1h)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
