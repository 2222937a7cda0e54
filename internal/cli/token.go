package cli

import (
	"fmt"
	"time"

	"edu-quiz-service/internal/config"
	"edu-quiz-service/internal/domain"
	transport "edu-quiz-service/internal/transport/http"

	"github.com/spf13/cobra"
)

// NewIssueTokenCmd signs an identity token with the configured secret, for local testing.
func NewIssueTokenCmd(configPath *string) *cobra.Command {
	var (
		who domain.Identity
		ttl time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Sign a development identity token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret not configured")
			}
			token, err := transport.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer).Sign(who, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&who.UserID, "user", "", "user id (sub claim)")
	cmd.Flags().StringVar(&who.Name, "name", "", "display name")
	cmd.Flags().StringVar(&who.Email, "email", "", "email")
	cmd.Flags().StringVar((*string)(&who.Role), "role", string(domain.RoleStudent), "student, teacher, school_admin or super_admin")
	cmd.Flags().StringVar(&who.SchoolID, "school", "", "school id")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
