package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/garyjia/open-audit/internal/domain/entity"
	"github.com/garyjia/open-audit/internal/infrastructure/auth"
	"github.com/garyjia/open-audit/pkg/utils"
)

func newTokenCmd(root *rootOptions) *cobra.Command {
	var identity entity.Identity
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if identity.UserID == "" {
				return errors.New("--user is required")
			}
			if identity.Email != "" {
				if err := utils.ValidateEmail(identity.Email); err != nil {
					return err
				}
			}
			cfg, _, err := root.load()
			if err != nil {
				return err
			}
			tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
			if err != nil {
				return err
			}
			token, err := tokens.Issue(identity)
			if err != nil {
				return err
			}
			cmd.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&identity.UserID, "user", "", "user id placed in the token")
	cmd.Flags().StringVar(&identity.Email, "email", "", "email placed in the token")
	cmd.Flags().StringVar(&identity.Role, "role", "", "role placed in the token")
	return cmd
}
