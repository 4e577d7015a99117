package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"market-connect/internal/auth"
	"market-connect/internal/models"
)

var tokenUser, tokenName, tokenRole string

// TokenCmd prints a signed token for local testing.
var TokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed access token",
	RunE:  issueToken,
}

func init() {
	TokenCmd.Flags().StringVar(&tokenUser, "user", "", "User id (token subject)")
	TokenCmd.Flags().StringVar(&tokenName, "name", "", "Display name")
	TokenCmd.Flags().StringVar(&tokenRole, "role", string(models.RoleBidder), "bidder, seller or admin")
	_ = TokenCmd.MarkFlagRequired("user")
}

func issueToken(cmd *cobra.Command, args []string) error {
	svc := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	token, err := svc.GenerateToken(auth.Identity{
		UserID: tokenUser,
		Name:   tokenName,
		Role:   models.Role(tokenRole),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
