package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"market-connect/internal/auth"
	"market-connect/internal/catalog"
	"market-connect/internal/models"
)

func TestTokenCmd(t *testing.T) {
	t.Setenv("AUCTION_JWT_SECRET", "cli-secret")

	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetArgs([]string{"token", "--user", "seller1", "--name", "Sam", "--role", "seller"})
	require.NoError(t, Execute())

	token := strings.TrimSpace(out.String())
	id, err := auth.NewService("cli-secret", cfg.Auth.TokenTTL).ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, auth.Identity{UserID: "seller1", Name: "Sam", Role: models.RoleSeller}, id)
}

func TestPrepopulateProducts(t *testing.T) {
	c := catalog.NewStaticCatalog()
	prepopulateProducts(c)
	require.Len(t, c.Products(), 3)
}
