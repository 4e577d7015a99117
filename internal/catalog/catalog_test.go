package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"market-connect/internal/biddingerrors"
	"market-connect/internal/config"
)

func TestFromConfig(t *testing.T) {
	t.Parallel()

	c := FromConfig(config.CatalogConfig{Products: []config.ProductConfig{
		{ID: "p2", Title: "Lamp", SellerID: "s2"},
		{ID: "p1", Title: "Camera", Images: []string{"a.jpg"}, SellerID: "s1"},
	}})

	p, err := c.Product(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, Product{ID: "p1", Title: "Camera", Images: []string{"a.jpg"}, SellerID: "s1"}, p)

	p.Images[0] = "mutated.jpg"
	again, err := c.Product(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "a.jpg", again.Images[0])

	_, err = c.Product(context.Background(), "nope")
	require.ErrorIs(t, err, biddingerrors.ErrProductNotFound)

	products := c.Products()
	require.Len(t, products, 2)
	require.Equal(t, "p1", products[0].ID)
}
