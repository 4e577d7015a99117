// Package catalog is the read-only product lookup auctions are created from.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"market-connect/internal/biddingerrors"
	"market-connect/internal/config"
)

// Product is a sellable item owned by a seller.
type Product struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Images   []string `json:"images,omitempty"`
	SellerID string   `json:"seller_id"`
}

// Catalog resolves product ids.
type Catalog interface {
	Product(ctx context.Context, productID string) (Product, error)
}

// StaticCatalog is an in-memory catalog, usually seeded from config.
type StaticCatalog struct {
	mu       sync.RWMutex
	products map[string]Product
}

// NewStaticCatalog creates a catalog holding products.
func NewStaticCatalog(products ...Product) *StaticCatalog {
	c := &StaticCatalog{products: make(map[string]Product, len(products))}
	for _, p := range products {
		c.Add(p)
	}
	return c
}

// FromConfig builds the catalog from the configured products.
func FromConfig(cfg config.CatalogConfig) *StaticCatalog {
	products := make([]Product, 0, len(cfg.Products))
	for _, p := range cfg.Products {
		products = append(products, Product{
			ID:       p.ID,
			Title:    p.Title,
			Images:   append([]string(nil), p.Images...),
			SellerID: p.SellerID,
		})
	}
	return NewStaticCatalog(products...)
}

// Add inserts or replaces a product.
func (c *StaticCatalog) Add(p Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

// Product returns the product or ErrProductNotFound.
func (c *StaticCatalog) Product(_ context.Context, productID string) (Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[productID]
	if !ok {
		return Product{}, fmt.Errorf("catalog: %w - %s", biddingerrors.ErrProductNotFound, productID)
	}
	p.Images = append([]string(nil), p.Images...)
	return p, nil
}

// Products lists every product ordered by id.
func (c *StaticCatalog) Products() []Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
