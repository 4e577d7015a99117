package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"market-connect/internal/app"
	"market-connect/internal/catalog"
	"market-connect/utils"
)

var seedDemo bool

// ServeCmd starts the HTTP and websocket server.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the auction server",
	RunE:  serve,
}

func init() {
	ServeCmd.Flags().BoolVar(&seedDemo, "seed", false, "Seed demo products when the catalog is empty")
}

func serve(cmd *cobra.Command, args []string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.New(cfg, app.WithRegistry(reg))
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			utils.Error("close failed", map[string]any{"error": err.Error()})
		}
	}()

	if seedDemo && len(a.Catalog.Products()) == 0 {
		prepopulateProducts(a.Catalog)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Run(ctx)
}

// prepopulateProducts adds sample products to the catalog
func prepopulateProducts(c *catalog.StaticCatalog) {
	products := []catalog.Product{
		{ID: "product1", Title: "title1", SellerID: "seller1"},
		{ID: "product2", Title: "title2", SellerID: "seller1"},
		{ID: "product3", Title: "title3", SellerID: "seller2"},
	}

	for _, p := range products {
		c.Add(p)
	}
	utils.Info("seeded demo products", map[string]any{"count": len(products)})
}
