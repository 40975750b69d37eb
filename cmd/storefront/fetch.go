package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/oriys/storefront/internal/catalog"
)

func fetchCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the catalog once and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := catalog.New(catalog.Config{
				Endpoint: cfg.Catalog.Endpoint,
				Timeout:  cfg.Catalog.Timeout,
			})
			if err != nil {
				return err
			}

			products, err := client.Fetch(context.Background())
			if err != nil {
				return fmt.Errorf("fetch %s: %w", client.Endpoint(), err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(products)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tPRICE")
			for _, p := range products {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, truncate(p.Title, 48), p.Category, p.DisplayPrice())
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print products as JSON")
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
