package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oriys/storefront/internal/lazyload"
	"github.com/oriys/storefront/internal/web"
)

func renderCmd() *cobra.Command {
	var (
		scroll int
		height int
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Run one page load and write the document to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("height") {
				height = cfg.Page.ViewportHeight
			}

			ctx := context.Background()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			doc, err := web.NewDocument(shellData(cfg))
			if err != nil {
				return err
			}
			page := a.bootstrap.Load(ctx, doc)
			if page.Err != nil {
				fmt.Fprintf(os.Stderr, "page load failed: %s\n", page.Message)
			} else {
				page.Scroll(lazyload.Viewport{Top: scroll, Height: height})
			}

			return doc.Render(os.Stdout)
		},
	}

	cmd.Flags().IntVar(&scroll, "scroll", 0, "Initial scroll offset in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "Viewport height in pixels (default from config)")
	return cmd
}
