package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-magnet/demo"
	"github.com/km-arc/go-magnet/framework/app"
	"github.com/km-arc/go-magnet/framework/container"
	"github.com/km-arc/go-magnet/framework/routing"
)

var envFiles []string

var rootCmd = &cobra.Command{
	Use:   "magnet",
	Short: "Scoped dependency resolution demo server",
	Long: `magnet serves a small page application whose objects are resolved
through a tree of scopes: one root for the process, one child per request.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the HTTP server on APP_PORT.

Routes:
  GET /pages          every tab
  GET /pages/{tab}    one tab ("home" for the default page)
  GET /debug/scopes   scope tree (APP_DEBUG=true)
  GET /metrics        Prometheus metrics (METRICS_ENABLED=true)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, err := newApplication()
		if err != nil {
			return err
		}
		return application.Run(ctx)
	},
}

var scopesCmd = &cobra.Command{
	Use:   "scopes [tab...]",
	Short: "Resolve pages in a throwaway request scope and print the scope tree",
	Long: `Boots the application, opens one request scope, resolves the requested
tabs (all of them when none are named) and prints the resulting scope tree.

Examples:
  magnet scopes
  magnet scopes home tab2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApplication()
		if err != nil {
			return err
		}
		root, err := application.Boot()
		if err != nil {
			return err
		}
		defer root.Release()
		return dumpRequestScope(cmd.OutOrStdout(), root, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env", nil, "env files to load (default .env)")
	rootCmd.AddCommand(serveCmd, scopesCmd)
}

func newApplication() (*app.Application, error) {
	application := app.New(envFiles...)
	if err := application.Register(demo.Provider()); err != nil {
		return nil, err
	}
	return application, nil
}

func dumpRequestScope(w io.Writer, root *container.Scope, tabs []string) error {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "/pages", nil)
	if err != nil {
		return err
	}
	scope := root.CreateChild()
	defer scope.Release()
	if err := scope.Bind(routing.RequestType, container.None, req); err != nil {
		return err
	}

	if len(tabs) == 0 {
		if _, err := scope.Many(demo.PageType); err != nil {
			return err
		}
	}
	for _, tab := range tabs {
		c := container.Classifier(tab)
		if tab == "home" {
			c = container.None
		}
		if _, err := scope.Single(demo.PageType, c); err != nil {
			return fmt.Errorf("tab %q: %w", tab, err)
		}
	}
	return container.Dump(w, root)
}
