package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/adm-tools/profreap/internal/api"
	"github.com/adm-tools/profreap/internal/config"
	"github.com/adm-tools/profreap/internal/inventory"
	"github.com/adm-tools/profreap/internal/probe"
	"github.com/adm-tools/profreap/internal/reap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the read-only agent (HTTP API and MCP, foreground)",
	Long: `Run the read-only agent (HTTP API and MCP, foreground).

The agent serves the profile inventory and verdict previews over a
local HTTP API and an MCP stdio transport. It never deletes profiles.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		return runAgent(debug)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show agent and inventory status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolP("debug", "d", false, "enable debug logging")
}

func runAgent(debug bool) error {
	fmt.Fprintf(os.Stderr, "profreap version %s\n", version)
	initLogging(debug)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Server.APIToken == "" {
		return errors.New("missing API token: set PROFREAP_API_TOKEN or server.api_token in the config file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := inventory.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening inventory: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing inventory: %v\n", err)
		}
	}()

	deps := api.Deps{
		Source: inventory.NewSource(store),
		Engine: reap.Deps{
			Session: probe.NewExecSessionProbe(cfg.Probes.SessionCommand),
			Domain:  probe.NewExecDomainProbe(cfg.Probes.DomainCommand),
			Logger:  slog.Default(),
		},
		Token:           cfg.Server.APIToken,
		DefaultFallback: config.FallbackPolicy(cfg.Reap.Fallback),
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(deps),
	}

	// MCP server on stdio, alongside the HTTP API.
	stdioSrv := server.NewStdioServer(api.NewMCPServer(deps))
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "profreap agent listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}

	resp, err := client.get(ctx, "/health")
	if err != nil {
		printStatus("Agent", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Agent", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Agent", "error (HTTP %d)", resp.StatusCode)
		}
	}

	// Inventory counts come from the agent when it is up.
	if resp != nil && resp.StatusCode == 200 {
		profilesResp, err := client.get(ctx, "/profiles")
		if err == nil {
			var profiles []any
			if decodeJSON(profilesResp, &profiles) == nil {
				printStatus("Profiles", "%d", len(profiles))
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	printStatus("Session probe", "%s", cfg.Probes.SessionCommand)
	printStatus("Domain probe", "%s", cfg.Probes.DomainCommand)
	printStatus("Fallback", "%s", cfg.Reap.Fallback)
	return nil
}
