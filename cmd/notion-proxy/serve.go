package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pagegrove/notion-page-client/pkg/assembler"
	"github.com/pagegrove/notion-page-client/pkg/logging"
	"github.com/pagegrove/notion-page-client/pkg/notionapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the page assembly HTTP server",
	Long: `Start the HTTP server. Pages are served under /v1/page/{pageID}; the
Notion token comes from configuration or a per-request bearer token.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().String("port", "8080", "Port to listen on")
	serveCmd.Flags().String("notion-token", "", "Default token_v2 for Notion API calls")
	serveCmd.Flags().Int("max-calls", assembler.DefaultConfig().MaxCalls, "Call budget ceiling per request")
	serveCmd.Flags().String("log-level", "info", "Log level: debug, info, warn, error")
	serveCmd.Flags().Bool("log-pretty", false, "Human-readable log output")
}

// loadServeConfig resolves serve settings from flags, NOTION_PROXY_* env vars
// and an optional config file, in that precedence order.
func loadServeConfig(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("NOTION_PROXY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, name := range []string{"host", "port", "notion-token", "max-calls", "log-level", "log-pretty"} {
		if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			return nil, err
		}
	}

	v.SetConfigName("notion-proxy")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	return v, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	v, err := loadServeConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(v.GetString("log-level")),
		Pretty: v.GetBool("log-pretty"),
		Output: os.Stderr,
	})

	client, err := notionapi.New(notionapi.DefaultConfig())
	if err != nil {
		return fmt.Errorf("create notion client: %w", err)
	}

	cfg := assembler.DefaultConfig()
	cfg.MaxCalls = v.GetInt("max-calls")
	asm, err := assembler.New(client, cfg)
	if err != nil {
		return fmt.Errorf("create assembler: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/page/{pageID}", pageHandler(asm, v.GetString("notion-token"), logger))

	addr := v.GetString("host") + ":" + v.GetString("port")
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", addr).
			Int("max_calls", cfg.MaxCalls).
			Msg("Starting notion-proxy server")
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-shutdown:
		logger.Info().Msg("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}
