package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/research-relay/internal/config"
	"github.com/zhouzirui/research-relay/internal/handler"
	"github.com/zhouzirui/research-relay/internal/session"
)

func newServeCommand() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			serverCfg, err := config.LoadServer()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				if serverCfg.Addr, err = config.ParseAddr(port); err != nil {
					return err
				}
			}

			checkGatewayConfig()

			manager := session.NewManager()
			router := handler.NewRouter(manager, serverCfg.StaticDir)
			return startServer(cmd.Context(), serverCfg, router, manager.Registry())
		},
	}
	cmd.Flags().StringVar(&port, "port", config.DefaultPort, "listen port or address (overrides PORT)")
	return cmd
}

// 配置在每次查询时重新加载，这里只提前提示明显的问题。
func checkGatewayConfig() {
	cfg, err := config.LoadGateway()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		log.Warn().Err(err).Msg("gateway configuration is not usable yet; queries will fail until it is fixed")
		return
	}
	log.Info().Str("provider", cfg.Provider).Str("model", cfg.Model).Msg("gateway configured")
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, registry *session.Registry) error {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	// Shutdown does not track hijacked WebSocket connections.
	srv.RegisterOnShutdown(registry.CloseAll)

	log.Info().Str("addr", serverCfg.Addr).Str("static_dir", serverCfg.StaticDir).Msg("research relay listening")
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
