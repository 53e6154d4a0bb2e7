package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Cod-e-Codes/chatrooms/config"
	"github.com/Cod-e-Codes/chatrooms/server"
	"github.com/Cod-e-Codes/chatrooms/shared"
	"github.com/spf13/cobra"
)

var (
	flagConfigDir string
	flagPort      int
	flagDBType    string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "chatrooms-server",
		Short:        "Channel-based chat server",
		SilenceUsage: true,
		RunE:         runServer,
	}
	flags := cmd.Flags()
	flags.StringVar(&flagConfigDir, "config-dir", "", "configuration directory (overrides CHATROOMS_CONFIG_DIR default)")
	flags.IntVar(&flagPort, "port", 0, "listen port (overrides CHATROOMS_PORT)")
	flags.StringVar(&flagDBType, "db-type", "", "database backend: sqlite, pebble, postgres or mysql (overrides CHATROOMS_DB_TYPE)")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), shared.VersionInfo("chatrooms-server"))
		},
	})
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig applies command line overrides on top of the environment
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithoutValidation(flagConfigDir)
	if err != nil {
		return nil, err
	}
	if flagPort != 0 {
		cfg.Port = flagPort
	}
	if flagDBType != "" && flagDBType != cfg.DBType {
		cfg.DBType = flagDBType
		if os.Getenv("CHATROOMS_DB_PATH") == "" {
			cfg.DBPath = config.DefaultDBPath(cfg.DBType, cfg.ConfigDir)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func banner(addr, scheme string) string {
	return fmt.Sprintf("chatrooms server %s listening on %s (websocket: %s://%s/ws)", shared.Version, addr, scheme, addr)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := server.SetLogLevel(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.LogFile != "" {
		if err := server.LogToFile(cfg.LogFile); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.NewApp(cfg)
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	go app.Hub.Run()

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           app.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.IsTLSEnabled() {
			err = httpSrv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	fields := map[string]interface{}{"db_type": cfg.DBType}
	if cfg.DBType == "sqlite" || cfg.DBType == "pebble" {
		fields["db_path"] = cfg.DBPath
	}
	server.ServerLogger.Info(banner(addr, cfg.GetWebSocketScheme()), fields)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			_ = app.Close()
			return fmt.Errorf("http server: %w", err)
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		server.ServerLogger.Error("HTTP server shutdown error", err)
	}
	if err := app.Close(); err != nil {
		server.ServerLogger.Error("Close failed", err)
	}
	server.ServerLogger.Info("Shutdown complete")
	return nil
}
