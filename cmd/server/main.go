package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/browserd/internal/browser/rodriver"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/browserd/internal/infrastructure/server"
)

type flags struct {
	configFile string
	port       string
	host       string
	profile    string
	session    string
	domains    []string
	headless   bool
	dev        bool
	launch     bool
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:          "browserd",
		Short:        "Shared browser with live streaming and remote control",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&f.configFile, "config", "", "YAML or TOML config file (default: $CONFIG_FILE)")
	cmd.Flags().StringVar(&f.port, "port", "", "listen port (default 9333)")
	cmd.Flags().StringVar(&f.host, "host", "", "listen host (default 127.0.0.1)")
	cmd.Flags().StringVar(&f.profile, "profile", "", "browser user data directory")
	cmd.Flags().StringVar(&f.session, "session", "", "named profile under the user data directory")
	cmd.Flags().StringSliceVar(&f.domains, "allow-domain", nil, "restrict navigate to these domains (repeatable)")
	cmd.Flags().BoolVar(&f.headless, "headless", false, "run the browser without a window")
	cmd.Flags().BoolVar(&f.dev, "dev", false, "development logging (colored console, debug level)")
	cmd.Flags().BoolVar(&f.launch, "launch", false, "launch the browser at startup")

	return cmd
}

// loadConfig applies flags the user set on top of file and environment.
func loadConfig(cmd *cobra.Command, f flags) (*config.Config, error) {
	path := f.configFile
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, err
	}

	set := cmd.Flags().Changed
	if set("port") {
		cfg.Server.Port = f.port
	}
	if set("host") {
		cfg.Server.Host = f.host
	}
	if set("profile") {
		cfg.Browser.ProfileDir = f.profile
	}
	if set("session") {
		cfg.Browser.SessionName = f.session
	}
	if set("allow-domain") {
		cfg.Browser.AllowedDomains = f.domains
	}
	if set("headless") {
		cfg.Browser.Headless = f.headless
	}
	if set("launch") {
		cfg.Browser.LaunchOnStart = f.launch
	}
	if set("dev") && f.dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	srv, err := server.NewServer(cfg, rodriver.New(logger.Component("rod")), logger)
	if err != nil {
		logger.Error("Failed to create server", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = srv.Run(ctx)
	if errors.Is(err, server.ErrAlreadyRunning) {
		return nil
	}
	if err != nil {
		logger.Error("Server error", zap.Error(err))
	}
	return err
}
