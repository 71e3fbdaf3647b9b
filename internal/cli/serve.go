package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harun/ssegate/internal/config"
	"github.com/harun/ssegate/internal/logger"
	"github.com/harun/ssegate/internal/metrics"
	"github.com/harun/ssegate/internal/tracing"
	"github.com/harun/ssegate/pkg/engine"
	"github.com/harun/ssegate/pkg/gateway"
	"github.com/spf13/cobra"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the SSE gateway",
	Long: `Run the SSE gateway in the foreground until interrupted.
Streams are opened with GET on the stream path; commands are posted to the
message path with the sessionId announced on the stream.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host, overrides the config file")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port, overrides the config file")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(loggerConfig(cfg.Logging))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	if err := tracing.Setup(tracing.Options{
		ServiceName:    cfg.Engine.Name,
		ServiceVersion: version,
		SampleRatio:    cfg.Tracing.SampleRatio,
	}); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to shut down tracing")
		}
	}()

	eng := engine.New(engine.Config{
		Name:    cfg.Engine.Name,
		Version: cfg.Engine.Version,
		Logger:  log.Component("engine"),
	})
	if err := eng.RegisterTool(engine.AddNumbersTool()); err != nil {
		return fmt.Errorf("failed to register tool: %w", err)
	}

	srv, err := gateway.NewServer(gateway.Config{
		Server:    cfg.Server,
		CORS:      cfg.CORS,
		Auth:      cfg.Auth,
		RateLimit: cfg.RateLimit,
		Engine:    eng,
		Metrics:   metrics.NewMetrics(),
		Logger:    log.Component("gateway"),
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}

// loadConfig reads the config file and applies command line overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loggerConfig(cfg config.LoggingConfig) logger.Config {
	return logger.Config{
		Level:      cfg.Level,
		File:       cfg.File,
		Console:    true,
		Pretty:     cfg.Pretty,
		Redaction:  cfg.Redaction,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
}
