package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gitlab.com/dirk.krummacker/keepintouch/internal/clock"
	"gitlab.com/dirk.krummacker/keepintouch/internal/config"
	"gitlab.com/dirk.krummacker/keepintouch/internal/geo"
	"gitlab.com/dirk.krummacker/keepintouch/internal/kv"
	"gitlab.com/dirk.krummacker/keepintouch/internal/seed"
	"gitlab.com/dirk.krummacker/keepintouch/internal/service"
	"gitlab.com/dirk.krummacker/keepintouch/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configFile string
	seedFile   string
	verbose    bool
)

// Usage examples on the command line:
// > go run main.go --config keepintouch.yaml
// > PORT=8080 DBUSER=dirk DBPWD=secret KEEPINTOUCH_DATABASE_DRIVER=mysql GIN_LOGGING=OFF go run main.go
var rootCmd = &cobra.Command{
	Use:          "keepintouch",
	Short:        "Serves the KeepInTouch contact store over HTTP",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if seedFile != "" {
			cfg.SeedFile = seedFile
		}
		logger, err := newLogger(verbose || cfg.Debug)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "path of the configuration file")
	rootCmd.Flags().StringVar(&seedFile, "seed", "", "YAML file with contacts added on startup")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// run wires the store and the HTTP service and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	backend, closer, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	device := geo.NewDeviceLocation()
	if coords, _ := cfg.DeviceCoordinate(); coords != nil {
		device.Set(*coords)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	duplicates := store.DuplicateReplace
	if cfg.Store.RejectDuplicates {
		duplicates = store.DuplicateReject
	}
	st, err := store.New(backend, store.Options{
		CacheSize:              cfg.Store.CacheSize,
		Duplicates:             duplicates,
		RollbackOnPersistError: cfg.Store.RollbackOnPersistError,
		Location:               device,
		Geocoder:               geo.LiteralGeocoder{},
		RadiusMeters:           cfg.Store.RadiusMeters,
		GeocodeWorkers:         cfg.Store.GeocodeWorkers,
		Timezone:               loc,
		Logger:                 logger,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Load(ctx); err != nil {
		return fmt.Errorf("load contacts: %w", err)
	}
	if cfg.SeedFile != "" {
		contacts, err := seed.Load(cfg.SeedFile)
		if err != nil {
			return err
		}
		if _, err := seed.Populate(ctx, st, contacts, logger); err != nil {
			return err
		}
	}
	if resolved, err := st.ResolveMissingCoordinates(ctx); err != nil {
		logger.Warn("Could not resolve missing coordinates", zap.Error(err))
	} else if resolved > 0 {
		logger.Info("Resolved missing coordinates", zap.Int("contacts", resolved))
	}

	svc := service.New(st, logger, clock.Real{},
		service.WithDeviceLocation(device),
		service.WithLocation(loc),
		service.WithRequestLogging(cfg.RequestLogging()))
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           svc.SetupHttpRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening", zap.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openBackend returns the key-value backend selected by the configuration. The closer releases
// the database connection, if any.
func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (kv.Backend, io.Closer, error) {
	if cfg.Database.Driver == kv.DriverMemory {
		logger.Warn("Using the in-memory backend, contacts are lost on exit")
		return kv.NewMemory(), nopCloser{}, nil
	}
	sqlDB, err := kv.Open(cfg.Database.Driver, cfg.DataSource())
	if err != nil {
		return nil, nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("connect to %s database: %w", cfg.Database.Driver, err)
	}
	if cfg.Database.Migrate {
		if err := kv.Migrate(ctx, sqlDB, cfg.Database.Driver); err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
	}
	backend, err := kv.NewSQL(sqlDB, cfg.Database.Driver)
	if err != nil {
		sqlDB.Close()
		return nil, nil, err
	}
	logger.Info("Opened database", zap.String("driver", cfg.Database.Driver))
	return backend, backend, nil
}
