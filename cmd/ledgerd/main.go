package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/defistate/reserve-ledger-go/api/jsonrpc"
	"github.com/defistate/reserve-ledger-go/api/rest"
	"github.com/defistate/reserve-ledger-go/cmd/ledgerd/config"
	"github.com/defistate/reserve-ledger-go/engine"
	"github.com/defistate/reserve-ledger-go/events/kafka"
	"github.com/defistate/reserve-ledger-go/ledger"
	"github.com/defistate/reserve-ledger-go/store"
	"github.com/defistate/reserve-ledger-go/store/leveldb"
	"github.com/defistate/reserve-ledger-go/store/memory"
	"github.com/defistate/reserve-ledger-go/store/pebble"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to the configuration file.")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("ledgerd exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	rootLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	prometheusRegistry := prometheus.DefaultRegisterer

	// Create a context that cancels when the OS sends an interrupt (Ctrl+C) or termination signal.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			rootLogger.Error("Failed to close store", "error", err)
		}
	}()
	rootLogger.Info("Store opened", "backend", cfg.Store.Backend, "path", cfg.Store.Path)

	var publisher ledger.Publisher
	if cfg.Kafka.Enabled() {
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			MaxTries: cfg.Kafka.MaxTries,
			Logger:   rootLogger.With("component", "kafka-publisher"),
		})
		if err != nil {
			return fmt.Errorf("create kafka publisher: %w", err)
		}
		defer func() {
			if err := p.Close(); err != nil {
				rootLogger.Error("Failed to close kafka publisher", "error", err)
			}
		}()
		publisher = p
	}

	l, err := ledger.New(ledger.Config{
		Store:          st,
		Logger:         rootLogger.With("component", "ledger"),
		Registry:       prometheusRegistry,
		Publisher:      publisher,
		PublishTimeout: cfg.PublishTimeout,
	})
	if err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}

	if cfg.Genesis.Enabled() {
		if err := seedGenesis(ctx, l, cfg.Genesis.State(), rootLogger); err != nil {
			return err
		}
	}

	var servers []*http.Server
	if cfg.RPC.Addr != "" {
		rpcServer, err := jsonrpc.NewServer(l, rootLogger.With("component", "jsonrpc"))
		if err != nil {
			return fmt.Errorf("create json-rpc server: %w", err)
		}
		defer rpcServer.Stop()
		servers = append(servers, &http.Server{
			Addr:    cfg.RPC.Addr,
			Handler: jsonrpc.NewHTTPHandler(rpcServer, cfg.RPC.AllowedOrigins),
		})
	}
	if cfg.REST.Addr != "" {
		gin.SetMode(gin.ReleaseMode)
		servers = append(servers, &http.Server{
			Addr:    cfg.REST.Addr,
			Handler: rest.NewRouter(l, rootLogger.With("component", "rest")),
		})
	}
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		servers = append(servers, &http.Server{Addr: cfg.Metrics.Addr, Handler: mux})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			rootLogger.Info("Listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		rootLogger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// openStore opens the backend named by cfg.
func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendPebble:
		st, err := pebble.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.BackendLevelDB:
		st, err := leveldb.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// seedGenesis writes the configured initial reserves when the stored record
// is still zero. A pool that already holds reserves is left untouched.
func seedGenesis(ctx context.Context, l *ledger.Ledger, genesis engine.ReserveState, logger *slog.Logger) error {
	_, err := l.Seed(ctx, genesis)
	switch {
	case err == nil:
		logger.Info("Pool seeded from genesis", "token_reserve", genesis.TokenReserve, "base_reserve", genesis.BaseReserve)
		return nil
	case errors.Is(err, engine.ErrAlreadySeeded):
		logger.Info("Pool already initialized, genesis ignored")
		return nil
	default:
		return fmt.Errorf("seed genesis: %w", err)
	}
}
