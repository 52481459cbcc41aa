package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"crosschain_bridge/pkg/config"
	"crosschain_bridge/pkg/data"
	"crosschain_bridge/pkg/database"
	"crosschain_bridge/pkg/p2p"
	"crosschain_bridge/pkg/scheduler"
	"crosschain_bridge/pkg/security"
	"crosschain_bridge/pkg/utils"
)

var (
	configFile = flag.String("config", "config.yaml", "Path to configuration file")
	logFile    = flag.String("log-file", "logs/bridge.log", "Log file path")
	debug      = flag.Bool("debug", false, "Enable debug logging to the console")
	simulate   = flag.Bool("simulate", false, "Answer signature requests in-process instead of over the network")
)

// App wires the bridge security node together
type App struct {
	cfg       *config.Config
	db        *database.Service
	host      *p2p.Host
	manager   *security.BridgeSecurityManager
	scheduler *scheduler.Scheduler
	logger    *zap.Logger
}

func main() {
	flag.Parse()

	logger, err := initLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatal("Failed to load configuration",
			zap.String("path", *configFile),
			zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := initializeApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}

	setupGracefulShutdown(ctx, cancel, app, logger)

	<-ctx.Done()
}

func initializeApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	initCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	app := &App{cfg: cfg, logger: logger}

	// Persistence is optional: without a database the node runs from memory
	var repo data.Repository
	if cfg.Database.URL != "" || cfg.Database.Embedded {
		app.db = database.NewService(&cfg.Database, logger)
		err := utils.RetryWithBackoff(initCtx, func() error {
			return app.db.Start(initCtx)
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("starting database: %w", err)
		}
		repo = app.db.Repository()
	}

	crypto, err := initCrypto(cfg, logger)
	if err != nil {
		app.stop(context.Background())
		return nil, err
	}

	registry := security.NewValidatorRegistry(logger)

	network, err := app.initNetwork(ctx, crypto)
	if err != nil {
		app.stop(context.Background())
		return nil, err
	}

	app.manager = security.NewBridgeSecurityManager(cfg, registry, network, nil, repo, nil, logger)
	if err := app.manager.Start(initCtx); err != nil {
		app.stop(context.Background())
		return nil, fmt.Errorf("starting security manager: %w", err)
	}

	app.scheduler = scheduler.NewScheduler(app.manager, repo, &cfg.Maintenance, logger)
	if err := app.scheduler.Start(); err != nil {
		app.stop(context.Background())
		return nil, fmt.Errorf("starting scheduler: %w", err)
	}

	logger.Info("Bridge security node running",
		zap.Int("validators", cfg.Bridge.TotalValidators),
		zap.Int("requiredSignatures", cfg.Bridge.RequiredSignatures),
		zap.Bool("simulated", *simulate))

	return app, nil
}

// initNetwork selects the validator network backend: a gossipsub client in
// normal operation, an in-process signer when running simulated
func (a *App) initNetwork(ctx context.Context, crypto *security.CryptoManager) (security.ValidatorNetworkClient, error) {
	if *simulate {
		return security.NewSimulatedNetwork(a.cfg.Bridge.RequiredSignatures, a.logger), nil
	}

	host, err := p2p.NewHost(ctx, &a.cfg.P2P, a.logger)
	if err != nil {
		return nil, fmt.Errorf("starting p2p host: %w", err)
	}
	a.host = host

	nodeID := host.ID().String()
	responder, err := p2p.NewSignatureResponder(host, crypto, nodeID, a.cfg.Security.TokenExpiry, a.logger)
	if err != nil {
		return nil, fmt.Errorf("creating signature responder: %w", err)
	}
	utils.SafeGo(a.logger, func() {
		if err := responder.Run(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("Signature responder stopped", zap.Error(err))
		}
	})

	client, err := p2p.NewNetworkClient(host, crypto, nodeID, a.cfg.Security.TokenExpiry, a.logger)
	if err != nil {
		return nil, fmt.Errorf("creating network client: %w", err)
	}
	return client, nil
}

func (a *App) stop(ctx context.Context) {
	if a.scheduler != nil {
		if err := a.scheduler.Stop(); err != nil {
			a.logger.Error("Stopping scheduler", zap.Error(err))
		}
	}

	if a.host != nil {
		if err := a.host.Close(); err != nil {
			a.logger.Error("Closing p2p host", zap.Error(err))
		}
	}

	if a.db != nil {
		if err := a.db.Stop(ctx); err != nil {
			a.logger.Error("Stopping database", zap.Error(err))
		}
	}

	a.logger.Info("All services stopped")
}

// initCrypto loads the node key pair from the configured key file, creating
// and persisting a fresh one on first start
func initCrypto(cfg *config.Config, logger *zap.Logger) (*security.CryptoManager, error) {
	secret := os.Getenv("BRIDGE_NETWORK_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("BRIDGE_NETWORK_SECRET must be set")
	}

	passphrase := []byte(os.Getenv("BRIDGE_KEY_PASSPHRASE"))

	if cfg.Security.KeyFile != "" && len(passphrase) > 0 {
		if _, err := os.Stat(cfg.Security.KeyFile); err == nil {
			keyPair, err := security.LoadKeyPair(cfg.Security.KeyFile, passphrase)
			if err != nil {
				return nil, fmt.Errorf("loading key pair: %w", err)
			}
			logger.Info("Loaded node key pair", zap.String("path", cfg.Security.KeyFile))
			return security.NewCryptoManager(keyPair, []byte(secret)), nil
		}
	}

	keyPair, err := security.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generating key pair: %w", err)
	}

	crypto := security.NewCryptoManager(keyPair, []byte(secret))
	if cfg.Security.KeyFile != "" && len(passphrase) > 0 {
		if err := crypto.SaveKeyPair(cfg.Security.KeyFile, passphrase); err != nil {
			return nil, fmt.Errorf("saving key pair: %w", err)
		}
		logger.Info("Generated node key pair", zap.String("path", cfg.Security.KeyFile))
	}

	return crypto, nil
}

func setupGracefulShutdown(ctx context.Context, cancel context.CancelFunc, app *App, logger *zap.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		app.stop(shutdownCtx)
		cancel()
	}()
}

func initLogger() (*zap.Logger, error) {
	cfg := utils.DefaultLogConfig()
	cfg.OutputPath = *logFile
	cfg.Console = *debug
	if *debug {
		cfg.Level = "debug"
	}
	return utils.NewLogger(cfg)
}
