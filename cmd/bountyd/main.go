package main

import (
	"context"
	"crypto/ed25519"
	"log"
	"net/http"
	"os"

	"bountyd/internal/config"
	"bountyd/internal/infra/contentstore"
	"bountyd/internal/infra/crypto"
	"bountyd/internal/infra/db"
	httpinfra "bountyd/internal/infra/http"
	"bountyd/internal/infra/ledger"
	"bountyd/internal/infra/policyopa"
	"bountyd/internal/infra/processed"
	"bountyd/internal/infra/taskmem"
	"bountyd/internal/usecase"
)

const verifierVersion = "bountyd/1.0.0"

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stderr, "bountyd ", log.LstdFlags|log.LUTC)

	repo, err := buildTaskRepository(cfg)
	if err != nil {
		log.Fatalf("failed to init task store: %v", err)
	}

	store, err := buildContentStore(cfg)
	if err != nil {
		log.Fatalf("failed to init content store: %v", err)
	}

	chain, err := buildLedger(cfg)
	if err != nil {
		log.Fatalf("failed to init ledger client: %v", err)
	}

	key, err := loadSigningKey(cfg)
	if err != nil {
		log.Fatalf("failed to load signing key: %v", err)
	}
	signer, err := crypto.NewService(key)
	if err != nil {
		log.Fatalf("failed to init signer: %v", err)
	}

	policy, err := buildPolicy(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("failed to init settlement policy: %v", err)
	}

	seen, err := buildProcessedStore(cfg)
	if err != nil {
		log.Fatalf("failed to init processed store: %v", err)
	}

	lifecycle := usecase.NewLifecycle(repo, usecase.LifecycleConfig{
		ClaimWindow:         cfg.ClaimWindow,
		SubmitWindow:        cfg.SubmitWindow,
		SupportedCategories: cfg.SupportedCategories,
	}).WithLedger(chain, store)
	packager := usecase.NewPackager()
	engine := usecase.NewEngine(usecase.EngineConfig{
		QualityThreshold:   cfg.QualityThreshold,
		CheckWeights:       cfg.CheckWeights,
		DefaultCheckWeight: cfg.DefaultCheckWeight,
		Concurrency:        cfg.VerifyConcurrency,
		VerifierVersion:    verifierVersion,
	}, usecase.BuiltinChecks())
	bridge := usecase.NewBridge(store, chain, signer, policy, lifecycle, usecase.BridgeConfig{
		MaxAttempts: cfg.BridgeMaxAttempts,
		BaseBackoff: cfg.BridgeBaseBackoff,
		MaxBackoff:  cfg.BridgeMaxBackoff,
	})
	daemon := usecase.NewDaemon(repo, store, engine, signer, bridge, seen, usecase.DaemonConfig{
		PollInterval: cfg.PollInterval,
		Concurrency:  cfg.VerifyConcurrency,
	}, logger)
	sweeper := usecase.NewSweeper(lifecycle, cfg.SweepInterval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := daemon.Run(ctx); err != nil && ctx.Err() == nil {
			log.Fatalf("verifier daemon exited: %v", err)
		}
	}()
	go func() {
		if err := sweeper.Run(ctx); err != nil && ctx.Err() == nil {
			log.Fatalf("deadline sweeper exited: %v", err)
		}
	}()

	srv := httpinfra.NewServer(cfg, httpinfra.ServerDeps{
		Lifecycle: lifecycle,
		Packager:  packager,
		Store:     store,
	})
	if err := srv.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func buildTaskRepository(cfg config.Config) (usecase.TaskRepository, error) {
	store, err := db.NewStore(cfg)
	if err != nil {
		return nil, err
	}
	if store.DB == nil {
		return taskmem.NewStore(), nil
	}
	return db.NewTaskRepository(store.DB), nil
}

func buildContentStore(cfg config.Config) (usecase.ContentStore, error) {
	if cfg.IPFSAPIURL == "" {
		return contentstore.NewMemory(), nil
	}
	return contentstore.NewIPFS(cfg.IPFSAPIURL, http.DefaultClient)
}

func buildLedger(cfg config.Config) (usecase.Ledger, error) {
	if cfg.LedgerURL == "" {
		return ledger.NewMemory(), nil
	}
	return ledger.NewClient(cfg.LedgerURL, cfg.LedgerCallerID, cfg.LedgerCallTimeout, http.DefaultClient)
}

func loadSigningKey(cfg config.Config) (ed25519.PrivateKey, error) {
	switch {
	case cfg.SigningKeySeedHex != "":
		return crypto.ParseSigningKeyHex(cfg.SigningKeySeedHex)
	case cfg.SigningKeyBase64 != "":
		return crypto.ParseSigningKeyBase64(cfg.SigningKeyBase64)
	default:
		return crypto.GenerateSigningKey()
	}
}

func buildPolicy(ctx context.Context, cfg config.Config, logger *log.Logger) (usecase.SettlementPolicy, error) {
	if cfg.PolicyBundlePath == "" {
		return &usecase.StaticPolicy{RequireAllChecks: cfg.RequireAllChecks}, nil
	}
	engine, err := policyopa.NewEngineFromBundlePath(ctx, cfg.PolicyBundlePath)
	if err != nil {
		return nil, err
	}
	logger.Printf("settlement policy bundle loaded path=%s hash=%s", cfg.PolicyBundlePath, engine.BundleHash())
	return engine, nil
}

func buildProcessedStore(cfg config.Config) (usecase.ProcessedStore, error) {
	if cfg.RedisAddr == "" {
		return processed.NewMemory(), nil
	}
	return processed.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "")
}
