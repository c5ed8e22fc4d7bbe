package main

import (
	"context"
	"fmt"
	"io"

	"agentcore/agent"
	"agentcore/config"
	"agentcore/embedding"
	"agentcore/manager"
	"agentcore/mcp"
	"agentcore/model"
	"agentcore/provider"
	"agentcore/storage"

	"github.com/charmbracelet/log"
)

type store interface {
	agent.Store
	io.Closer
}

// app holds the collaborators shared by the commands of one invocation.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	store   store
	servers *mcp.ProcessManager
	manager *manager.Manager
}

func openApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat, nil)
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	servers := mcp.NewProcessManager(logger)
	for _, srv := range cfg.MCP {
		if _, err := servers.Start(ctx, srv); err != nil {
			logger.Warn("mcp server unavailable", "id", srv.ID, "err", err)
		}
	}

	deps := agent.Deps{
		Providers: providers(cfg, logger),
		Store:     st,
		Tools:     mcp.NewBus(servers),
		Embedding: embedding.Pipeline{
			BatchSize: cfg.Embedding.BatchSize,
			Prefix:    cfg.Embedding.Prefix,
			Logger:    logger.WithPrefix("embedding"),
		},
		MaxToolTurns: cfg.Agents.MaxToolTurns,
		Version:      cfg.Agents.Version,
		Logger:       logger,
	}
	mgr := manager.New(deps,
		manager.WithSettings(cfg.Settings),
		manager.WithProfiles(cfg.Profiles, cfg.DefaultProfile),
		manager.WithDefaultSettings(cfg.DefaultSettings),
	)

	return &app{cfg: cfg, logger: logger, store: st, servers: servers, manager: mgr}, nil
}

func (a *app) Close(ctx context.Context) {
	if err := a.servers.Shutdown(ctx); err != nil {
		a.logger.Warn("failed to stop mcp servers", "err", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", "err", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "redis":
		return storage.DialRedis(ctx, cfg.Store.Address, storage.WithKeyPrefix(cfg.Store.Prefix))
	}

	dataDir := cfg.DataDir()
	if err := config.EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}
	if cfg.Store.Driver == "file" {
		return storage.NewFileStore(dataDir)
	}
	return storage.NewSQLiteStore(dataDir)
}

// providers resolves agent backends. Definitions still carrying the default
// local host use the configured endpoint of their provider instead.
func providers(cfg *config.Config, logger *log.Logger) agent.ProviderFunc {
	defaultHost := model.DefaultDefinition().Host
	local := provider.NewPool(provider.Config{
		BaseURL:          cfg.Providers.Ollama.Host,
		Headers:          cfg.Providers.Ollama.Headers,
		EmbedConcurrency: int64(cfg.Providers.EmbedConcurrency),
		Logger:           logger.WithPrefix("provider"),
	})
	rest := provider.NewPool(provider.Config{
		BaseURL:    cfg.Providers.OpenAI.BaseURL,
		APIKey:     cfg.Providers.OpenAI.APIKey,
		MaxRetries: cfg.Providers.OpenAI.MaxRetries,
		Timeout:    cfg.Providers.OpenAI.Timeout,
		Logger:     logger.WithPrefix("provider"),
	})

	return func(def model.AgentDefinition) (model.Provider, error) {
		if def.Host == defaultHost {
			def.Host = ""
		}
		if provider.MapProviderIDToType(def.Provider) == provider.TypeOpenAI {
			return rest.Get(def)
		}
		return local.Get(def)
	}
}
