// Package app wires the application together: configuration, logging, the
// session store, the tool layer, the conversation agent, and both transports
// (WebSocket gateway and HTTP API). Construction is explicit dependency
// injection; nothing here is global.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/redis/go-redis/v9"

	"github.com/pagepal/pagepal/internal/agent"
	"github.com/pagepal/pagepal/internal/api"
	"github.com/pagepal/pagepal/internal/config"
	"github.com/pagepal/pagepal/internal/gateway"
	"github.com/pagepal/pagepal/internal/log"
	"github.com/pagepal/pagepal/internal/session"
	"github.com/pagepal/pagepal/internal/tool"
	"github.com/pagepal/pagepal/internal/tool/builtin"
)

// App holds every long-lived component of the backend.
type App struct {
	Config   *config.Config
	Logger   log.Logger
	Genkit   *genkit.Genkit // nil when no API key is configured
	Redis    *redis.Client  // nil when the cache tier is disabled
	Store    *session.Store
	Registry *tool.Registry
	Executor *tool.Executor
	Agent    *agent.Agent
	Hub      *gateway.Hub
	Gateway  *gateway.Gateway
	Server   *api.Server
}

// Setup builds the full component graph from configuration.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	if logger == nil {
		logger = log.New(log.Config{})
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = session.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	} else {
		logger.Info("no redis address configured, sessions are in-process only")
	}

	store := session.NewStore(redisClient,
		time.Duration(cfg.SessionTTLMinutes)*time.Minute, logger)

	registry := tool.NewRegistry(logger)
	weather := builtin.NewWeatherService(
		cfg.WeatherGeocodeURL,
		cfg.WeatherForecastURL,
		time.Duration(cfg.WeatherTimeoutMS)*time.Millisecond,
		logger,
	)
	builtin.Register(registry, weather, builtin.NewCalendarService(), builtin.NewDBQueryService())
	executor := tool.NewExecutor(registry, logger)

	var (
		g     *genkit.Genkit
		synth agent.Synthesizer
	)
	if os.Getenv("GEMINI_API_KEY") != "" {
		g = genkit.Init(ctx,
			genkit.WithPlugins(&googlegenai.GoogleAI{}),
			genkit.WithDefaultModel("googleai/"+cfg.ModelName),
		)
		synth = agent.NewGenkitSynthesizer(g, logger)
		logger.Info("response synthesis enabled", "model", cfg.ModelName)
	} else {
		logger.Warn("GEMINI_API_KEY not set, replies fall back to canned responses")
	}

	conv := agent.New(executor, synth, agent.NewCannedFallback(), cfg.MaxHistoryMessages, logger)

	hub := gateway.NewHub(logger)
	gw := gateway.New(hub, store, conv, cfg.AllowedOrigins, logger)

	server, err := api.NewServer(api.ServerConfig{
		Logger:      logger,
		Registry:    registry,
		Executor:    executor,
		WSHandler:   http.HandlerFunc(gw.HandleWS),
		CORSOrigins: cfg.AllowedOrigins,
		RatePerSec:  cfg.RatePerSecond,
		RateBurst:   cfg.RateBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Genkit:   g,
		Redis:    redisClient,
		Store:    store,
		Registry: registry,
		Executor: executor,
		Agent:    conv,
		Hub:      hub,
		Gateway:  gw,
		Server:   server,
	}, nil
}

// Run starts the background loops (hub dispatch, session sweeper) and blocks
// until ctx is canceled.
func (a *App) Run(ctx context.Context) {
	go a.Store.Run(ctx)
	a.Hub.Run(ctx)
}

// Close releases held resources.
func (a *App) Close() error {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			return fmt.Errorf("closing redis client: %w", err)
		}
	}
	return nil
}
