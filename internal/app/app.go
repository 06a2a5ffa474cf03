package app

import (
	"context"
	"time"

	"github.com/go-redis/redis"
	"github.com/tobenna/aria/internal/config"
	turndomain "github.com/tobenna/aria/internal/domains/turn"
	"github.com/tobenna/aria/internal/domains/user"
	turnrepo "github.com/tobenna/aria/internal/repository/turn"
	userrepo "github.com/tobenna/aria/internal/repository/user"
	"github.com/tobenna/aria/internal/server"
	"github.com/tobenna/aria/pkg/Logger"
	"github.com/tobenna/aria/pkg/assistant"
	"github.com/tobenna/aria/pkg/io/vad"
	"github.com/tobenna/aria/pkg/io/stt/whisper"
	"github.com/tobenna/aria/pkg/io/tts/piper"
	"gorm.io/gorm"
)

// App wires configuration, stores and collaborators into the turn
// pipeline and the HTTP surface.
type App struct {
	Config   *config.Settings
	Logger   *Logger.Logger
	DB       *gorm.DB
	RC       *redis.Client
	Provider assistant.Provider

	TurnRepo   turndomain.TurnRepository
	UserRepo   user.UserRepository
	ServerDeps server.Dependencies
}

func NewApp(cfg *config.Settings, logger *Logger.Logger, db *gorm.DB, rc *redis.Client) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
		DB:     db,
		RC:     rc,
	}

	if err := app.setupDependencies(); err != nil {
		return nil, err
	}

	return app, nil
}

func (a *App) setupDependencies() error {
	cfg := a.Config

	provider, err := NewProvider(context.Background(), cfg, a.Logger)
	if err != nil {
		return err
	}
	a.Provider = provider

	a.TurnRepo = turnrepo.NewGormTurnRepo(a.DB, a.RC, cfg.Redis.CacheTTL, a.Logger.Named("turnrepo"))
	a.UserRepo = userrepo.NewGormUserRepo(a.DB)

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "default-secret-key-change-in-production"
		a.Logger.Warn("JWT secret not configured, using default (not secure for production)")
	}

	userService := user.NewUserService(a.UserRepo, a.Logger.Named("user"), jwtSecret, cfg.Auth.TokenTTL)
	turnService := a.buildTurnService()

	a.ServerDeps = server.NewServerDependencies(turnService, userService, a.Logger)
	return nil
}

func (a *App) buildTurnService() turndomain.Service {
	cfg := a.Config
	logger := a.Logger.Named("turn")

	requestTimeout := cfg.Voice.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	vadConfig := vad.DefaultConfig()
	if cfg.Voice.VADThreshold > 0 {
		vadConfig.Threshold = float32(cfg.Voice.VADThreshold)
	}
	detector := vad.NewSileroDetector(vadConfig, logger.Named("vad"), cfg.Voice.VADServiceURL)
	sttClient := whisper.NewClient(cfg.Voice.WhisperServiceURL, requestTimeout, logger.Named("stt"))
	ttsClient := piper.New(cfg.Voice.PiperServiceURL, cfg.Voice.PiperVoice, requestTimeout)

	pipelineCfg := turndomain.DefaultConfig()
	if cfg.Pipeline.HistoryWindow > 0 {
		pipelineCfg.HistoryWindow = cfg.Pipeline.HistoryWindow
	}
	if cfg.Pipeline.ChunkGapTimeout > 0 {
		pipelineCfg.ChunkGapTimeout = cfg.Pipeline.ChunkGapTimeout
	}
	if cfg.Pipeline.STTMaxRetries > 0 {
		pipelineCfg.Retry.MaxRetries = cfg.Pipeline.STTMaxRetries
	}
	overrideCap(&pipelineCfg.Caps.VAD, cfg.Pipeline.VADCap)
	overrideCap(&pipelineCfg.Caps.STT, cfg.Pipeline.STTCap)
	overrideCap(&pipelineCfg.Caps.LLM, cfg.Pipeline.LLMCap)
	overrideCap(&pipelineCfg.Caps.TTS, cfg.Pipeline.TTSCap)
	overrideCap(&pipelineCfg.Caps.Store, cfg.Pipeline.StoreCap)

	orch := turndomain.NewOrchestrator(
		pipelineCfg,
		turndomain.NewSegmenter(detector, logger),
		turndomain.NewTranscriber(sttClient, pipelineCfg.Retry, logger),
		turndomain.NewContextBuilder(a.TurnRepo, pipelineCfg.HistoryWindow, logger),
		turndomain.NewResponder(a.Provider, cfg.LLM.Timeout, logger),
		turndomain.NewSynthesizer(ttsClient, logger),
		turndomain.NewRecorder(a.TurnRepo, logger),
		logger,
	)

	return turndomain.NewService(orch, a.TurnRepo, logger)
}

func overrideCap(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

// GetServerDependencies returns the server dependencies
func (a *App) GetServerDependencies() server.Dependencies {
	return a.ServerDeps
}

// Close releases provider connections.
func (a *App) Close() {
	if a.Provider != nil {
		if err := a.Provider.Close(); err != nil {
			a.Logger.Warnf("closing provider: %v", err)
		}
	}
}
