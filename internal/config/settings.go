package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
}

func (d DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Name)
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Pass     string        `mapstructure:"pass"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// VoiceConfig points at the speech collaborators.
type VoiceConfig struct {
	VADServiceURL     string        `mapstructure:"vad_service_url"`
	VADThreshold      float64       `mapstructure:"vad_threshold"`
	WhisperServiceURL string        `mapstructure:"whisper_service_url"`
	PiperServiceURL   string        `mapstructure:"piper_service_url"`
	PiperVoice        string        `mapstructure:"piper_voice"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
}

// LLMConfig selects and keys the reply provider.
type LLMConfig struct {
	Provider     string        `mapstructure:"provider"` // openai, gemini or ollama
	OpenAIApiKey string        `mapstructure:"open_ai_api_key"`
	GeminiApiKey string        `mapstructure:"gemini_api_key"`
	OllamaURLs   []string      `mapstructure:"ollama_urls"`
	Model        string        `mapstructure:"model"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// PipelineConfig tunes turn processing.
type PipelineConfig struct {
	HistoryWindow   int           `mapstructure:"history_window"`
	ChunkGapTimeout time.Duration `mapstructure:"chunk_gap_timeout"`
	STTMaxRetries   int           `mapstructure:"stt_max_retries"`
	VADCap          int           `mapstructure:"vad_cap"`
	STTCap          int           `mapstructure:"stt_cap"`
	LLMCap          int           `mapstructure:"llm_cap"`
	TTSCap          int           `mapstructure:"tts_cap"`
	StoreCap        int           `mapstructure:"store_cap"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type Settings struct {
	DB       DBConfig       `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Voice    VoiceConfig    `mapstructure:"voice"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Port     int            `mapstructure:"port"`
	Env      string         `mapstructure:"env"`
	Debug    bool           `mapstructure:"debug" default:"false"`
}

func Load() (*Settings, error) {
	viper.SetConfigName("config_" + genEnv())
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var settings Settings
	if err := viper.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &settings, nil
}

func genEnv() string {
	env := viper.GetString("ENV")
	if env == "" {
		return "dev"
	}
	return env
}
