package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/genstudio/api/internal/model"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	R2        R2Config
	Zitadel   ZitadelConfig
	Gateway   GatewayConfig
	Providers ProvidersConfig
	Polling   PollingConfig
	Credits   CreditsConfig
	Upload    UploadConfig
	Upgrade   UpgradeConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

// IsDevelopment reports whether the server runs outside production.
func (s ServerConfig) IsDevelopment() bool {
	return !strings.EqualFold(s.Env, "production")
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	SubmitPerHour int
	UploadPerHour int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type ZitadelConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

type GatewayConfig struct {
	Enabled bool
}

// ProviderConfig configures one upstream AI provider.
type ProviderConfig struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
}

type ProvidersConfig struct {
	NanoBanana ProviderConfig
	Veo3       ProviderConfig
	Sora2      ProviderConfig
	Upscaler   ProviderConfig
}

// ByName returns the configuration of a provider by its route name.
func (p ProvidersConfig) ByName(name string) (ProviderConfig, bool) {
	switch name {
	case model.ProviderNanoBanana:
		return p.NanoBanana, true
	case model.ProviderVeo3:
		return p.Veo3, true
	case model.ProviderSora2:
		return p.Sora2, true
	case model.ProviderUpscaler:
		return p.Upscaler, true
	}
	return ProviderConfig{}, false
}

type PollingConfig struct {
	MaxAttempts int
	TaskTimeout time.Duration
}

type CreditsConfig struct {
	SignupBonus int
	Pricing     map[model.TaskType]int
}

type UploadConfig struct {
	MaxSizeMB int
	AllowGIF  bool
}

// MaxBytes returns the upload ceiling in bytes.
func (u UploadConfig) MaxBytes() int64 {
	if u.MaxSizeMB <= 0 {
		return model.MaxImageUploadSize
	}
	return int64(u.MaxSizeMB) * 1024 * 1024
}

type UpgradeConfig struct {
	RequireVIP bool
}

type LogConfig struct {
	File string
}

func Load() (*Config, error) {
	// Local development convenience; real deployments use env or secrets
	_ = godotenv.Load()

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("KIE_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("ZITADEL_CLIENT_ID")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables
	v.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.api_domain", "API_DOMAIN")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = v.BindEnv("zitadel.domain", "ZITADEL_DOMAIN")
	_ = v.BindEnv("zitadel.client_id", "ZITADEL_CLIENT_ID")
	_ = v.BindEnv("zitadel.issuer", "ZITADEL_ISSUER")
	_ = v.BindEnv("gateway.enabled", "GATEWAY_ENABLED")
	_ = v.BindEnv("providers.api_key", "KIE_API_KEY")
	_ = v.BindEnv("providers.base_url", "KIE_BASE_URL")
	_ = v.BindEnv("providers.nano_banana.api_key", "NANO_BANANA_API_KEY")
	_ = v.BindEnv("providers.veo3.api_key", "VEO3_API_KEY")
	_ = v.BindEnv("providers.sora2.api_key", "SORA2_API_KEY")
	_ = v.BindEnv("providers.upscaler.api_key", "UPSCALER_API_KEY")
	_ = v.BindEnv("polling.max_attempts", "POLL_MAX_ATTEMPTS")
	_ = v.BindEnv("polling.task_timeout", "POLL_TASK_TIMEOUT")
	_ = v.BindEnv("credits.signup_bonus", "CREDITS_SIGNUP_BONUS")
	_ = v.BindEnv("upload.max_size_mb", "UPLOAD_MAX_SIZE_MB")
	_ = v.BindEnv("upload.allow_gif", "UPLOAD_ALLOW_GIF")
	_ = v.BindEnv("upgrade.require_vip", "UPGRADE_REQUIRE_VIP")
	_ = v.BindEnv("log.file", "LOG_FILE")

	// Defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expiration", 24)
	v.SetDefault("ratelimit.submit_per_hour", 60)
	v.SetDefault("ratelimit.upload_per_hour", 120)

	// Provider defaults
	v.SetDefault("providers.base_url", "https://api.kie.ai")
	v.SetDefault("providers.nano_banana.poll_interval", "3s")
	v.SetDefault("providers.veo3.poll_interval", "10s")
	v.SetDefault("providers.sora2.poll_interval", "10s")
	v.SetDefault("providers.upscaler.poll_interval", "2s")

	// Polling defaults
	v.SetDefault("polling.max_attempts", 720)
	v.SetDefault("polling.task_timeout", "2h")

	// Credit defaults
	v.SetDefault("credits.signup_bonus", 20)
	v.SetDefault("credits.pricing.text-to-image", 2)
	v.SetDefault("credits.pricing.image-to-image", 2)
	v.SetDefault("credits.pricing.text-to-video", 30)
	v.SetDefault("credits.pricing.image-to-video", 30)
	v.SetDefault("credits.pricing.upscale", 1)

	// Upload defaults
	v.SetDefault("upload.max_size_mb", 10)
	v.SetDefault("upload.allow_gif", false)

	// Upgrade defaults
	v.SetDefault("upgrade.require_vip", false)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      v.GetString("server.port"),
			Env:       v.GetString("server.env"),
			LogLevel:  v.GetString("server.log_level"),
			ApiDomain: v.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			SubmitPerHour: v.GetInt("ratelimit.submit_per_hour"),
			UploadPerHour: v.GetInt("ratelimit.upload_per_hour"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
		Zitadel: ZitadelConfig{
			Domain:   v.GetString("zitadel.domain"),
			ClientID: v.GetString("zitadel.client_id"),
			Issuer:   v.GetString("zitadel.issuer"),
		},
		Gateway: GatewayConfig{
			Enabled: v.GetBool("gateway.enabled"),
		},
		Providers: ProvidersConfig{
			NanoBanana: loadProvider(v, "nano_banana"),
			Veo3:       loadProvider(v, "veo3"),
			Sora2:      loadProvider(v, "sora2"),
			Upscaler:   loadProvider(v, "upscaler"),
		},
		Polling: PollingConfig{
			MaxAttempts: v.GetInt("polling.max_attempts"),
			TaskTimeout: v.GetDuration("polling.task_timeout"),
		},
		Credits: CreditsConfig{
			SignupBonus: v.GetInt("credits.signup_bonus"),
			Pricing:     make(map[model.TaskType]int, len(model.ValidTaskTypes)),
		},
		Upload: UploadConfig{
			MaxSizeMB: v.GetInt("upload.max_size_mb"),
			AllowGIF:  v.GetBool("upload.allow_gif"),
		},
		Upgrade: UpgradeConfig{
			RequireVIP: v.GetBool("upgrade.require_vip"),
		},
		Log: LogConfig{
			File: v.GetString("log.file"),
		},
	}

	for _, t := range model.ValidTaskTypes {
		cfg.Credits.Pricing[t] = v.GetInt("credits.pricing." + string(t))
	}

	return cfg, nil
}

// loadProvider resolves one provider section; a provider without its own
// key or base URL falls back to the shared providers.api_key / base_url.
func loadProvider(v *viper.Viper, name string) ProviderConfig {
	prefix := "providers." + name + "."
	pc := ProviderConfig{
		APIKey:       v.GetString(prefix + "api_key"),
		BaseURL:      v.GetString(prefix + "base_url"),
		PollInterval: v.GetDuration(prefix + "poll_interval"),
	}
	if pc.APIKey == "" {
		pc.APIKey = v.GetString("providers.api_key")
	}
	if pc.BaseURL == "" {
		pc.BaseURL = v.GetString("providers.base_url")
	}
	return pc
}
