package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		AppName          string
		Debug            bool
		TestMode         bool
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		LogLevel         string
		ErrorTracker     string // rollbar | sentry | none
		RollbarToken     string
		SentryDSN        string
		SendgridAPIKey   string

		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		InviteTTL                 time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		LLM      LLMConfig
		Jobs     JobsConfig
	}

	ServerConfig struct {
		Host            string
		Port            int
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres (lib/pq) | pgx
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		QueryTimeout  time.Duration
	}

	RedisConfig struct {
		Addr     string // empty: revocations are kept in memory
		Password string
		DB       int
	}

	LLMConfig struct {
		APIKey        string
		BaseURL       string
		Model         string
		MaxToolRounds int
	}

	JobsConfig struct {
		Enabled             bool
		ReminderInterval    time.Duration
		ReminderWindow      time.Duration
		InviteSweepInterval time.Duration
		ReminderConcurrency int
	}
)

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c DatabaseConfig) DriverName() string {
	if c.Engine == "pgx" {
		return "pgx"
	}
	return "postgres"
}

// NewConfig loads the configuration from the environment, after loading `config/.env.<env>` if it exists.
// Environment variables are prefixed with the env name: DEV_DATABASE_HOST, PROD_SECRET_KEY...
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("test_mode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:             env,
		Build:           v.GetString("build"),
		AppName:         v.GetString("app_name"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("test_mode"),
		SecretKey:       v.GetString("secret_key"),
		FrontendBaseURL: strings.TrimRight(v.GetString("frontend_base_url"), "/"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("app_name"),
			Address: v.GetString("default_from_email"),
		},
		LogLevel:       v.GetString("log_level"),
		ErrorTracker:   strings.ToLower(v.GetString("error_tracker")),
		RollbarToken:   v.GetString("rollbar_token"),
		SentryDSN:      v.GetString("sentry_dsn"),
		SendgridAPIKey: v.GetString("sendgrid_api_key"),

		JWTExpirationDelta:        v.GetDuration("jwt_expiration_delta"),
		JWTRefreshExpirationDelta: v.GetDuration("jwt_refresh_expiration_delta"),
		InviteTTL:                 v.GetDuration("invite_ttl"),

		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			DebugHost:       v.GetString("server.debug_host"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.admin_user"),
			AdminPassword: v.GetString("database.admin_password"),
			DisableTLS:    v.GetBool("database.disable_tls"),
			QueryTimeout:  v.GetDuration("database.query_timeout"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		LLM: LLMConfig{
			APIKey:        v.GetString("llm.api_key"),
			BaseURL:       v.GetString("llm.base_url"),
			Model:         v.GetString("llm.model"),
			MaxToolRounds: v.GetInt("llm.max_tool_rounds"),
		},
		Jobs: JobsConfig{
			Enabled:             v.GetBool("jobs.enabled"),
			ReminderInterval:    v.GetDuration("jobs.reminder_interval"),
			ReminderWindow:      v.GetDuration("jobs.reminder_window"),
			InviteSweepInterval: v.GetDuration("jobs.invite_sweep_interval"),
			ReminderConcurrency: v.GetInt("jobs.reminder_concurrency"),
		},
	}
	if !conf.Debug && conf.Env == "PROD" && conf.SecretKey == defaultSecretKey {
		log.Fatal(fmt.Sprintf("config: %s_SECRET_KEY must be set in production", env))
	}
	return conf
}

const defaultSecretKey = "1n$ecure-dev-key!change-me(escola)+2k9#b7x@q4"

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("build", "dev")
	v.SetDefault("app_name", "Escola")
	v.SetDefault("debug", true)
	v.SetDefault("test_mode", false)
	v.SetDefault("secret_key", defaultSecretKey)
	v.SetDefault("frontend_base_url", "http://localhost:5173")
	v.SetDefault("default_from_email", "noreply@localhost")
	v.SetDefault("log_level", "info")
	v.SetDefault("error_tracker", "none")
	v.SetDefault("rollbar_token", "")
	v.SetDefault("sentry_dsn", "")
	v.SetDefault("sendgrid_api_key", "")

	v.SetDefault("jwt_expiration_delta", 7*24*time.Hour)
	v.SetDefault("jwt_refresh_expiration_delta", 30*24*time.Hour)
	v.SetDefault("invite_ttl", 7*24*time.Hour)

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.debug_host", "localhost:4000")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "escola")
	v.SetDefault("database.user", "escola")
	v.SetDefault("database.password", "escola")
	v.SetDefault("database.admin_user", "postgres")
	v.SetDefault("database.admin_password", "postgres")
	v.SetDefault("database.disable_tls", true)
	v.SetDefault("database.query_timeout", 5*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.max_tool_rounds", 5)

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.reminder_interval", 10*time.Minute)
	v.SetDefault("jobs.reminder_window", 24*time.Hour)
	v.SetDefault("jobs.invite_sweep_interval", time.Hour)
	v.SetDefault("jobs.reminder_concurrency", 8)
}

// NewTestConfig returns a Config usable in tests without touching the environment.
func NewTestConfig() *Config {
	v := viper.New()
	setDefaults(v)
	return &Config{
		Env:                       "TEST",
		Build:                     "test",
		AppName:                   v.GetString("app_name"),
		TestMode:                  true,
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://escola.test",
		DefaultFromEmail:          mail.Address{Name: "Escola", Address: "noreply@escola.test"},
		LogLevel:                  "debug",
		ErrorTracker:              "none",
		JWTExpirationDelta:        v.GetDuration("jwt_expiration_delta"),
		JWTRefreshExpirationDelta: v.GetDuration("jwt_refresh_expiration_delta"),
		InviteTTL:                 v.GetDuration("invite_ttl"),
		LLM:                       LLMConfig{Model: "test-model", MaxToolRounds: 5},
		Jobs: JobsConfig{
			ReminderWindow:      v.GetDuration("jobs.reminder_window"),
			ReminderConcurrency: 2,
		},
	}
}
