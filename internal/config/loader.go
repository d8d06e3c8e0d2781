package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "BOT"

// envAliases are extra environment variables accepted for keys, in priority order
// after the BOT_* name. They keep existing deployments working unchanged.
var envAliases = map[string][]string{
	"telegram.token":       {"TELEGRAM_BOT_TOKEN"},
	"http.port":            {"PORT"},
	"destinations.urgent":  {"CHANNEL_URGENT"},
	"destinations.repair":  {"CHANNEL_REPAIR"},
	"destinations.rental":  {"CHANNEL_RENTAL"},
	"destinations.audit":   {"CHANNEL_AUDIT"},
	"state.redis.password": {"REDIS_PASSWORD"},
}

// Load reads configuration in increasing priority from:
//  1. default values
//  2. the YAML file at path (or ./config.yaml when path is empty; optional then)
//  3. a .env file in the working directory (never overriding the real environment)
//  4. BOT_* environment variables and the aliases above
//
// The result is validated; every error wraps ErrConfiguration.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: failed to load .env file: %v", ErrConfiguration, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, aliases := range envAliases {
		names := append([]string{envName(key)}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("%w: failed to bind environment for %s: %v", ErrConfiguration, key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: failed to read config file: %v", ErrConfiguration, err)
		}
		// No config file is fine: defaults and environment may be enough.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// setDefaults sets default values for optional configuration parameters.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.json", DefaultLogJSON)

	v.SetDefault("telegram.drop_pending_updates", DefaultDropPendingUpdates)
	v.SetDefault("telegram.commands", DefaultCommands)

	v.SetDefault("http.enabled", DefaultHTTPEnabled)
	v.SetDefault("http.port", DefaultHTTPPort)
	v.SetDefault("http.shutdown_timeout", DefaultHTTPShutdownTimeout)

	v.SetDefault("state.backend", DefaultStateBackend)
	v.SetDefault("state.redis.addr", DefaultRedisAddr)
	v.SetDefault("state.redis.db", 0)
	v.SetDefault("state.redis.prefix", DefaultRedisPrefix)

	v.SetDefault("database.driver", DefaultDatabaseDriver)
	v.SetDefault("database.dsn", DefaultDatabaseDSN)

	v.SetDefault("delivery.max_attempts", DefaultDeliveryMaxAttempts)
	v.SetDefault("delivery.batch_size", DefaultDeliveryBatchSize)
	v.SetDefault("delivery.retry_after", DefaultDeliveryRetryAfter)
	v.SetDefault("delivery.timezone", "")
	v.SetDefault("delivery.send_timeout", DefaultDeliverySendTimeout)
	v.SetDefault("delivery.breaker_max_failures", DefaultDeliveryBreakerMaxFailures)
	v.SetDefault("delivery.breaker_reset_interval", DefaultDeliveryBreakerResetInterval)

	for name, task := range DefaultTasks {
		v.SetDefault("scheduler.tasks."+name+".enabled", task.Enabled)
		v.SetDefault("scheduler.tasks."+name+".schedule", task.Schedule)
	}

	v.SetDefault("messages.welcome", DefaultMessages.Welcome)
	v.SetDefault("messages.choose_service", DefaultMessages.ChooseService)
	v.SetDefault("messages.choose_from_menu", DefaultMessages.ChooseFromMenu)
	v.SetDefault("messages.cancelled", DefaultMessages.Cancelled)
	v.SetDefault("messages.tax_id_invalid", DefaultMessages.TaxIDInvalid)
	v.SetDefault("messages.general_error", DefaultMessages.GeneralError)
}
