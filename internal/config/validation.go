package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the rules that span several sections.
// Missing credentials or destinations are fatal: the bot must not start without them.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	if c.State.Backend == "redis" && c.State.Redis.Addr == "" {
		return fmt.Errorf("%w: state.redis.addr is required when state.backend is redis", ErrConfiguration)
	}

	seen := make(map[string]string, 4)
	for kind, dest := range c.Destinations.ByFlow() {
		if other, dup := seen[dest]; dup {
			slog.Warn("Two flows share a destination", "destination", dest, "flows", []string{other, kind.String()})
		}
		seen[dest] = kind.String()
	}
	return nil
}

// LogValue redacts secrets so the config can be logged.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("log_level", c.Log.Level),
		slog.Bool("log_json", c.Log.JSON),
		slog.String("telegram_token", redact(c.Telegram.Token)),
		slog.Any("destinations", c.Destinations.ByFlow()),
		slog.Bool("http_enabled", c.HTTP.Enabled),
		slog.Int("http_port", c.HTTP.Port),
		slog.String("state_backend", c.State.Backend),
		slog.String("database_driver", c.Database.Driver),
		slog.Int("delivery_max_attempts", c.Delivery.MaxAttempts),
		slog.Int("scheduled_tasks", len(c.Scheduler.Tasks)),
	)
}

func redact(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "***"
}
