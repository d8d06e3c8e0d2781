// Package config manages application configuration from a YAML file,
// environment variables and default values.
package config

import (
	"errors"
	"time"
	_ "time/tzdata" // delivery.timezone must resolve on hosts without zoneinfo

	"github.com/edgard/medtechbot/internal/conversation"
	"github.com/edgard/medtechbot/internal/domain"
)

// ErrConfiguration wraps every error returned while loading or validating configuration.
var ErrConfiguration = errors.New("configuration error")

// Config is the complete application configuration. Values can be set in
// config.yaml or via BOT_* environment variables (e.g. BOT_TELEGRAM_TOKEN).
type Config struct {
	Log          LogConfig          `mapstructure:"log"`
	Telegram     TelegramConfig     `mapstructure:"telegram"`
	Destinations DestinationsConfig `mapstructure:"destinations"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	State        StateConfig        `mapstructure:"state"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Delivery     DeliveryConfig     `mapstructure:"delivery"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Messages     MessagesConfig     `mapstructure:"messages"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the bot token and polling behaviour.
type TelegramConfig struct {
	Token              string          `mapstructure:"token"                validate:"required"`
	DropPendingUpdates bool            `mapstructure:"drop_pending_updates"`
	Commands           []CommandConfig `mapstructure:"commands"             validate:"dive"`
}

// CommandConfig is a command advertised in the Telegram client menu.
type CommandConfig struct {
	Command     string `mapstructure:"command"     validate:"required"`
	Description string `mapstructure:"description" validate:"required"`
}

// DestinationsConfig binds each flow to the chat that receives its requests.
// Numeric values are chat ids; "@name" values are public channel usernames.
type DestinationsConfig struct {
	Urgent string `mapstructure:"urgent" validate:"required"`
	Repair string `mapstructure:"repair" validate:"required"`
	Rental string `mapstructure:"rental" validate:"required"`
	Audit  string `mapstructure:"audit"  validate:"required"`
}

// ByFlow returns the destinations keyed by flow kind.
func (d DestinationsConfig) ByFlow() map[domain.FlowKind]string {
	return map[domain.FlowKind]string{
		domain.FlowUrgent: d.Urgent,
		domain.FlowRepair: d.Repair,
		domain.FlowRental: d.Rental,
		domain.FlowAudit:  d.Audit,
	}
}

// HTTPConfig configures the liveness server.
type HTTPConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Port            int           `mapstructure:"port"             validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s,max=1m"`
}

// StateConfig selects where conversation state lives.
type StateConfig struct {
	Backend string      `mapstructure:"backend" validate:"required,oneof=memory redis"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig is used when State.Backend is "redis".
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"       validate:"min=0,max=15"`
	Prefix   string `mapstructure:"prefix"`
}

// DatabaseConfig configures the request journal.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=sqlite postgres"`
	DSN    string `mapstructure:"dsn"    validate:"required"`
}

// DeliveryConfig controls record timestamps and redelivery of failed requests.
type DeliveryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1,max=100"`
	BatchSize   int           `mapstructure:"batch_size"   validate:"min=1,max=500"`
	RetryAfter  time.Duration `mapstructure:"retry_after"  validate:"min=0"`
	Timezone    string        `mapstructure:"timezone"     validate:"omitempty,timezone"`
	// SendTimeout bounds a single channel send.
	SendTimeout time.Duration `mapstructure:"send_timeout" validate:"min=1s,max=5m"`
	// BreakerMaxFailures consecutive failures to one destination pause sends to
	// it for BreakerResetInterval. Zero disables the breaker.
	BreakerMaxFailures   int           `mapstructure:"breaker_max_failures"   validate:"min=0"`
	BreakerResetInterval time.Duration `mapstructure:"breaker_reset_interval" validate:"min=0"`
}

// Location returns the configured time zone, or time.Local when unset.
func (d DeliveryConfig) Location() *time.Location {
	if d.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SchedulerConfig lists scheduled tasks by name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig enables a task and sets its cron schedule (seconds field optional).
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// MessagesConfig holds user-facing texts that are not tied to a step.
type MessagesConfig struct {
	Welcome        string `mapstructure:"welcome"          validate:"required"`
	ChooseService  string `mapstructure:"choose_service"   validate:"required"`
	ChooseFromMenu string `mapstructure:"choose_from_menu" validate:"required"`
	Cancelled      string `mapstructure:"cancelled"        validate:"required"`
	TaxIDInvalid   string `mapstructure:"tax_id_invalid"   validate:"required"`
	GeneralError   string `mapstructure:"general_error"    validate:"required"`
}

// Conversation returns the subset of messages used by the conversation engine.
func (m MessagesConfig) Conversation() conversation.Messages {
	return conversation.Messages{
		Welcome:        m.Welcome,
		ChooseService:  m.ChooseService,
		ChooseFromMenu: m.ChooseFromMenu,
		Cancelled:      m.Cancelled,
		TaxIDInvalid:   m.TaxIDInvalid,
	}
}
