package config

import "time"

// Default values for configuration
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = false

	DefaultHTTPEnabled         = true
	DefaultHTTPPort            = 5000
	DefaultHTTPShutdownTimeout = 5 * time.Second

	DefaultStateBackend = "memory"
	DefaultRedisAddr    = "localhost:6379"
	DefaultRedisPrefix  = "medtechbot:conversation:"

	DefaultDatabaseDriver = "sqlite"
	DefaultDatabaseDSN    = "medtechbot.db"

	DefaultDeliveryMaxAttempts          = 5
	DefaultDeliveryBatchSize            = 50
	DefaultDeliveryRetryAfter           = time.Minute
	DefaultDeliverySendTimeout          = 10 * time.Second
	DefaultDeliveryBreakerMaxFailures   = 5
	DefaultDeliveryBreakerResetInterval = time.Minute

	DefaultDropPendingUpdates = false
)

// DefaultMessages are the stock Russian texts.
var DefaultMessages = MessagesConfig{
	Welcome: "🏥 <b>Аварийная МедТехника</b>\n\n" +
		"⚡️ Срочная подмена оборудования\n" +
		"🔧 Ремонт любой сложности\n" +
		"🧪 Аренда для развития клиники\n" +
		"📊 Бесплатный аудит оборудования\n\n" +
		"Решаем проблемы с оборудованием за 24 часа!\n\n" +
		"Выберите нужную услугу:",
	ChooseService:  "Выберите услугу:",
	ChooseFromMenu: "Пожалуйста, выберите вариант из меню:",
	Cancelled:      "Диалог прерван. Для начала отправьте /start",
	TaxIDInvalid:   "ИНН должен содержать 10 или 12 цифр. Введите корректный ИНН или нажмите \"Пропустить\":",
	GeneralError:   "❌ Произошла ошибка. Попробуйте ещё раз или отправьте /start",
}

// DefaultCommands are advertised in the Telegram client menu.
var DefaultCommands = []CommandConfig{
	{Command: "start", Description: "Главное меню"},
	{Command: "cancel", Description: "Прервать заявку"},
}

// DefaultTasks are the scheduled tasks enabled out of the box.
var DefaultTasks = map[string]TaskConfig{
	"request_redelivery": {Enabled: true, Schedule: "0 */5 * * * *"},
	"sql_maintenance":    {Enabled: true, Schedule: "0 0 4 * * *"},
}
