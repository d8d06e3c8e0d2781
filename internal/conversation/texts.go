package conversation

// Reserved menu labels.
const (
	LabelBack  = "Назад"
	LabelOther = "Другое"
	LabelYes   = "Да"
	LabelNo    = "Нет"
)

// Main-menu entry labels.
const (
	LabelUrgent = "⚡️ СРОЧНАЯ ПОДМЕНА ОБОРУДОВАНИЯ"
	LabelRepair = "🔧 РЕМОНТ"
	LabelRental = "🧪 АРЕНДА ОБОРУДОВАНИЯ"
	LabelAudit  = "📊 БЕСПЛАТНЫЙ АУДИТ ОБОРУДОВАНИЯ"
)

const (
	promptEquipmentType  = "Выберите тип оборудования:"
	promptEquipmentKind  = "Введите тип оборудования:"
	promptEquipmentOther = "Укажите, какое именно оборудование вас интересует:"
	promptModel          = "Введите модель аппарата:"
	promptProblem        = "Опишите проблему с оборудованием:"
	promptPhone          = "Введите ваш телефон для связи:"
	promptEmail          = "Введите ваш email:"
	promptTaxID          = "Введите ИНН вашей организации (необязательно):"
	promptPurpose        = "Выберите цель аренды:"

	// Formatted with the HTML-escaped user input.
	urgentDeclineFormat = "К сожалению, мы не предоставляем срочную подмену для <b>%s</b>. " +
		"Но можем помочь с ремонтом или найти запчасти.\n\nХотите перейти в раздел ремонта?"
)

const (
	introUrgent = "⚡️ <b>СРОЧНАЯ ПОДМЕНА ОБОРУДОВАНИЯ</b>\n\n" +
		"Мы предоставляем подмену на время ремонта:\n• УЗИ\n• ИВЛ\n• Эндоскопия\n• НДА\n\n" +
		"Выберите тип оборудования:"
	introRepair = "🔧 <b>РЕМОНТ ОБОРУДОВАНИЯ</b>\n\n" +
		"Мы поможем с ремонтом любого медицинского оборудования:\n" +
		"• КТ, МРТ, Рентген\n• УЗИ, ИВЛ, Эндоскопия\n• НДА и другое оборудование\n\n" +
		"Выберите тип оборудования:"
	introRental = "🧪 <b>АРЕНДА ОБОРУДОВАНИЯ</b>\n\n" +
		"Аренда оборудования для:\n• Тестирования нового направления\n• Для лицензии\n• Временной подмены\n\n" +
		"Выберите цель аренды:"
	introAudit = "📊 <b>БЕСПЛАТНЫЙ АУДИТ ОБОРУДОВАНИЯ</b>\n\n" +
		"Мы проведем анализ:\n• Рисков простоя оборудования\n• Планов по замене\n• Оптимизации парка\n\n" +
		"Введите ваш телефон для связи:"
)

const (
	confirmUrgent = "✅ <b>Заявка принята!</b>\n\n📞 Консультант свяжется с вами в течение 15 минут " +
		"для подбора модели и расчета персональных условий.\n\nДля новой заявки отправьте /start"
	confirmRepair = "✅ <b>Заявка принята!</b>\n\n📞 Консультант свяжется с вами в течение 15 минут " +
		"для уточнения деталей.\n\nДля новой заявки отправьте /start"
	confirmRental = "✅ <b>Заявка принята!</b>\n\n📞 Консультант свяжется с вами в течение 15 минут " +
		"для подбора оборудования.\n\nДля новой заявки отправьте /start"
	confirmAudit = "✅ <b>Заявка принята!</b>\n\n📞 Консультант свяжется с вами в течение 15 минут " +
		"для проведения аудита.\n\nДля новой заявки отправьте /start"
)

var (
	mainMenuLayout = [][]string{
		{LabelUrgent},
		{LabelRepair, LabelRental},
		{LabelAudit},
	}
	urgentTypeMenu = [][]string{
		{"УЗИ", "ИВЛ"},
		{"Эндоскопия", "НДА"},
		{LabelOther, LabelBack},
	}
	repairTypeMenu = [][]string{
		{"КТ", "МРТ", "Рентген"},
		{"УЗИ", "ИВЛ", "Эндоскопия"},
		{"НДА", "Другое оборудование"},
		{LabelBack},
	}
	rentalPurposeMenu = [][]string{
		{"Тестирование нового направления"},
		{"Для лицензии"},
		{"Временная подмена"},
		{LabelBack},
	}
	backOnlyMenu = [][]string{{LabelBack}}
	redirectMenu = [][]string{{LabelYes, LabelNo}, {LabelBack}}
)
