package router

import (
	"strings"

	"github.com/edgard/medtechbot/internal/domain"
	"github.com/edgard/medtechbot/internal/fields"
)

const (
	notSpecified = "Не указано"

	timeLayout = "2006-01-02 15:04"
)

// layout lists the record sections a flow prints after the requester line.
type layout struct {
	header    string
	purpose   bool
	equipment bool
	problem   bool
}

var layouts = map[domain.FlowKind]layout{
	domain.FlowUrgent: {header: "🚨 СРОЧНАЯ ПОДМЕНА", equipment: true, problem: true},
	domain.FlowRepair: {header: "🔧 ЗАЯВКА НА РЕМОНТ", equipment: true, problem: true},
	domain.FlowRental: {header: "🧪 ЗАЯВКА НА АРЕНДУ", purpose: true, equipment: true},
	domain.FlowAudit:  {header: "📊 ЗАЯВКА НА АУДИТ"},
}

// Format renders req as the plain-text record sent to the destination channel.
// The timestamp is printed in req.SubmittedAt's location.
func Format(req domain.CompletedRequest) string {
	l, ok := layouts[req.Flow]
	if !ok {
		l = layout{header: "📨 ЗАЯВКА (" + req.Flow.String() + ")", equipment: true, problem: true}
	}

	var b strings.Builder
	line := func(label, value string) {
		b.WriteString(label)
		b.WriteString(value)
		b.WriteByte('\n')
	}

	b.WriteString(l.header)
	b.WriteByte('\n')
	line("👤 Пользователь: ", requester(req))
	if l.purpose {
		line("🎯 Цель: ", orDefault(req.Value(domain.FieldPurpose), notSpecified))
	}
	if l.equipment {
		line("📋 Оборудование: ", orDefault(req.Value(domain.FieldEquipmentType), notSpecified)+
			" / "+orDefault(req.Value(domain.FieldEquipmentModel), notSpecified))
	}
	if l.problem {
		line("📝 Проблема: ", orDefault(req.Value(domain.FieldProblem), notSpecified))
	}
	line("📞 Телефон: ", orDefault(req.Value(domain.FieldPhone), fields.NotProvided))
	line("📧 Email: ", orDefault(req.Value(domain.FieldEmail), fields.NotProvided))
	line("🔢 ИНН: ", orDefault(req.Value(domain.FieldTaxID), fields.NotProvided))
	b.WriteString("🕒 Время: ")
	b.WriteString(req.SubmittedAt.Format(timeLayout))
	return b.String()
}

func requester(req domain.CompletedRequest) string {
	handle := fields.NotProvided
	if h := strings.TrimPrefix(strings.TrimSpace(req.RequesterHandle), "@"); h != "" {
		handle = "@" + h
	}
	name := orDefault(strings.TrimSpace(req.RequesterDisplayName), notSpecified)
	return handle + " (" + name + ")"
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
