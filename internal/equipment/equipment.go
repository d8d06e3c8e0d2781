// Package equipment maps free-text equipment names to the categories eligible
// for urgent substitution.
package equipment

import "strings"

// Category is a canonical equipment category. The zero value is Unrecognized.
type Category string

const (
	Unrecognized          Category = ""
	Ultrasound            Category = "узи"
	Ventilator            Category = "ивл"
	Endoscopy             Category = "эндоскопия"
	AnesthesiaRespiratory Category = "нда"
)

// Display returns the upper-cased category name used in prompts and records.
func (c Category) Display() string {
	return strings.ToUpper(string(c))
}

type synonymSet struct {
	category Category
	synonyms []string
}

// Checked in order; the first category with a matching synonym wins.
var catalogue = []synonymSet{
	{Ultrasound, []string{"узи", "ультразвук", "ультразвуковой"}},
	{Ventilator, []string{"ивл", "искусственная вентиляция легких", "вентиляция легких"}},
	{Endoscopy, []string{"эндоскопия", "эндоскоп", "гастроскоп", "бронхоскоп", "колоноскоп"}},
	{AnesthesiaRespiratory, []string{"нда", "наркозно дыхательный аппарат", "анестезиологический", "наркозный аппарат"}},
}

// Categories returns the known categories in matching order.
func Categories() []Category {
	out := make([]Category, 0, len(catalogue))
	for _, set := range catalogue {
		out = append(out, set.category)
	}
	return out
}

// Classify lower-cases and trims input and returns the first category whose
// synonym occurs in it as a substring. ok is false for unrecognized input.
func Classify(input string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return Unrecognized, false
	}
	for _, set := range catalogue {
		for _, synonym := range set.synonyms {
			if strings.Contains(normalized, synonym) {
				return set.category, true
			}
		}
	}
	return Unrecognized, false
}
