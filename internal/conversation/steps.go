package conversation

import (
	"errors"
	"fmt"

	"github.com/edgard/medtechbot/internal/domain"
	"github.com/edgard/medtechbot/internal/fields"
)

// StepID identifies a step within a flow.
type StepID string

const (
	// StepMainMenu is the idle step shared by all users without an active flow.
	StepMainMenu      StepID = "main_menu"
	StepEquipmentType StepID = "equipment_type"
	StepModel         StepID = "equipment_model"
	StepProblem       StepID = "problem_description"
	StepPhone         StepID = "phone"
	StepEmail         StepID = "email"
	StepTaxID         StepID = "tax_id"
	StepPurpose       StepID = "purpose"
)

// InputKind selects how the engine interprets input at a step.
type InputKind int

const (
	// InputText stores the raw text verbatim.
	InputText InputKind = iota
	// InputChoice offers a menu but also accepts free text, stored verbatim.
	InputChoice
	// InputEquipment classifies the text into an urgent-substitution category.
	InputEquipment
	// InputTaxID validates the text as a tax identifier, honouring the skip label.
	InputTaxID
)

func (k InputKind) String() string {
	switch k {
	case InputText:
		return "text"
	case InputChoice:
		return "choice"
	case InputEquipment:
		return "equipment"
	case InputTaxID:
		return "tax_id"
	default:
		return fmt.Sprintf("input(%d)", int(k))
	}
}

// StepDef is the static description of one step of a flow.
type StepDef struct {
	Flow  domain.FlowKind
	ID    StepID
	Field domain.Field
	Input InputKind

	// Intro is shown when the flow is entered at this step; only first steps have one.
	Intro string
	// Prompt is shown when the step is reached by advancing or by going back.
	Prompt string
	Menu   [][]string

	// Next is empty on the terminal step. Back is StepMainMenu on the first step.
	Next StepID
	Back StepID

	// Redirect is the flow offered when equipment input is declined.
	Redirect domain.FlowKind
}

// Terminal reports whether completing this step completes the flow.
func (d StepDef) Terminal() bool {
	return d.Next == ""
}

// FlowDef describes one flow: its main-menu label, ordered steps and confirmation.
type FlowDef struct {
	Kind         domain.FlowKind
	Label        string
	Steps        []StepDef
	Confirmation string
}

var skipMenu = [][]string{{fields.SkipLabel}, {LabelBack}}

// linear links steps in declaration order: each step advances to the one after
// it and goes back to the one before it; the first step goes back to the main menu.
func linear(kind domain.FlowKind, steps ...StepDef) []StepDef {
	out := make([]StepDef, len(steps))
	for i, step := range steps {
		step.Flow = kind
		step.Back = StepMainMenu
		if i > 0 {
			step.Back = steps[i-1].ID
		}
		step.Next = ""
		if i < len(steps)-1 {
			step.Next = steps[i+1].ID
		}
		out[i] = step
	}
	return out
}

func contactSteps() []StepDef {
	return []StepDef{
		{ID: StepPhone, Field: domain.FieldPhone, Input: InputText, Prompt: promptPhone, Menu: backOnlyMenu},
		{ID: StepEmail, Field: domain.FieldEmail, Input: InputText, Prompt: promptEmail, Menu: backOnlyMenu},
		{ID: StepTaxID, Field: domain.FieldTaxID, Input: InputTaxID, Prompt: promptTaxID, Menu: skipMenu},
	}
}

// DefaultFlows returns the four request flows offered by the bot.
func DefaultFlows() []FlowDef {
	urgent := append([]StepDef{
		{
			ID: StepEquipmentType, Field: domain.FieldEquipmentType, Input: InputEquipment,
			Intro: introUrgent, Prompt: promptEquipmentType, Menu: urgentTypeMenu,
			Redirect: domain.FlowRepair,
		},
		{ID: StepModel, Field: domain.FieldEquipmentModel, Input: InputText, Prompt: promptModel, Menu: backOnlyMenu},
		{ID: StepProblem, Field: domain.FieldProblem, Input: InputText, Prompt: promptProblem, Menu: backOnlyMenu},
	}, contactSteps()...)

	repair := append([]StepDef{
		{
			ID: StepEquipmentType, Field: domain.FieldEquipmentType, Input: InputChoice,
			Intro: introRepair, Prompt: promptEquipmentType, Menu: repairTypeMenu,
		},
		{ID: StepModel, Field: domain.FieldEquipmentModel, Input: InputText, Prompt: promptModel, Menu: backOnlyMenu},
		{ID: StepProblem, Field: domain.FieldProblem, Input: InputText, Prompt: promptProblem, Menu: backOnlyMenu},
	}, contactSteps()...)

	rental := append([]StepDef{
		{
			ID: StepPurpose, Field: domain.FieldPurpose, Input: InputChoice,
			Intro: introRental, Prompt: promptPurpose, Menu: rentalPurposeMenu,
		},
		{ID: StepEquipmentType, Field: domain.FieldEquipmentType, Input: InputText, Prompt: promptEquipmentKind, Menu: backOnlyMenu},
		{ID: StepModel, Field: domain.FieldEquipmentModel, Input: InputText, Prompt: promptModel, Menu: backOnlyMenu},
	}, contactSteps()...)

	audit := contactSteps()
	audit[0].Intro = introAudit

	return []FlowDef{
		{Kind: domain.FlowUrgent, Label: LabelUrgent, Steps: linear(domain.FlowUrgent, urgent...), Confirmation: confirmUrgent},
		{Kind: domain.FlowRepair, Label: LabelRepair, Steps: linear(domain.FlowRepair, repair...), Confirmation: confirmRepair},
		{Kind: domain.FlowRental, Label: LabelRental, Steps: linear(domain.FlowRental, rental...), Confirmation: confirmRental},
		{Kind: domain.FlowAudit, Label: LabelAudit, Steps: linear(domain.FlowAudit, audit...), Confirmation: confirmAudit},
	}
}

// DefaultMainMenu returns the main-menu keyboard layout.
func DefaultMainMenu() [][]string {
	return mainMenuLayout
}

// ErrInvalidFlowTable is returned by NewFlowTable when the definitions are inconsistent.
var ErrInvalidFlowTable = errors.New("invalid flow table")

type stepKey struct {
	flow domain.FlowKind
	step StepID
}

// FlowTable is the read-only lookup from (flow, step) to its definition.
// It is safe for concurrent use once built.
type FlowTable struct {
	mainMenu [][]string
	flows    map[domain.FlowKind]FlowDef
	steps    map[stepKey]StepDef
	labels   map[string]domain.FlowKind
	fields   map[domain.FlowKind]map[domain.Field]bool
}

// NewFlowTable indexes and validates flow definitions. Every main-menu label must
// enter a flow, every Next/Back target must exist within its flow, every step
// must offer the Back label and each flow must end in exactly one terminal step.
func NewFlowTable(mainMenu [][]string, flows ...FlowDef) (*FlowTable, error) {
	t := &FlowTable{
		mainMenu: mainMenu,
		flows:    make(map[domain.FlowKind]FlowDef, len(flows)),
		steps:    make(map[stepKey]StepDef),
		labels:   make(map[string]domain.FlowKind, len(flows)),
		fields:   make(map[domain.FlowKind]map[domain.Field]bool, len(flows)),
	}

	for _, flow := range flows {
		if !flow.Kind.Valid() {
			return nil, fmt.Errorf("%w: unknown flow kind %q", ErrInvalidFlowTable, flow.Kind)
		}
		if _, dup := t.flows[flow.Kind]; dup {
			return nil, fmt.Errorf("%w: flow %s defined twice", ErrInvalidFlowTable, flow.Kind)
		}
		if len(flow.Steps) == 0 {
			return nil, fmt.Errorf("%w: flow %s has no steps", ErrInvalidFlowTable, flow.Kind)
		}
		if flow.Label == "" || flow.Label == LabelBack {
			return nil, fmt.Errorf("%w: flow %s has an unusable label %q", ErrInvalidFlowTable, flow.Kind, flow.Label)
		}
		t.flows[flow.Kind] = flow
		t.labels[flow.Label] = flow.Kind
		t.fields[flow.Kind] = make(map[domain.Field]bool, len(flow.Steps))

		for _, step := range flow.Steps {
			if step.Flow != flow.Kind {
				return nil, fmt.Errorf("%w: step %s is declared in flow %s but belongs to %s",
					ErrInvalidFlowTable, step.ID, flow.Kind, step.Flow)
			}
			key := stepKey{flow.Kind, step.ID}
			if _, dup := t.steps[key]; dup {
				return nil, fmt.Errorf("%w: step %s/%s defined twice", ErrInvalidFlowTable, flow.Kind, step.ID)
			}
			if step.Field == "" {
				return nil, fmt.Errorf("%w: step %s/%s collects no field", ErrInvalidFlowTable, flow.Kind, step.ID)
			}
			if !menuOffers(step.Menu, LabelBack) {
				return nil, fmt.Errorf("%w: step %s/%s does not offer %q", ErrInvalidFlowTable, flow.Kind, step.ID, LabelBack)
			}
			if step.Input == InputTaxID && !menuOffers(step.Menu, fields.SkipLabel) {
				return nil, fmt.Errorf("%w: step %s/%s does not offer %q", ErrInvalidFlowTable, flow.Kind, step.ID, fields.SkipLabel)
			}
			t.steps[key] = step
			t.fields[flow.Kind][step.Field] = true
		}
	}

	for _, flow := range t.flows {
		first := flow.Steps[0]
		if first.Back != StepMainMenu {
			return nil, fmt.Errorf("%w: first step of %s must go back to the main menu", ErrInvalidFlowTable, flow.Kind)
		}
		if first.Intro == "" {
			return nil, fmt.Errorf("%w: first step of %s has no intro", ErrInvalidFlowTable, flow.Kind)
		}
		terminals := 0
		for _, step := range flow.Steps {
			if step.Terminal() {
				terminals++
			} else if _, ok := t.steps[stepKey{flow.Kind, step.Next}]; !ok {
				return nil, fmt.Errorf("%w: step %s/%s advances to unknown step %s", ErrInvalidFlowTable, flow.Kind, step.ID, step.Next)
			}
			if step.Back != StepMainMenu {
				if _, ok := t.steps[stepKey{flow.Kind, step.Back}]; !ok {
					return nil, fmt.Errorf("%w: step %s/%s goes back to unknown step %s", ErrInvalidFlowTable, flow.Kind, step.ID, step.Back)
				}
			}
			if step.Redirect != domain.FlowNone {
				if _, ok := t.flows[step.Redirect]; !ok {
					return nil, fmt.Errorf("%w: step %s/%s redirects to undefined flow %s", ErrInvalidFlowTable, flow.Kind, step.ID, step.Redirect)
				}
			}
		}
		if terminals != 1 {
			return nil, fmt.Errorf("%w: flow %s has %d terminal steps", ErrInvalidFlowTable, flow.Kind, terminals)
		}
	}

	for _, row := range mainMenu {
		for _, label := range row {
			if _, ok := t.labels[label]; !ok {
				return nil, fmt.Errorf("%w: main menu label %q enters no flow", ErrInvalidFlowTable, label)
			}
		}
	}

	return t, nil
}

// MustDefaultFlowTable builds the table from DefaultFlows and panics if it is inconsistent.
func MustDefaultFlowTable() *FlowTable {
	t, err := NewFlowTable(DefaultMainMenu(), DefaultFlows()...)
	if err != nil {
		panic(fmt.Sprintf("default flow table: %v", err))
	}
	return t
}

// MainMenu returns the main-menu keyboard layout.
func (t *FlowTable) MainMenu() [][]string {
	return t.mainMenu
}

// Flow returns the definition of kind.
func (t *FlowTable) Flow(kind domain.FlowKind) (FlowDef, bool) {
	flow, ok := t.flows[kind]
	return flow, ok
}

// Step returns the definition of step id in flow kind.
func (t *FlowTable) Step(kind domain.FlowKind, id StepID) (StepDef, bool) {
	step, ok := t.steps[stepKey{kind, id}]
	return step, ok
}

// First returns the first data-collection step of kind.
func (t *FlowTable) First(kind domain.FlowKind) (StepDef, bool) {
	flow, ok := t.flows[kind]
	if !ok {
		return StepDef{}, false
	}
	return flow.Steps[0], true
}

// FlowByLabel resolves a main-menu label to the flow it enters.
func (t *FlowTable) FlowByLabel(label string) (domain.FlowKind, bool) {
	kind, ok := t.labels[label]
	return kind, ok
}

// Collects reports whether field belongs to the step set of kind.
func (t *FlowTable) Collects(kind domain.FlowKind, field domain.Field) bool {
	return t.fields[kind][field]
}

func menuOffers(menu [][]string, label string) bool {
	for _, row := range menu {
		for _, l := range row {
			if l == label {
				return true
			}
		}
	}
	return false
}
