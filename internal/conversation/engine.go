// Package conversation implements the guided request-collection state machine:
// per-user state, the static step table and the engine that applies inputs to it.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edgard/medtechbot/internal/domain"
	"github.com/edgard/medtechbot/internal/equipment"
	"github.com/edgard/medtechbot/internal/fields"
	"github.com/edgard/medtechbot/internal/metrics"
)

// Submitter delivers a completed request. It is called without any per-user lock held.
type Submitter interface {
	Submit(ctx context.Context, req domain.CompletedRequest) domain.DispatchResult
}

// Inbound is a text message received from a user.
type Inbound struct {
	UserID      int64
	Text        string
	Handle      string
	DisplayName string
}

// Action is what the transport should send back to the user.
type Action struct {
	Text string
	HTML bool
	// Menu is a keyboard layout; nil keeps whatever the client shows.
	Menu [][]string
	// RemoveMenu asks the client to hide the keyboard.
	RemoveMenu bool
	// Dispatch is set when the message completed a flow.
	Dispatch *domain.DispatchResult
}

// Messages are the user-facing texts that are not tied to a single step.
type Messages struct {
	Welcome        string
	ChooseService  string
	ChooseFromMenu string
	Cancelled      string
	TaxIDInvalid   string
}

// Engine drives conversations. It owns the state store: nothing else reads or
// writes conversation state.
type Engine struct {
	store     Store
	table     *FlowTable
	submitter Submitter
	msgs      Messages
	locks     *Locker
	logger    *slog.Logger
	metrics   *metrics.Collectors
	now       func() time.Time
	newID     func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics enables metric collection.
func WithMetrics(m *metrics.Collectors) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock overrides the submission timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator overrides how request ids are generated.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		e.newID = newID
	}
}

// NewEngine creates an engine over store and table that hands completed requests to submitter.
func NewEngine(store Store, table *FlowTable, submitter Submitter, msgs Messages, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		table:     table,
		submitter: submitter,
		msgs:      msgs,
		locks:     NewLocker(),
		logger:    slog.Default(),
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "conversation_engine")
	return e
}

// outcome is the result of applying one input to a state.
type outcome struct {
	// next replaces the stored state; nil returns the user to idle.
	next   *State
	action Action
	// keep leaves the stored state untouched.
	keep      bool
	completed *domain.CompletedRequest
}

// HandleStart returns the user to the main menu, discarding any active flow.
func (e *Engine) HandleStart(ctx context.Context, userID int64) (Action, error) {
	err := e.locks.WithLock(userID, func() error {
		return e.clear(ctx, userID)
	})
	if err != nil {
		return Action{}, err
	}
	e.logger.DebugContext(ctx, "Conversation reset to main menu", "user_id", userID)
	return Action{Text: e.msgs.Welcome, HTML: true, Menu: e.table.MainMenu()}, nil
}

// HandleCancel unconditionally ends the user's flow.
func (e *Engine) HandleCancel(ctx context.Context, userID int64) (Action, error) {
	err := e.locks.WithLock(userID, func() error {
		return e.clear(ctx, userID)
	})
	if err != nil {
		return Action{}, err
	}
	e.logger.InfoContext(ctx, "Conversation cancelled", "user_id", userID)
	return Action{Text: e.msgs.Cancelled, RemoveMenu: true}, nil
}

// HandleMessage applies one user message. State changes happen under the user's
// lock; a completed request is submitted after the lock is released and the
// confirmation is returned whatever the delivery outcome.
func (e *Engine) HandleMessage(ctx context.Context, in Inbound) (Action, error) {
	var out outcome
	err := e.locks.WithLock(in.UserID, func() error {
		state, err := e.load(ctx, in.UserID)
		if err != nil {
			return err
		}
		out = e.apply(ctx, state, in)
		if out.keep {
			return nil
		}
		if out.next == nil {
			return e.clear(ctx, in.UserID)
		}
		out.next.UpdatedAt = e.now()
		if err := e.store.Save(ctx, in.UserID, out.next); err != nil {
			return fmt.Errorf("failed to save conversation state: %w", err)
		}
		return nil
	})
	if err != nil {
		return Action{}, err
	}

	if out.completed != nil {
		result := e.submitter.Submit(ctx, *out.completed)
		out.action.Dispatch = &result
		if result.Err != nil {
			e.logger.ErrorContext(ctx, "Request captured but delivery failed",
				"request_id", result.RequestID, "flow", result.Flow, "destination", result.Destination, "error", result.Err)
		} else {
			e.logger.InfoContext(ctx, "Request submitted",
				"request_id", result.RequestID, "flow", result.Flow, "user_id", in.UserID)
		}
	}
	return out.action, nil
}

func (e *Engine) load(ctx context.Context, userID int64) (*State, error) {
	state, err := e.store.Load(ctx, userID)
	if errors.Is(err, ErrNoState) {
		return Idle(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation state: %w", err)
	}
	return state, nil
}

func (e *Engine) clear(ctx context.Context, userID int64) error {
	if err := e.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear conversation state: %w", err)
	}
	return nil
}

// apply computes the transition for in at state. It never touches the store.
func (e *Engine) apply(ctx context.Context, state *State, in Inbound) outcome {
	text := strings.TrimSpace(in.Text)

	if state.IsIdle() {
		return e.mainMenu(text)
	}

	def, ok := e.table.Step(state.Flow, state.Step)
	if !ok {
		// A stored state that no longer matches the table (e.g. from an older
		// release in a shared store) cannot be resumed.
		e.logger.WarnContext(ctx, "Discarding conversation at unknown step",
			"user_id", in.UserID, "flow", state.Flow, "step", state.Step)
		return outcome{action: e.mainMenuPrompt(e.msgs.ChooseFromMenu)}
	}

	if text == LabelBack {
		return e.back(state, def)
	}
	// Unregistered commands are never stored as field values.
	if strings.HasPrefix(text, "/") {
		return outcome{keep: true, action: prompt(def)}
	}

	switch def.Input {
	case InputEquipment:
		return e.equipmentInput(ctx, state, def, in)
	case InputTaxID:
		value, ok := fields.ResolveTaxID(text)
		if !ok {
			e.metrics.ValidationFailed(def.Flow.String(), string(def.ID))
			return outcome{keep: true, action: Action{Text: e.msgs.TaxIDInvalid, Menu: def.Menu}}
		}
		return e.record(state, def, value, in)
	default:
		return e.record(state, def, in.Text, in)
	}
}

func (e *Engine) mainMenu(text string) outcome {
	kind, ok := e.table.FlowByLabel(text)
	if !ok {
		return outcome{keep: true, action: e.mainMenuPrompt(e.msgs.ChooseFromMenu)}
	}
	return e.enter(kind)
}

// enter starts kind from scratch. The previous state is replaced wholesale, so
// no field from an earlier flow survives.
func (e *Engine) enter(kind domain.FlowKind) outcome {
	first, _ := e.table.First(kind)
	e.metrics.StepEntered(kind.String(), string(first.ID))
	return outcome{
		next:   &State{Flow: kind, Step: first.ID, Fields: make(map[domain.Field]string)},
		action: Action{Text: first.Intro, HTML: true, Menu: first.Menu},
	}
}

func (e *Engine) back(state *State, def StepDef) outcome {
	if def.Back == StepMainMenu {
		return outcome{action: e.mainMenuPrompt(e.msgs.ChooseService)}
	}
	target, _ := e.table.Step(state.Flow, def.Back)
	next := state.Clone()
	next.Step = target.ID
	e.metrics.StepEntered(state.Flow.String(), string(target.ID))
	return outcome{next: next, action: prompt(target)}
}

func (e *Engine) equipmentInput(ctx context.Context, state *State, def StepDef, in Inbound) outcome {
	text := strings.TrimSpace(in.Text)
	switch text {
	case LabelOther:
		return outcome{keep: true, action: Action{Text: promptEquipmentOther, Menu: backOnlyMenu}}
	case LabelYes:
		if def.Redirect != domain.FlowNone {
			e.logger.InfoContext(ctx, "Redirecting declined equipment request",
				"user_id", in.UserID, "from", state.Flow, "to", def.Redirect)
			return e.enter(def.Redirect)
		}
	case LabelNo:
		return outcome{keep: true, action: prompt(def)}
	}

	category, ok := equipment.Classify(text)
	if ok {
		return e.record(state, def, category.Display(), in)
	}

	e.metrics.EquipmentDeclined(def.Flow.String())
	msg := fmt.Sprintf(urgentDeclineFormat, html.EscapeString(text))
	menu := redirectMenu
	if def.Redirect == domain.FlowNone {
		menu = def.Menu
	}
	return outcome{keep: true, action: Action{Text: msg, HTML: true, Menu: menu}}
}

// record stores value under the step's field and advances, completing the flow
// after the terminal step.
func (e *Engine) record(state *State, def StepDef, value string, in Inbound) outcome {
	next := state.Clone()
	if next.Fields == nil {
		next.Fields = make(map[domain.Field]string)
	}
	next.Fields[def.Field] = value

	if def.Terminal() {
		return e.complete(next, in)
	}

	target, _ := e.table.Step(state.Flow, def.Next)
	next.Step = target.ID
	e.metrics.StepEntered(state.Flow.String(), string(target.ID))
	return outcome{next: next, action: prompt(target)}
}

func (e *Engine) complete(state *State, in Inbound) outcome {
	flow, _ := e.table.Flow(state.Flow)
	req := &domain.CompletedRequest{
		ID:                   e.newID(),
		Flow:                 state.Flow,
		SubmittedAt:          e.now(),
		RequesterID:          in.UserID,
		RequesterHandle:      in.Handle,
		RequesterDisplayName: in.DisplayName,
		Fields:               state.Fields,
	}
	return outcome{
		next:      nil,
		completed: req,
		action:    Action{Text: flow.Confirmation, HTML: true, RemoveMenu: true},
	}
}

func (e *Engine) mainMenuPrompt(text string) Action {
	return Action{Text: text, Menu: e.table.MainMenu()}
}

func prompt(def StepDef) Action {
	return Action{Text: def.Prompt, Menu: def.Menu}
}
