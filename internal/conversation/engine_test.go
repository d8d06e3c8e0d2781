package conversation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/medtechbot/internal/conversation"
	"github.com/edgard/medtechbot/internal/domain"
	"github.com/edgard/medtechbot/internal/fields"
)

var testMessages = conversation.Messages{
	Welcome:        "welcome",
	ChooseService:  "choose service",
	ChooseFromMenu: "choose from menu",
	Cancelled:      "cancelled",
	TaxIDInvalid:   "bad tax id",
}

type recordingSubmitter struct {
	mu       sync.Mutex
	requests []domain.CompletedRequest
	err      error
}

func (s *recordingSubmitter) Submit(_ context.Context, req domain.CompletedRequest) domain.DispatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return domain.DispatchResult{
		RequestID:   req.ID,
		Flow:        req.Flow,
		Destination: "dest-" + string(req.Flow),
		Delivered:   s.err == nil,
		Err:         s.err,
	}
}

func (s *recordingSubmitter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type harness struct {
	t         *testing.T
	engine    *conversation.Engine
	store     *conversation.MemoryStore
	submitter *recordingSubmitter
	table     *conversation.FlowTable
}

var fixedNow = time.Date(2025, 3, 14, 9, 26, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := conversation.NewMemoryStore()
	submitter := &recordingSubmitter{}
	table := conversation.MustDefaultFlowTable()
	var ids atomic.Int64
	engine := conversation.NewEngine(store, table, submitter, testMessages,
		conversation.WithClock(func() time.Time { return fixedNow }),
		conversation.WithIDGenerator(func() string {
			return fmt.Sprintf("req-%d", ids.Add(1))
		}),
	)
	return &harness{t: t, engine: engine, store: store, submitter: submitter, table: table}
}

func (h *harness) send(userID int64, text string) conversation.Action {
	h.t.Helper()
	action, err := h.engine.HandleMessage(context.Background(), conversation.Inbound{
		UserID:      userID,
		Text:        text,
		Handle:      "doctor",
		DisplayName: "Ivan",
	})
	require.NoError(h.t, err)
	return action
}

func (h *harness) state(userID int64) *conversation.State {
	h.t.Helper()
	state, err := h.store.Load(context.Background(), userID)
	if errors.Is(err, conversation.ErrNoState) {
		return nil
	}
	require.NoError(h.t, err)
	return state
}

// happyPaths lists, per flow, the main-menu label followed by valid inputs for every step.
var happyPaths = map[domain.FlowKind][]string{
	domain.FlowUrgent: {conversation.LabelUrgent, "УЗИ", "Mindray DC-70", "Не включается", "+79990001122", "a@b.ru", "1234567890"},
	domain.FlowRepair: {conversation.LabelRepair, "КТ", "GE Optima", "Артефакты на снимках", "+79990001122", "a@b.ru", fields.SkipLabel},
	domain.FlowRental: {conversation.LabelRental, "Для лицензии", "Аппарат ИВЛ", "Hamilton C3", "+79990001122", "a@b.ru", "123456789012"},
	domain.FlowAudit:  {conversation.LabelAudit, "+79990001122", "a@b.ru", fields.SkipLabel},
}

var flowLabels = map[domain.FlowKind]string{
	domain.FlowUrgent: conversation.LabelUrgent,
	domain.FlowRepair: conversation.LabelRepair,
	domain.FlowRental: conversation.LabelRental,
	domain.FlowAudit:  conversation.LabelAudit,
}

func TestHandleStart_ShowsMainMenu(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.send(1, conversation.LabelRepair)
	require.NotNil(t, h.state(1))

	action, err := h.engine.HandleStart(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "welcome", action.Text)
	assert.Equal(t, conversation.DefaultMainMenu(), action.Menu)
	assert.Nil(t, h.state(1))
}

func TestBackFromFirstStep_ReturnsToMainMenu(t *testing.T) {
	t.Parallel()

	for _, kind := range domain.Flows {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)

			entry := h.send(7, flowLabels[kind])
			assert.Contains(t, entry.Menu[len(entry.Menu)-1], conversation.LabelBack)
			state := h.state(7)
			require.NotNil(t, state)
			assert.Equal(t, kind, state.Flow)

			action := h.send(7, conversation.LabelBack)
			assert.Equal(t, "choose service", action.Text)
			assert.Equal(t, conversation.DefaultMainMenu(), action.Menu)
			assert.Nil(t, h.state(7), "flow must be cleared after going back to the main menu")
		})
	}
}

func TestCompletingEveryFlow_DispatchesOnceAndReturnsToIdle(t *testing.T) {
	t.Parallel()

	for kind, inputs := range happyPaths {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)

			var last conversation.Action
			for i, input := range inputs {
				last = h.send(42, input)
				if i < len(inputs)-1 {
					assert.Nil(t, last.Dispatch, "no dispatch before the terminal step (input %d)", i)
					state := h.state(42)
					require.NotNil(t, state)
					for field := range state.Fields {
						assert.True(t, h.table.Collects(kind, field), "field %s does not belong to flow %s", field, kind)
					}
				}
			}

			require.Equal(t, 1, h.submitter.count())
			require.NotNil(t, last.Dispatch)
			assert.True(t, last.Dispatch.Delivered)
			assert.True(t, last.RemoveMenu)
			assert.Contains(t, last.Text, "Заявка принята")
			assert.Nil(t, h.state(42))

			req := h.submitter.requests[0]
			assert.Equal(t, kind, req.Flow)
			assert.Equal(t, fixedNow, req.SubmittedAt)
			assert.Equal(t, int64(42), req.RequesterID)
			assert.Equal(t, "doctor", req.RequesterHandle)
			assert.Equal(t, "Ivan", req.RequesterDisplayName)
		})
	}
}

func TestRepairScenario_CollectsFields(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	action, err := h.engine.HandleStart(context.Background(), 5)
	require.NoError(t, err)
	assert.NotEmpty(t, action.Menu)

	for _, input := range happyPaths[domain.FlowRepair] {
		h.send(5, input)
	}

	require.Equal(t, 1, h.submitter.count())
	req := h.submitter.requests[0]
	assert.Equal(t, domain.FlowRepair, req.Flow)
	assert.Equal(t, map[domain.Field]string{
		domain.FieldEquipmentType:  "КТ",
		domain.FieldEquipmentModel: "GE Optima",
		domain.FieldProblem:        "Артефакты на снимках",
		domain.FieldPhone:          "+79990001122",
		domain.FieldEmail:          "a@b.ru",
		domain.FieldTaxID:          fields.NotProvided,
	}, req.Fields)
	assert.Nil(t, h.state(5))
}

func TestUrgentEquipment_UnrecognizedIsSoftDeclined(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.send(3, conversation.LabelUrgent)
	before := h.state(3)

	action := h.send(3, "рентген")
	assert.Contains(t, action.Text, "не предоставляем срочную подмену")
	assert.Contains(t, action.Text, "<b>рентген</b>")
	assert.True(t, action.HTML)
	assert.Equal(t, [][]string{{conversation.LabelYes, conversation.LabelNo}, {conversation.LabelBack}}, action.Menu)

	after := h.state(3)
	require.NotNil(t, after)
	assert.Equal(t, before.Step, after.Step)
	assert.Equal(t, conversation.StepEquipmentType, after.Step)
	assert.Empty(t, after.Fields)
	assert.Zero(t, h.submitter.count())
}

func TestUrgentEquipment_DeclineEscapesHTML(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.send(3, conversation.LabelUrgent)
	action := h.send(3, "<script>")
	assert.Contains(t, action.Text, "&lt;script&gt;")
}

func TestUrgentEquipment_Branches(t *testing.T) {
	t.Parallel()

	t.Run("other asks for free text", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.send(1, conversation.LabelUrgent)

		action := h.send(1, conversation.LabelOther)
		assert.Equal(t, [][]string{{conversation.LabelBack}}, action.Menu)
		assert.Equal(t, conversation.StepEquipmentType, h.state(1).Step)

		action = h.send(1, "эндоскоп Pentax")
		assert.Equal(t, conversation.StepModel, h.state(1).Step)
		assert.Equal(t, "ЭНДОСКОПИЯ", h.state(1).Fields[domain.FieldEquipmentType])
		assert.Equal(t, "Введите модель аппарата:", action.Text)
	})

	t.Run("yes redirects to repair", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.send(1, conversation.LabelUrgent)
		h.send(1, "рентген")

		action := h.send(1, conversation.LabelYes)
		state := h.state(1)
		require.NotNil(t, state)
		assert.Equal(t, domain.FlowRepair, state.Flow)
		assert.Equal(t, conversation.StepEquipmentType, state.Step)
		assert.Empty(t, state.Fields)
		assert.Contains(t, action.Text, "РЕМОНТ ОБОРУДОВАНИЯ")
	})

	t.Run("no re-shows the equipment menu", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		entry := h.send(1, conversation.LabelUrgent)
		h.send(1, "рентген")

		action := h.send(1, conversation.LabelNo)
		assert.Equal(t, entry.Menu, action.Menu)
		assert.Equal(t, domain.FlowUrgent, h.state(1).Flow)
		assert.Equal(t, conversation.StepEquipmentType, h.state(1).Step)
	})

	t.Run("menu label stores canonical category", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.send(1, conversation.LabelUrgent)
		h.send(1, "НДА")
		assert.Equal(t, "НДА", h.state(1).Fields[domain.FieldEquipmentType])
	})
}

func TestTaxIDStep(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	for _, input := range happyPaths[domain.FlowAudit][:3] {
		h.send(9, input)
	}
	require.Equal(t, conversation.StepTaxID, h.state(9).Step)

	for _, bad := range []string{"12345", "12345678901", "abc1234567", ""} {
		action := h.send(9, bad)
		assert.Equal(t, "bad tax id", action.Text)
		assert.Equal(t, [][]string{{fields.SkipLabel}, {conversation.LabelBack}}, action.Menu)
		state := h.state(9)
		require.NotNil(t, state)
		assert.Equal(t, conversation.StepTaxID, state.Step)
		assert.Equal(t, "a@b.ru", state.Fields[domain.FieldEmail], "validation failures must not drop collected fields")
		assert.NotContains(t, state.Fields, domain.FieldTaxID)
	}
	assert.Zero(t, h.submitter.count())

	h.send(9, "123456789012")
	require.Equal(t, 1, h.submitter.count())
	assert.Equal(t, "123456789012", h.submitter.requests[0].Fields[domain.FieldTaxID])
}

func TestBackWithinFlow_KeepsFieldsAndShowsPreviousPrompt(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.send(2, conversation.LabelRental)
	h.send(2, "Временная подмена")
	h.send(2, "УЗИ-сканер")

	action := h.send(2, conversation.LabelBack)
	assert.Equal(t, "Введите тип оборудования:", action.Text)
	state := h.state(2)
	assert.Equal(t, conversation.StepEquipmentType, state.Step)
	assert.Equal(t, "Временная подмена", state.Fields[domain.FieldPurpose])

	action = h.send(2, conversation.LabelBack)
	assert.Equal(t, "Выберите цель аренды:", action.Text)
	assert.Contains(t, action.Menu, []string{"Для лицензии"})
	assert.Equal(t, conversation.StepPurpose, h.state(2).Step)
}

func TestMainMenu_InvalidInputKeepsIdle(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	for _, input := range []string{"hello", conversation.LabelBack, "", conversation.LabelYes} {
		action := h.send(11, input)
		assert.Equal(t, "choose from menu", action.Text)
		assert.Equal(t, conversation.DefaultMainMenu(), action.Menu)
		assert.Nil(t, h.state(11))
	}
}

func TestUnknownCommandMidFlow_RepeatsPrompt(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.send(12, conversation.LabelRepair)
	h.send(12, "КТ")
	model, ok := h.table.Step(domain.FlowRepair, conversation.StepModel)
	require.True(t, ok)

	for _, input := range []string{"/help", " /settings extra"} {
		action := h.send(12, input)
		assert.Equal(t, model.Prompt, action.Text)
		assert.Equal(t, model.Menu, action.Menu)
	}

	state := h.state(12)
	assert.Equal(t, conversation.StepModel, state.Step)
	assert.NotContains(t, state.Fields, domain.FieldEquipmentModel)

	h.send(12, "GE Optima")
	assert.Equal(t, "GE Optima", h.state(12).Fields[domain.FieldEquipmentModel])
}

func TestRepeatedInput_AdvancesOncePerMessage(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.send(4, conversation.LabelRepair)
	h.send(4, "МРТ")
	h.send(4, "Philips Ingenia")
	h.send(4, "Philips Ingenia")

	state := h.state(4)
	assert.Equal(t, conversation.StepPhone, state.Step)
	assert.Equal(t, "Philips Ingenia", state.Fields[domain.FieldEquipmentModel])
	assert.Equal(t, "Philips Ingenia", state.Fields[domain.FieldProblem])
}

func TestReplayAfterCompletion_IsFreshMainMenuMessage(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	inputs := happyPaths[domain.FlowAudit]
	for _, input := range inputs {
		h.send(8, input)
	}
	require.Equal(t, 1, h.submitter.count())

	action := h.send(8, inputs[len(inputs)-1])
	assert.Equal(t, "choose from menu", action.Text)
	assert.Nil(t, action.Dispatch)
	assert.Equal(t, 1, h.submitter.count())
	assert.Nil(t, h.state(8))
}

func TestFreshFlowStart_DropsStaleFields(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.send(6, conversation.LabelUrgent)
	h.send(6, "ИВЛ")
	h.send(6, "Hamilton")
	h.send(6, conversation.LabelBack)
	h.send(6, conversation.LabelBack)
	h.send(6, conversation.LabelBack)
	require.Nil(t, h.state(6))

	for _, input := range happyPaths[domain.FlowAudit] {
		h.send(6, input)
	}
	require.Equal(t, 1, h.submitter.count())
	got := h.submitter.requests[0].Fields
	assert.NotContains(t, got, domain.FieldEquipmentType)
	assert.NotContains(t, got, domain.FieldEquipmentModel)
	assert.Len(t, got, 3)
}

func TestHandleCancel_ClearsAnyStep(t *testing.T) {
	t.Parallel()

	inputs := happyPaths[domain.FlowUrgent]
	for n := 1; n < len(inputs); n++ {
		t.Run(fmt.Sprintf("after %d inputs", n), func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			for _, input := range inputs[:n] {
				h.send(10, input)
			}

			action, err := h.engine.HandleCancel(context.Background(), 10)
			require.NoError(t, err)
			assert.Equal(t, "cancelled", action.Text)
			assert.True(t, action.RemoveMenu)
			assert.Nil(t, h.state(10))
			assert.Zero(t, h.submitter.count())
		})
	}
}

func TestDeliveryFailure_StillConfirms(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.submitter.err = errors.New("channel unreachable")

	var last conversation.Action
	for _, input := range happyPaths[domain.FlowAudit] {
		last = h.send(12, input)
	}

	assert.Contains(t, last.Text, "Заявка принята")
	require.NotNil(t, last.Dispatch)
	assert.False(t, last.Dispatch.Delivered)
	assert.Error(t, last.Dispatch.Err)
	assert.Nil(t, h.state(12))
}

func TestUsersAreIsolated(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.send(100, conversation.LabelRepair)
	h.send(200, conversation.LabelAudit)
	h.send(100, "КТ")

	assert.Equal(t, domain.FlowRepair, h.state(100).Flow)
	assert.Equal(t, conversation.StepModel, h.state(100).Step)
	assert.Equal(t, domain.FlowAudit, h.state(200).Flow)
	assert.Equal(t, conversation.StepPhone, h.state(200).Step)
	assert.Empty(t, h.state(200).Fields)
}

func TestConcurrentUsers_EachCompleteOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	const users = 40
	var wg sync.WaitGroup
	for u := 1; u <= users; u++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			for _, input := range happyPaths[domain.FlowRepair] {
				_, err := h.engine.HandleMessage(context.Background(), conversation.Inbound{UserID: userID, Text: input})
				assert.NoError(t, err)
			}
		}(int64(u))
	}
	wg.Wait()

	assert.Equal(t, users, h.submitter.count())
	assert.Zero(t, h.store.Len())
}

type failingStore struct {
	conversation.MemoryStore
	err error
}

func (f *failingStore) Load(context.Context, int64) (*conversation.State, error) {
	return nil, f.err
}

func (f *failingStore) Delete(context.Context, int64) error {
	return f.err
}

func TestStoreErrors_AreReturned(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("store down")
	engine := conversation.NewEngine(&failingStore{err: storeErr}, conversation.MustDefaultFlowTable(), &recordingSubmitter{}, testMessages)

	_, err := engine.HandleMessage(context.Background(), conversation.Inbound{UserID: 1, Text: conversation.LabelAudit})
	assert.ErrorIs(t, err, storeErr)

	_, err = engine.HandleStart(context.Background(), 1)
	assert.ErrorIs(t, err, storeErr)

	_, err = engine.HandleCancel(context.Background(), 1)
	assert.ErrorIs(t, err, storeErr)
}

func TestUnknownStoredStep_ReturnsToMainMenu(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	require.NoError(t, h.store.Save(context.Background(), 13, &conversation.State{
		Flow: domain.FlowAudit,
		Step: conversation.StepPurpose,
	}))

	action := h.send(13, "anything")
	assert.Equal(t, "choose from menu", action.Text)
	assert.Nil(t, h.state(13))
}
