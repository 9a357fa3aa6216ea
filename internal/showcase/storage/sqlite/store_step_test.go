package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/credencelab/showcase/internal/showcase/storage"
)

func newStepInput(order int) storage.NewStep {
	return storage.NewStep{
		Title: "Added step",
		Order: order,
		Type:  storage.StepTypeHumanTask,
		Actions: []storage.NewStepAction{
			{Title: "Continue", Type: storage.StepActionTypeAriesOOB},
		},
	}
}

func createScenarioFixture(t *testing.T, store *Store) storage.Scenario {
	t.Helper()

	def := mustCreateCredentialDefinition(t, store)
	issuer := mustCreateIssuer(t, store, def.ID)
	persona := mustCreatePersona(t, store)
	return mustCreateScenario(t, store, issuanceScenarioInput(issuer.ID, persona.ID))
}

func TestCreateScenarioStepAppends(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	scenario := createScenarioFixture(t, store)

	created, err := store.CreateScenarioStep(context.Background(), scenario.ID, newStepInput(2))
	if err != nil {
		t.Fatalf("create step: %v", err)
	}
	if created.Order != 2 {
		t.Fatalf("order = %d, want 2", created.Order)
	}
	if len(created.Actions) != 1 {
		t.Fatalf("actions len = %d, want 1", len(created.Actions))
	}

	steps, err := store.ListScenarioSteps(context.Background(), scenario.ID)
	if err != nil {
		t.Fatalf("list steps: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("steps len = %d, want 2", len(steps))
	}
	if steps[0].Order != 1 || steps[1].Order != 2 {
		t.Fatalf("step orders = [%d, %d], want [1, 2]", steps[0].Order, steps[1].Order)
	}
}

func TestCreateScenarioStepRejectsTakenOrder(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	scenario := createScenarioFixture(t, store)

	_, err := store.CreateScenarioStep(context.Background(), scenario.ID, newStepInput(1))
	if !errors.Is(err, storage.StepOrderConflict(1)) {
		t.Fatalf("create with taken order error = %v, want step order conflict", err)
	}
}

func TestCreateScenarioStepRequiresActions(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	scenario := createScenarioFixture(t, store)

	input := newStepInput(2)
	input.Actions = nil
	_, err := store.CreateScenarioStep(context.Background(), scenario.ID, input)
	if !errors.Is(err, storage.ErrStepActionsRequired) {
		t.Fatalf("create without actions error = %v, want %v", err, storage.ErrStepActionsRequired)
	}
}

func TestCreateScenarioStepMissingScenario(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	_, err := store.CreateScenarioStep(context.Background(), "missing", newStepInput(1))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("create on missing scenario error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestGetScenarioStepScopedByScenario(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	first := createScenarioFixture(t, store)
	second := createScenarioFixture(t, store)

	if _, err := store.GetScenarioStep(context.Background(), first.ID, first.Steps[0].ID); err != nil {
		t.Fatalf("get step: %v", err)
	}
	_, err := store.GetScenarioStep(context.Background(), second.ID, first.Steps[0].ID)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("cross-scenario step lookup error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestUpdateScenarioStepReplacesActions(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	scenario := createScenarioFixture(t, store)
	stepID := scenario.Steps[0].ID
	previousActionID := scenario.Steps[0].Actions[0].ID

	input := newStepInput(1)
	input.Title = "Rewritten step"
	input.Actions = []storage.NewStepAction{
		{Title: "First action", Type: storage.StepActionTypeAriesOOB},
		{Title: "Second action", Type: storage.StepActionTypeAriesOOB},
	}

	updated, err := store.UpdateScenarioStep(context.Background(), scenario.ID, stepID, input)
	if err != nil {
		t.Fatalf("update step: %v", err)
	}
	if updated.Title != "Rewritten step" {
		t.Fatalf("title = %q, want %q", updated.Title, "Rewritten step")
	}
	if len(updated.Actions) != 2 {
		t.Fatalf("actions len = %d, want 2", len(updated.Actions))
	}
	for _, action := range updated.Actions {
		if action.ID == previousActionID {
			t.Fatal("expected replaced actions to carry fresh ids")
		}
	}
}

func TestUpdateScenarioStepRejectsTakenOrder(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	scenario := createScenarioFixture(t, store)
	second, err := store.CreateScenarioStep(context.Background(), scenario.ID, newStepInput(2))
	if err != nil {
		t.Fatalf("create second step: %v", err)
	}

	input := newStepInput(1)
	_, err = store.UpdateScenarioStep(context.Background(), scenario.ID, second.ID, input)
	if !errors.Is(err, storage.StepOrderConflict(1)) {
		t.Fatalf("update to taken order error = %v, want step order conflict", err)
	}

	input = newStepInput(2)
	input.Title = "Keeps its own order"
	updated, err := store.UpdateScenarioStep(context.Background(), scenario.ID, second.ID, input)
	if err != nil {
		t.Fatalf("update keeping own order: %v", err)
	}
	if updated.Title != "Keeps its own order" {
		t.Fatalf("title = %q, want %q", updated.Title, "Keeps its own order")
	}
}

func TestDeleteScenarioStepFreesOrder(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	scenario := createScenarioFixture(t, store)

	if err := store.DeleteScenarioStep(context.Background(), scenario.ID, scenario.Steps[0].ID); err != nil {
		t.Fatalf("delete step: %v", err)
	}
	if _, err := store.GetScenarioStep(context.Background(), scenario.ID, scenario.Steps[0].ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get deleted step error = %v, want %v", err, storage.ErrNotFound)
	}

	if _, err := store.CreateScenarioStep(context.Background(), scenario.ID, newStepInput(1)); err != nil {
		t.Fatalf("reuse freed order: %v", err)
	}
}

func TestStepActionLifecycle(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	scenario := createScenarioFixture(t, store)
	stepID := scenario.Steps[0].ID

	created, err := store.CreateStepAction(context.Background(), scenario.ID, stepID, storage.NewStepAction{
		Title: "Present your card",
		Type:  storage.StepActionTypeAriesOOB,
		Text:  "Scan this QR code with your wallet",
		ProofRequest: &storage.ProofRequest{
			Attributes: map[string]storage.ProofRequestAttributes{
				"student_card": {Attributes: []string{"student_first_name"}},
			},
		},
	})
	if err != nil {
		t.Fatalf("create action: %v", err)
	}
	if created.ProofRequest == nil {
		t.Fatal("expected proof request on created action")
	}

	got, err := store.GetStepAction(context.Background(), scenario.ID, stepID, created.ID)
	if err != nil {
		t.Fatalf("get action: %v", err)
	}
	if got.Title != "Present your card" {
		t.Fatalf("title = %q, want %q", got.Title, "Present your card")
	}
	if got.ProofRequest == nil || len(got.ProofRequest.Attributes) != 1 {
		t.Fatal("expected proof request to round-trip")
	}

	actions, err := store.ListStepActions(context.Background(), scenario.ID, stepID)
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("actions len = %d, want 2", len(actions))
	}

	updated, err := store.UpdateStepAction(context.Background(), scenario.ID, stepID, created.ID, storage.NewStepAction{
		Title: "Present your new card",
		Type:  storage.StepActionTypeAriesOOB,
	})
	if err != nil {
		t.Fatalf("update action: %v", err)
	}
	if updated.Title != "Present your new card" {
		t.Fatalf("title = %q, want %q", updated.Title, "Present your new card")
	}
	if updated.ProofRequest != nil {
		t.Fatal("expected proof request to be removed by nil update")
	}

	if err := store.DeleteStepAction(context.Background(), scenario.ID, stepID, created.ID); err != nil {
		t.Fatalf("delete action: %v", err)
	}
	if _, err := store.GetStepAction(context.Background(), scenario.ID, stepID, created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get deleted action error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestStepActionScopedByParentChain(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	first := createScenarioFixture(t, store)
	second := createScenarioFixture(t, store)
	actionID := first.Steps[0].Actions[0].ID

	_, err := store.GetStepAction(context.Background(), second.ID, first.Steps[0].ID, actionID)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("cross-scenario action lookup error = %v, want %v", err, storage.ErrNotFound)
	}
}
