package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/credencelab/showcase/internal/showcase/storage"
)

// Step and step-action sub-resource operations. Every lookup is scoped by the
// full parent chain, so a step id paired with the wrong scenario id reads as
// missing rather than leaking another scenario's step.

func ensureScenario(ctx context.Context, q querier, scenarioID string) error {
	found, err := exists(ctx, q, "workflows", scenarioID)
	if err != nil {
		return err
	}
	if !found {
		return storage.NotFound("scenario", scenarioID)
	}
	return nil
}

func ensureStep(ctx context.Context, q querier, scenarioID, stepID string) error {
	var one int
	err := q.QueryRowContext(
		ctx,
		`SELECT 1 FROM steps WHERE id = ? AND workflow_id = ?`,
		stepID,
		scenarioID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.NotFound("step", stepID)
	}
	if err != nil {
		return fmt.Errorf("check step: %w", err)
	}
	return nil
}

func getStepGraph(ctx context.Context, q querier, scenarioID, stepID string) (storage.Step, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT id, title, description, step_order, step_type, asset_id, sub_workflow_id, created_at, updated_at
		   FROM steps
		  WHERE id = ? AND workflow_id = ?`,
		stepID,
		scenarioID,
	)

	step, assetID, err := scanStepRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Step{}, storage.NotFound("step", stepID)
		}
		return storage.Step{}, fmt.Errorf("get step: %w", err)
	}
	return hydrateStep(ctx, q, step, assetID)
}

func getStepActionGraph(ctx context.Context, q querier, stepID, actionID string) (storage.StepAction, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT id, title, action_type, action_text, created_at, updated_at
		   FROM step_actions
		  WHERE id = ? AND step_id = ?`,
		actionID,
		stepID,
	)

	var action storage.StepAction
	var actionType string
	var createdAt, updatedAt int64
	err := row.Scan(&action.ID, &action.Title, &actionType, &action.Text, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.StepAction{}, storage.NotFound("step action", actionID)
		}
		return storage.StepAction{}, fmt.Errorf("get step action: %w", err)
	}
	action.Type = storage.StepActionType(actionType)
	action.CreatedAt = fromMillis(createdAt)
	action.UpdatedAt = fromMillis(updatedAt)

	if action.ProofRequest, err = getProofRequest(ctx, q, action.ID); err != nil {
		return storage.StepAction{}, err
	}
	return action, nil
}

// CreateScenarioStep appends one step to an existing scenario. The new step
// keeps the caller-supplied order; an order already taken in the scenario is
// rejected before the insert.
func (s *Store) CreateScenarioStep(ctx context.Context, scenarioID string, step storage.NewStep) (storage.Step, error) {
	if err := ctx.Err(); err != nil {
		return storage.Step{}, err
	}
	if err := s.ready(); err != nil {
		return storage.Step{}, err
	}
	if len(step.Actions) == 0 {
		return storage.Step{}, storage.ErrStepActionsRequired
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return storage.Step{}, err
	}
	defer tx.Rollback()

	if err := ensureScenario(ctx, tx, scenarioID); err != nil {
		return storage.Step{}, err
	}
	stepID, err := insertStep(ctx, tx, scenarioID, step)
	if err != nil {
		return storage.Step{}, err
	}

	created, err := getStepGraph(ctx, tx, scenarioID, stepID)
	if err != nil {
		return storage.Step{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.Step{}, fmt.Errorf("commit step: %w", err)
	}
	return created, nil
}

// GetScenarioStep returns one step of one scenario with actions and proof
// requests attached.
func (s *Store) GetScenarioStep(ctx context.Context, scenarioID, stepID string) (storage.Step, error) {
	if err := ctx.Err(); err != nil {
		return storage.Step{}, err
	}
	if err := s.ready(); err != nil {
		return storage.Step{}, err
	}
	if err := ensureScenario(ctx, s.sqlDB, scenarioID); err != nil {
		return storage.Step{}, err
	}
	return getStepGraph(ctx, s.sqlDB, scenarioID, stepID)
}

// ListScenarioSteps returns the steps of one scenario sorted ascending by
// order.
func (s *Store) ListScenarioSteps(ctx context.Context, scenarioID string) ([]storage.Step, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := ensureScenario(ctx, s.sqlDB, scenarioID); err != nil {
		return nil, err
	}
	return listStepsGraph(ctx, s.sqlDB, scenarioID)
}

// UpdateScenarioStep replaces the scalar fields and the entire action set of
// one step. Actions are not merged; the previous action rows (with their
// proof requests) are removed first.
func (s *Store) UpdateScenarioStep(ctx context.Context, scenarioID, stepID string, step storage.NewStep) (storage.Step, error) {
	if err := ctx.Err(); err != nil {
		return storage.Step{}, err
	}
	if err := s.ready(); err != nil {
		return storage.Step{}, err
	}
	if len(step.Actions) == 0 {
		return storage.Step{}, storage.ErrStepActionsRequired
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return storage.Step{}, err
	}
	defer tx.Rollback()

	if err := ensureScenario(ctx, tx, scenarioID); err != nil {
		return storage.Step{}, err
	}
	if err := ensureStep(ctx, tx, scenarioID, stepID); err != nil {
		return storage.Step{}, err
	}

	var one int
	err = tx.QueryRowContext(
		ctx,
		`SELECT 1 FROM steps WHERE workflow_id = ? AND step_order = ? AND id <> ?`,
		scenarioID,
		step.Order,
		stepID,
	).Scan(&one)
	if err == nil {
		return storage.Step{}, storage.StepOrderConflict(step.Order)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return storage.Step{}, fmt.Errorf("check step order: %w", err)
	}

	if assetID := strings.TrimSpace(step.AssetID); assetID != "" {
		if _, err := getAssetGraph(ctx, tx, assetID); err != nil {
			return storage.Step{}, err
		}
	}
	if subID := strings.TrimSpace(step.SubScenarioID); subID != "" {
		found, err := exists(ctx, tx, "workflows", subID)
		if err != nil {
			return storage.Step{}, err
		}
		if !found {
			return storage.Step{}, storage.NotFound("scenario", subID)
		}
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE steps
		    SET title = ?, description = ?, step_order = ?, step_type = ?, asset_id = ?, sub_workflow_id = ?, updated_at = ?
		  WHERE id = ? AND workflow_id = ?`,
		step.Title,
		step.Description,
		step.Order,
		string(step.Type),
		toNullString(step.AssetID),
		toNullString(step.SubScenarioID),
		toMillis(now()),
		stepID,
		scenarioID,
	); err != nil {
		return storage.Step{}, fmt.Errorf("update step: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM step_actions WHERE step_id = ?`, stepID); err != nil {
		return storage.Step{}, fmt.Errorf("clear step actions: %w", err)
	}
	if err := insertStepActions(ctx, tx, stepID, step.Actions); err != nil {
		return storage.Step{}, err
	}

	updated, err := getStepGraph(ctx, tx, scenarioID, stepID)
	if err != nil {
		return storage.Step{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.Step{}, fmt.Errorf("commit step: %w", err)
	}
	return updated, nil
}

// DeleteScenarioStep removes one step; its actions and proof requests
// cascade. The freed order value becomes reusable immediately.
func (s *Store) DeleteScenarioStep(ctx context.Context, scenarioID, stepID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if err := ensureScenario(ctx, s.sqlDB, scenarioID); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM steps WHERE id = ? AND workflow_id = ?`, stepID, scenarioID)
	if err != nil {
		return fmt.Errorf("delete step: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete step: %w", err)
	}
	if affected == 0 {
		return storage.NotFound("step", stepID)
	}
	return nil
}

// CreateStepAction appends one action to an existing step.
func (s *Store) CreateStepAction(ctx context.Context, scenarioID, stepID string, action storage.NewStepAction) (storage.StepAction, error) {
	if err := ctx.Err(); err != nil {
		return storage.StepAction{}, err
	}
	if err := s.ready(); err != nil {
		return storage.StepAction{}, err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return storage.StepAction{}, err
	}
	defer tx.Rollback()

	if err := ensureScenario(ctx, tx, scenarioID); err != nil {
		return storage.StepAction{}, err
	}
	if err := ensureStep(ctx, tx, scenarioID, stepID); err != nil {
		return storage.StepAction{}, err
	}
	actionID, err := insertStepAction(ctx, tx, stepID, action)
	if err != nil {
		return storage.StepAction{}, err
	}

	created, err := getStepActionGraph(ctx, tx, stepID, actionID)
	if err != nil {
		return storage.StepAction{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.StepAction{}, fmt.Errorf("commit step action: %w", err)
	}
	return created, nil
}

// GetStepAction returns one action of one step with its optional proof
// request attached.
func (s *Store) GetStepAction(ctx context.Context, scenarioID, stepID, actionID string) (storage.StepAction, error) {
	if err := ctx.Err(); err != nil {
		return storage.StepAction{}, err
	}
	if err := s.ready(); err != nil {
		return storage.StepAction{}, err
	}
	if err := ensureScenario(ctx, s.sqlDB, scenarioID); err != nil {
		return storage.StepAction{}, err
	}
	if err := ensureStep(ctx, s.sqlDB, scenarioID, stepID); err != nil {
		return storage.StepAction{}, err
	}
	return getStepActionGraph(ctx, s.sqlDB, stepID, actionID)
}

// ListStepActions returns the actions of one step in insertion order.
func (s *Store) ListStepActions(ctx context.Context, scenarioID, stepID string) ([]storage.StepAction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := ensureScenario(ctx, s.sqlDB, scenarioID); err != nil {
		return nil, err
	}
	if err := ensureStep(ctx, s.sqlDB, scenarioID, stepID); err != nil {
		return nil, err
	}
	return listStepActionsGraph(ctx, s.sqlDB, stepID)
}

// UpdateStepAction replaces the scalar fields and proof request of one
// action. A nil proof request removes any stored one.
func (s *Store) UpdateStepAction(ctx context.Context, scenarioID, stepID, actionID string, action storage.NewStepAction) (storage.StepAction, error) {
	if err := ctx.Err(); err != nil {
		return storage.StepAction{}, err
	}
	if err := s.ready(); err != nil {
		return storage.StepAction{}, err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return storage.StepAction{}, err
	}
	defer tx.Rollback()

	if err := ensureScenario(ctx, tx, scenarioID); err != nil {
		return storage.StepAction{}, err
	}
	if err := ensureStep(ctx, tx, scenarioID, stepID); err != nil {
		return storage.StepAction{}, err
	}

	result, err := tx.ExecContext(
		ctx,
		`UPDATE step_actions
		    SET title = ?, action_type = ?, action_text = ?, updated_at = ?
		  WHERE id = ? AND step_id = ?`,
		action.Title,
		string(action.Type),
		action.Text,
		toMillis(now()),
		actionID,
		stepID,
	)
	if err != nil {
		return storage.StepAction{}, fmt.Errorf("update step action: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storage.StepAction{}, fmt.Errorf("update step action: %w", err)
	}
	if affected == 0 {
		return storage.StepAction{}, storage.NotFound("step action", actionID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM proof_requests WHERE step_action_id = ?`, actionID); err != nil {
		return storage.StepAction{}, fmt.Errorf("clear proof request: %w", err)
	}
	if action.ProofRequest != nil {
		attributesJSON, predicatesJSON, err := marshalProofRequest(action.ProofRequest)
		if err != nil {
			return storage.StepAction{}, err
		}
		createdAt := now()
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO proof_requests (id, step_action_id, attributes_json, predicates_json, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			newID(),
			actionID,
			attributesJSON,
			predicatesJSON,
			toMillis(createdAt),
			toMillis(createdAt),
		); err != nil {
			return storage.StepAction{}, fmt.Errorf("create proof request: %w", err)
		}
	}

	updated, err := getStepActionGraph(ctx, tx, stepID, actionID)
	if err != nil {
		return storage.StepAction{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.StepAction{}, fmt.Errorf("commit step action: %w", err)
	}
	return updated, nil
}

// DeleteStepAction removes one action; its proof request cascades.
func (s *Store) DeleteStepAction(ctx context.Context, scenarioID, stepID, actionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if err := ensureScenario(ctx, s.sqlDB, scenarioID); err != nil {
		return err
	}
	if err := ensureStep(ctx, s.sqlDB, scenarioID, stepID); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM step_actions WHERE id = ? AND step_id = ?`, actionID, stepID)
	if err != nil {
		return fmt.Errorf("delete step action: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete step action: %w", err)
	}
	if affected == 0 {
		return storage.NotFound("step action", actionID)
	}
	return nil
}
