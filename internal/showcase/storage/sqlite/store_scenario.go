package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/credencelab/showcase/internal/showcase/storage"
)

// classifyScenario derives the workflow variant from which party reference
// is set. Setting neither or both is a validation failure; the workflows
// table carries a matching CHECK constraint as defense in depth.
func classifyScenario(scenario storage.NewScenario) (storage.ScenarioType, error) {
	hasIssuer := strings.TrimSpace(scenario.IssuerID) != ""
	hasRelyingParty := strings.TrimSpace(scenario.RelyingPartyID) != ""
	switch {
	case hasIssuer && hasRelyingParty:
		return "", storage.ErrScenarioPartyAmbiguous
	case hasIssuer:
		return storage.ScenarioTypeIssuance, nil
	case hasRelyingParty:
		return storage.ScenarioTypePresentation, nil
	default:
		return "", storage.ErrScenarioPartyRequired
	}
}

// validateScenarioPayload runs every business-rule check that does not need
// database state, so invalid payloads fail before a transaction opens.
func validateScenarioPayload(scenario storage.NewScenario) error {
	if len(scenario.Steps) == 0 {
		return storage.ErrScenarioStepsRequired
	}
	if len(scenario.PersonaIDs) == 0 {
		return storage.ErrScenarioPersonasRequired
	}
	seenOrders := make(map[int]bool, len(scenario.Steps))
	for _, step := range scenario.Steps {
		if len(step.Actions) == 0 {
			return storage.ErrStepActionsRequired
		}
		if seenOrders[step.Order] {
			return storage.StepOrderConflict(step.Order)
		}
		seenOrders[step.Order] = true
	}
	return nil
}

// resolveScenarioReferences verifies the personas and the single party
// inside the write transaction.
func resolveScenarioReferences(ctx context.Context, tx *sql.Tx, scenario storage.NewScenario, scenarioType storage.ScenarioType) error {
	for _, personaID := range scenario.PersonaIDs {
		found, err := exists(ctx, tx, "personas", personaID)
		if err != nil {
			return err
		}
		if !found {
			return storage.NotFound("persona", personaID)
		}
	}
	if scenarioType == storage.ScenarioTypeIssuance {
		found, err := exists(ctx, tx, "issuers", scenario.IssuerID)
		if err != nil {
			return err
		}
		if !found {
			return storage.NotFound("issuer", scenario.IssuerID)
		}
		return nil
	}
	found, err := exists(ctx, tx, "relying_parties", scenario.RelyingPartyID)
	if err != nil {
		return err
	}
	if !found {
		return storage.NotFound("relying party", scenario.RelyingPartyID)
	}
	return nil
}

func marshalProofRequest(request *storage.ProofRequest) (string, string, error) {
	attributes := request.Attributes
	if attributes == nil {
		attributes = map[string]storage.ProofRequestAttributes{}
	}
	predicates := request.Predicates
	if predicates == nil {
		predicates = map[string]storage.ProofRequestPredicate{}
	}
	attributesJSON, err := json.Marshal(attributes)
	if err != nil {
		return "", "", fmt.Errorf("encode proof request attributes: %w", err)
	}
	predicatesJSON, err := json.Marshal(predicates)
	if err != nil {
		return "", "", fmt.Errorf("encode proof request predicates: %w", err)
	}
	return string(attributesJSON), string(predicatesJSON), nil
}

func insertStepAction(ctx context.Context, tx *sql.Tx, stepID string, action storage.NewStepAction) (string, error) {
	actionID := newID()
	createdAt := now()
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO step_actions (id, step_id, title, action_type, action_text, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		actionID,
		stepID,
		action.Title,
		string(action.Type),
		action.Text,
		toMillis(createdAt),
		toMillis(createdAt),
	); err != nil {
		return "", fmt.Errorf("create step action: %w", err)
	}
	if action.ProofRequest == nil {
		return actionID, nil
	}
	attributesJSON, predicatesJSON, err := marshalProofRequest(action.ProofRequest)
	if err != nil {
		return "", err
	}
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
		return "", fmt.Errorf("create proof request: %w", err)
	}
	return actionID, nil
}

func insertStepActions(ctx context.Context, tx *sql.Tx, stepID string, actions []storage.NewStepAction) error {
	for _, action := range actions {
		if _, err := insertStepAction(ctx, tx, stepID, action); err != nil {
			return err
		}
	}
	return nil
}

// insertStep writes one step with its actions and proof requests. The
// caller-supplied order value is preserved verbatim; a conflicting order in
// the same scenario fails before the row is written.
func insertStep(ctx context.Context, tx *sql.Tx, workflowID string, step storage.NewStep) (string, error) {
	if len(step.Actions) == 0 {
		return "", storage.ErrStepActionsRequired
	}

	var one int
	err := tx.QueryRowContext(
		ctx,
		`SELECT 1 FROM steps WHERE workflow_id = ? AND step_order = ?`,
		workflowID,
		step.Order,
	).Scan(&one)
	if err == nil {
		return "", storage.StepOrderConflict(step.Order)
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("check step order: %w", err)
	}

	if assetID := strings.TrimSpace(step.AssetID); assetID != "" {
		if _, err := getAssetGraph(ctx, tx, assetID); err != nil {
			return "", err
		}
	}
	if subID := strings.TrimSpace(step.SubScenarioID); subID != "" {
		found, err := exists(ctx, tx, "workflows", subID)
		if err != nil {
			return "", err
		}
		if !found {
			return "", storage.NotFound("scenario", subID)
		}
	}

	stepID := newID()
	createdAt := now()
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO steps (id, workflow_id, title, description, step_order, step_type, asset_id, sub_workflow_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stepID,
		workflowID,
		step.Title,
		step.Description,
		step.Order,
		string(step.Type),
		toNullString(step.AssetID),
		toNullString(step.SubScenarioID),
		toMillis(createdAt),
		toMillis(createdAt),
	); err != nil {
		if isUniqueViolation(err) {
			return "", storage.StepOrderConflict(step.Order)
		}
		return "", fmt.Errorf("create step: %w", err)
	}
	if err := insertStepActions(ctx, tx, stepID, step.Actions); err != nil {
		return "", err
	}
	return stepID, nil
}

func insertPersonaLinks(ctx context.Context, tx *sql.Tx, linkTable, ownerColumn, ownerID string, personaIDs []string) error {
	for _, personaID := range personaIDs {
		if _, err := tx.ExecContext(
			ctx,
			fmt.Sprintf(`INSERT INTO %s (%s, persona_id) VALUES (?, ?)`, linkTable, ownerColumn),
			ownerID,
			personaID,
		); err != nil {
			return fmt.Errorf("link persona: %w", err)
		}
	}
	return nil
}

// CreateScenario inserts the full scenario graph in one transaction and
// returns it with steps sorted ascending by order.
func (s *Store) CreateScenario(ctx context.Context, scenario storage.NewScenario) (storage.Scenario, error) {
	if err := ctx.Err(); err != nil {
		return storage.Scenario{}, err
	}
	if err := s.ready(); err != nil {
		return storage.Scenario{}, err
	}
	if strings.TrimSpace(scenario.Name) == "" {
		return storage.Scenario{}, fmt.Errorf("scenario name is required")
	}
	scenarioType, err := classifyScenario(scenario)
	if err != nil {
		return storage.Scenario{}, err
	}
	if err := validateScenarioPayload(scenario); err != nil {
		return storage.Scenario{}, err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return storage.Scenario{}, err
	}
	defer tx.Rollback()

	if err := resolveScenarioReferences(ctx, tx, scenario, scenarioType); err != nil {
		return storage.Scenario{}, err
	}

	id := newID()
	createdAt := now()
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO workflows (id, name, description, workflow_type, issuer_id, relying_party_id, hidden, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		strings.TrimSpace(scenario.Name),
		strings.TrimSpace(scenario.Description),
		string(scenarioType),
		toNullString(scenario.IssuerID),
		toNullString(scenario.RelyingPartyID),
		boolToInt(scenario.Hidden),
		toMillis(createdAt),
		toMillis(createdAt),
	); err != nil {
		return storage.Scenario{}, fmt.Errorf("create scenario: %w", err)
	}

	if err := insertPersonaLinks(ctx, tx, "workflows_to_personas", "workflow_id", id, scenario.PersonaIDs); err != nil {
		return storage.Scenario{}, err
	}
	for _, step := range scenario.Steps {
		if _, err := insertStep(ctx, tx, id, step); err != nil {
			return storage.Scenario{}, err
		}
	}

	created, err := getScenarioGraph(ctx, tx, id)
	if err != nil {
		return storage.Scenario{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.Scenario{}, fmt.Errorf("commit scenario: %w", err)
	}
	return created, nil
}

// GetScenario returns one scenario with its full graph.
func (s *Store) GetScenario(ctx context.Context, id string) (storage.Scenario, error) {
	if err := ctx.Err(); err != nil {
		return storage.Scenario{}, err
	}
	if err := s.ready(); err != nil {
		return storage.Scenario{}, err
	}
	return getScenarioGraph(ctx, s.sqlDB, id)
}

// ListScenarios returns all scenarios, optionally narrowed by type, each
// with its full graph.
func (s *Store) ListScenarios(ctx context.Context, filter storage.ScenarioFilter) ([]storage.Scenario, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	var (
		rows *sql.Rows
		err  error
	)
	if filter.Type == "" {
		rows, err = s.sqlDB.QueryContext(ctx, `SELECT id FROM workflows ORDER BY rowid ASC`)
	} else {
		rows, err = s.sqlDB.QueryContext(
			ctx,
			`SELECT id FROM workflows WHERE workflow_type = ? ORDER BY rowid ASC`,
			string(filter.Type),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list scenarios: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}

	scenarios := make([]storage.Scenario, 0, len(ids))
	for _, id := range ids {
		scenario, err := getScenarioGraph(ctx, s.sqlDB, id)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, scenario)
	}
	return scenarios, nil
}

// UpdateScenario replaces the scalar fields, persona links, and the entire
// step graph of one scenario. Steps are not merged; the previous step rows
// (with their actions and proof requests) are removed first.
func (s *Store) UpdateScenario(ctx context.Context, id string, scenario storage.NewScenario) (storage.Scenario, error) {
	if err := ctx.Err(); err != nil {
		return storage.Scenario{}, err
	}
	if err := s.ready(); err != nil {
		return storage.Scenario{}, err
	}
	if strings.TrimSpace(scenario.Name) == "" {
		return storage.Scenario{}, fmt.Errorf("scenario name is required")
	}
	scenarioType, err := classifyScenario(scenario)
	if err != nil {
		return storage.Scenario{}, err
	}
	if err := validateScenarioPayload(scenario); err != nil {
		return storage.Scenario{}, err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return storage.Scenario{}, err
	}
	defer tx.Rollback()

	found, err := exists(ctx, tx, "workflows", id)
	if err != nil {
		return storage.Scenario{}, err
	}
	if !found {
		return storage.Scenario{}, storage.NotFound("scenario", id)
	}
	if err := resolveScenarioReferences(ctx, tx, scenario, scenarioType); err != nil {
		return storage.Scenario{}, err
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE workflows
		    SET name = ?, description = ?, workflow_type = ?, issuer_id = ?, relying_party_id = ?, hidden = ?, updated_at = ?
		  WHERE id = ?`,
		strings.TrimSpace(scenario.Name),
		strings.TrimSpace(scenario.Description),
		string(scenarioType),
		toNullString(scenario.IssuerID),
		toNullString(scenario.RelyingPartyID),
		boolToInt(scenario.Hidden),
		toMillis(now()),
		id,
	); err != nil {
		return storage.Scenario{}, fmt.Errorf("update scenario: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM workflows_to_personas WHERE workflow_id = ?`, id); err != nil {
		return storage.Scenario{}, fmt.Errorf("clear persona links: %w", err)
	}
	if err := insertPersonaLinks(ctx, tx, "workflows_to_personas", "workflow_id", id, scenario.PersonaIDs); err != nil {
		return storage.Scenario{}, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM steps WHERE workflow_id = ?`, id); err != nil {
		return storage.Scenario{}, fmt.Errorf("clear steps: %w", err)
	}
	for _, step := range scenario.Steps {
		if _, err := insertStep(ctx, tx, id, step); err != nil {
			return storage.Scenario{}, err
		}
	}

	updated, err := getScenarioGraph(ctx, tx, id)
	if err != nil {
		return storage.Scenario{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.Scenario{}, fmt.Errorf("commit scenario: %w", err)
	}
	return updated, nil
}

// DeleteScenario removes one scenario; steps, actions, and proof requests
// cascade.
func (s *Store) DeleteScenario(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scenario: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete scenario: %w", err)
	}
	if affected == 0 {
		return storage.NotFound("scenario", id)
	}
	return nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
