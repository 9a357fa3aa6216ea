package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/credencelab/showcase/internal/showcase/storage"
)

// Shared graph loaders. Every aggregate read path goes through these so the
// nested shape of a credential definition, party, persona, or scenario is
// identical no matter which store returned it.

func getAssetGraph(ctx context.Context, q querier, id string) (storage.Asset, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT id, media_type, file_name, description, content, created_at, updated_at
		   FROM assets
		  WHERE id = ?`,
		id,
	)

	var asset storage.Asset
	var createdAt, updatedAt int64
	err := row.Scan(
		&asset.ID,
		&asset.MediaType,
		&asset.FileName,
		&asset.Description,
		&asset.Content,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Asset{}, storage.NotFound("asset", id)
		}
		return storage.Asset{}, fmt.Errorf("get asset: %w", err)
	}
	asset.CreatedAt = fromMillis(createdAt)
	asset.UpdatedAt = fromMillis(updatedAt)
	return asset, nil
}

func loadOptionalAsset(ctx context.Context, q querier, id sql.NullString) (*storage.Asset, error) {
	if !id.Valid {
		return nil, nil
	}
	asset, err := getAssetGraph(ctx, q, id.String)
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

func getPersonaGraph(ctx context.Context, q querier, id string) (storage.Persona, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT id, name, role, description, headshot_image_id, body_image_id, created_at, updated_at
		   FROM personas
		  WHERE id = ?`,
		id,
	)

	var persona storage.Persona
	var headshotID, bodyID sql.NullString
	var createdAt, updatedAt int64
	err := row.Scan(
		&persona.ID,
		&persona.Name,
		&persona.Role,
		&persona.Description,
		&headshotID,
		&bodyID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Persona{}, storage.NotFound("persona", id)
		}
		return storage.Persona{}, fmt.Errorf("get persona: %w", err)
	}
	persona.CreatedAt = fromMillis(createdAt)
	persona.UpdatedAt = fromMillis(updatedAt)

	if persona.HeadshotImage, err = loadOptionalAsset(ctx, q, headshotID); err != nil {
		return storage.Persona{}, err
	}
	if persona.BodyImage, err = loadOptionalAsset(ctx, q, bodyID); err != nil {
		return storage.Persona{}, err
	}
	return persona, nil
}

func getCredentialDefinitionGraph(ctx context.Context, q querier, id string) (storage.CredentialDefinition, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT id, name, version, credential_type, icon_asset_id, created_at, updated_at
		   FROM credential_definitions
		  WHERE id = ?`,
		id,
	)

	var def storage.CredentialDefinition
	var credentialType, iconID string
	var createdAt, updatedAt int64
	err := row.Scan(&def.ID, &def.Name, &def.Version, &credentialType, &iconID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.CredentialDefinition{}, storage.NotFound("credential definition", id)
		}
		return storage.CredentialDefinition{}, fmt.Errorf("get credential definition: %w", err)
	}
	def.Type = storage.CredentialType(credentialType)
	def.CreatedAt = fromMillis(createdAt)
	def.UpdatedAt = fromMillis(updatedAt)

	icon, err := getAssetGraph(ctx, q, iconID)
	if err != nil {
		return storage.CredentialDefinition{}, err
	}
	def.Icon = &icon

	if def.Attributes, err = listCredentialAttributes(ctx, q, id); err != nil {
		return storage.CredentialDefinition{}, err
	}
	if def.Representations, err = listCredentialRepresentations(ctx, q, id); err != nil {
		return storage.CredentialDefinition{}, err
	}
	if def.Revocation, err = getRevocationInfo(ctx, q, id); err != nil {
		return storage.CredentialDefinition{}, err
	}
	return def, nil
}

func listCredentialAttributes(ctx context.Context, q querier, definitionID string) ([]storage.CredentialAttribute, error) {
	rows, err := q.QueryContext(
		ctx,
		`SELECT id, name, attribute_value, attribute_type
		   FROM credential_attributes
		  WHERE credential_definition_id = ?
		  ORDER BY rowid ASC`,
		definitionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list credential attributes: %w", err)
	}
	defer rows.Close()

	var attributes []storage.CredentialAttribute
	for rows.Next() {
		var attr storage.CredentialAttribute
		var attrType string
		if err := rows.Scan(&attr.ID, &attr.Name, &attr.Value, &attrType); err != nil {
			return nil, fmt.Errorf("list credential attributes: %w", err)
		}
		attr.Type = storage.CredentialAttributeType(attrType)
		attributes = append(attributes, attr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list credential attributes: %w", err)
	}
	return attributes, nil
}

func listCredentialRepresentations(ctx context.Context, q querier, definitionID string) ([]storage.CredentialRepresentation, error) {
	rows, err := q.QueryContext(
		ctx,
		`SELECT id, created_at, updated_at
		   FROM credential_representations
		  WHERE credential_definition_id = ?
		  ORDER BY rowid ASC`,
		definitionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list credential representations: %w", err)
	}
	defer rows.Close()

	var representations []storage.CredentialRepresentation
	for rows.Next() {
		var rep storage.CredentialRepresentation
		var createdAt, updatedAt int64
		if err := rows.Scan(&rep.ID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("list credential representations: %w", err)
		}
		rep.CreatedAt = fromMillis(createdAt)
		rep.UpdatedAt = fromMillis(updatedAt)
		representations = append(representations, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list credential representations: %w", err)
	}
	return representations, nil
}

func getRevocationInfo(ctx context.Context, q querier, definitionID string) (*storage.RevocationInfo, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT id, title, description, created_at, updated_at
		   FROM revocation_info
		  WHERE credential_definition_id = ?`,
		definitionID,
	)

	var info storage.RevocationInfo
	var createdAt, updatedAt int64
	err := row.Scan(&info.ID, &info.Title, &info.Description, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get revocation info: %w", err)
	}
	info.CreatedAt = fromMillis(createdAt)
	info.UpdatedAt = fromMillis(updatedAt)
	return &info, nil
}

// linkedCredentialDefinitions flattens a party's join rows to plain
// credential definition objects, preserving link insertion order.
func linkedCredentialDefinitions(ctx context.Context, q querier, linkTable, partyColumn, partyID string) ([]storage.CredentialDefinition, error) {
	ids, err := linkIDs(ctx, q, linkTable, partyColumn, "credential_definition_id", partyID)
	if err != nil {
		return nil, err
	}

	defs := make([]storage.CredentialDefinition, 0, len(ids))
	for _, id := range ids {
		def, err := getCredentialDefinitionGraph(ctx, q, id)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func getIssuerGraph(ctx context.Context, q querier, id string) (storage.Issuer, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT id, name, party_type, description, organization, logo_asset_id, created_at, updated_at
		   FROM issuers
		  WHERE id = ?`,
		id,
	)

	var issuer storage.Issuer
	var partyType string
	var logoID sql.NullString
	var createdAt, updatedAt int64
	err := row.Scan(
		&issuer.ID,
		&issuer.Name,
		&partyType,
		&issuer.Description,
		&issuer.Organization,
		&logoID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Issuer{}, storage.NotFound("issuer", id)
		}
		return storage.Issuer{}, fmt.Errorf("get issuer: %w", err)
	}
	issuer.Type = storage.PartyType(partyType)
	issuer.CreatedAt = fromMillis(createdAt)
	issuer.UpdatedAt = fromMillis(updatedAt)

	if issuer.Logo, err = loadOptionalAsset(ctx, q, logoID); err != nil {
		return storage.Issuer{}, err
	}
	if issuer.CredentialDefinitions, err = linkedCredentialDefinitions(ctx, q, "issuers_to_credential_definitions", "issuer_id", id); err != nil {
		return storage.Issuer{}, err
	}
	return issuer, nil
}

func getRelyingPartyGraph(ctx context.Context, q querier, id string) (storage.RelyingParty, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT id, name, party_type, description, organization, logo_asset_id, created_at, updated_at
		   FROM relying_parties
		  WHERE id = ?`,
		id,
	)

	var party storage.RelyingParty
	var partyType string
	var logoID sql.NullString
	var createdAt, updatedAt int64
	err := row.Scan(
		&party.ID,
		&party.Name,
		&partyType,
		&party.Description,
		&party.Organization,
		&logoID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.RelyingParty{}, storage.NotFound("relying party", id)
		}
		return storage.RelyingParty{}, fmt.Errorf("get relying party: %w", err)
	}
	party.Type = storage.PartyType(partyType)
	party.CreatedAt = fromMillis(createdAt)
	party.UpdatedAt = fromMillis(updatedAt)

	if party.Logo, err = loadOptionalAsset(ctx, q, logoID); err != nil {
		return storage.RelyingParty{}, err
	}
	if party.CredentialDefinitions, err = linkedCredentialDefinitions(ctx, q, "relying_parties_to_credential_definitions", "relying_party_id", id); err != nil {
		return storage.RelyingParty{}, err
	}
	return party, nil
}

func getProofRequest(ctx context.Context, q querier, actionID string) (*storage.ProofRequest, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT attributes_json, predicates_json FROM proof_requests WHERE step_action_id = ?`,
		actionID,
	)

	var attributesJSON, predicatesJSON string
	err := row.Scan(&attributesJSON, &predicatesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get proof request: %w", err)
	}

	var request storage.ProofRequest
	if err := json.Unmarshal([]byte(attributesJSON), &request.Attributes); err != nil {
		return nil, fmt.Errorf("decode proof request attributes: %w", err)
	}
	if err := json.Unmarshal([]byte(predicatesJSON), &request.Predicates); err != nil {
		return nil, fmt.Errorf("decode proof request predicates: %w", err)
	}
	return &request, nil
}

func listStepActionsGraph(ctx context.Context, q querier, stepID string) ([]storage.StepAction, error) {
	rows, err := q.QueryContext(
		ctx,
		`SELECT id, title, action_type, action_text, created_at, updated_at
		   FROM step_actions
		  WHERE step_id = ?
		  ORDER BY rowid ASC`,
		stepID,
	)
	if err != nil {
		return nil, fmt.Errorf("list step actions: %w", err)
	}
	defer rows.Close()

	var actions []storage.StepAction
	for rows.Next() {
		var action storage.StepAction
		var actionType string
		var createdAt, updatedAt int64
		if err := rows.Scan(&action.ID, &action.Title, &actionType, &action.Text, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("list step actions: %w", err)
		}
		action.Type = storage.StepActionType(actionType)
		action.CreatedAt = fromMillis(createdAt)
		action.UpdatedAt = fromMillis(updatedAt)
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list step actions: %w", err)
	}

	for i := range actions {
		if actions[i].ProofRequest, err = getProofRequest(ctx, q, actions[i].ID); err != nil {
			return nil, err
		}
	}
	return actions, nil
}

func scanStepRow(row interface{ Scan(dest ...any) error }) (storage.Step, sql.NullString, error) {
	var step storage.Step
	var stepType string
	var assetID, subWorkflowID sql.NullString
	var createdAt, updatedAt int64
	err := row.Scan(
		&step.ID,
		&step.Title,
		&step.Description,
		&step.Order,
		&stepType,
		&assetID,
		&subWorkflowID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return storage.Step{}, sql.NullString{}, err
	}
	step.Type = storage.StepType(stepType)
	step.SubScenarioID = fromNullString(subWorkflowID)
	step.CreatedAt = fromMillis(createdAt)
	step.UpdatedAt = fromMillis(updatedAt)
	return step, assetID, nil
}

func hydrateStep(ctx context.Context, q querier, step storage.Step, assetID sql.NullString) (storage.Step, error) {
	var err error
	if step.Asset, err = loadOptionalAsset(ctx, q, assetID); err != nil {
		return storage.Step{}, err
	}
	if step.Actions, err = listStepActionsGraph(ctx, q, step.ID); err != nil {
		return storage.Step{}, err
	}
	return step, nil
}

// listStepsGraph returns the fully hydrated steps of a scenario sorted
// ascending by step order. Every read path funnels through here so the
// ordering rule holds uniformly.
func listStepsGraph(ctx context.Context, q querier, workflowID string) ([]storage.Step, error) {
	rows, err := q.QueryContext(
		ctx,
		`SELECT id, title, description, step_order, step_type, asset_id, sub_workflow_id, created_at, updated_at
		   FROM steps
		  WHERE workflow_id = ?
		  ORDER BY step_order ASC`,
		workflowID,
	)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	type pendingStep struct {
		step    storage.Step
		assetID sql.NullString
	}
	var pending []pendingStep
	for rows.Next() {
		step, assetID, err := scanStepRow(rows)
		if err != nil {
			return nil, fmt.Errorf("list steps: %w", err)
		}
		pending = append(pending, pendingStep{step: step, assetID: assetID})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}

	var steps []storage.Step
	for _, p := range pending {
		step, err := hydrateStep(ctx, q, p.step, p.assetID)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func getScenarioGraph(ctx context.Context, q querier, id string) (storage.Scenario, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT id, name, description, workflow_type, issuer_id, relying_party_id, hidden, created_at, updated_at
		   FROM workflows
		  WHERE id = ?`,
		id,
	)

	var scenario storage.Scenario
	var workflowType string
	var issuerID, relyingPartyID sql.NullString
	var hidden int
	var createdAt, updatedAt int64
	err := row.Scan(
		&scenario.ID,
		&scenario.Name,
		&scenario.Description,
		&workflowType,
		&issuerID,
		&relyingPartyID,
		&hidden,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Scenario{}, storage.NotFound("scenario", id)
		}
		return storage.Scenario{}, fmt.Errorf("get scenario: %w", err)
	}
	scenario.Type = storage.ScenarioType(workflowType)
	scenario.Hidden = hidden != 0
	scenario.CreatedAt = fromMillis(createdAt)
	scenario.UpdatedAt = fromMillis(updatedAt)

	if issuerID.Valid {
		issuer, err := getIssuerGraph(ctx, q, issuerID.String)
		if err != nil {
			return storage.Scenario{}, err
		}
		scenario.Issuer = &issuer
	}
	if relyingPartyID.Valid {
		party, err := getRelyingPartyGraph(ctx, q, relyingPartyID.String)
		if err != nil {
			return storage.Scenario{}, err
		}
		scenario.RelyingParty = &party
	}

	if scenario.Personas, err = linkedPersonas(ctx, q, "workflows_to_personas", "workflow_id", id); err != nil {
		return storage.Scenario{}, err
	}
	if scenario.Steps, err = listStepsGraph(ctx, q, id); err != nil {
		return storage.Scenario{}, err
	}
	return scenario, nil
}

// linkedPersonas flattens persona join rows to plain persona objects,
// preserving link insertion order.
func linkedPersonas(ctx context.Context, q querier, linkTable, ownerColumn, ownerID string) ([]storage.Persona, error) {
	ids, err := linkIDs(ctx, q, linkTable, ownerColumn, "persona_id", ownerID)
	if err != nil {
		return nil, err
	}

	personas := make([]storage.Persona, 0, len(ids))
	for _, id := range ids {
		persona, err := getPersonaGraph(ctx, q, id)
		if err != nil {
			return nil, err
		}
		personas = append(personas, persona)
	}
	return personas, nil
}

func getShowcaseGraph(ctx context.Context, q querier, id string) (storage.Showcase, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT id, name, description, status, hidden, created_at, updated_at
		   FROM showcases
		  WHERE id = ?`,
		id,
	)

	var showcase storage.Showcase
	var status string
	var hidden int
	var createdAt, updatedAt int64
	err := row.Scan(
		&showcase.ID,
		&showcase.Name,
		&showcase.Description,
		&status,
		&hidden,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Showcase{}, storage.NotFound("showcase", id)
		}
		return storage.Showcase{}, fmt.Errorf("get showcase: %w", err)
	}
	showcase.Status = storage.ShowcaseStatus(status)
	showcase.Hidden = hidden != 0
	showcase.CreatedAt = fromMillis(createdAt)
	showcase.UpdatedAt = fromMillis(updatedAt)

	scenarioIDs, err := linkIDs(ctx, q, "showcases_to_scenarios", "showcase_id", "workflow_id", id)
	if err != nil {
		return storage.Showcase{}, err
	}
	showcase.Scenarios = make([]storage.Scenario, 0, len(scenarioIDs))
	for _, scenarioID := range scenarioIDs {
		scenario, err := getScenarioGraph(ctx, q, scenarioID)
		if err != nil {
			return storage.Showcase{}, err
		}
		showcase.Scenarios = append(showcase.Scenarios, scenario)
	}

	definitionIDs, err := linkIDs(ctx, q, "showcases_to_credential_definitions", "showcase_id", "credential_definition_id", id)
	if err != nil {
		return storage.Showcase{}, err
	}
	showcase.CredentialDefinitions = make([]storage.CredentialDefinition, 0, len(definitionIDs))
	for _, definitionID := range definitionIDs {
		def, err := getCredentialDefinitionGraph(ctx, q, definitionID)
		if err != nil {
			return storage.Showcase{}, err
		}
		showcase.CredentialDefinitions = append(showcase.CredentialDefinitions, def)
	}

	if showcase.Personas, err = linkedPersonas(ctx, q, "showcases_to_personas", "showcase_id", id); err != nil {
		return storage.Showcase{}, err
	}
	return showcase, nil
}

func linkIDs(ctx context.Context, q querier, linkTable, ownerColumn, targetColumn, ownerID string) ([]string, error) {
	rows, err := q.QueryContext(
		ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? ORDER BY rowid ASC`, targetColumn, linkTable, ownerColumn),
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s links: %w", linkTable, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list %s links: %w", linkTable, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s links: %w", linkTable, err)
	}
	return ids, nil
}
