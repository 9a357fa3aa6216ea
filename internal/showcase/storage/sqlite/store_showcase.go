package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/credencelab/showcase/internal/showcase/storage"
)

// resolveShowcaseReferences verifies all three link sets inside the write
// transaction. Empty sets fail before any id is looked up.
func resolveShowcaseReferences(ctx context.Context, tx *sql.Tx, showcase storage.NewShowcase) error {
	if len(showcase.ScenarioIDs) == 0 {
		return storage.ErrShowcaseScenariosRequired
	}
	if len(showcase.CredentialDefinitionIDs) == 0 {
		return storage.ErrShowcaseCredentialDefinitionsRequired
	}
	if len(showcase.PersonaIDs) == 0 {
		return storage.ErrShowcasePersonasRequired
	}
	for _, scenarioID := range showcase.ScenarioIDs {
		found, err := exists(ctx, tx, "workflows", scenarioID)
		if err != nil {
			return err
		}
		if !found {
			return storage.NotFound("scenario", scenarioID)
		}
	}
	for _, definitionID := range showcase.CredentialDefinitionIDs {
		found, err := exists(ctx, tx, "credential_definitions", definitionID)
		if err != nil {
			return err
		}
		if !found {
			return storage.NotFound("credential definition", definitionID)
		}
	}
	for _, personaID := range showcase.PersonaIDs {
		found, err := exists(ctx, tx, "personas", personaID)
		if err != nil {
			return err
		}
		if !found {
			return storage.NotFound("persona", personaID)
		}
	}
	return nil
}

func insertShowcaseLinks(ctx context.Context, tx *sql.Tx, id string, showcase storage.NewShowcase) error {
	for _, scenarioID := range showcase.ScenarioIDs {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO showcases_to_scenarios (showcase_id, workflow_id) VALUES (?, ?)`,
			id,
			scenarioID,
		); err != nil {
			return fmt.Errorf("link scenario: %w", err)
		}
	}
	for _, definitionID := range showcase.CredentialDefinitionIDs {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO showcases_to_credential_definitions (showcase_id, credential_definition_id) VALUES (?, ?)`,
			id,
			definitionID,
		); err != nil {
			return fmt.Errorf("link credential definition: %w", err)
		}
	}
	return insertPersonaLinks(ctx, tx, "showcases_to_personas", "showcase_id", id, showcase.PersonaIDs)
}

func showcaseStatus(status storage.ShowcaseStatus) storage.ShowcaseStatus {
	if status == "" {
		return storage.ShowcaseStatusPending
	}
	return status
}

// CreateShowcase inserts one showcase with its scenario, credential
// definition, and persona links, and returns the assembled bundle.
func (s *Store) CreateShowcase(ctx context.Context, showcase storage.NewShowcase) (storage.Showcase, error) {
	if err := ctx.Err(); err != nil {
		return storage.Showcase{}, err
	}
	if err := s.ready(); err != nil {
		return storage.Showcase{}, err
	}
	if strings.TrimSpace(showcase.Name) == "" {
		return storage.Showcase{}, fmt.Errorf("showcase name is required")
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return storage.Showcase{}, err
	}
	defer tx.Rollback()

	if err := resolveShowcaseReferences(ctx, tx, showcase); err != nil {
		return storage.Showcase{}, err
	}

	id := newID()
	createdAt := now()
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO showcases (id, name, description, status, hidden, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		strings.TrimSpace(showcase.Name),
		strings.TrimSpace(showcase.Description),
		string(showcaseStatus(showcase.Status)),
		boolToInt(showcase.Hidden),
		toMillis(createdAt),
		toMillis(createdAt),
	); err != nil {
		return storage.Showcase{}, fmt.Errorf("create showcase: %w", err)
	}
	if err := insertShowcaseLinks(ctx, tx, id, showcase); err != nil {
		return storage.Showcase{}, err
	}

	created, err := getShowcaseGraph(ctx, tx, id)
	if err != nil {
		return storage.Showcase{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.Showcase{}, fmt.Errorf("commit showcase: %w", err)
	}
	return created, nil
}

// GetShowcase returns one showcase with all linked objects fully assembled.
func (s *Store) GetShowcase(ctx context.Context, id string) (storage.Showcase, error) {
	if err := ctx.Err(); err != nil {
		return storage.Showcase{}, err
	}
	if err := s.ready(); err != nil {
		return storage.Showcase{}, err
	}
	return getShowcaseGraph(ctx, s.sqlDB, id)
}

// ListShowcases returns all showcases in the same nested shape as
// GetShowcase.
func (s *Store) ListShowcases(ctx context.Context) ([]storage.Showcase, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id FROM showcases ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list showcases: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list showcases: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list showcases: %w", err)
	}

	showcases := make([]storage.Showcase, 0, len(ids))
	for _, id := range ids {
		showcase, err := getShowcaseGraph(ctx, s.sqlDB, id)
		if err != nil {
			return nil, err
		}
		showcases = append(showcases, showcase)
	}
	return showcases, nil
}

// UpdateShowcase replaces the scalar fields and all three link sets of one
// showcase. Link sets are not merged; the previous rows are removed first.
func (s *Store) UpdateShowcase(ctx context.Context, id string, showcase storage.NewShowcase) (storage.Showcase, error) {
	if err := ctx.Err(); err != nil {
		return storage.Showcase{}, err
	}
	if err := s.ready(); err != nil {
		return storage.Showcase{}, err
	}
	if strings.TrimSpace(showcase.Name) == "" {
		return storage.Showcase{}, fmt.Errorf("showcase name is required")
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return storage.Showcase{}, err
	}
	defer tx.Rollback()

	found, err := exists(ctx, tx, "showcases", id)
	if err != nil {
		return storage.Showcase{}, err
	}
	if !found {
		return storage.Showcase{}, storage.NotFound("showcase", id)
	}
	if err := resolveShowcaseReferences(ctx, tx, showcase); err != nil {
		return storage.Showcase{}, err
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE showcases
		    SET name = ?, description = ?, status = ?, hidden = ?, updated_at = ?
		  WHERE id = ?`,
		strings.TrimSpace(showcase.Name),
		strings.TrimSpace(showcase.Description),
		string(showcaseStatus(showcase.Status)),
		boolToInt(showcase.Hidden),
		toMillis(now()),
		id,
	); err != nil {
		return storage.Showcase{}, fmt.Errorf("update showcase: %w", err)
	}

	for _, table := range []string{"showcases_to_scenarios", "showcases_to_credential_definitions", "showcases_to_personas"} {
		if _, err := tx.ExecContext(
			ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE showcase_id = ?`, table),
			id,
		); err != nil {
			return storage.Showcase{}, fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := insertShowcaseLinks(ctx, tx, id, showcase); err != nil {
		return storage.Showcase{}, err
	}

	updated, err := getShowcaseGraph(ctx, tx, id)
	if err != nil {
		return storage.Showcase{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.Showcase{}, fmt.Errorf("commit showcase: %w", err)
	}
	return updated, nil
}

// DeleteShowcase removes one showcase; its link rows cascade, linked objects
// stay.
func (s *Store) DeleteShowcase(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM showcases WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete showcase: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete showcase: %w", err)
	}
	if affected == 0 {
		return storage.NotFound("showcase", id)
	}
	return nil
}
