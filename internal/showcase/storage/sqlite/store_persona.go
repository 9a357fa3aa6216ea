package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/credencelab/showcase/internal/showcase/storage"
)

// resolvePersonaAssets verifies the optional image references before any
// persona row is written.
func resolvePersonaAssets(ctx context.Context, q querier, persona storage.NewPersona) error {
	for _, assetID := range []string{persona.HeadshotImageID, persona.BodyImageID} {
		if strings.TrimSpace(assetID) == "" {
			continue
		}
		if _, err := getAssetGraph(ctx, q, assetID); err != nil {
			return err
		}
	}
	return nil
}

// CreatePersona inserts one persona and returns it with both image assets
// resolved.
func (s *Store) CreatePersona(ctx context.Context, persona storage.NewPersona) (storage.Persona, error) {
	if err := ctx.Err(); err != nil {
		return storage.Persona{}, err
	}
	if err := s.ready(); err != nil {
		return storage.Persona{}, err
	}
	if strings.TrimSpace(persona.Name) == "" {
		return storage.Persona{}, fmt.Errorf("persona name is required")
	}
	if strings.TrimSpace(persona.Role) == "" {
		return storage.Persona{}, fmt.Errorf("persona role is required")
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return storage.Persona{}, err
	}
	defer tx.Rollback()

	if err := resolvePersonaAssets(ctx, tx, persona); err != nil {
		return storage.Persona{}, err
	}

	id := newID()
	createdAt := now()
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO personas (id, name, role, description, headshot_image_id, body_image_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		strings.TrimSpace(persona.Name),
		strings.TrimSpace(persona.Role),
		strings.TrimSpace(persona.Description),
		toNullString(persona.HeadshotImageID),
		toNullString(persona.BodyImageID),
		toMillis(createdAt),
		toMillis(createdAt),
	); err != nil {
		return storage.Persona{}, fmt.Errorf("create persona: %w", err)
	}

	created, err := getPersonaGraph(ctx, tx, id)
	if err != nil {
		return storage.Persona{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.Persona{}, fmt.Errorf("commit persona: %w", err)
	}
	return created, nil
}

// GetPersona returns one persona by id with image assets resolved.
func (s *Store) GetPersona(ctx context.Context, id string) (storage.Persona, error) {
	if err := ctx.Err(); err != nil {
		return storage.Persona{}, err
	}
	if err := s.ready(); err != nil {
		return storage.Persona{}, err
	}
	return getPersonaGraph(ctx, s.sqlDB, id)
}

// ListPersonas returns all personas with image assets resolved.
func (s *Store) ListPersonas(ctx context.Context) ([]storage.Persona, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id FROM personas ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list personas: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list personas: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list personas: %w", err)
	}

	personas := make([]storage.Persona, 0, len(ids))
	for _, id := range ids {
		persona, err := getPersonaGraph(ctx, s.sqlDB, id)
		if err != nil {
			return nil, err
		}
		personas = append(personas, persona)
	}
	return personas, nil
}

// UpdatePersona replaces the scalar fields and image references of one
// persona.
func (s *Store) UpdatePersona(ctx context.Context, id string, persona storage.NewPersona) (storage.Persona, error) {
	if err := ctx.Err(); err != nil {
		return storage.Persona{}, err
	}
	if err := s.ready(); err != nil {
		return storage.Persona{}, err
	}
	if strings.TrimSpace(persona.Name) == "" {
		return storage.Persona{}, fmt.Errorf("persona name is required")
	}
	if strings.TrimSpace(persona.Role) == "" {
		return storage.Persona{}, fmt.Errorf("persona role is required")
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return storage.Persona{}, err
	}
	defer tx.Rollback()

	found, err := exists(ctx, tx, "personas", id)
	if err != nil {
		return storage.Persona{}, err
	}
	if !found {
		return storage.Persona{}, storage.NotFound("persona", id)
	}
	if err := resolvePersonaAssets(ctx, tx, persona); err != nil {
		return storage.Persona{}, err
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE personas
		    SET name = ?, role = ?, description = ?, headshot_image_id = ?, body_image_id = ?, updated_at = ?
		  WHERE id = ?`,
		strings.TrimSpace(persona.Name),
		strings.TrimSpace(persona.Role),
		strings.TrimSpace(persona.Description),
		toNullString(persona.HeadshotImageID),
		toNullString(persona.BodyImageID),
		toMillis(now()),
		id,
	); err != nil {
		return storage.Persona{}, fmt.Errorf("update persona: %w", err)
	}

	updated, err := getPersonaGraph(ctx, tx, id)
	if err != nil {
		return storage.Persona{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.Persona{}, fmt.Errorf("commit persona: %w", err)
	}
	return updated, nil
}

// DeletePersona removes one persona; pure join rows referencing it are
// removed by cascade.
func (s *Store) DeletePersona(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM personas WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete persona: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete persona: %w", err)
	}
	if affected == 0 {
		return storage.NotFound("persona", id)
	}
	return nil
}
