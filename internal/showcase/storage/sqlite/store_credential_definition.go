package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	apperrors "github.com/credencelab/showcase/internal/platform/errors"
	"github.com/credencelab/showcase/internal/showcase/storage"
)

// resolveIcon returns the asset id backing a definition's icon, creating the
// asset first when the payload is inline. Exactly one of IconID and Icon must
// be set.
func resolveIcon(ctx context.Context, tx *sql.Tx, def storage.NewCredentialDefinition) (string, error) {
	iconID := strings.TrimSpace(def.IconID)
	switch {
	case iconID != "" && def.Icon != nil:
		return "", apperrors.New(apperrors.CodeCredentialDefinitionIconRequired, "icon id and inline icon are mutually exclusive")
	case iconID != "":
		if _, err := getAssetGraph(ctx, tx, iconID); err != nil {
			return "", err
		}
		return iconID, nil
	case def.Icon != nil:
		id := newID()
		createdAt := now()
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO assets (id, media_type, file_name, description, content, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id,
			strings.TrimSpace(def.Icon.MediaType),
			strings.TrimSpace(def.Icon.FileName),
			strings.TrimSpace(def.Icon.Description),
			def.Icon.Content,
			toMillis(createdAt),
			toMillis(createdAt),
		); err != nil {
			return "", fmt.Errorf("create icon asset: %w", err)
		}
		return id, nil
	default:
		return "", storage.ErrCredentialDefinitionIconRequired
	}
}

// insertCredentialDefinitionChildren writes the attribute, representation,
// and revocation rows for one definition.
func insertCredentialDefinitionChildren(ctx context.Context, tx *sql.Tx, definitionID string, def storage.NewCredentialDefinition) error {
	for _, attr := range def.Attributes {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO credential_attributes (id, credential_definition_id, name, attribute_value, attribute_type)
			 VALUES (?, ?, ?, ?, ?)`,
			newID(),
			definitionID,
			attr.Name,
			attr.Value,
			string(attr.Type),
		); err != nil {
			return fmt.Errorf("create credential attribute: %w", err)
		}
	}
	for range def.Representations {
		createdAt := now()
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO credential_representations (id, credential_definition_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?)`,
			newID(),
			definitionID,
			toMillis(createdAt),
			toMillis(createdAt),
		); err != nil {
			return fmt.Errorf("create credential representation: %w", err)
		}
	}
	if def.Revocation != nil {
		createdAt := now()
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO revocation_info (id, credential_definition_id, title, description, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			newID(),
			definitionID,
			def.Revocation.Title,
			def.Revocation.Description,
			toMillis(createdAt),
			toMillis(createdAt),
		); err != nil {
			return fmt.Errorf("create revocation info: %w", err)
		}
	}
	return nil
}

// CreateCredentialDefinition inserts one definition with its owned children
// and returns the assembled object.
func (s *Store) CreateCredentialDefinition(ctx context.Context, def storage.NewCredentialDefinition) (storage.CredentialDefinition, error) {
	if err := ctx.Err(); err != nil {
		return storage.CredentialDefinition{}, err
	}
	if err := s.ready(); err != nil {
		return storage.CredentialDefinition{}, err
	}
	if strings.TrimSpace(def.Name) == "" {
		return storage.CredentialDefinition{}, fmt.Errorf("credential definition name is required")
	}
	if strings.TrimSpace(def.Version) == "" {
		return storage.CredentialDefinition{}, fmt.Errorf("credential definition version is required")
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return storage.CredentialDefinition{}, err
	}
	defer tx.Rollback()

	iconID, err := resolveIcon(ctx, tx, def)
	if err != nil {
		return storage.CredentialDefinition{}, err
	}

	id := newID()
	createdAt := now()
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO credential_definitions (id, name, version, credential_type, icon_asset_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		strings.TrimSpace(def.Name),
		strings.TrimSpace(def.Version),
		string(def.Type),
		iconID,
		toMillis(createdAt),
		toMillis(createdAt),
	); err != nil {
		return storage.CredentialDefinition{}, fmt.Errorf("create credential definition: %w", err)
	}
	if err := insertCredentialDefinitionChildren(ctx, tx, id, def); err != nil {
		return storage.CredentialDefinition{}, err
	}

	created, err := getCredentialDefinitionGraph(ctx, tx, id)
	if err != nil {
		return storage.CredentialDefinition{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.CredentialDefinition{}, fmt.Errorf("commit credential definition: %w", err)
	}
	return created, nil
}

// GetCredentialDefinition returns one definition with attributes,
// representations, and revocation info attached.
func (s *Store) GetCredentialDefinition(ctx context.Context, id string) (storage.CredentialDefinition, error) {
	if err := ctx.Err(); err != nil {
		return storage.CredentialDefinition{}, err
	}
	if err := s.ready(); err != nil {
		return storage.CredentialDefinition{}, err
	}
	return getCredentialDefinitionGraph(ctx, s.sqlDB, id)
}

// ListCredentialDefinitions returns all definitions in the same nested shape
// as GetCredentialDefinition.
func (s *Store) ListCredentialDefinitions(ctx context.Context) ([]storage.CredentialDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id FROM credential_definitions ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list credential definitions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list credential definitions: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list credential definitions: %w", err)
	}

	defs := make([]storage.CredentialDefinition, 0, len(ids))
	for _, id := range ids {
		def, err := getCredentialDefinitionGraph(ctx, s.sqlDB, id)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// UpdateCredentialDefinition replaces the scalar fields and the entire child
// collection set of one definition. Children are not merged; the previous
// attribute, representation, and revocation rows are removed first.
func (s *Store) UpdateCredentialDefinition(ctx context.Context, id string, def storage.NewCredentialDefinition) (storage.CredentialDefinition, error) {
	if err := ctx.Err(); err != nil {
		return storage.CredentialDefinition{}, err
	}
	if err := s.ready(); err != nil {
		return storage.CredentialDefinition{}, err
	}
	if strings.TrimSpace(def.Name) == "" {
		return storage.CredentialDefinition{}, fmt.Errorf("credential definition name is required")
	}
	if strings.TrimSpace(def.Version) == "" {
		return storage.CredentialDefinition{}, fmt.Errorf("credential definition version is required")
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return storage.CredentialDefinition{}, err
	}
	defer tx.Rollback()

	found, err := exists(ctx, tx, "credential_definitions", id)
	if err != nil {
		return storage.CredentialDefinition{}, err
	}
	if !found {
		return storage.CredentialDefinition{}, storage.NotFound("credential definition", id)
	}

	iconID, err := resolveIcon(ctx, tx, def)
	if err != nil {
		return storage.CredentialDefinition{}, err
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE credential_definitions
		    SET name = ?, version = ?, credential_type = ?, icon_asset_id = ?, updated_at = ?
		  WHERE id = ?`,
		strings.TrimSpace(def.Name),
		strings.TrimSpace(def.Version),
		string(def.Type),
		iconID,
		toMillis(now()),
		id,
	); err != nil {
		return storage.CredentialDefinition{}, fmt.Errorf("update credential definition: %w", err)
	}

	for _, table := range []string{"credential_attributes", "credential_representations", "revocation_info"} {
		if _, err := tx.ExecContext(
			ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE credential_definition_id = ?`, table),
			id,
		); err != nil {
			return storage.CredentialDefinition{}, fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := insertCredentialDefinitionChildren(ctx, tx, id, def); err != nil {
		return storage.CredentialDefinition{}, err
	}

	updated, err := getCredentialDefinitionGraph(ctx, tx, id)
	if err != nil {
		return storage.CredentialDefinition{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.CredentialDefinition{}, fmt.Errorf("commit credential definition: %w", err)
	}
	return updated, nil
}

// DeleteCredentialDefinition removes one definition; owned children and pure
// join rows cascade.
func (s *Store) DeleteCredentialDefinition(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM credential_definitions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete credential definition: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete credential definition: %w", err)
	}
	if affected == 0 {
		return storage.NotFound("credential definition", id)
	}
	return nil
}
