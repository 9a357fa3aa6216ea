package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/credencelab/showcase/internal/showcase/storage"
)

// CreateAsset inserts one binary asset and returns the stored row.
func (s *Store) CreateAsset(ctx context.Context, asset storage.NewAsset) (storage.Asset, error) {
	if err := ctx.Err(); err != nil {
		return storage.Asset{}, err
	}
	if err := s.ready(); err != nil {
		return storage.Asset{}, err
	}
	if strings.TrimSpace(asset.MediaType) == "" {
		return storage.Asset{}, fmt.Errorf("media type is required")
	}
	if len(asset.Content) == 0 {
		return storage.Asset{}, fmt.Errorf("asset content is required")
	}

	id := newID()
	createdAt := now()
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO assets (id, media_type, file_name, description, content, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		strings.TrimSpace(asset.MediaType),
		strings.TrimSpace(asset.FileName),
		strings.TrimSpace(asset.Description),
		asset.Content,
		toMillis(createdAt),
		toMillis(createdAt),
	)
	if err != nil {
		return storage.Asset{}, fmt.Errorf("create asset: %w", err)
	}
	return getAssetGraph(ctx, s.sqlDB, id)
}

// GetAsset returns one asset by id.
func (s *Store) GetAsset(ctx context.Context, id string) (storage.Asset, error) {
	if err := ctx.Err(); err != nil {
		return storage.Asset{}, err
	}
	if err := s.ready(); err != nil {
		return storage.Asset{}, err
	}
	return getAssetGraph(ctx, s.sqlDB, id)
}

// ListAssets returns all assets, unordered.
func (s *Store) ListAssets(ctx context.Context) ([]storage.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, media_type, file_name, description, content, created_at, updated_at FROM assets`,
	)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []storage.Asset
	for rows.Next() {
		var asset storage.Asset
		var createdAt, updatedAt int64
		if err := rows.Scan(
			&asset.ID,
			&asset.MediaType,
			&asset.FileName,
			&asset.Description,
			&asset.Content,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("list assets: %w", err)
		}
		asset.CreatedAt = fromMillis(createdAt)
		asset.UpdatedAt = fromMillis(updatedAt)
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return assets, nil
}

// UpdateAsset replaces the scalar fields and content of one asset.
func (s *Store) UpdateAsset(ctx context.Context, id string, asset storage.NewAsset) (storage.Asset, error) {
	if err := ctx.Err(); err != nil {
		return storage.Asset{}, err
	}
	if err := s.ready(); err != nil {
		return storage.Asset{}, err
	}
	if strings.TrimSpace(asset.MediaType) == "" {
		return storage.Asset{}, fmt.Errorf("media type is required")
	}
	if len(asset.Content) == 0 {
		return storage.Asset{}, fmt.Errorf("asset content is required")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE assets
		    SET media_type = ?, file_name = ?, description = ?, content = ?, updated_at = ?
		  WHERE id = ?`,
		strings.TrimSpace(asset.MediaType),
		strings.TrimSpace(asset.FileName),
		strings.TrimSpace(asset.Description),
		asset.Content,
		toMillis(now()),
		id,
	)
	if err != nil {
		return storage.Asset{}, fmt.Errorf("update asset: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storage.Asset{}, fmt.Errorf("update asset: %w", err)
	}
	if affected == 0 {
		return storage.Asset{}, storage.NotFound("asset", id)
	}
	return getAssetGraph(ctx, s.sqlDB, id)
}

// DeleteAsset removes one asset. Dependents guard their references through
// foreign keys, so deleting a referenced asset fails at the driver level.
func (s *Store) DeleteAsset(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	if affected == 0 {
		return storage.NotFound("asset", id)
	}
	return nil
}
