package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/credencelab/showcase/internal/showcase/storage"
)

// Issuers and relying parties share one storage pattern over separate
// tables; partyTables binds the shared helpers to one side.
type partyTables struct {
	kind       string
	table      string
	linkTable  string
	linkColumn string
}

var (
	issuerTables = partyTables{
		kind:       "issuer",
		table:      "issuers",
		linkTable:  "issuers_to_credential_definitions",
		linkColumn: "issuer_id",
	}
	relyingPartyTables = partyTables{
		kind:       "relying party",
		table:      "relying_parties",
		linkTable:  "relying_parties_to_credential_definitions",
		linkColumn: "relying_party_id",
	}
)

// partyInput is the common pre-insert shape behind NewIssuer and
// NewRelyingParty.
type partyInput struct {
	Name                    string
	Type                    storage.PartyType
	Description             string
	Organization            string
	LogoID                  string
	CredentialDefinitionIDs []string
}

// resolvePartyReferences verifies every credential definition id and the
// optional logo before any party row is written.
func resolvePartyReferences(ctx context.Context, tx *sql.Tx, input partyInput) error {
	if len(input.CredentialDefinitionIDs) == 0 {
		return storage.ErrPartyCredentialDefinitionsRequired
	}
	for _, definitionID := range input.CredentialDefinitionIDs {
		found, err := exists(ctx, tx, "credential_definitions", definitionID)
		if err != nil {
			return err
		}
		if !found {
			return storage.NotFound("credential definition", definitionID)
		}
	}
	if logoID := strings.TrimSpace(input.LogoID); logoID != "" {
		if _, err := getAssetGraph(ctx, tx, logoID); err != nil {
			return err
		}
	}
	return nil
}

func insertPartyLinks(ctx context.Context, tx *sql.Tx, tables partyTables, partyID string, definitionIDs []string) error {
	for _, definitionID := range definitionIDs {
		if _, err := tx.ExecContext(
			ctx,
			fmt.Sprintf(`INSERT INTO %s (%s, credential_definition_id) VALUES (?, ?)`, tables.linkTable, tables.linkColumn),
			partyID,
			definitionID,
		); err != nil {
			return fmt.Errorf("link credential definition: %w", err)
		}
	}
	return nil
}

// createParty inserts one party row plus its credential-definition links and
// returns the new id. Reference resolution runs inside the same transaction
// as the writes.
func (s *Store) createParty(ctx context.Context, tables partyTables, input partyInput) (string, error) {
	if strings.TrimSpace(input.Name) == "" {
		return "", fmt.Errorf("%s name is required", tables.kind)
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if err := resolvePartyReferences(ctx, tx, input); err != nil {
		return "", err
	}

	id := newID()
	createdAt := now()
	if _, err := tx.ExecContext(
		ctx,
		fmt.Sprintf(
			`INSERT INTO %s (id, name, party_type, description, organization, logo_asset_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			tables.table,
		),
		id,
		strings.TrimSpace(input.Name),
		string(input.Type),
		strings.TrimSpace(input.Description),
		strings.TrimSpace(input.Organization),
		toNullString(input.LogoID),
		toMillis(createdAt),
		toMillis(createdAt),
	); err != nil {
		return "", fmt.Errorf("create %s: %w", tables.kind, err)
	}
	if err := insertPartyLinks(ctx, tx, tables, id, input.CredentialDefinitionIDs); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit %s: %w", tables.kind, err)
	}
	return id, nil
}

// updateParty replaces the scalar fields of one party and reinserts its link
// rows from scratch.
func (s *Store) updateParty(ctx context.Context, tables partyTables, id string, input partyInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%s name is required", tables.kind)
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	found, err := exists(ctx, tx, tables.table, id)
	if err != nil {
		return err
	}
	if !found {
		return storage.NotFound(tables.kind, id)
	}
	if err := resolvePartyReferences(ctx, tx, input); err != nil {
		return err
	}

	if _, err := tx.ExecContext(
		ctx,
		fmt.Sprintf(
			`UPDATE %s
			    SET name = ?, party_type = ?, description = ?, organization = ?, logo_asset_id = ?, updated_at = ?
			  WHERE id = ?`,
			tables.table,
		),
		strings.TrimSpace(input.Name),
		string(input.Type),
		strings.TrimSpace(input.Description),
		strings.TrimSpace(input.Organization),
		toNullString(input.LogoID),
		toMillis(now()),
		id,
	); err != nil {
		return fmt.Errorf("update %s: %w", tables.kind, err)
	}

	if _, err := tx.ExecContext(
		ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, tables.linkTable, tables.linkColumn),
		id,
	); err != nil {
		return fmt.Errorf("clear %s links: %w", tables.kind, err)
	}
	if err := insertPartyLinks(ctx, tx, tables, id, input.CredentialDefinitionIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", tables.kind, err)
	}
	return nil
}

func (s *Store) deleteParty(ctx context.Context, tables partyTables, id string) error {
	result, err := s.sqlDB.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, tables.table), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", tables.kind, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", tables.kind, err)
	}
	if affected == 0 {
		return storage.NotFound(tables.kind, id)
	}
	return nil
}

func (s *Store) listPartyIDs(ctx context.Context, tables partyTables) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s ORDER BY rowid ASC`, tables.table))
	if err != nil {
		return nil, fmt.Errorf("list %s ids: %w", tables.kind, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list %s ids: %w", tables.kind, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s ids: %w", tables.kind, err)
	}
	return ids, nil
}

// CreateIssuer inserts one issuer with its credential-definition links.
func (s *Store) CreateIssuer(ctx context.Context, issuer storage.NewIssuer) (storage.Issuer, error) {
	if err := ctx.Err(); err != nil {
		return storage.Issuer{}, err
	}
	if err := s.ready(); err != nil {
		return storage.Issuer{}, err
	}

	id, err := s.createParty(ctx, issuerTables, partyInput(issuer))
	if err != nil {
		return storage.Issuer{}, err
	}
	return getIssuerGraph(ctx, s.sqlDB, id)
}

// GetIssuer returns one issuer with nested credential definitions and logo.
func (s *Store) GetIssuer(ctx context.Context, id string) (storage.Issuer, error) {
	if err := ctx.Err(); err != nil {
		return storage.Issuer{}, err
	}
	if err := s.ready(); err != nil {
		return storage.Issuer{}, err
	}
	return getIssuerGraph(ctx, s.sqlDB, id)
}

// ListIssuers returns all issuers in the same nested shape as GetIssuer.
func (s *Store) ListIssuers(ctx context.Context) ([]storage.Issuer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	ids, err := s.listPartyIDs(ctx, issuerTables)
	if err != nil {
		return nil, err
	}
	issuers := make([]storage.Issuer, 0, len(ids))
	for _, id := range ids {
		issuer, err := getIssuerGraph(ctx, s.sqlDB, id)
		if err != nil {
			return nil, err
		}
		issuers = append(issuers, issuer)
	}
	return issuers, nil
}

// UpdateIssuer replaces the scalar fields and credential-definition links of
// one issuer.
func (s *Store) UpdateIssuer(ctx context.Context, id string, issuer storage.NewIssuer) (storage.Issuer, error) {
	if err := ctx.Err(); err != nil {
		return storage.Issuer{}, err
	}
	if err := s.ready(); err != nil {
		return storage.Issuer{}, err
	}

	if err := s.updateParty(ctx, issuerTables, id, partyInput(issuer)); err != nil {
		return storage.Issuer{}, err
	}
	return getIssuerGraph(ctx, s.sqlDB, id)
}

// DeleteIssuer removes one issuer; its link rows cascade, linked credential
// definitions stay.
func (s *Store) DeleteIssuer(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	return s.deleteParty(ctx, issuerTables, id)
}

// CreateRelyingParty inserts one relying party with its
// credential-definition links.
func (s *Store) CreateRelyingParty(ctx context.Context, party storage.NewRelyingParty) (storage.RelyingParty, error) {
	if err := ctx.Err(); err != nil {
		return storage.RelyingParty{}, err
	}
	if err := s.ready(); err != nil {
		return storage.RelyingParty{}, err
	}

	id, err := s.createParty(ctx, relyingPartyTables, partyInput(party))
	if err != nil {
		return storage.RelyingParty{}, err
	}
	return getRelyingPartyGraph(ctx, s.sqlDB, id)
}

// GetRelyingParty returns one relying party with nested credential
// definitions and logo.
func (s *Store) GetRelyingParty(ctx context.Context, id string) (storage.RelyingParty, error) {
	if err := ctx.Err(); err != nil {
		return storage.RelyingParty{}, err
	}
	if err := s.ready(); err != nil {
		return storage.RelyingParty{}, err
	}
	return getRelyingPartyGraph(ctx, s.sqlDB, id)
}

// ListRelyingParties returns all relying parties in the same nested shape as
// GetRelyingParty.
func (s *Store) ListRelyingParties(ctx context.Context) ([]storage.RelyingParty, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	ids, err := s.listPartyIDs(ctx, relyingPartyTables)
	if err != nil {
		return nil, err
	}
	parties := make([]storage.RelyingParty, 0, len(ids))
	for _, id := range ids {
		party, err := getRelyingPartyGraph(ctx, s.sqlDB, id)
		if err != nil {
			return nil, err
		}
		parties = append(parties, party)
	}
	return parties, nil
}

// UpdateRelyingParty replaces the scalar fields and credential-definition
// links of one relying party.
func (s *Store) UpdateRelyingParty(ctx context.Context, id string, party storage.NewRelyingParty) (storage.RelyingParty, error) {
	if err := ctx.Err(); err != nil {
		return storage.RelyingParty{}, err
	}
	if err := s.ready(); err != nil {
		return storage.RelyingParty{}, err
	}

	if err := s.updateParty(ctx, relyingPartyTables, id, partyInput(party)); err != nil {
		return storage.RelyingParty{}, err
	}
	return getRelyingPartyGraph(ctx, s.sqlDB, id)
}

// DeleteRelyingParty removes one relying party; its link rows cascade.
func (s *Store) DeleteRelyingParty(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	return s.deleteParty(ctx, relyingPartyTables, id)
}
