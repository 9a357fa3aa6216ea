package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/credencelab/showcase/internal/showcase/storage"
)

func TestCreateCredentialDefinitionWithInlineIcon(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	created, err := store.CreateCredentialDefinition(context.Background(), storage.NewCredentialDefinition{
		Name:    "Student Card",
		Version: "1.0",
		Type:    storage.CredentialTypeAnoncred,
		Icon: &storage.NewAsset{
			MediaType: "image/png",
			Content:   []byte{0x89, 0x50},
		},
		Attributes: []storage.NewCredentialAttribute{
			{Name: "student_first_name", Value: "Ana", Type: storage.CredentialAttributeTypeString},
			{Name: "expiry_date", Value: "20270101", Type: storage.CredentialAttributeTypeDate},
		},
		Representations: []storage.NewCredentialRepresentation{{}},
		Revocation: &storage.NewRevocationInfo{
			Title:       "Revocation",
			Description: "Revoke the card when the student leaves",
		},
	})
	if err != nil {
		t.Fatalf("create credential definition: %v", err)
	}
	if created.Icon == nil || created.Icon.ID == "" {
		t.Fatal("expected inline icon to be stored as asset")
	}
	if len(created.Attributes) != 2 {
		t.Fatalf("attributes len = %d, want 2", len(created.Attributes))
	}
	if created.Attributes[0].Name != "student_first_name" {
		t.Fatalf("first attribute = %q, want %q", created.Attributes[0].Name, "student_first_name")
	}
	if len(created.Representations) != 1 {
		t.Fatalf("representations len = %d, want 1", len(created.Representations))
	}
	if created.Revocation == nil || created.Revocation.Title != "Revocation" {
		t.Fatal("expected revocation info to round-trip")
	}
}

func TestCreateCredentialDefinitionWithIconID(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	icon := mustCreateAsset(t, store)

	created, err := store.CreateCredentialDefinition(context.Background(), storage.NewCredentialDefinition{
		Name:    "Student Card",
		Version: "1.0",
		Type:    storage.CredentialTypeAnoncred,
		IconID:  icon.ID,
	})
	if err != nil {
		t.Fatalf("create credential definition: %v", err)
	}
	if created.Icon == nil || created.Icon.ID != icon.ID {
		t.Fatal("expected referenced icon asset")
	}
}

func TestCreateCredentialDefinitionIconValidation(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	icon := mustCreateAsset(t, store)

	_, err := store.CreateCredentialDefinition(context.Background(), storage.NewCredentialDefinition{
		Name:    "Student Card",
		Version: "1.0",
		Type:    storage.CredentialTypeAnoncred,
	})
	if !storage.IsValidation(err) {
		t.Fatalf("create without icon error = %v, want validation", err)
	}

	_, err = store.CreateCredentialDefinition(context.Background(), storage.NewCredentialDefinition{
		Name:    "Student Card",
		Version: "1.0",
		Type:    storage.CredentialTypeAnoncred,
		IconID:  icon.ID,
		Icon:    &storage.NewAsset{MediaType: "image/png", Content: []byte{0x01}},
	})
	if !storage.IsValidation(err) {
		t.Fatalf("create with both icon forms error = %v, want validation", err)
	}

	_, err = store.CreateCredentialDefinition(context.Background(), storage.NewCredentialDefinition{
		Name:    "Student Card",
		Version: "1.0",
		Type:    storage.CredentialTypeAnoncred,
		IconID:  "missing-asset",
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("create with missing icon id error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestUpdateCredentialDefinitionReplacesChildren(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	created := mustCreateCredentialDefinition(t, store)
	previousAttributeIDs := make(map[string]bool, len(created.Attributes))
	for _, attr := range created.Attributes {
		previousAttributeIDs[attr.ID] = true
	}

	updated, err := store.UpdateCredentialDefinition(context.Background(), created.ID, storage.NewCredentialDefinition{
		Name:    "Student Card",
		Version: "2.0",
		Type:    storage.CredentialTypeAnoncred,
		IconID:  created.Icon.ID,
		Attributes: []storage.NewCredentialAttribute{
			{Name: "student_number", Value: "12345", Type: storage.CredentialAttributeTypeInteger},
		},
	})
	if err != nil {
		t.Fatalf("update credential definition: %v", err)
	}
	if updated.Version != "2.0" {
		t.Fatalf("version = %q, want %q", updated.Version, "2.0")
	}
	if len(updated.Attributes) != 1 {
		t.Fatalf("attributes len = %d, want 1", len(updated.Attributes))
	}
	if previousAttributeIDs[updated.Attributes[0].ID] {
		t.Fatal("expected replaced attribute to carry a fresh id")
	}
	if updated.Revocation != nil {
		t.Fatal("expected revocation info to be cleared")
	}

	var count int
	err = store.sqlDB.QueryRow(`SELECT COUNT(*) FROM credential_attributes WHERE credential_definition_id = ?`, created.ID).Scan(&count)
	if err != nil {
		t.Fatalf("count attributes: %v", err)
	}
	if count != 1 {
		t.Fatalf("stored attributes = %d, want 1", count)
	}
}

func TestDeleteCredentialDefinitionCascades(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	created := mustCreateCredentialDefinition(t, store)

	if err := store.DeleteCredentialDefinition(context.Background(), created.ID); err != nil {
		t.Fatalf("delete credential definition: %v", err)
	}
	if _, err := store.GetCredentialDefinition(context.Background(), created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get deleted definition error = %v, want %v", err, storage.ErrNotFound)
	}

	var count int
	err := store.sqlDB.QueryRow(`SELECT COUNT(*) FROM credential_attributes WHERE credential_definition_id = ?`, created.ID).Scan(&count)
	if err != nil {
		t.Fatalf("count attributes: %v", err)
	}
	if count != 0 {
		t.Fatalf("orphaned attributes = %d, want 0", count)
	}
}

func TestListCredentialDefinitions(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	mustCreateCredentialDefinition(t, store)
	mustCreateCredentialDefinition(t, store)

	defs, err := store.ListCredentialDefinitions(context.Background())
	if err != nil {
		t.Fatalf("list credential definitions: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("definitions len = %d, want 2", len(defs))
	}
	for _, def := range defs {
		if def.Icon == nil {
			t.Fatal("expected icon on every listed definition")
		}
		if len(def.Attributes) == 0 {
			t.Fatal("expected attributes on every listed definition")
		}
	}
}
