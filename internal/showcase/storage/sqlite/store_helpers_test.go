package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/credencelab/showcase/internal/showcase/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "showcase.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func mustCreateAsset(t *testing.T, store *Store) storage.Asset {
	t.Helper()

	asset, err := store.CreateAsset(context.Background(), storage.NewAsset{
		MediaType:   "image/png",
		FileName:    "fixture.png",
		Description: "test fixture image",
		Content:     []byte{0x89, 0x50, 0x4e, 0x47},
	})
	if err != nil {
		t.Fatalf("create asset: %v", err)
	}
	return asset
}

func mustCreatePersona(t *testing.T, store *Store) storage.Persona {
	t.Helper()

	persona, err := store.CreatePersona(context.Background(), storage.NewPersona{
		Name: "Ana Silva",
		Role: "Student",
	})
	if err != nil {
		t.Fatalf("create persona: %v", err)
	}
	return persona
}

func mustCreateCredentialDefinition(t *testing.T, store *Store) storage.CredentialDefinition {
	t.Helper()

	def, err := store.CreateCredentialDefinition(context.Background(), storage.NewCredentialDefinition{
		Name:    "Student Card",
		Version: "1.0",
		Type:    storage.CredentialTypeAnoncred,
		Icon: &storage.NewAsset{
			MediaType: "image/png",
			Content:   []byte{0x89, 0x50, 0x4e, 0x47},
		},
		Attributes: []storage.NewCredentialAttribute{
			{Name: "student_first_name", Value: "Ana", Type: storage.CredentialAttributeTypeString},
			{Name: "student_last_name", Value: "Silva", Type: storage.CredentialAttributeTypeString},
		},
	})
	if err != nil {
		t.Fatalf("create credential definition: %v", err)
	}
	return def
}

func mustCreateIssuer(t *testing.T, store *Store, definitionIDs ...string) storage.Issuer {
	t.Helper()

	issuer, err := store.CreateIssuer(context.Background(), storage.NewIssuer{
		Name:                    "Test College",
		Type:                    storage.PartyTypeAries,
		Organization:            "Test College",
		CredentialDefinitionIDs: definitionIDs,
	})
	if err != nil {
		t.Fatalf("create issuer: %v", err)
	}
	return issuer
}

func mustCreateRelyingParty(t *testing.T, store *Store, definitionIDs ...string) storage.RelyingParty {
	t.Helper()

	party, err := store.CreateRelyingParty(context.Background(), storage.NewRelyingParty{
		Name:                    "Cool Clothes Online",
		Type:                    storage.PartyTypeAries,
		Organization:            "Cool Clothes Online",
		CredentialDefinitionIDs: definitionIDs,
	})
	if err != nil {
		t.Fatalf("create relying party: %v", err)
	}
	return party
}

func issuanceScenarioInput(issuerID, personaID string) storage.NewScenario {
	return storage.NewScenario{
		Name:       "Get your student card",
		IssuerID:   issuerID,
		PersonaIDs: []string{personaID},
		Steps: []storage.NewStep{
			{
				Title: "Scan the QR code",
				Order: 1,
				Type:  storage.StepTypeHumanTask,
				Actions: []storage.NewStepAction{
					{Title: "Accept the credential", Type: storage.StepActionTypeAriesOOB},
				},
			},
		},
	}
}

func mustCreateScenario(t *testing.T, store *Store, input storage.NewScenario) storage.Scenario {
	t.Helper()

	scenario, err := store.CreateScenario(context.Background(), input)
	if err != nil {
		t.Fatalf("create scenario: %v", err)
	}
	return scenario
}
