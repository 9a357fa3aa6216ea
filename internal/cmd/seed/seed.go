// Package seed builds a complete demo showcase graph in a local store.
package seed

import (
	"context"
	"flag"
	"fmt"
	"log"

	entrypoint "github.com/credencelab/showcase/internal/platform/cmd"
	"github.com/credencelab/showcase/internal/showcase/storage"
	"github.com/credencelab/showcase/internal/showcase/storage/sqlite"
)

// Config holds seed command configuration.
type Config struct {
	DBPath string `env:"SHOWCASE_SEED_DB_PATH" envDefault:"data/showcase.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The showcase SQLite database path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run seeds one complete showcase: asset, credential definition, issuer,
// persona, issuance scenario, and the showcase bundling them.
func Run(ctx context.Context, cfg Config) error {
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open showcase store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close showcase store: %v", closeErr)
		}
	}()

	showcase, err := Seed(ctx, store)
	if err != nil {
		return err
	}
	log.Printf("seeded showcase %s with %d scenario(s)", showcase.ID, len(showcase.Scenarios))
	return nil
}

// Seed builds the demo graph against an open store and returns the
// assembled showcase.
func Seed(ctx context.Context, store *sqlite.Store) (storage.Showcase, error) {
	icon, err := store.CreateAsset(ctx, storage.NewAsset{
		MediaType:   "image/png",
		FileName:    "student-card.png",
		Description: "Student card icon",
		Content:     transparentPNG,
	})
	if err != nil {
		return storage.Showcase{}, fmt.Errorf("seed icon asset: %w", err)
	}
	log.Printf("seeded asset %s", icon.ID)

	definition, err := store.CreateCredentialDefinition(ctx, storage.NewCredentialDefinition{
		Name:    "Student Card",
		Version: "1.0",
		Type:    storage.CredentialTypeAnoncred,
		IconID:  icon.ID,
		Attributes: []storage.NewCredentialAttribute{
			{Name: "student_first_name", Value: "Ana", Type: storage.CredentialAttributeTypeString},
			{Name: "student_last_name", Value: "Silva", Type: storage.CredentialAttributeTypeString},
			{Name: "expiry_date", Value: "20270901", Type: storage.CredentialAttributeTypeDate},
		},
		Revocation: &storage.NewRevocationInfo{
			Title:       "Revoke student card",
			Description: "Revoked when the student leaves the college",
		},
	})
	if err != nil {
		return storage.Showcase{}, fmt.Errorf("seed credential definition: %w", err)
	}
	log.Printf("seeded credential definition %s", definition.ID)

	issuer, err := store.CreateIssuer(ctx, storage.NewIssuer{
		Name:                    "Test College",
		Type:                    storage.PartyTypeAries,
		Description:             "A fictional college issuing student cards",
		Organization:            "Test College",
		CredentialDefinitionIDs: []string{definition.ID},
	})
	if err != nil {
		return storage.Showcase{}, fmt.Errorf("seed issuer: %w", err)
	}
	log.Printf("seeded issuer %s", issuer.ID)

	persona, err := store.CreatePersona(ctx, storage.NewPersona{
		Name:        "Ana Silva",
		Role:        "Student",
		Description: "A student getting her first digital credential",
	})
	if err != nil {
		return storage.Showcase{}, fmt.Errorf("seed persona: %w", err)
	}
	log.Printf("seeded persona %s", persona.ID)

	scenario, err := store.CreateScenario(ctx, storage.NewScenario{
		Name:        "Get your student card",
		Description: "Walks a student through receiving a digital student card",
		IssuerID:    issuer.ID,
		PersonaIDs:  []string{persona.ID},
		Steps: []storage.NewStep{
			{
				Title:       "Scan the QR code",
				Description: "Open your wallet and scan the invitation",
				Order:       1,
				Type:        storage.StepTypeHumanTask,
				Actions: []storage.NewStepAction{
					{
						Title: "Connect with Test College",
						Type:  storage.StepActionTypeAriesOOB,
						Text:  "Scan this QR code with your wallet to connect",
					},
				},
			},
			{
				Title:       "Accept the credential",
				Description: "Review the offered student card and accept it",
				Order:       2,
				Type:        storage.StepTypeHumanTask,
				Actions: []storage.NewStepAction{
					{
						Title: "Accept your student card",
						Type:  storage.StepActionTypeAriesOOB,
						Text:  "Accept the credential offer in your wallet",
					},
				},
			},
		},
	})
	if err != nil {
		return storage.Showcase{}, fmt.Errorf("seed scenario: %w", err)
	}
	log.Printf("seeded scenario %s with %d step(s)", scenario.ID, len(scenario.Steps))

	showcase, err := store.CreateShowcase(ctx, storage.NewShowcase{
		Name:                    "Student card demo",
		Description:             "Issue a student card to a new student",
		Status:                  storage.ShowcaseStatusActive,
		ScenarioIDs:             []string{scenario.ID},
		CredentialDefinitionIDs: []string{definition.ID},
		PersonaIDs:              []string{persona.ID},
	})
	if err != nil {
		return storage.Showcase{}, fmt.Errorf("seed showcase: %w", err)
	}
	return showcase, nil
}

// transparentPNG is a 1x1 transparent PNG used as the seeded icon.
var transparentPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}
