// Package storage defines the persistence contracts for showcase aggregates.
//
// Every aggregate exposes a uniform repository surface parameterized over a
// "new" (pre-insert) shape and a "full" (post-insert, graph-hydrated) shape.
// Create and Update return the hydrated record with nested objects resolved;
// Update replaces child collections wholesale, it does not merge them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/credencelab/showcase/internal/platform/errors"
	"google.golang.org/grpc/codes"
)

// ErrNotFound indicates a requested persistence record is missing.
// Every lookup failure carries the entity kind and id; matching against this
// sentinel works because domain errors compare by code.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// NotFound builds the typed missing-record error for one entity.
func NotFound(kind, id string) error {
	return apperrors.WithMetadata(
		apperrors.CodeNotFound,
		fmt.Sprintf("no %s found for id: %s", kind, id),
		map[string]string{"entity": kind, "id": id},
	)
}

// IsValidation reports whether err is a business-rule violation rather than a
// missing-resource or infrastructure failure.
func IsValidation(err error) bool {
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code.GRPCCode() == codes.InvalidArgument
}

// CredentialType tags the credential format a definition targets.
type CredentialType string

const (
	CredentialTypeAnoncred CredentialType = "ANONCRED"
)

// CredentialAttributeType tags the value type of a credential attribute.
type CredentialAttributeType string

const (
	CredentialAttributeTypeString  CredentialAttributeType = "STRING"
	CredentialAttributeTypeInteger CredentialAttributeType = "INTEGER"
	CredentialAttributeTypeFloat   CredentialAttributeType = "FLOAT"
	CredentialAttributeTypeBoolean CredentialAttributeType = "BOOLEAN"
	CredentialAttributeTypeDate    CredentialAttributeType = "DATE"
)

// PartyType tags the protocol family an issuer or relying party speaks.
type PartyType string

const (
	PartyTypeAries PartyType = "ARIES"
)

// ScenarioType discriminates issuance from presentation flows.
type ScenarioType string

const (
	ScenarioTypeIssuance     ScenarioType = "ISSUANCE"
	ScenarioTypePresentation ScenarioType = "PRESENTATION"
)

// StepType tags how a scenario step is driven.
type StepType string

const (
	StepTypeHumanTask StepType = "HUMAN_TASK"
	StepTypeService   StepType = "SERVICE"
	StepTypeScenario  StepType = "SCENARIO"
)

// StepActionType tags the wallet interaction an action triggers.
type StepActionType string

const (
	StepActionTypeAriesOOB StepActionType = "ARIES_OOB"
)

// ShowcaseStatus tracks the publication lifecycle of a showcase.
type ShowcaseStatus string

const (
	ShowcaseStatusPending  ShowcaseStatus = "PENDING"
	ShowcaseStatusActive   ShowcaseStatus = "ACTIVE"
	ShowcaseStatusArchived ShowcaseStatus = "ARCHIVED"
)

// Asset is an opaque binary blob (image) referenced by id.
type Asset struct {
	ID          string
	MediaType   string
	FileName    string
	Description string
	Content     []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewAsset is the pre-insert asset shape.
type NewAsset struct {
	MediaType   string
	FileName    string
	Description string
	Content     []byte
}

// Persona is a named actor profile used by scenarios and showcases.
type Persona struct {
	ID            string
	Name          string
	Role          string
	Description   string
	HeadshotImage *Asset
	BodyImage     *Asset
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewPersona is the pre-insert persona shape; image fields reference assets
// by id and may be empty.
type NewPersona struct {
	Name            string
	Role            string
	Description     string
	HeadshotImageID string
	BodyImageID     string
}

// CredentialAttribute is owned by exactly one credential definition and is
// replaced wholesale on update.
type CredentialAttribute struct {
	ID    string
	Name  string
	Value string
	Type  CredentialAttributeType
}

// NewCredentialAttribute is the pre-insert attribute shape.
type NewCredentialAttribute struct {
	Name  string
	Value string
	Type  CredentialAttributeType
}

// CredentialRepresentation is a format-specific rendering of a definition.
// The upstream format catalogue is still settling, so rows carry identity
// only for now.
type CredentialRepresentation struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCredentialRepresentation is the pre-insert representation shape.
type NewCredentialRepresentation struct{}

// RevocationInfo describes how a credential definition surfaces revocation.
type RevocationInfo struct {
	ID          string
	Title       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewRevocationInfo is the pre-insert revocation shape.
type NewRevocationInfo struct {
	Title       string
	Description string
}

// CredentialDefinition is a schema-like record with attributes,
// representations, optional revocation info, and a required icon asset.
type CredentialDefinition struct {
	ID              string
	Name            string
	Version         string
	Type            CredentialType
	Icon            *Asset
	Attributes      []CredentialAttribute
	Representations []CredentialRepresentation
	Revocation      *RevocationInfo
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewCredentialDefinition is the pre-insert definition shape. The icon is
// given either as an existing asset id or as an inline payload; exactly one
// must be set.
type NewCredentialDefinition struct {
	Name            string
	Version         string
	Type            CredentialType
	IconID          string
	Icon            *NewAsset
	Attributes      []NewCredentialAttribute
	Representations []NewCredentialRepresentation
	Revocation      *NewRevocationInfo
}

// Issuer is a credential-issuing party. It always links at least one
// credential definition.
type Issuer struct {
	ID                    string
	Name                  string
	Type                  PartyType
	Description           string
	Organization          string
	Logo                  *Asset
	CredentialDefinitions []CredentialDefinition
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NewIssuer is the pre-insert issuer shape.
type NewIssuer struct {
	Name                    string
	Type                    PartyType
	Description             string
	Organization            string
	LogoID                  string
	CredentialDefinitionIDs []string
}

// RelyingParty is a verifying party. Same structural rules as Issuer.
type RelyingParty struct {
	ID                    string
	Name                  string
	Type                  PartyType
	Description           string
	Organization          string
	Logo                  *Asset
	CredentialDefinitions []CredentialDefinition
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NewRelyingParty is the pre-insert relying-party shape.
type NewRelyingParty struct {
	Name                    string
	Type                    PartyType
	Description             string
	Organization            string
	LogoID                  string
	CredentialDefinitionIDs []string
}

// ProofRequestAttributes groups requested attribute names with their
// restrictions.
type ProofRequestAttributes struct {
	Attributes   []string `json:"attributes"`
	Restrictions []string `json:"restrictions"`
}

// ProofRequestPredicate is a single predicate clause of a proof request.
type ProofRequestPredicate struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Value        int      `json:"value"`
	Restrictions []string `json:"restrictions"`
}

// ProofRequest is the free-form nested structure owned one-to-one by a step
// action. The same shape is used for writes and reads.
type ProofRequest struct {
	Attributes map[string]ProofRequestAttributes `json:"attributes"`
	Predicates map[string]ProofRequestPredicate  `json:"predicates"`
}

// StepAction is one wallet interaction inside a step.
type StepAction struct {
	ID           string
	Title        string
	Type         StepActionType
	Text         string
	ProofRequest *ProofRequest
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewStepAction is the pre-insert action shape.
type NewStepAction struct {
	Title        string
	Type         StepActionType
	Text         string
	ProofRequest *ProofRequest
}

// Step is one ordered stage of a scenario. (Order, scenario) is unique.
type Step struct {
	ID            string
	Title         string
	Description   string
	Order         int
	Type          StepType
	Asset         *Asset
	SubScenarioID string
	Actions       []StepAction
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewStep is the pre-insert step shape; the caller-supplied order is
// preserved verbatim.
type NewStep struct {
	Title         string
	Description   string
	Order         int
	Type          StepType
	AssetID       string
	SubScenarioID string
	Actions       []NewStepAction
}

// Scenario is the aggregate root for one issuance or presentation flow.
// Exactly one of Issuer and RelyingParty is populated, matching Type.
type Scenario struct {
	ID           string
	Name         string
	Description  string
	Type         ScenarioType
	Issuer       *Issuer
	RelyingParty *RelyingParty
	Steps        []Step
	Personas     []Persona
	Hidden       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewScenario is the pre-insert scenario shape. The variant is classified by
// which party id is set: IssuerID for issuance flows, RelyingPartyID for
// presentation flows. Setting neither or both is a validation failure.
type NewScenario struct {
	Name           string
	Description    string
	IssuerID       string
	RelyingPartyID string
	Steps          []NewStep
	PersonaIDs     []string
	Hidden         bool
}

// ScenarioFilter narrows scenario listings.
type ScenarioFilter struct {
	Type ScenarioType
}

// Showcase bundles scenarios, credential definitions, and personas into one
// publishable demo.
type Showcase struct {
	ID                    string
	Name                  string
	Description           string
	Status                ShowcaseStatus
	Hidden                bool
	Scenarios             []Scenario
	CredentialDefinitions []CredentialDefinition
	Personas              []Persona
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NewShowcase is the pre-insert showcase shape.
type NewShowcase struct {
	Name                    string
	Description             string
	Status                  ShowcaseStatus
	Hidden                  bool
	ScenarioIDs             []string
	CredentialDefinitionIDs []string
	PersonaIDs              []string
}

// AssetStore persists opaque binary assets.
type AssetStore interface {
	CreateAsset(ctx context.Context, asset NewAsset) (Asset, error)
	GetAsset(ctx context.Context, id string) (Asset, error)
	ListAssets(ctx context.Context) ([]Asset, error)
	UpdateAsset(ctx context.Context, id string, asset NewAsset) (Asset, error)
	DeleteAsset(ctx context.Context, id string) error
}

// PersonaStore persists actor profiles.
type PersonaStore interface {
	CreatePersona(ctx context.Context, persona NewPersona) (Persona, error)
	GetPersona(ctx context.Context, id string) (Persona, error)
	ListPersonas(ctx context.Context) ([]Persona, error)
	UpdatePersona(ctx context.Context, id string, persona NewPersona) (Persona, error)
	DeletePersona(ctx context.Context, id string) error
}

// CredentialDefinitionStore persists credential definitions with their owned
// attribute, representation, and revocation children.
type CredentialDefinitionStore interface {
	CreateCredentialDefinition(ctx context.Context, def NewCredentialDefinition) (CredentialDefinition, error)
	GetCredentialDefinition(ctx context.Context, id string) (CredentialDefinition, error)
	ListCredentialDefinitions(ctx context.Context) ([]CredentialDefinition, error)
	UpdateCredentialDefinition(ctx context.Context, id string, def NewCredentialDefinition) (CredentialDefinition, error)
	DeleteCredentialDefinition(ctx context.Context, id string) error
}

// IssuerStore persists issuers and their credential-definition links.
type IssuerStore interface {
	CreateIssuer(ctx context.Context, issuer NewIssuer) (Issuer, error)
	GetIssuer(ctx context.Context, id string) (Issuer, error)
	ListIssuers(ctx context.Context) ([]Issuer, error)
	UpdateIssuer(ctx context.Context, id string, issuer NewIssuer) (Issuer, error)
	DeleteIssuer(ctx context.Context, id string) error
}

// RelyingPartyStore persists relying parties and their credential-definition
// links.
type RelyingPartyStore interface {
	CreateRelyingParty(ctx context.Context, party NewRelyingParty) (RelyingParty, error)
	GetRelyingParty(ctx context.Context, id string) (RelyingParty, error)
	ListRelyingParties(ctx context.Context) ([]RelyingParty, error)
	UpdateRelyingParty(ctx context.Context, id string, party NewRelyingParty) (RelyingParty, error)
	DeleteRelyingParty(ctx context.Context, id string) error
}

// ScenarioStore persists scenario graphs plus step and action sub-resources.
// Every returned step collection is sorted ascending by the step order field.
type ScenarioStore interface {
	CreateScenario(ctx context.Context, scenario NewScenario) (Scenario, error)
	GetScenario(ctx context.Context, id string) (Scenario, error)
	ListScenarios(ctx context.Context, filter ScenarioFilter) ([]Scenario, error)
	UpdateScenario(ctx context.Context, id string, scenario NewScenario) (Scenario, error)
	DeleteScenario(ctx context.Context, id string) error

	CreateScenarioStep(ctx context.Context, scenarioID string, step NewStep) (Step, error)
	GetScenarioStep(ctx context.Context, scenarioID, stepID string) (Step, error)
	ListScenarioSteps(ctx context.Context, scenarioID string) ([]Step, error)
	UpdateScenarioStep(ctx context.Context, scenarioID, stepID string, step NewStep) (Step, error)
	DeleteScenarioStep(ctx context.Context, scenarioID, stepID string) error

	CreateStepAction(ctx context.Context, scenarioID, stepID string, action NewStepAction) (StepAction, error)
	GetStepAction(ctx context.Context, scenarioID, stepID, actionID string) (StepAction, error)
	ListStepActions(ctx context.Context, scenarioID, stepID string) ([]StepAction, error)
	UpdateStepAction(ctx context.Context, scenarioID, stepID, actionID string, action NewStepAction) (StepAction, error)
	DeleteStepAction(ctx context.Context, scenarioID, stepID, actionID string) error
}

// ShowcaseStore persists showcases and their three link sets.
type ShowcaseStore interface {
	CreateShowcase(ctx context.Context, showcase NewShowcase) (Showcase, error)
	GetShowcase(ctx context.Context, id string) (Showcase, error)
	ListShowcases(ctx context.Context) ([]Showcase, error)
	UpdateShowcase(ctx context.Context, id string, showcase NewShowcase) (Showcase, error)
	DeleteShowcase(ctx context.Context, id string) error
}
