package storage

import (
	"fmt"
	"strconv"

	apperrors "github.com/credencelab/showcase/internal/platform/errors"
)

// Business-rule violations raised before any row is written. They are a
// distinct category from ErrNotFound: a validation failure is independent of
// any specific id.
var (
	ErrScenarioStepsRequired    = apperrors.New(apperrors.CodeScenarioStepsRequired, "at least one step is required")
	ErrScenarioPersonasRequired = apperrors.New(apperrors.CodeScenarioPersonasRequired, "at least one persona is required")
	ErrScenarioPartyRequired    = apperrors.New(apperrors.CodeScenarioPartyRequired, "an issuer or relying party is required")
	ErrScenarioPartyAmbiguous   = apperrors.New(apperrors.CodeScenarioPartyAmbiguous, "issuer and relying party are mutually exclusive")

	ErrStepActionsRequired = apperrors.New(apperrors.CodeStepActionsRequired, "at least one action is required")

	ErrPartyCredentialDefinitionsRequired = apperrors.New(apperrors.CodePartyCredentialDefinitionsRequired, "at least one credential definition is required")

	ErrShowcaseScenariosRequired             = apperrors.New(apperrors.CodeShowcaseScenariosRequired, "at least one scenario is required")
	ErrShowcaseCredentialDefinitionsRequired = apperrors.New(apperrors.CodeShowcaseCredentialDefinitionsRequired, "at least one credential definition is required")
	ErrShowcasePersonasRequired              = apperrors.New(apperrors.CodeShowcasePersonasRequired, "at least one persona is required")

	ErrCredentialDefinitionIconRequired = apperrors.New(apperrors.CodeCredentialDefinitionIconRequired, "an icon asset is required")
)

// StepOrderConflict reports a step order value already used within the same
// scenario. The steps table carries a matching UNIQUE constraint as backstop.
func StepOrderConflict(order int) error {
	return apperrors.WithMetadata(
		apperrors.CodeStepOrderConflict,
		fmt.Sprintf("step order %d is already used in this scenario", order),
		map[string]string{"order": strconv.Itoa(order)},
	)
}
