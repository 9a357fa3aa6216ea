// Package errors provides structured error handling with machine-readable codes.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"

	// Party errors
	CodePartyCredentialDefinitionsRequired Code = "PARTY_CREDENTIAL_DEFINITIONS_REQUIRED"

	// Scenario errors
	CodeScenarioStepsRequired    Code = "SCENARIO_STEPS_REQUIRED"
	CodeScenarioPersonasRequired Code = "SCENARIO_PERSONAS_REQUIRED"
	CodeScenarioPartyRequired    Code = "SCENARIO_PARTY_REQUIRED"
	CodeScenarioPartyAmbiguous   Code = "SCENARIO_PARTY_AMBIGUOUS"

	// Step errors
	CodeStepActionsRequired Code = "STEP_ACTIONS_REQUIRED"
	CodeStepOrderConflict   Code = "STEP_ORDER_CONFLICT"

	// Showcase errors
	CodeShowcaseScenariosRequired             Code = "SHOWCASE_SCENARIOS_REQUIRED"
	CodeShowcaseCredentialDefinitionsRequired Code = "SHOWCASE_CREDENTIAL_DEFINITIONS_REQUIRED"
	CodeShowcasePersonasRequired              Code = "SHOWCASE_PERSONAS_REQUIRED"

	// Credential definition errors
	CodeCredentialDefinitionIconRequired Code = "CREDENTIAL_DEFINITION_ICON_REQUIRED"

	// Bridge errors
	CodeBridgeTokenRejected Code = "BRIDGE_TOKEN_REJECTED"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodePartyCredentialDefinitionsRequired,
		CodeScenarioStepsRequired,
		CodeScenarioPersonasRequired,
		CodeScenarioPartyRequired,
		CodeScenarioPartyAmbiguous,
		CodeStepActionsRequired,
		CodeShowcaseScenariosRequired,
		CodeShowcaseCredentialDefinitionsRequired,
		CodeShowcasePersonasRequired,
		CodeCredentialDefinitionIconRequired:
		return codes.InvalidArgument

	// AlreadyExists - uniqueness conflicts
	case CodeStepOrderConflict:
		return codes.AlreadyExists

	// NotFound - missing resources
	case CodeNotFound:
		return codes.NotFound

	// PermissionDenied - auth failures against external services
	case CodeBridgeTokenRejected:
		return codes.PermissionDenied

	default:
		return codes.Internal
	}
}
