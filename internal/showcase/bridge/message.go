// Package bridge forwards credential definitions to an external wallet
// service. Definitions are published to a queue as JSON and a consumer maps
// each one to schema and credential-definition creation calls against the
// Traction API.
package bridge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/credencelab/showcase/internal/showcase/storage"
)

// CredentialDefinitionMessage is the queue payload for one credential
// definition. It carries the subset of the stored shape the wallet service
// needs plus the tenant the definition belongs to.
type CredentialDefinitionMessage struct {
	TenantID          string             `json:"tenant_id"`
	DefinitionID      string             `json:"definition_id"`
	Name              string             `json:"name"`
	Version           string             `json:"version"`
	Type              string             `json:"type"`
	Attributes        []MessageAttribute `json:"attributes"`
	SupportRevocation bool               `json:"support_revocation"`
}

// MessageAttribute is one attribute of the forwarded definition.
type MessageAttribute struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// NewCredentialDefinitionMessage maps a stored definition to its queue
// payload for one tenant.
func NewCredentialDefinitionMessage(tenantID string, def storage.CredentialDefinition) CredentialDefinitionMessage {
	attributes := make([]MessageAttribute, 0, len(def.Attributes))
	for _, attr := range def.Attributes {
		attributes = append(attributes, MessageAttribute{
			Name: attr.Name,
			Type: string(attr.Type),
		})
	}
	return CredentialDefinitionMessage{
		TenantID:          tenantID,
		DefinitionID:      def.ID,
		Name:              def.Name,
		Version:           def.Version,
		Type:              string(def.Type),
		Attributes:        attributes,
		SupportRevocation: def.Revocation != nil,
	}
}

// Validate reports whether the message carries enough to call the wallet
// service.
func (m CredentialDefinitionMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return fmt.Errorf("tenant id is required")
	}
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("definition name is required")
	}
	if strings.TrimSpace(m.Version) == "" {
		return fmt.Errorf("definition version is required")
	}
	if len(m.Attributes) == 0 {
		return fmt.Errorf("at least one attribute is required")
	}
	return nil
}

func decodeMessage(body []byte) (CredentialDefinitionMessage, error) {
	var msg CredentialDefinitionMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return CredentialDefinitionMessage{}, fmt.Errorf("decode credential definition message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return CredentialDefinitionMessage{}, err
	}
	return msg, nil
}
