package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/credencelab/showcase/internal/platform/errors"
)

const defaultTokenTTL = 10 * time.Minute

// TractionConfig configures the wallet-service REST client.
type TractionConfig struct {
	// BaseURL is the Traction API root, e.g. http://traction:8032.
	BaseURL string
	// WalletKey authenticates the tenant token request.
	WalletKey string
	// TokenTTL caps how long a cached token lives when its expiry cannot be
	// read from the token itself. Zero means the default.
	TokenTTL time.Duration
	// HTTPClient overrides the client used for API calls.
	HTTPClient *http.Client
}

type cachedToken struct {
	value     string
	expiresAt time.Time
}

// TractionClient creates schemas and credential definitions through the
// Traction API. Tenant bearer tokens are cached until they expire.
type TractionClient struct {
	baseURL    string
	walletKey  string
	tokenTTL   time.Duration
	httpClient *http.Client
	clock      func() time.Time

	mu     sync.Mutex
	tokens map[string]cachedToken
}

// NewTractionClient builds a wallet-service client.
func NewTractionClient(cfg TractionConfig) (*TractionClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("traction base url is required")
	}
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &TractionClient{
		baseURL:    baseURL,
		walletKey:  cfg.WalletKey,
		tokenTTL:   tokenTTL,
		httpClient: httpClient,
		clock:      time.Now,
		tokens:     make(map[string]cachedToken),
	}, nil
}

// EnsureCredentialDefinition creates the schema and the credential
// definition backing one forwarded message in the tenant's wallet.
func (c *TractionClient) EnsureCredentialDefinition(ctx context.Context, msg CredentialDefinitionMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	token, err := c.token(ctx, msg.TenantID)
	if err != nil {
		return err
	}

	schemaID, err := c.createSchema(ctx, token, msg)
	if err != nil {
		return err
	}
	return c.createCredentialDefinition(ctx, token, schemaID, msg)
}

// token returns a bearer token for the tenant, reusing the cached one while
// it is still valid.
func (c *TractionClient) token(ctx context.Context, tenantID string) (string, error) {
	c.mu.Lock()
	cached, ok := c.tokens[tenantID]
	c.mu.Unlock()
	if ok && c.clock().Before(cached.expiresAt) {
		return cached.value, nil
	}

	body, err := json.Marshal(map[string]string{"wallet_key": c.walletKey})
	if err != nil {
		return "", fmt.Errorf("encode token request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/multitenancy/tenant/%s/token", c.baseURL, url.PathEscape(tenantID))
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("request tenant token: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", apperrors.WithMetadata(
			apperrors.CodeBridgeTokenRejected,
			fmt.Sprintf("tenant token request failed with status %d", response.StatusCode),
			map[string]string{"tenant": tenantID},
		)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.Token == "" {
		return "", apperrors.WithMetadata(
			apperrors.CodeBridgeTokenRejected,
			"tenant token response carried no token",
			map[string]string{"tenant": tenantID},
		)
	}

	c.mu.Lock()
	c.tokens[tenantID] = cachedToken{
		value:     payload.Token,
		expiresAt: c.tokenExpiry(payload.Token),
	}
	c.mu.Unlock()
	return payload.Token, nil
}

// tokenExpiry reads the exp claim without verifying the signature; the token
// is opaque credential material here, not something this client trusts. A
// token without a readable expiry falls back to the configured TTL.
func (c *TractionClient) tokenExpiry(token string) time.Time {
	fallback := c.clock().Add(c.tokenTTL)
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return fallback
	}
	expiry, err := parsed.Claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return fallback
	}
	return expiry.Time
}

func (c *TractionClient) createSchema(ctx context.Context, token string, msg CredentialDefinitionMessage) (string, error) {
	attributes := make([]string, 0, len(msg.Attributes))
	for _, attr := range msg.Attributes {
		attributes = append(attributes, attr.Name)
	}
	payload := map[string]any{
		"schema_name":    msg.Name,
		"schema_version": msg.Version,
		"attributes":     attributes,
	}

	var out struct {
		SchemaID string `json:"schema_id"`
		Sent     struct {
			SchemaID string `json:"schema_id"`
		} `json:"sent"`
	}
	if err := c.post(ctx, token, "/schemas", payload, &out); err != nil {
		return "", fmt.Errorf("create schema for %s: %w", msg.DefinitionID, err)
	}
	schemaID := out.SchemaID
	if schemaID == "" {
		schemaID = out.Sent.SchemaID
	}
	if schemaID == "" {
		return "", fmt.Errorf("create schema for %s: response carried no schema id", msg.DefinitionID)
	}
	return schemaID, nil
}

func (c *TractionClient) createCredentialDefinition(ctx context.Context, token, schemaID string, msg CredentialDefinitionMessage) error {
	payload := map[string]any{
		"schema_id":          schemaID,
		"tag":                msg.Version,
		"support_revocation": msg.SupportRevocation,
	}
	if err := c.post(ctx, token, "/credential-definitions", payload, nil); err != nil {
		return fmt.Errorf("create credential definition for %s: %w", msg.DefinitionID, err)
	}
	return nil
}

func (c *TractionClient) post(ctx context.Context, token, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+token)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return fmt.Errorf("status %d: %s", response.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ TractionService = (*TractionClient)(nil)
