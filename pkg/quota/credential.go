package quota

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	apperrors "github.com/opscart/region-cost-planner/pkg/errors"
)

// ManagementScope is the token scope of the Azure management API
const ManagementScope = "https://management.azure.com/.default"

const azureADAuthority = "https://login.microsoftonline.com"

// Credential produces a bearer token for a scope
type Credential interface {
	Token(ctx context.Context, scope string) (string, error)
}

// StaticToken is a pre-acquired bearer token, e.g. from `az account get-access-token`.
type StaticToken string

func (s StaticToken) Token(ctx context.Context, scope string) (string, error) {
	if s == "" {
		return "", apperrors.New(apperrors.TypeAuth, "static token is empty")
	}
	return string(s), nil
}

// ClientSecretCredential acquires tokens for a service principal through the
// client credentials flow.
type ClientSecretCredential struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	// Authority defaults to the public cloud login endpoint
	Authority string

	mu     sync.Mutex
	tokens map[string]*oauth2.Token
}

// NewClientSecretCredential returns nil when any of the three identifiers is
// missing, so callers can treat an unconfigured principal as "no credential".
func NewClientSecretCredential(tenantID, clientID, clientSecret string) *ClientSecretCredential {
	if tenantID == "" || clientID == "" || clientSecret == "" {
		return nil
	}
	return &ClientSecretCredential{
		TenantID:     tenantID,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}
}

func (c *ClientSecretCredential) Token(ctx context.Context, scope string) (string, error) {
	if c == nil {
		return "", apperrors.New(apperrors.TypeAuth, "service principal not configured")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if tok, ok := c.tokens[scope]; ok && tok.Valid() {
		return tok.AccessToken, nil
	}

	authority := c.Authority
	if authority == "" {
		authority = azureADAuthority
	}
	cfg := &clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", authority, c.TenantID),
		Scopes:       []string{scope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tok, err := cfg.Token(ctx)
	if err != nil {
		return "", apperrors.Wrapf(apperrors.TypeAuth, err, "acquiring token for %s", scope)
	}

	if c.tokens == nil {
		c.tokens = make(map[string]*oauth2.Token)
	}
	c.tokens[scope] = tok
	return tok.AccessToken, nil
}
