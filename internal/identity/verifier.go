package identity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// Token is a verified token that can expose claims.
// It is satisfied by *oidc.IDToken and by test fakes.
type Token interface {
	Claims(v interface{}) error
}

// Verifier checks a raw ID token issued by the auth service.
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// OIDCVerifier validates signature, issuer and audience of ID tokens
// against the provider's published keys.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// IssuerFor returns the token issuer of the given backend project.
func IssuerFor(projectID string) string {
	return "https://securetoken.google.com/" + projectID
}

// NewOIDCVerifier discovers the provider for issuer; tokens must carry clientID as audience.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}

// insecureToken exposes claims parsed from an unverified JWT payload.
type insecureToken struct {
	claims jwt.MapClaims
}

func (t *insecureToken) Claims(v interface{}) error {
	b, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// InsecureVerifier parses claims WITHOUT validating signatures. The local
// emulator issues unsigned ("alg": "none") tokens, so this is the only
// verifier usable in emulator mode.
type InsecureVerifier struct {
	parser *jwt.Parser
}

func NewInsecureVerifier() *InsecureVerifier {
	return &InsecureVerifier{parser: jwt.NewParser()}
}

func (v *InsecureVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	claims := jwt.MapClaims{}
	if _, _, err := v.parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return &insecureToken{claims: claims}, nil
}
