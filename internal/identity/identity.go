// Package identity verifies identity provider tokens and gates sign-in by
// e-mail domain.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

var (
	ErrInvalidIDToken   = errors.New("invalid id token")
	ErrEmailNotVerified = errors.New("email not verified by identity provider")
)

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// Identity is the provider-asserted user.
type Identity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

type Verifier interface {
	Verify(ctx context.Context, rawIDToken string) (*Identity, error)
}

// GoogleVerifier validates Google ID tokens issued for clientID.
type GoogleVerifier struct {
	clientID  string
	validator *idtoken.Validator
}

func NewGoogleVerifier(ctx context.Context, clientID string, opts ...option.ClientOption) (*GoogleVerifier, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("google client id is required")
	}
	validator, err := idtoken.NewValidator(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create id token validator failed: %w", err)
	}
	return &GoogleVerifier{clientID: clientID, validator: validator}, nil
}

func (v *GoogleVerifier) Verify(ctx context.Context, rawIDToken string) (*Identity, error) {
	if strings.TrimSpace(rawIDToken) == "" {
		return nil, ErrInvalidIDToken
	}
	payload, err := v.validator.Validate(ctx, rawIDToken, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}
	return identityFromPayload(payload)
}

func identityFromPayload(p *idtoken.Payload) (*Identity, error) {
	if !issuerAllowed(p.Issuer) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidIDToken, p.Issuer)
	}
	if strings.TrimSpace(p.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidIDToken)
	}

	id := &Identity{
		Provider: "google",
		Subject:  p.Subject,
		Email:    strings.ToLower(strings.TrimSpace(claimString(p.Claims, "email"))),
		Name:     strings.TrimSpace(claimString(p.Claims, "name")),
	}
	switch v := p.Claims["email_verified"].(type) {
	case bool:
		id.EmailVerified = v
	case string:
		id.EmailVerified = strings.EqualFold(v, "true")
	}
	if id.Email == "" {
		return nil, fmt.Errorf("%w: missing email", ErrInvalidIDToken)
	}
	if !id.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	return id, nil
}

func issuerAllowed(iss string) bool {
	for _, allowed := range googleIssuers {
		if iss == allowed {
			return true
		}
	}
	return false
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// DomainGate admits addresses whose domain is the allowed domain or one of
// its subdomains.
type DomainGate struct {
	domain string
}

func NewDomainGate(domain string) DomainGate {
	return DomainGate{domain: strings.ToLower(strings.Trim(strings.TrimSpace(domain), "."))}
}

func (g DomainGate) Domain() string {
	return g.domain
}

func (g DomainGate) Allows(email string) bool {
	if g.domain == "" {
		return false
	}
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	host := email[at+1:]
	return host == g.domain || strings.HasSuffix(host, "."+g.domain)
}
