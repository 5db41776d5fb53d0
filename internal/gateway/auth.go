package gateway

import (
	"context"
	"errors"

	"github.com/openscribe/scribe-backend/internal/apikey"
)

var ErrInvalidAPIKey = errors.New("invalid api key")

type APIKeyValidator interface {
	Validate(ctx context.Context, secret string) (*apikey.APIKey, error)
}

// Authenticator guards the ingestion and streaming surfaces. When no validator
// is configured the deployment runs open, which is the expected setup for a
// single-workstation install.
type Authenticator struct {
	apiKeyStore APIKeyValidator
}

func NewAuthenticator(store APIKeyValidator) *Authenticator {
	return &Authenticator{apiKeyStore: store}
}

func (a *Authenticator) Enabled() bool {
	return a.apiKeyStore != nil
}

func (a *Authenticator) ValidateAPIKey(ctx context.Context, secret string) (*apikey.APIKey, error) {
	key, err := a.apiKeyStore.Validate(ctx, secret)
	if err != nil {
		return nil, ErrInvalidAPIKey
	}
	return key, nil
}
