package providers

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"
)

type EveProvider struct {
	config *oauth2.Config
}

// NewEveProvider creates a new EVE SSO provider
func NewEveProvider(config *oauth2.Config) *EveProvider {
	return &EveProvider{config: config}
}

func (p *EveProvider) Name() string {
	return "eve"
}

func (p *EveProvider) GetAuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *EveProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	logger := slog.With("provider", "eve", "operation", "exchange_code")
	logger.Debug("Exchanging authorization code with EVE SSO")

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		logger.Error("Failed to exchange authorization code", "error", err)
		return nil, fmt.Errorf("failed to exchange code with EVE SSO: %w", err)
	}

	if token.AccessToken == "" {
		return nil, fmt.Errorf("EVE SSO returned an empty access token")
	}

	logger.Debug("Authorization code exchanged",
		"has_refresh_token", token.RefreshToken != "",
		"expires_at", token.Expiry)
	return token, nil
}

// TokenSource refreshes the token through the SSO token endpoint
func (p *EveProvider) TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	return p.config.TokenSource(ctx, token)
}

// RefreshTokenSource builds a token source from a stored refresh token alone
func (p *EveProvider) RefreshTokenSource(ctx context.Context, refreshToken string) oauth2.TokenSource {
	return p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
}
