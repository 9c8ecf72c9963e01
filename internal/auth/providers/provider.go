package providers

import (
	"context"

	"golang.org/x/oauth2"
)

// OAuthProvider is an SSO that issues refreshable tokens
type OAuthProvider interface {
	Name() string
	GetAuthURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
	TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource
}
