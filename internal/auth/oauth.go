package auth

import (
	"log/slog"

	"holdings-server/internal/auth/providers"
	"holdings-server/internal/shared/config"

	"golang.org/x/oauth2"
)

type OAuthConfig struct {
	EveConfig     *oauth2.Config
	EveProvider   *providers.EveProvider
	EveConfigured bool
}

func InitOAuth(cfg *config.Config) *OAuthConfig {
	logger := slog.With("component", "oauth", "operation", "init")
	logger.Debug("Initializing EVE SSO configuration")

	eveConfig := &oauth2.Config{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		RedirectURL:  cfg.Auth.CallbackURL,
		Scopes:       cfg.Auth.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.Auth.AuthURL,
			TokenURL:  cfg.Auth.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	configured := cfg.SSOConfigured()

	logger.Info("EVE SSO configuration completed",
		"server_url", cfg.Server.URL,
		"eve_configured", configured,
		"eve_redirect", eveConfig.RedirectURL,
		"scopes", eveConfig.Scopes,
	)

	if !configured {
		logger.Warn("EVE SSO not configured - missing client credentials")
	}

	return &OAuthConfig{
		EveConfig:     eveConfig,
		EveProvider:   providers.NewEveProvider(eveConfig),
		EveConfigured: configured,
	}
}
