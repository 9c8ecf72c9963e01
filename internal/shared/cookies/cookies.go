package cookies

import (
	"net/http"
	"net/url"
	"strings"

	"holdings-server/internal/shared/config"
)

const SessionCookieName = "holdings_session"

func SetSessionCookie(w http.ResponseWriter, sessionID string) {
	cfg := config.GlobalConfig

	cookie := createSessionCookie()
	cookie.Value = sessionID
	cookie.MaxAge = int(cfg.Auth.SessionDuration.Seconds())

	http.SetCookie(w, cookie)
}

func ClearSessionCookie(w http.ResponseWriter) {
	cookie := createSessionCookie()
	cookie.Value = ""
	cookie.MaxAge = -1

	http.SetCookie(w, cookie)
}

func createSessionCookie() *http.Cookie {
	cfg := config.GlobalConfig

	return &http.Cookie{
		Name:     SessionCookieName,
		Path:     "/",
		Domain:   extractDomain(cfg.Frontend.URL),
		HttpOnly: true,
		Secure:   cfg.Auth.CookieSecure,
		SameSite: parseSameSite(cfg.Auth.CookieSameSite),
	}
}

func extractDomain(frontendURL string) string {
	parsedURL, err := url.Parse(frontendURL)
	if err != nil || parsedURL.Host == "" {
		return ""
	}

	host := strings.Split(parsedURL.Host, ":")[0]
	if host == "localhost" || host == "127.0.0.1" {
		return ""
	}

	return host
}

func parseSameSite(sameSiteStr string) http.SameSite {
	switch sameSiteStr {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
