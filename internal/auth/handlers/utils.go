package handlers

import (
	"fmt"
	"net/http"
	"net/url"
)

// redirectWithError redirects to frontend with error parameters
func redirectWithError(w http.ResponseWriter, r *http.Request, frontendURL, errorType, message string) {
	errorURL := fmt.Sprintf("%s/auth/error?error=%s&message=%s",
		frontendURL, url.QueryEscape(errorType), url.QueryEscape(message))

	http.Redirect(w, r, errorURL, http.StatusTemporaryRedirect)
}
