package integration

import (
	"net/url"
	"strings"
)

// AuthenticatedRemoteURL embeds the given token as the user-info component of
// a secure-HTTP remote URL, enabling non-interactive authentication.
//
// The transform fails open: an empty token, a non-https scheme, or a URL that
// cannot be parsed all return the input unchanged. Callers decide whether the
// pass-through deserves a warning.
func AuthenticatedRemoteURL(remote, token string) string {
	if token == "" {
		return remote
	}

	parsed, err := url.Parse(strings.TrimSpace(remote))
	if err != nil {
		return remote
	}
	if parsed.Scheme != "https" || parsed.Host == "" {
		return remote
	}

	parsed.User = url.User(token)
	return parsed.String()
}
