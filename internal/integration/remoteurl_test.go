package integration

import (
	"net/url"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestAuthenticatedRemoteURL(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		token  string
		want   string
	}{
		{
			name:   "embeds token in https url",
			remote: "https://github.com/acme/notes.git",
			token:  "tok123",
			want:   "https://tok123@github.com/acme/notes.git",
		},
		{
			name:   "empty token passes through",
			remote: "https://github.com/acme/notes.git",
			token:  "",
			want:   "https://github.com/acme/notes.git",
		},
		{
			name:   "ssh url passes through",
			remote: "git@github.com:acme/notes.git",
			token:  "tok123",
			want:   "git@github.com:acme/notes.git",
		},
		{
			name:   "http url passes through",
			remote: "http://internal.example.com/repo.git",
			token:  "tok123",
			want:   "http://internal.example.com/repo.git",
		},
		{
			name:   "replaces existing user info",
			remote: "https://olduser@github.com/acme/notes.git",
			token:  "tok123",
			want:   "https://tok123@github.com/acme/notes.git",
		},
		{
			name:   "surrounding whitespace is tolerated",
			remote: "  https://github.com/acme/notes.git  ",
			token:  "tok123",
			want:   "https://tok123@github.com/acme/notes.git",
		},
		{
			name:   "garbage passes through",
			remote: "://not-a-url",
			token:  "tok123",
			want:   "://not-a-url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AuthenticatedRemoteURL(tt.remote, tt.token)
			if got != tt.want {
				t.Errorf("AuthenticatedRemoteURL(%q, %q) = %q, want %q", tt.remote, tt.token, got, tt.want)
			}
		})
	}
}

func TestAuthenticatedRemoteURL_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		host := rapid.StringMatching(`[a-z]{1,10}\.(com|org|io)`).Draw(t, "host")
		path := rapid.StringMatching(`[a-z]{1,8}/[a-z]{1,8}\.git`).Draw(t, "path")
		token := rapid.StringMatching(`[A-Za-z0-9_]{1,24}`).Draw(t, "token")

		remote := "https://" + host + "/" + path
		got := AuthenticatedRemoteURL(remote, token)

		// The result still parses, keeps host and path, and carries the
		// token as user info.
		parsed, err := url.Parse(got)
		if err != nil {
			t.Fatalf("result does not parse: %q", got)
		}
		if parsed.Host != host {
			t.Fatalf("host changed: %q vs %q", parsed.Host, host)
		}
		if !strings.HasSuffix(parsed.Path, path) {
			t.Fatalf("path changed: %q vs %q", parsed.Path, path)
		}
		if parsed.User.Username() != token {
			t.Fatalf("user info %q does not carry the token %q", parsed.User, token)
		}

		// Without a token the input is preserved byte for byte.
		if AuthenticatedRemoteURL(remote, "") != remote {
			t.Fatalf("empty token must pass through unchanged")
		}
	})
}
