// Package urlparser detects the provider of a social-media post URL and
// normalizes it to a canonical form.
package urlparser

import (
	"net/url"
	"strings"

	apperrors "github.com/post-analyzer/internal/errors"
)

// Provider names
const (
	ProviderYouTube = "youtube"
	ProviderReddit  = "reddit"
)

type rule struct {
	provider  string
	hosts     []string
	normalize func(host string, u *url.URL) (string, bool)
}

// Parser matches URLs against a fixed set of provider rules
type Parser struct {
	rules []rule
}

// New returns a parser that knows YouTube and Reddit posts
func New() *Parser {
	return &Parser{rules: []rule{
		{
			provider:  ProviderYouTube,
			hosts:     []string{"youtube.com", "m.youtube.com", "youtu.be"},
			normalize: normalizeYouTube,
		},
		{
			provider:  ProviderReddit,
			hosts:     []string{"reddit.com", "old.reddit.com", "new.reddit.com", "np.reddit.com", "m.reddit.com"},
			normalize: normalizeReddit,
		},
	}}
}

// Parse returns the provider name and the canonical post URL, or an
// UNSUPPORTED_URL error when no provider matches
func (p *Parser) Parse(rawURL string) (provider string, normalized string, err error) {
	trimmed := strings.TrimSpace(rawURL)
	if !hasHTTPScheme(trimmed) {
		trimmed = "https://" + trimmed
	}

	u, parseErr := url.Parse(trimmed)
	if parseErr != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", "", apperrors.NewUnsupportedURLError(rawURL)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, r := range p.rules {
		if !matchesHost(host, r.hosts) {
			continue
		}
		if out, ok := r.normalize(host, u); ok {
			return r.provider, out, nil
		}
		break
	}
	return "", "", apperrors.NewUnsupportedURLError(rawURL)
}

// hasHTTPScheme reports whether s starts with http:// or https://. A "://"
// later in the string, such as inside a query value, does not count.
func hasHTTPScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func matchesHost(host string, hosts []string) bool {
	for _, h := range hosts {
		if host == h {
			return true
		}
	}
	return false
}

func pathSegments(u *url.URL) []string {
	var out []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// normalizeYouTube accepts watch?v=, shorts/<id> and youtu.be/<id>. host is
// already lower-cased with any www. prefix removed.
func normalizeYouTube(host string, u *url.URL) (string, bool) {
	segments := pathSegments(u)
	var id string

	switch {
	case host == "youtu.be":
		if len(segments) == 1 {
			id = segments[0]
		}
	case len(segments) == 1 && segments[0] == "watch":
		id = u.Query().Get("v")
	case len(segments) == 2 && (segments[0] == "shorts" || segments[0] == "live"):
		id = segments[1]
	}

	if id == "" {
		return "", false
	}
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(id), true
}

// normalizeReddit accepts /r/<sub>/comments/<id>[/<slug>] and drops the slug
func normalizeReddit(_ string, u *url.URL) (string, bool) {
	segments := pathSegments(u)
	if len(segments) < 4 || segments[0] != "r" || segments[2] != "comments" {
		return "", false
	}
	return "https://www.reddit.com/r/" + segments[1] + "/comments/" + segments[3], true
}
