package model

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"'` + "`" + `)\]]+`)

// ValidateAuthRedirect checks that rawURL is a safe authorization target:
// https only, host exactly an allowed domain or a true subdomain of one.
// The dot-boundary check matters: "strava.com.evil.example" must not pass
// a naive suffix match against "strava.com".
func ValidateAuthRedirect(rawURL string, allowedDomains []string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid redirect URL: %w", err)
	}

	if parsed.Scheme != "https" {
		return fmt.Errorf("redirect URL must use https, got %q", parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return fmt.Errorf("redirect URL has no host")
	}

	for _, domain := range allowedDomains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain == "" {
			continue
		}
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return nil
		}
	}

	return fmt.Errorf("redirect host %q is not an allowed provider domain", host)
}

// FindAuthorizationURL scans assistant text for the first URL that passes
// redirect validation. Assistant responses embed authorization links when the
// coach needs a provider connected; everything else in the text is ignored.
func FindAuthorizationURL(text string, allowedDomains []string) (string, bool) {
	for _, candidate := range urlPattern.FindAllString(text, -1) {
		// Markdown links leave trailing punctuation on the match.
		candidate = strings.TrimRight(candidate, ".,;:!?")
		if err := ValidateAuthRedirect(candidate, allowedDomains); err == nil {
			return candidate, true
		}
	}
	return "", false
}
