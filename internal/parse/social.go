package parse

import (
	"net/url"
	"strings"

	"placeharvest/internal/domain"
)

var socialHosts = []struct {
	platform domain.Platform
	hosts    []string
}{
	{domain.Facebook, []string{"facebook.com", "fb.com", "fb.me"}},
	{domain.Instagram, []string{"instagram.com", "instagr.am"}},
	{domain.X, []string{"twitter.com", "x.com"}},
	{domain.TikTok, []string{"tiktok.com"}},
	{domain.YouTube, []string{"youtube.com", "youtu.be"}},
	{domain.Line, []string{"line.me", "lin.ee"}},
}

// ClassifySocial maps links to known social platforms. The first link seen
// for a platform wins; links on unknown domains are dropped.
func ClassifySocial(links []string) map[domain.Platform]string {
	out := make(map[domain.Platform]string)
	for _, raw := range links {
		target, p, ok := platformOf(raw)
		if !ok {
			continue
		}
		if _, seen := out[p]; !seen {
			out[p] = target
		}
	}
	return out
}

func platformOf(raw string) (string, domain.Platform, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", "", false
	}
	host := strings.ToLower(u.Hostname())
	// google.<tld>/url?q=<target> redirect wrappers
	if isGoogleHost(host) && u.Path == "/url" {
		inner := u.Query().Get("q")
		if inner == "" {
			inner = u.Query().Get("url")
		}
		if inner == "" {
			return "", "", false
		}
		return platformOf(inner)
	}
	for _, sh := range socialHosts {
		for _, h := range sh.hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return u.String(), sh.platform, true
			}
		}
	}
	return "", "", false
}

// isGoogleHost accepts google.com, its subdomains, and country domains such
// as google.de or google.com.sa.
func isGoogleHost(host string) bool {
	host = strings.TrimPrefix(host, "www.")
	if host == "google.com" || strings.HasSuffix(host, ".google.com") {
		return true
	}
	rest, ok := strings.CutPrefix(host, "google.")
	if !ok {
		return false
	}
	rest = strings.TrimPrefix(rest, "com.")
	rest = strings.TrimPrefix(rest, "co.")
	return len(rest) == 2 && !strings.Contains(rest, ".")
}
