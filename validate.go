package kwikdl

import (
	"net/url"
	"strings"
)

// DefaultHosts are the target-site domains accepted by IsValidTargetURL.
var DefaultHosts = []string{"kwik.si", "kwik.cx", "kwik.sx", "kwik.li"}

// IsValidTargetURL reports whether input is an absolute http(s) URL on one
// of DefaultHosts or a subdomain of one.
func IsValidTargetURL(input string) bool {
	return validTarget(input, DefaultHosts)
}

// IsValidTargetURL reports whether input is accepted by this resolver,
// including hosts added with WithHosts.
func (r *Resolver) IsValidTargetURL(input string) bool {
	return validTarget(input, r.hosts)
}

func validTarget(input string, hosts []string) bool {
	u, err := url.Parse(strings.TrimSpace(input))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
