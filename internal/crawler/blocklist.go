package crawler

import "strings"

// blocklist holds the domains a crawl must not enqueue. Patterns are
// exact hosts or suffix wildcards ("*.example.com" and ".example.com"
// both match every subdomain).
type blocklist struct {
	exact    map[string]struct{}
	suffixes []string
}

// newBlocklist compiles the configured patterns. It returns nil when no
// usable pattern remains, and a nil blocklist matches nothing.
func newBlocklist(patterns []string) *blocklist {
	b := &blocklist{exact: make(map[string]struct{})}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		switch {
		case strings.HasPrefix(value, "*."):
			b.addSuffix(strings.TrimPrefix(value, "*."))
		case strings.HasPrefix(value, "."):
			b.addSuffix(strings.TrimPrefix(value, "."))
		default:
			b.exact[value] = struct{}{}
		}
	}
	if len(b.exact) == 0 && len(b.suffixes) == 0 {
		return nil
	}
	return b
}

func (b *blocklist) addSuffix(suffix string) {
	if suffix == "" {
		return
	}
	for _, existing := range b.suffixes {
		if existing == suffix {
			return
		}
	}
	b.suffixes = append(b.suffixes, suffix)
}

// Blocked reports whether the domain matches a configured pattern.
func (b *blocklist) Blocked(domain string) bool {
	if b == nil {
		return false
	}
	domain = strings.TrimSpace(strings.ToLower(domain))
	if domain == "" {
		return false
	}
	if _, hit := b.exact[domain]; hit {
		return true
	}
	for _, suffix := range b.suffixes {
		if domain == suffix || strings.HasSuffix(domain, "."+suffix) {
			return true
		}
	}
	return false
}
