package ws

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// originPolicy is the allow-list applied on upgrade. Requests without an
// Origin header come from non-browser clients and are let through.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginPolicy(origins []string) *originPolicy {
	p := &originPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			p.allowAll = true
			continue
		}
		n, ok := normalizeOrigin(o)
		if !ok {
			zap.L().Warn("ws.origin_ignored", zap.String("origin", o))
			continue
		}
		p.allowed[n] = struct{}{}
	}
	return p
}

func normalizeOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}

func (p *originPolicy) check(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || p.allowAll {
		return true
	}
	n, ok := normalizeOrigin(origin)
	if ok {
		if _, allowed := p.allowed[n]; allowed {
			return true
		}
	}
	zap.L().Warn("ws.origin_blocked", zap.String("origin", origin))
	return false
}
