package controllers

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// OriginPolicy picks the storefront origin used for Stripe redirect URLs and
// relative image paths. Only the front-end URL and explicitly listed origins
// are accepted; a wildcard CORS entry does not make an origin trusted here.
type OriginPolicy struct {
	fallback string
	allowed  map[string]struct{}
}

func NewOriginPolicy(frontendURL string, allowedOrigins []string) OriginPolicy {
	p := OriginPolicy{
		fallback: strings.TrimRight(strings.TrimSpace(frontendURL), "/"),
		allowed:  make(map[string]struct{}, len(allowedOrigins)+1),
	}
	for _, o := range append([]string{frontendURL}, allowedOrigins...) {
		if o = normalizeOrigin(o); o != "" && o != "*" {
			p.allowed[o] = struct{}{}
		}
	}
	return p
}

// Resolve tries the Origin header, then the proxy's forwarded scheme and
// host, and falls back to the front-end URL when neither is allowed.
func (p OriginPolicy) Resolve(ctx *gin.Context) string {
	for _, candidate := range []string{headerOrigin(ctx), forwardedOrigin(ctx)} {
		if candidate == "" {
			continue
		}
		if _, ok := p.allowed[normalizeOrigin(candidate)]; ok {
			return strings.TrimRight(candidate, "/")
		}
	}
	return p.fallback
}

func headerOrigin(ctx *gin.Context) string {
	origin := strings.TrimSpace(ctx.GetHeader("Origin"))
	if origin == "null" {
		return ""
	}
	return origin
}

func forwardedOrigin(ctx *gin.Context) string {
	proto := ctx.GetHeader("X-Forwarded-Proto")
	if proto == "" {
		return ""
	}
	proto = strings.TrimSpace(strings.Split(proto, ",")[0])
	host := strings.TrimSpace(strings.Split(ctx.GetHeader("X-Forwarded-Host"), ",")[0])
	if host == "" {
		host = ctx.Request.Host
	}
	if host == "" {
		return ""
	}
	return proto + "://" + host
}

func normalizeOrigin(o string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
}
