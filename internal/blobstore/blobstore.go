package blobstore

import (
	"net/url"
	"strings"
)

// Verifier is the only contract the chat core has with the media store:
// a URL it did not issue is rejected.
type Verifier interface {
	IsOwnedMediaURL(raw string) bool
}

// PrefixVerifier accepts URLs that sit under one of the configured public base URLs.
type PrefixVerifier struct {
	bases []*url.URL
}

// NewPrefixVerifier parses baseURLs and skips entries that are not absolute http(s) URLs.
func NewPrefixVerifier(baseURLs []string) *PrefixVerifier {
	v := &PrefixVerifier{}
	for _, raw := range baseURLs {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || !isHTTP(u) || u.Host == "" {
			continue
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		v.bases = append(v.bases, u)
	}
	return v
}

func (v *PrefixVerifier) IsOwnedMediaURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || !isHTTP(u) || u.User != nil {
		return false
	}
	for _, base := range v.bases {
		if !strings.EqualFold(u.Scheme, base.Scheme) || !strings.EqualFold(u.Host, base.Host) {
			continue
		}
		if strings.HasPrefix(u.Path, base.Path) && len(u.Path) > len(base.Path) && !strings.Contains(u.Path, "/../") {
			return true
		}
	}
	return false
}

func isHTTP(u *url.URL) bool {
	return u.Scheme == "https" || u.Scheme == "http"
}
