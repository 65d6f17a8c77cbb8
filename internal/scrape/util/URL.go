package util

import (
	"net/url"
	"sort"
	"strings"
)

// CanonicalizeURL lowercases scheme and host, drops fragments and tracking
// parameters, and sorts the query so equal postings compare equal.
// keepQuery, when non-empty, restricts the query to the named keys.
func CanonicalizeURL(raw string, keepQuery ...string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") ||
			lk == "gclid" || lk == "fbclid" || lk == "msclkid" ||
			lk == "refid" || lk == "trackingid" || lk == "trk" {
			q.Del(k)
		}
	}

	if len(keepQuery) > 0 {
		keep := url.Values{}
		for _, k := range keepQuery {
			if v := q.Get(k); v != "" {
				keep.Set(k, v)
			}
		}
		q = keep
	}

	for k := range q {
		vals := q[k]
		sort.Strings(vals)
		q[k] = vals
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// ResolveURL resolves href against base. Unparsable input is returned as is.
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}

// MatchesAny reports whether raw contains any of patterns, ignoring case.
func MatchesAny(raw string, patterns []string) bool {
	low := strings.ToLower(raw)
	for _, p := range patterns {
		if p != "" && strings.Contains(low, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
