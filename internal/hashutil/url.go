package hashutil

import (
	"net/url"
	"sort"
	"strings"
)

// trackingParamNames, together with any utm_-prefixed parameter, are
// dropped during canonicalization (spec §4.5).
var trackingParamNames = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"mc_cid": true,
	"mc_eid": true,
	"mkt_tok": true,
}

// CanonicalizeURL lowercases the host, preserves scheme/path, re-encodes the
// query with tracking parameters dropped and remaining keys sorted, and
// removes the fragment. It is idempotent.
func CanonicalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if u.RawQuery != "" {
		values := u.Query()
		for key := range values {
			lower := strings.ToLower(key)
			if strings.HasPrefix(lower, "utm_") || trackingParamNames[lower] {
				values.Del(key)
			}
		}
		u.RawQuery = encodeSorted(values)
	}

	return u.String()
}

// encodeSorted re-implements url.Values.Encode with stable key ordering
// (url.Values.Encode already sorts by key, kept explicit for clarity and to
// guarantee idempotency regardless of stdlib internals).
func encodeSorted(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		for _, v := range values[k] {
			if sb.Len() > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(k))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(v))
		}
	}
	return sb.String()
}
