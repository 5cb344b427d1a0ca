package proxyengine

import "strings"

// jsonLikeContentTypes is the set of content-types eligible for response
// URL rewriting; anything else passes through untouched.
var jsonLikeContentTypes = []string{"application/json", "text/json", "application/xml", "text/xml"}

// IsRewritableContentType reports whether contentType (as received on the
// Content-Type response header, possibly with a charset parameter)
// qualifies for textual URL rewriting.
func IsRewritableContentType(contentType string) bool {
	base, _, _ := strings.Cut(contentType, ";")
	base = strings.ToLower(strings.TrimSpace(base))
	for _, ct := range jsonLikeContentTypes {
		if base == ct {
			return true
		}
	}
	return false
}

// RewriteResponseURLs replaces every occurrence of upstreamBase in body
// with publicBase. Rewriting is purely textual — it never attempts to
// parse body as structured JSON/XML, since upstreamBase can appear inside
// string values that aren't URLs at all and a structural rewrite would
// need full schema knowledge we don't have.
func RewriteResponseURLs(body []byte, upstreamBase, publicBase string) []byte {
	if upstreamBase == "" || upstreamBase == publicBase {
		return body
	}
	return []byte(strings.ReplaceAll(string(body), upstreamBase, publicBase))
}

// PublicBase builds the `{scheme}://{host}/api/{env}/{endpoint}` base the
// gateway substitutes in for the real upstream base.
func PublicBase(scheme, host, environment, endpoint string) string {
	return scheme + "://" + host + "/api/" + environment + "/" + endpoint
}
