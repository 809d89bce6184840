package blob

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	encodedKeyPattern = regexp.MustCompile(`/o/([^?]+)`)
	literalKeyPattern = regexp.MustCompile(`storage\.googleapis\.com/[^/]+/(.+?)(\?|$)`)
	servedKeyPattern  = regexp.MustCompile(`/files/(.+?)(\?|$)`)
)

// ResolveStorageKey derives the canonical object key from an audio
// reference URL. Supported forms:
//
//	scheme://bucket/path/to/file          (gs:// style locators)
//	https://host/v0/b/bucket/o/<key>      (key URL-encoded after /o/)
//	https://storage.googleapis.com/bucket/path/to/file
//	http://host/files/path/to/file        (this service's own URLs)
//
// Returns the empty string when no key can be derived.
func ResolveStorageKey(audioURL string) string {
	raw := strings.TrimSpace(audioURL)
	if raw == "" {
		return ""
	}

	if strings.HasPrefix(raw, "gs://") {
		rest := strings.TrimPrefix(raw, "gs://")
		if i := strings.IndexByte(rest, '/'); i >= 0 && i+1 < len(rest) {
			return rest[i+1:]
		}
		return ""
	}

	if strings.Contains(raw, "/o/") {
		if m := encodedKeyPattern.FindStringSubmatch(raw); m != nil {
			if decoded, err := url.QueryUnescape(m[1]); err == nil {
				return decoded
			}
			return m[1]
		}
	}

	if strings.Contains(raw, "storage.googleapis.com") {
		if m := literalKeyPattern.FindStringSubmatch(raw); m != nil {
			if decoded, err := url.QueryUnescape(m[1]); err == nil {
				return decoded
			}
			return m[1]
		}
	}

	if strings.Contains(raw, "/files/") {
		if m := servedKeyPattern.FindStringSubmatch(raw); m != nil {
			return m[1]
		}
	}

	return ""
}
