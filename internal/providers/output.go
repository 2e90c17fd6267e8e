package providers

import (
	"encoding/json"
	"net/url"
	"strings"
)

// objectURLKeys are the known keys under which providers nest a result URL.
var objectURLKeys = []string{"url", "video", "mp4"}

// ExtractOutputURL pulls a result URL out of a provider "output" value,
// which may be a bare string, an ordered list of strings (first
// well-formed URL wins), or an object keyed by one of several known
// names. An unrecognized shape yields "", not an error: a missing output
// is a normal in-progress observation.
func ExtractOutputURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return wellFormedURL(s)
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, item := range list {
			var entry string
			if err := json.Unmarshal(item, &entry); err != nil {
				continue
			}
			if u := wellFormedURL(entry); u != "" {
				return u
			}
		}
		return ""
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, key := range objectURLKeys {
			nested, ok := obj[key]
			if !ok {
				continue
			}
			if u := ExtractOutputURL(nested); u != "" {
				return u
			}
		}
	}

	return ""
}

func wellFormedURL(s string) string {
	s = strings.TrimSpace(s)
	parsed, err := url.Parse(s)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return s
}
