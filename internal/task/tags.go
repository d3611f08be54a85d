package task

import (
	"regexp"
	"strings"
)

var hashtagRe = regexp.MustCompile(`#([a-zA-Z0-9_]{1,32})`)

// ExtractTags pulls #hashtags out of free text, lowercased and
// de-duplicated. The result is never nil.
func ExtractTags(texts ...string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 4)

	for _, text := range texts {
		for _, m := range hashtagRe.FindAllStringSubmatch(text, -1) {
			if len(m) < 2 {
				continue
			}
			t := strings.ToLower(m[1])
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)

			if len(out) >= 20 { // cap
				return out
			}
		}
	}

	return out
}
