package suggest

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("^```(?:json)?\\s*|\\s*```$")

type suggestionList struct {
	Suggestions []string `json:"suggestions"`
}

// parseSuggestions decodes {"suggestions": [...]}, tolerating a markdown
// code fence around the object.
func parseSuggestions(raw string) ([]string, error) {
	clean := fenceRe.ReplaceAllString(strings.TrimSpace(raw), "")
	var out suggestionList
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	list := make([]string, 0, len(out.Suggestions))
	for _, s := range out.Suggestions {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, s)
		}
	}
	return list, nil
}
