package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// plainText undoes the escaping the policy applies to ordinary punctuation.
// &lt; and &gt; stay encoded so markup never comes back.
var plainText = strings.NewReplacer("&amp;", "&", "&#39;", "'", "&#34;", `"`)

// SanitizeText strips all markup from user text and trims surrounding space.
func SanitizeText(input string) string {
	return strings.TrimSpace(plainText.Replace(strictPolicy.Sanitize(input)))
}
