package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "hello", SanitizeText("  <b>hello</b> "))
	assert.Equal(t, "", SanitizeText("<script>alert(1)</script>"))
	assert.Equal(t, `Tom's "plan" & more`, SanitizeText(`Tom's "plan" & more`))
}

func TestSanitizeText_EncodedMarkupStaysEncoded(t *testing.T) {
	out := SanitizeText("&lt;b&gt;bold&lt;/b&gt;")
	assert.NotContains(t, out, "<b>")
	assert.Equal(t, "&lt;b&gt;bold&lt;/b&gt;", out)
}
