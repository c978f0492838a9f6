package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cppla/branch/config"
)

func TestNewSMTPMailer_DisabledWithoutHost(t *testing.T) {
	assert.Nil(t, NewSMTPMailer(config.AppConfig{SMTPFrom: "pod@example.com"}))
	assert.ErrorIs(t, (*SMTPMailer)(nil).Send("a@example.com", "s", "b"), ErrMailerDisabled)
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("", "pod@example.com", "ann@example.com", "Ann invited you", "line1\nline2"))

	assert.True(t, strings.HasPrefix(msg, "From: Branch <pod@example.com>\r\nTo: ann@example.com\r\nSubject: Ann invited you\r\n"))
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nline1\r\nline2"))
}

func TestEncodeHeader_NonASCII(t *testing.T) {
	assert.Equal(t, "plain", encodeHeader("plain"))
	assert.True(t, strings.HasPrefix(encodeHeader("Zoë's pod"), "=?UTF-8?b?"))
}

func TestUniqueEmails(t *testing.T) {
	got := UniqueEmails([]string{" Ann@Example.com", "ann@example.com", "", "bob@example.com"})
	assert.Equal(t, []string{"ann@example.com", "bob@example.com"}, got)
}
