package utils

import (
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/cppla/branch/config"
)

// ErrMailerDisabled is returned when SMTP host or sender is not configured.
var ErrMailerDisabled = errors.New("smtp not configured")

// SMTPMailer sends plain text mail through the configured relay.
type SMTPMailer struct {
	cfg config.AppConfig
}

// NewSMTPMailer returns nil when SMTP is not configured, so callers can
// treat the mailer as optional.
func NewSMTPMailer(cfg config.AppConfig) *SMTPMailer {
	if cfg.SMTPHost == "" || cfg.SMTPFrom == "" {
		return nil
	}
	return &SMTPMailer{cfg: cfg}
}

// Send delivers one message to a single recipient.
func (m *SMTPMailer) Send(to, subject, body string) error {
	if m == nil {
		return ErrMailerDisabled
	}
	cfg := m.cfg
	addr := net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort))
	auth := smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	msg := buildMessage(cfg.SMTPFromName, cfg.SMTPFrom, to, subject, body)

	if !cfg.SMTPTLS {
		return smtp.SendMail(addr, auth, cfg.SMTPFrom, []string{to}, msg)
	}

	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.Dial("tcp", addr)
	if err != nil {
		return err
	}
	_ = conn.SetDeadline(time.Now().Add(15 * time.Second))
	c, err := smtp.NewClient(conn, cfg.SMTPHost)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: cfg.SMTPHost}); err != nil {
			return err
		}
	}
	if cfg.SMTPUsername != "" {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(cfg.SMTPFrom); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	wc, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(msg); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func buildMessage(fromName, from, to, subject, body string) []byte {
	if fromName == "" {
		fromName = "Branch"
	}
	var msg strings.Builder
	// Fixed header order keeps messages reproducible.
	headers := [][2]string{
		{"From", fmt.Sprintf("%s <%s>", encodeHeader(fromName), from)},
		{"To", to},
		{"Subject", encodeHeader(subject)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/plain; charset=UTF-8"},
	}
	for _, h := range headers {
		msg.WriteString(h[0] + ": " + h[1] + "\r\n")
	}
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(msg.String())
}

// encodeHeader applies RFC 2047 B-encoding when s has non-ASCII bytes.
func encodeHeader(s string) string {
	return mime.BEncoding.Encode("UTF-8", s)
}
