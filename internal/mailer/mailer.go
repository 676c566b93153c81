// Package mailer sends transactional email through the Resend HTTP API.
// Delivery is best-effort: callers log failures but never fail the request
// over them, so an email outage cannot block registration or password reset.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const apiURL = "https://api.resend.com/emails"

// Mailer sends email on behalf of a fixed from address.
type Mailer struct {
	apiKey      string
	from        string
	frontendURL string
	client      *http.Client
}

// New builds a Mailer. An empty apiKey disables delivery; Send then becomes
// a no-op so local development works without credentials.
func New(apiKey, from, frontendURL string) *Mailer {
	return &Mailer{
		apiKey:      apiKey,
		from:        from,
		frontendURL: frontendURL,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send posts one email to the API.
func (m *Mailer) Send(ctx context.Context, to, subject, html string) error {
	if m.apiKey == "" {
		return nil
	}
	body, err := json.Marshal(sendRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail api returned %d: %s", resp.StatusCode, msg)
	}
	return nil
}

// SendVerificationEmail sends the address-confirmation link after signup.
func (m *Mailer) SendVerificationEmail(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", m.frontendURL, token)
	html := fmt.Sprintf(`<p>Welcome to X-BIN!</p>
<p>Please confirm your email address by clicking the link below. The link is valid for 24 hours.</p>
<p><a href="%s">Verify my email</a></p>
<p>If you did not create an account, you can safely ignore this message.</p>`, link)
	return m.Send(ctx, to, "Verify your email address", html)
}

// SendPasswordResetEmail sends the reset link for the forgot-password flow.
func (m *Mailer) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", m.frontendURL, token)
	html := fmt.Sprintf(`<p>We received a request to reset your password.</p>
<p>Click the link below to choose a new password. The link is valid for 1 hour.</p>
<p><a href="%s">Reset my password</a></p>
<p>If you did not request a reset, you can safely ignore this message.</p>`, link)
	return m.Send(ctx, to, "Reset your password", html)
}
