package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RecaptchaVerifyURL is Google's siteverify endpoint.
const RecaptchaVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// RecaptchaVerifier checks reCAPTCHA v2 tokens solved in the browser.
type RecaptchaVerifier struct {
	secret   string
	siteKey  string
	endpoint string
	client   *http.Client
}

func NewRecaptchaVerifier(secret, siteKey string) *RecaptchaVerifier {
	return &RecaptchaVerifier{
		secret:   secret,
		siteKey:  siteKey,
		endpoint: RecaptchaVerifyURL,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// SiteKey is the public key the page renders the widget with.
func (v *RecaptchaVerifier) SiteKey() string { return v.siteKey }

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify validates token. remoteIP may be empty.
func (v *RecaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	if token == "" {
		challengeVerifications.WithLabelValues("missing").Inc()
		return ErrChallengeMissing
	}
	form := url.Values{"secret": {v.secret}, "response": {token}}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		challengeVerifications.WithLabelValues("error").Inc()
		return fmt.Errorf("siteverify: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		challengeVerifications.WithLabelValues("error").Inc()
		return fmt.Errorf("siteverify: status %d", resp.StatusCode)
	}

	var out siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		challengeVerifications.WithLabelValues("error").Inc()
		return fmt.Errorf("siteverify: %w", err)
	}
	if out.Success {
		challengeVerifications.WithLabelValues("ok").Inc()
		return nil
	}
	for _, code := range out.ErrorCodes {
		if code == "timeout-or-duplicate" {
			challengeVerifications.WithLabelValues("expired").Inc()
			return ErrChallengeExpired
		}
	}
	challengeVerifications.WithLabelValues("failed").Inc()
	return ErrChallengeFailed
}
