package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const hcaptchaVerifyURL = "https://hcaptcha.com/siteverify"

// CaptchaVerifier checks hCaptcha response tokens against the
// siteverify endpoint. It is an external collaborator: the core only
// sees the boolean outcome.
type CaptchaVerifier struct {
	secret   string
	endpoint string
	client   *http.Client
}

func NewCaptchaVerifier(secret string) *CaptchaVerifier {
	return &CaptchaVerifier{
		secret:   secret,
		endpoint: hcaptchaVerifyURL,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify reports whether the captcha token passes verification.
func (v *CaptchaVerifier) Verify(ctx context.Context, token string) (bool, error) {
	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("captcha verification request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("decoding captcha response: %w", err)
	}
	return result.Success, nil
}
