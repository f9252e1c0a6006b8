package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brensch/campwatch/internal/httpx"
)

// TwilioTransport sends SMS via Twilio's REST Messages API. No SMS SDK
// appears anywhere in the retrieved pack, so this is a small net/http
// client shaped after the Messages API's documented form-encoded POST,
// reusing internal/httpx.Default()'s tuned transport rather than growing a
// second one; see DESIGN.md for why no third-party SMS library was
// available to wire in instead.
type TwilioTransport struct {
	client     *http.Client
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
}

// NewTwilioTransport takes baseURL from config.Config.SmsAPIBaseURL so tests
// (and self-hosted Twilio-compatible gateways) can point it elsewhere; an
// empty string falls back to the production Messages API host.
func NewTwilioTransport(accountSID, authToken, fromNumber, baseURL string) *TwilioTransport {
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	return &TwilioTransport{
		client:     httpx.Default(),
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    baseURL + "/2010-04-01",
	}
}

type twilioMessageResp struct {
	SID        string `json:"sid"`
	ErrorCode  *int   `json:"error_code"`
	ErrorMsg   string `json:"error_message"`
	Status     string `json:"status"`
}

func (t *TwilioTransport) SendSMS(to, body string) (string, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", t.baseURL, t.accountSID)
	form := url.Values{
		"To":   {to},
		"From": {t.fromNumber},
		"Body": {body},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &Error{Kind: Sms, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.accountSID, t.authToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", &Error{Kind: Sms, Err: err}
	}
	defer resp.Body.Close()

	body2, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: Sms, Err: err}
	}

	var parsed twilioMessageResp
	if err := json.Unmarshal(body2, &parsed); err != nil {
		return "", &Error{Kind: Sms, Err: fmt.Errorf("decode twilio response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || parsed.ErrorCode != nil {
		return "", &Error{Kind: Sms, Err: fmt.Errorf("twilio send failed (status %d): %s", resp.StatusCode, parsed.ErrorMsg)}
	}
	return parsed.SID, nil
}
