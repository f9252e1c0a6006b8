package transport

import (
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridTransport sends email via SendGrid's v3 Mail Send API, grounded on
// other_examples/sgrasu-camp_finder's sendEmail (mail.NewSingleEmail +
// sendgrid.NewSendClient), generalized from a hardcoded recipient to the
// per-user contact info the Notifier supplies.
type SendGridTransport struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
}

func NewSendGridTransport(apiKey, fromName, fromEmail string) *SendGridTransport {
	return &SendGridTransport{
		client:    sendgrid.NewSendClient(apiKey),
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (t *SendGridTransport) SendEmail(msg EmailMessage) (string, error) {
	from := mail.NewEmail(t.fromName, t.fromEmail)
	to := mail.NewEmail("", msg.To)
	email := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, "")

	resp, err := t.client.Send(email)
	if err != nil {
		return "", &Error{Kind: Email, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{Kind: Email, Err: fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)}
	}

	externalID := resp.Headers["X-Message-Id"]
	if len(externalID) > 0 {
		return externalID[0], nil
	}
	return "", nil
}
