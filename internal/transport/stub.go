package transport

import (
	"log/slog"

	"github.com/google/uuid"
)

// StubTransport implements both EmailTransport and SmsTransport by logging
// and returning a synthetic id, spec §4.9's "development stub (logs +
// synthetic id)". Grounded on the teacher's use of google/uuid for
// notification batch ids, reused here for the per-send external id.
type StubTransport struct {
	logger *slog.Logger
}

func NewStubTransport(logger *slog.Logger) *StubTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubTransport{logger: logger}
}

func (t *StubTransport) SendEmail(msg EmailMessage) (string, error) {
	id := uuid.NewString()
	t.logger.Info("stub email send", slog.String("to", msg.To), slog.String("subject", msg.Subject), slog.String("external_id", id))
	return id, nil
}

func (t *StubTransport) SendSMS(to, body string) (string, error) {
	id := uuid.NewString()
	t.logger.Info("stub sms send", slog.String("to", to), slog.String("body", body), slog.String("external_id", id))
	return id, nil
}
