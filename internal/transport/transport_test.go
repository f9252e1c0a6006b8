package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStubTransport_ReturnsDistinctIDs(t *testing.T) {
	stub := NewStubTransport(nil)

	id1, err := stub.SendEmail(EmailMessage{To: "a@b.com", Subject: "hi", Body: "body"})
	if err != nil {
		t.Fatalf("SendEmail: %v", err)
	}
	id2, err := stub.SendSMS("+15551234567", "hi")
	if err != nil {
		t.Fatalf("SendSMS: %v", err)
	}
	if id1 == "" || id2 == "" {
		t.Fatal("expected non-empty synthetic external ids")
	}
	if id1 == id2 {
		t.Fatal("expected distinct external ids per send")
	}
}

func TestTwilioTransport_SendSMS_Success(t *testing.T) {
	var gotForm string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/Messages.json") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		r.ParseForm()
		gotForm = r.PostForm.Get("Body")
		sid, _ := json.Marshal(map[string]any{"sid": "SM123", "status": "queued"})
		w.Write(sid)
	}))
	defer srv.Close()

	tr := NewTwilioTransport("ACxxx", "secret", "+15550000000", srv.URL)
	id, err := tr.SendSMS("+15551234567", "hello there")
	if err != nil {
		t.Fatalf("SendSMS: %v", err)
	}
	if id != "SM123" {
		t.Fatalf("expected external id SM123, got %q", id)
	}
	if gotForm != "hello there" {
		t.Fatalf("expected Twilio to receive the composed body, got %q", gotForm)
	}
}

func TestTwilioTransport_SendSMS_ErrorCodeInBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		resp, _ := json.Marshal(map[string]any{"error_code": 21211, "error_message": "invalid number"})
		w.Write(resp)
	}))
	defer srv.Close()

	tr := NewTwilioTransport("ACxxx", "secret", "+15550000000", srv.URL)
	if _, err := tr.SendSMS("+1bad", "hello"); err == nil {
		t.Fatal("expected an error when Twilio reports an error_code despite HTTP 200")
	}
}

func TestTwilioTransport_SendSMS_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tr := NewTwilioTransport("ACxxx", "badsecret", "+15550000000", srv.URL)
	if _, err := tr.SendSMS("+15551234567", "hello"); err == nil {
		t.Fatal("expected an error for a non-2xx Twilio response")
	}
}

func TestTwilioTransport_DefaultsBaseURL(t *testing.T) {
	tr := NewTwilioTransport("ACxxx", "secret", "+15550000000", "")
	if !strings.HasPrefix(tr.baseURL, "https://api.twilio.com") {
		t.Fatalf("expected the production host default, got %q", tr.baseURL)
	}
}

func TestError_UnwrapAndKind(t *testing.T) {
	inner := &http.ProtocolError{ErrorString: "boom"}
	err := &Error{Kind: Sms, Err: inner}
	if err.Unwrap() != inner {
		t.Fatal("expected Unwrap to return the wrapped error")
	}
	if !strings.Contains(err.Error(), "sms transport") {
		t.Fatalf("expected Error() to mention the transport kind, got %q", err.Error())
	}
}
