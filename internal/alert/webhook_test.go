package alert

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func countingServer(t *testing.T, called *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestDispatcher(t *testing.T, configs []Config) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(configs, nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return d
}

func TestDispatchMatchesEvents(t *testing.T) {
	var called atomic.Int32
	srv := countingServer(t, &called)

	d := newTestDispatcher(t, []Config{
		{URL: srv.URL, Format: FormatGeneric, Events: []EventType{EventShutdown}},
	})
	d.Dispatch(Event{Type: EventShutdown, Subject: "kill the suspect", Severity: "critical"})
	d.Dispatch(Event{Type: EventRiskCritical, Subject: "a-1"})
	d.Close()

	if called.Load() != 1 {
		t.Errorf("expected 1 call, got %d", called.Load())
	}
}

func TestDispatchMultipleWebhooks(t *testing.T) {
	var called atomic.Int32
	srv1 := countingServer(t, &called)
	srv2 := countingServer(t, &called)

	d := newTestDispatcher(t, []Config{
		{URL: srv1.URL, Format: FormatGeneric, Events: []EventType{EventCriticalFlag}},
		{URL: srv2.URL, Format: FormatSlack, Events: []EventType{EventCriticalFlag, EventShutdown}},
	})
	d.Dispatch(Event{Type: EventCriticalFlag, Subject: "a-1"})
	d.Close()

	if called.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", called.Load())
	}
}

func TestNilDispatcherIsSafe(t *testing.T) {
	d, err := NewDispatcher(nil, nil)
	if err != nil || d != nil {
		t.Fatalf("expected nil dispatcher, got %v, %v", d, err)
	}
	d.Dispatch(Event{Type: EventShutdown})
	d.Wait()
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(Config{URL: srv.URL})
	wh.backoff = time.Millisecond
	if err := wh.Send(context.Background(), Event{Type: EventShutdown}); err != nil {
		t.Errorf("expected success after retries, got: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	wh := NewWebhook(Config{URL: srv.URL})
	if err := wh.Send(context.Background(), Event{Type: EventShutdown}); err == nil {
		t.Error("expected error on 400")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}

func TestWebhookSendsHeaders(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(Config{URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer x"}})
	if err := wh.Send(context.Background(), Event{Type: EventShutdown}); err != nil {
		t.Fatal(err)
	}
	if got != "Bearer x" {
		t.Fatalf("expected auth header, got %q", got)
	}
}

func TestFormatGenericJSON(t *testing.T) {
	data, err := FormatPayload(FormatGeneric, Event{Type: EventRiskCritical, Subject: "a-1", RiskScore: 93})
	if err != nil {
		t.Fatal(err)
	}
	var parsed Event
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("generic format is not valid JSON: %v", err)
	}
	if parsed.Type != EventRiskCritical || parsed.RiskScore != 93 {
		t.Errorf("unexpected round trip %+v", parsed)
	}
}

func TestFormatSlackBlockKit(t *testing.T) {
	data, _ := FormatPayload(FormatSlack, Event{Type: EventShutdown, Subject: "kill", Severity: "critical", Reason: "no-violence"})

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("slack format is not valid JSON: %v", err)
	}
	blocks, ok := parsed["blocks"].([]any)
	if !ok || len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %v", parsed["blocks"])
	}
	header, _ := blocks[0].(map[string]any)
	if header["type"] != "header" {
		t.Errorf("expected header block, got %v", header["type"])
	}
	section, _ := blocks[1].(map[string]any)
	if fields, _ := section["fields"].([]any); len(fields) != 3 {
		t.Errorf("expected 3 fields without a risk score, got %v", section["fields"])
	}
}

func TestFormatPagerDuty(t *testing.T) {
	data, _ := FormatPayload(FormatPagerDuty, Event{Type: EventShutdown, Subject: "kill", Severity: "critical"})

	var parsed map[string]any
	json.Unmarshal(data, &parsed)
	if parsed["event_action"] != "trigger" {
		t.Errorf("expected trigger, got %v", parsed["event_action"])
	}
	payload, _ := parsed["payload"].(map[string]any)
	if payload["severity"] != "critical" || payload["source"] != "sentinel" {
		t.Errorf("unexpected payload %v", payload)
	}
}

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	bodies   [][]byte
	err      error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, data)
	return nil
}

func TestNATSPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	d := &Dispatcher{logger: zap.NewNop()}
	d.Add("nats", newNATS(pub, ""), EventRiskCritical)

	d.Dispatch(Event{Type: EventRiskCritical, Subject: "a-9", RiskScore: 87})
	d.Dispatch(Event{Type: EventShutdown, Subject: "ignored"})
	d.Close()

	if len(pub.subjects) != 1 || pub.subjects[0] != DefaultSubject {
		t.Fatalf("expected one publish on %s, got %v", DefaultSubject, pub.subjects)
	}
	var e Event
	if err := json.Unmarshal(pub.bodies[0], &e); err != nil {
		t.Fatal(err)
	}
	if e.Subject != "a-9" || e.Timestamp == "" {
		t.Fatalf("unexpected event %+v", e)
	}
}

func TestNATSSendError(t *testing.T) {
	n := newNATS(&fakePublisher{err: errors.New("closed")}, "custom.subject")
	if err := n.Send(context.Background(), Event{}); err == nil {
		t.Fatal("expected publish error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.Send(ctx, Event{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
