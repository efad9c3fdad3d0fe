package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/example/family-scheduler/internal/reminder"
)

func counterValue(t *testing.T, counter promclient.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := counter.Write(&m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestObserverRecordsPassesAndDeliveries(t *testing.T) {
	reg := promclient.NewRegistry()
	observer, err := NewObserver("test", reg)
	if err != nil {
		t.Fatalf("NewObserver returned error: %v", err)
	}

	observer.ObservePass("reminders", 250*time.Millisecond, 3, 1)
	observer.ObservePass("reminders", 100*time.Millisecond, 2, 0)
	observer.ObserveDelivery(reminder.ChannelEmail, nil)
	observer.ObserveDelivery(reminder.ChannelPush, errors.New("boom"))
	observer.ObserveDelivery(reminder.ChannelPush, errors.New("boom"))

	if got := counterValue(t, observer.passNotified.WithLabelValues("reminders")); got != 5 {
		t.Fatalf("expected 5 notified, got %v", got)
	}
	if got := counterValue(t, observer.passErrors.WithLabelValues("reminders")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
	if got := counterValue(t, observer.deliveries.WithLabelValues("push", "failure")); got != 2 {
		t.Fatalf("expected 2 push failures, got %v", got)
	}
	if got := counterValue(t, observer.deliveries.WithLabelValues("email", "success")); got != 1 {
		t.Fatalf("expected 1 email success, got %v", got)
	}
}

func TestNewObserverReusesRegisteredCollectors(t *testing.T) {
	reg := promclient.NewRegistry()
	first, err := NewObserver("test", reg)
	if err != nil {
		t.Fatalf("first NewObserver returned error: %v", err)
	}
	second, err := NewObserver("test", reg)
	if err != nil {
		t.Fatalf("second NewObserver returned error: %v", err)
	}

	second.ObserveDelivery(reminder.ChannelChat, nil)
	if got := counterValue(t, first.deliveries.WithLabelValues("chat", "success")); got != 1 {
		t.Fatalf("expected observers to share collectors, got %v", got)
	}
}

func TestNilObserverIsSafe(t *testing.T) {
	var observer *Observer
	observer.ObservePass("summary", time.Second, 1, 0)
	observer.ObserveDelivery(reminder.ChannelEmail, nil)
	observer.ObserveRequest("GET", "/healthz", 200, time.Millisecond)
	observer.TrackInFlight()()
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := promclient.NewRegistry()
	observer, err := NewObserver("test", reg)
	if err != nil {
		t.Fatalf("NewObserver returned error: %v", err)
	}
	observer.ObserveRequest(http.MethodGet, "/healthz", http.StatusOK, 5*time.Millisecond)
	done := observer.TrackInFlight()
	done()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`test_http_request_duration_seconds_count{method="GET",route="/healthz",status="200"} 1`,
		"test_http_requests_in_flight 0",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %q in exposition:\n%s", want, body)
		}
	}
}
