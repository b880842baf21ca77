package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"CryptoAssist/internal/domain/models"
)

func TestDispatcherNoopWithoutContent(t *testing.T) {
	n := &fakeNotifier{}
	d := NewDispatcher(n, nil, nil, time.Second)

	if d.Notify(context.Background(), nil, nil) {
		t.Fatal("expected no notification")
	}
	if d.Notify(context.Background(), nil, &models.MarketOverview{ImportantUpdate: false}) {
		t.Fatal("expected no notification for an ordinary overview")
	}
	if n.sendCount() != 0 {
		t.Fatalf("notifier called %d times", n.sendCount())
	}
}

func TestDispatcherSends(t *testing.T) {
	n := &fakeNotifier{}
	metrics := newRecordingMetrics()
	d := NewDispatcher(n, metrics, nil, time.Second)

	if !d.Notify(context.Background(), nil, &models.MarketOverview{ImportantUpdate: true}) {
		t.Fatal("important overview should be sent")
	}
	if !d.Notify(context.Background(), []models.TradingSignal{{Symbol: "XUSDT"}}, nil) {
		t.Fatal("signals should be sent")
	}
	if n.sendCount() != 2 || metrics.notifications["ok"] != 2 {
		t.Fatalf("unexpected sends: %d, metrics %v", n.sendCount(), metrics.notifications)
	}
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	signals := []models.TradingSignal{{Symbol: "XUSDT"}}

	failing := &fakeNotifier{err: errors.New("webhook 500")}
	metrics := newRecordingMetrics()
	if NewDispatcher(failing, metrics, nil, time.Second).Notify(context.Background(), signals, nil) {
		t.Fatal("failed send reported as success")
	}
	if metrics.notifications["error"] != 1 {
		t.Fatalf("expected error outcome, got %v", metrics.notifications)
	}

	panicking := &fakeNotifier{panics: true}
	if NewDispatcher(panicking, nil, nil, time.Second).Notify(context.Background(), signals, nil) {
		t.Fatal("panicking send reported as success")
	}

	if NewDispatcher(nil, nil, nil, time.Second).Notify(context.Background(), signals, nil) {
		t.Fatal("nil notifier reported as success")
	}
}
