package kafka

import (
	"context"
	"errors"
	"testing"
	"time"
)

type flakyHandler struct {
	failures int
	calls    int
	panics   bool
}

func (h *flakyHandler) Topic() string { return "cryptoassist.requests" }

func (h *flakyHandler) Handle(context.Context, []byte) error {
	h.calls++
	if h.panics {
		panic("bad payload")
	}
	if h.calls <= h.failures {
		return errors.New("transient")
	}
	return nil
}

func newTestConsumer(t *testing.T, retryMax int) *Consumer {
	t.Helper()
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(retryMax, time.Millisecond, 2*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	return c
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	if _, err := NewConsumer(); err == nil {
		t.Fatal("expected error without brokers")
	}
}

func TestHandleWithRetry(t *testing.T) {
	c := newTestConsumer(t, 2)

	h := &flakyHandler{failures: 2}
	attempts, err := c.handleWithRetry(h, []byte(`{}`))
	if err != nil || attempts != 3 {
		t.Fatalf("expected success on third attempt, got attempts=%d err=%v", attempts, err)
	}

	h = &flakyHandler{failures: 10}
	attempts, err = c.handleWithRetry(h, []byte(`{}`))
	if err == nil || attempts != 3 {
		t.Fatalf("expected failure after 3 attempts, got attempts=%d err=%v", attempts, err)
	}
}

func TestHandleWithRetryRecoversPanics(t *testing.T) {
	c := newTestConsumer(t, 0)

	attempts, err := c.handleWithRetry(&flakyHandler{panics: true}, nil)
	if err == nil || attempts != 1 {
		t.Fatalf("expected recovered panic as error, got attempts=%d err=%v", attempts, err)
	}
}

func TestRegisterHandlerIgnoresDuplicates(t *testing.T) {
	c := newTestConsumer(t, 0)
	first := &flakyHandler{}
	c.RegisterHandler(first)
	c.RegisterHandler(&flakyHandler{})

	if c.handlers["cryptoassist.requests"] != first {
		t.Fatal("duplicate registration replaced the first handler")
	}
}

func TestBackoffWithJitter(t *testing.T) {
	min, max := 10*time.Millisecond, 80*time.Millisecond
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		if d <= 0 || d > max {
			t.Fatalf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
	if d := backoffWithJitter(min, max, 1); d < min/2 || d > min {
		t.Fatalf("first backoff %v not within jitter of %v", d, min)
	}
}

func TestEncodeValue(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{in: "plain", want: "plain"},
		{in: []byte("raw"), want: "raw"},
		{in: map[string]int{"n": 1}, want: `{"n":1}`},
	}
	for _, c := range cases {
		got, err := encodeValue(c.in)
		if err != nil || string(got) != c.want {
			t.Errorf("encodeValue(%v) = %q, %v; want %q", c.in, got, err, c.want)
		}
	}
	if _, err := encodeValue(make(chan int)); err == nil {
		t.Error("expected marshal error")
	}
}
