package notify

import (
	"context"
	"errors"
	"fmt"

	"CryptoAssist/internal/domain/models"
	dservice "CryptoAssist/internal/domain/service"
	"CryptoAssist/pkg/logger"
)

// ErrNoChannels is returned when nothing is configured to receive a message.
var ErrNoChannels = errors.New("notify: no channels configured")

type named interface {
	Name() string
}

// Multi fans a delivery out to every registered channel. One channel failing
// does not stop delivery to the others; the failures are joined.
type Multi struct {
	notifiers []dservice.Notifier
	senders   []dservice.MessageSender
	log       *logger.Logger
}

func NewMulti(log *logger.Logger) *Multi {
	if log == nil {
		log = logger.Nop()
	}
	return &Multi{log: log.With(logger.String("component", "notify"))}
}

// Add registers ch for signal batches, free-form messages or both, depending
// on which interfaces it implements. It reports whether ch was registered.
func (m *Multi) Add(ch interface{}) bool {
	added := false
	if n, ok := ch.(dservice.Notifier); ok {
		m.notifiers = append(m.notifiers, n)
		added = true
	}
	if s, ok := ch.(dservice.MessageSender); ok {
		m.senders = append(m.senders, s)
		added = true
	}
	return added
}

func (m *Multi) Len() int { return len(m.notifiers) }

func (m *Multi) Send(ctx context.Context, signals []models.TradingSignal, overview *models.MarketOverview) error {
	if len(m.notifiers) == 0 {
		return ErrNoChannels
	}
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Send(ctx, signals, overview); err != nil {
			m.log.Warn("notification channel failed", logger.String("channel", nameOf(n)), logger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", nameOf(n), err))
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) SendMessage(ctx context.Context, msg models.Message) error {
	if len(m.senders) == 0 {
		return ErrNoChannels
	}
	var errs []error
	for _, s := range m.senders {
		if err := s.SendMessage(ctx, msg); err != nil {
			m.log.Warn("message channel failed", logger.String("channel", nameOf(s)), logger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", nameOf(s), err))
		}
	}
	return errors.Join(errs...)
}

func nameOf(v interface{}) string {
	if n, ok := v.(named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", v)
}
