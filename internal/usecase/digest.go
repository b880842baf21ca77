package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"CryptoAssist/internal/domain/models"
	drepo "CryptoAssist/internal/domain/repository"
	dservice "CryptoAssist/internal/domain/service"
	"CryptoAssist/pkg/logger"

	"github.com/robfig/cron/v3"
)

// SessionReader is the read side of the orchestrator used by reporting jobs.
type SessionReader interface {
	Status() models.SessionStatus
	ActiveSignals() []models.TradingSignal
	PortfolioSummary(ctx context.Context) (models.PortfolioSummary, error)
}

// DigestJob sends a periodic text summary of the session through a message sender.
type DigestJob struct {
	session SessionReader
	sender  dservice.MessageSender
	locker  drepo.Locker
	log     *logger.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewDigestJob(session SessionReader, sender dservice.MessageSender, locker drepo.Locker, log *logger.Logger) *DigestJob {
	if log == nil {
		log = logger.Nop()
	}
	return &DigestJob{
		session: session,
		sender:  sender,
		locker:  locker,
		log:     log.With(logger.String("component", "digest")),
		timeout: 30 * time.Second,
		now:     time.Now,
	}
}

// Schedule registers the job on c. spec uses the six-field (seconds) cron syntax.
func (j *DigestJob) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()
		if err := j.Run(ctx); err != nil {
			j.log.Error("digest failed", logger.Error(err))
		}
	})
	if err != nil {
		return 0, fmt.Errorf("schedule digest %q: %w", spec, err)
	}
	return id, nil
}

// Run builds and sends one digest. With a locker configured, only one
// replica sends the digest for a given day.
func (j *DigestJob) Run(ctx context.Context) error {
	if j.sender == nil {
		return fmt.Errorf("digest: no message sender configured")
	}

	if j.locker != nil {
		key := "digest:" + j.now().UTC().Format("2006-01-02")
		ok, err := j.locker.TryLock(ctx, key, 24*time.Hour)
		if err != nil {
			j.log.Warn("digest lock unavailable, sending anyway", logger.Error(err))
		} else if !ok {
			j.log.Info("digest already sent by another instance", logger.String("key", key))
			return nil
		}
	}

	msg := j.Build(ctx)
	if err := j.sender.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("send digest: %w", err)
	}
	j.log.Info("digest sent")
	return nil
}

// Build renders the digest message. Portfolio failures are reported inline.
func (j *DigestJob) Build(ctx context.Context) models.Message {
	status := j.session.Status()
	signals := j.session.ActiveSignals()

	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s (iteration %d, breaker %s)\n", status.State, status.Iteration, status.Breaker)
	fmt.Fprintf(&b, "Market sentiment: %s\n", status.Sentiment)
	fmt.Fprintf(&b, "Active signals: %d\n", len(signals))

	counts := make(map[string]int)
	for _, s := range signals {
		counts[s.Symbol+" "+string(s.Action)]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s x%d\n", k, counts[k])
	}

	if summary, err := j.session.PortfolioSummary(ctx); err != nil {
		fmt.Fprintf(&b, "Portfolio: unavailable (%v)\n", err)
	} else {
		fmt.Fprintf(&b, "Open exposure: %.2f USD of %.2f USD\n", summary.OpenExposureUSD, summary.TotalValueUSD)
	}

	return models.Message{
		Title: "CryptoAssist daily digest " + j.now().Format("2006-01-02"),
		Body:  b.String(),
	}
}
