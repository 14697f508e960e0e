package mqtt

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

const (
	commandQueueSize  = 16
	commandRateLimit  = 30 // per commandRateWindow
	commandRateWindow = time.Minute
)

// CommandFunc handles one inbound command payload and returns the
// reply published to the result topic. Commands run one at a time.
type CommandFunc func(ctx context.Context, payload []byte) []byte

// SetCommandHandler enables the command topic. It must be called
// before [Publisher.Start].
func (p *Publisher) SetCommandHandler(fn CommandFunc) {
	p.commands = newCommandQueue(fn, commandRateLimit, commandRateWindow, p.logger)
}

func (p *Publisher) subscribeCommands(ctx context.Context, cm *autopaho.ConnectionManager) {
	topic := p.commandTopic()
	if _, err := cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{
			{Topic: topic, QoS: 1},
		},
	}); err != nil {
		p.logger.Warn("mqtt command subscribe failed", "topic", topic, "error", err)
		return
	}
	p.logger.Info("mqtt subscribed to commands", "topic", topic)
}

// onMessage routes an inbound publish. Only the command topic is
// subscribed; anything else is logged and dropped.
func (p *Publisher) onMessage(pkt *paho.Publish) {
	if p.commands == nil || pkt.Topic != p.commandTopic() {
		p.logger.Debug("mqtt message ignored", "topic", pkt.Topic, "payload_size", len(pkt.Payload))
		return
	}
	p.commands.enqueue(pkt.Payload)
}

func (p *Publisher) publishResult(ctx context.Context, reply []byte) {
	cm := p.cm.Load()
	if cm == nil {
		return
	}
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   p.resultTopic(),
		Payload: reply,
		QoS:     1,
	}); err != nil {
		p.logger.Warn("mqtt result publish failed", "error", err)
	}
}

// commandQueue serializes command handling off the paho callback path.
type commandQueue struct {
	handle  CommandFunc
	inbox   chan []byte
	limiter *messageRateLimiter
	logger  *slog.Logger
}

func newCommandQueue(fn CommandFunc, limit int64, window time.Duration, logger *slog.Logger) *commandQueue {
	return &commandQueue{
		handle:  fn,
		inbox:   make(chan []byte, commandQueueSize),
		limiter: newMessageRateLimiter(limit, window, logger),
		logger:  logger,
	}
}

// enqueue accepts a payload unless the rate limit is exceeded or the
// queue is full.
func (q *commandQueue) enqueue(payload []byte) bool {
	if !q.limiter.allow() {
		return false
	}
	select {
	case q.inbox <- payload:
		return true
	default:
		q.logger.Warn("mqtt command queue full, dropping command", "payload_size", len(payload))
		return false
	}
}

// run handles queued commands until ctx is cancelled.
func (q *commandQueue) run(ctx context.Context, publish func(context.Context, []byte)) {
	go q.limiter.start(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-q.inbox:
			publish(ctx, q.handle(ctx, payload))
		}
	}
}

// messageRateLimiter tracks inbound message rates and drops messages
// when the rate exceeds the configured threshold. It uses atomic
// counters for lock-free operation on the hot path.
type messageRateLimiter struct {
	count    atomic.Int64
	dropped  atomic.Int64
	limit    int64
	interval time.Duration
	logger   *slog.Logger
}

func newMessageRateLimiter(limit int64, interval time.Duration, logger *slog.Logger) *messageRateLimiter {
	return &messageRateLimiter{
		limit:    limit,
		interval: interval,
		logger:   logger,
	}
}

// start runs the periodic counter reset loop. It blocks until ctx is
// cancelled and logs a warning for each window that dropped messages.
func (r *messageRateLimiter) start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count := r.count.Swap(0)
			dropped := r.dropped.Swap(0)
			if dropped > 0 {
				r.logger.Warn("mqtt commands dropped due to rate limit",
					"received", count,
					"dropped", dropped,
					"interval", r.interval.String(),
					"limit", r.limit,
				)
			}
		}
	}
}

// allow increments the message counter and reports whether the current
// count is within the limit.
func (r *messageRateLimiter) allow() bool {
	n := r.count.Add(1)
	if n > r.limit {
		r.dropped.Add(1)
		return false
	}
	return true
}
