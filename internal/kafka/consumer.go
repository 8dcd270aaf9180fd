package kafka

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/events"
	"github.com/ariefcatur/go-order-saga/internal/telemetry"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Handler returns nil when the event was handled, including business outcomes
// like a rejected reservation. A non-nil error is retried and then dead-lettered.
type Handler func(ctx context.Context, env events.Envelope) error

// Routes maps a topic to its handler. The consumer subscribes to every key.
type Routes map[string]Handler

// Deduper remembers event ids that were already handled.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// DeadLetterWriter receives messages that exhausted their attempts.
type DeadLetterWriter interface {
	WriteSync(ctx context.Context, m kafka.Message) error
}

type ConsumerConfig struct {
	Brokers     []string
	Group       string
	Workers     int
	MaxAttempts int
	Backoff     time.Duration
}

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r           reader
	routes      Routes
	workers     int
	maxAttempts int
	backoff     time.Duration
	dlq         DeadLetterWriter
	dedup       Deduper
	log         *zap.Logger
	tracer      trace.Tracer
}

func NewConsumer(cfg ConsumerConfig, routes Routes, dlq DeadLetterWriter, dedup Deduper, log *zap.Logger) *Consumer {
	topics := make([]string, 0, len(routes))
	for t := range routes {
		topics = append(topics, t)
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.Group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
		StartOffset:    kafka.FirstOffset,
	})
	return newConsumer(r, cfg, routes, dlq, dedup, log)
}

func newConsumer(r reader, cfg ConsumerConfig, routes Routes, dlq DeadLetterWriter, dedup Deduper, log *zap.Logger) *Consumer {
	c := &Consumer{
		r:           r,
		routes:      routes,
		workers:     cfg.Workers,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		dlq:         dlq,
		dedup:       dedup,
		log:         log,
		tracer:      otel.Tracer("kafka-consumer"),
	}
	if c.workers <= 0 {
		c.workers = 1
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = 1
	}
	return c
}

// Start fetches until ctx is cancelled. Messages of one partition key always
// land on the same worker so per-order ordering survives the fan-out.
func (c *Consumer) Start(ctx context.Context) error {
	defer c.r.Close()

	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 64)
		wg.Add(1)
		go func(in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				c.process(ctx, m)
			}
		}(jobs[i])
	}
	stop := func() {
		for _, ch := range jobs {
			close(ch)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs[c.slot(m.Key)] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

func (c *Consumer) slot(key []byte) int {
	h := fnv.New32a()
	_, _ = h.Write(key)
	return int(h.Sum32() % uint32(c.workers))
}

func (c *Consumer) process(ctx context.Context, m kafka.Message) {
	log := c.log.With(zap.String("topic", m.Topic), zap.Int64("offset", m.Offset), zap.ByteString("key", m.Key))

	h, ok := c.routes[m.Topic]
	if !ok {
		log.Warn("no handler for topic")
		c.commit(ctx, m, log)
		return
	}

	env, err := DecodeEnvelope(m.Value)
	if err != nil {
		log.Error("undecodable message", zap.Error(err))
		c.deadLetter(ctx, m, err, 0, log)
		c.commit(ctx, m, log)
		return
	}
	log = log.With(zap.String("event_id", env.EventID))

	msgCtx := telemetry.Extract(ctx, headerMap(m.Headers))
	msgCtx, span := c.tracer.Start(msgCtx, "consume "+m.Topic, trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", m.Topic),
			attribute.String("messaging.message.id", env.EventID),
		))
	defer span.End()

	if c.dedup != nil && env.EventID != "" {
		seen, err := c.dedup.Seen(msgCtx, env.EventID)
		if err != nil {
			log.Warn("dedup lookup failed", zap.Error(err))
		} else if seen {
			log.Debug("duplicate event skipped")
			c.commit(ctx, m, log)
			return
		}
	}

	var herr error
	attempts := 0
	for attempts < c.maxAttempts {
		attempts++
		if herr = h(msgCtx, env); herr == nil {
			break
		}
		log.Warn("handler failed", zap.Int("attempt", attempts), zap.Error(herr))
		if attempts == c.maxAttempts {
			break
		}
		select {
		case <-time.After(c.backoff * time.Duration(attempts)):
		case <-ctx.Done():
			// left uncommitted, redelivered after rebalance
			return
		}
	}

	if herr != nil && ctx.Err() != nil {
		log.Warn("handler interrupted by shutdown, left uncommitted", zap.Error(herr))
		return
	}
	if herr != nil {
		span.RecordError(herr)
		span.SetStatus(codes.Error, herr.Error())
		log.Error("handler exhausted attempts", zap.Int("attempts", attempts), zap.Error(herr))
		c.deadLetter(ctx, m, herr, attempts, log)
	} else if c.dedup != nil && env.EventID != "" {
		if err := c.dedup.Mark(msgCtx, env.EventID); err != nil {
			log.Warn("dedup mark failed", zap.Error(err))
		}
	}
	c.commit(ctx, m, log)
}

func (c *Consumer) deadLetter(ctx context.Context, m kafka.Message, cause error, attempts int, log *zap.Logger) {
	if c.dlq == nil {
		return
	}
	headers := append([]kafka.Header{}, m.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderError, Value: []byte(cause.Error())},
		kafka.Header{Key: HeaderAttempts, Value: []byte(strconv.Itoa(attempts))},
		kafka.Header{Key: HeaderOriginalTopic, Value: []byte(m.Topic)},
	)
	err := c.dlq.WriteSync(ctx, kafka.Message{
		Topic:   events.DeadLetterTopic(m.Topic),
		Key:     m.Key,
		Value:   m.Value,
		Headers: headers,
		Time:    time.Now(),
	})
	if err != nil {
		log.Error("dead letter write failed", zap.Error(err))
	}
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message, log *zap.Logger) {
	if err := c.r.CommitMessages(ctx, m); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("commit failed", zap.Error(err))
	}
}
