// Package consumer runs a franz-go consumer group and hands records to a Handler.
//
// A record whose handler fails is retried with backoff. One that still fails is
// produced to the dead-letter topic before its offset is committed, so no
// record is dropped without a trace. When the dead-letter write itself fails,
// Run stops without committing and the record is redelivered to the next
// group member.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is the transport-neutral view of a consumed record.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Partition int32
	Offset    int64
}

// Handler processes one message. A returned error means the message was not
// handled and may be offered again.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 200 * time.Millisecond

	HeaderSourceTopic     = "efti-source-topic"
	HeaderSourcePartition = "efti-source-partition"
	HeaderSourceOffset    = "efti-source-offset"
	HeaderError           = "efti-error"
)

// Config selects brokers, group and topics.
type Config struct {
	Brokers []string
	Group   string
	Topics  []string
	// MaxAttempts bounds how often one record is offered to the handler.
	MaxAttempts  int
	RetryBackoff time.Duration
	// DeadLetterTopic receives records that still fail after MaxAttempts.
	// Without one they are logged and committed.
	DeadLetterTopic string
}

// Consumer polls records and commits offsets once every record of a poll was
// handled or dead-lettered.
type Consumer struct {
	client          *kgo.Client
	handler         Handler
	logger          *slog.Logger
	maxAttempts     int
	retryBackoff    time.Duration
	deadLetterTopic string
	produce         func(ctx context.Context, rec *kgo.Record) error
}

// New builds a consumer group client. Extra kgo options are appended last.
func New(cfg Config, handler Handler, logger *slog.Logger, opts ...kgo.Opt) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	c := newConsumer(cfg, handler, logger)
	c.client = client
	c.produce = func(ctx context.Context, rec *kgo.Record) error {
		return client.ProduceSync(ctx, rec).FirstErr()
	}
	return c, nil
}

func newConsumer(cfg Config, handler Handler, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Consumer{
		handler:         handler,
		logger:          logger,
		maxAttempts:     cfg.MaxAttempts,
		retryBackoff:    cfg.RetryBackoff,
		deadLetterTopic: cfg.DeadLetterTopic,
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	if c.retryBackoff <= 0 {
		c.retryBackoff = defaultRetryBackoff
	}
	return c
}

// Run polls until ctx is cancelled or a failed record cannot be dead-lettered.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.ErrorContext(ctx, "kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		for iter := fetches.RecordIter(); !iter.Done(); {
			if err := c.process(ctx, iter.Next()); err != nil {
				return err
			}
		}

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil && ctx.Err() == nil {
			c.logger.WarnContext(ctx, "offset commit failed", "error", err)
		}
	}
}

// process offers rec to the handler until it succeeds or the attempts run
// out, then dead-letters it. A non-nil error means rec must not be committed.
func (c *Consumer) process(ctx context.Context, rec *kgo.Record) error {
	msg := toMessage(rec)
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryBackoff
	bo.MaxInterval = 10 * c.retryBackoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.handler.Handle(ctx, msg)
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(c.maxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.WarnContext(ctx, "message handling failed, retrying",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"retry_in", wait,
				"error", err,
			)
		}),
	)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	c.logger.ErrorContext(ctx, "message handling failed",
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"attempts", c.maxAttempts,
		"dead_letter_topic", c.deadLetterTopic,
		"error", err,
	)
	if c.deadLetterTopic == "" {
		return nil
	}
	if perr := c.produce(ctx, deadLetterRecord(c.deadLetterTopic, rec, err)); perr != nil {
		return fmt.Errorf("dead-letter %s/%d@%d: %w", rec.Topic, rec.Partition, rec.Offset, perr)
	}
	return nil
}

// deadLetterRecord copies rec to topic and records where it came from and why
// it failed.
func deadLetterRecord(topic string, rec *kgo.Record, cause error) *kgo.Record {
	headers := make([]kgo.RecordHeader, 0, len(rec.Headers)+4)
	headers = append(headers, rec.Headers...)
	headers = append(headers,
		kgo.RecordHeader{Key: HeaderSourceTopic, Value: []byte(rec.Topic)},
		kgo.RecordHeader{Key: HeaderSourcePartition, Value: []byte(strconv.Itoa(int(rec.Partition)))},
		kgo.RecordHeader{Key: HeaderSourceOffset, Value: []byte(strconv.FormatInt(rec.Offset, 10))},
		kgo.RecordHeader{Key: HeaderError, Value: []byte(cause.Error())},
	)
	return &kgo.Record{
		Topic:   topic,
		Key:     rec.Key,
		Value:   rec.Value,
		Headers: headers,
	}
}

// Close leaves the group and releases the client.
func (c *Consumer) Close() {
	c.client.Close()
}

func toMessage(rec *kgo.Record) *Message {
	headers := make(map[string]string, len(rec.Headers))
	for _, h := range rec.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &Message{
		Topic:     rec.Topic,
		Key:       rec.Key,
		Value:     rec.Value,
		Headers:   headers,
		Partition: rec.Partition,
		Offset:    rec.Offset,
	}
}
