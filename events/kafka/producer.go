// Package kafka publishes audit events to a Kafka topic
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/vanillake254/BAHATI-YANGU/events"
)

const (
	defaultWorkerNum = 2
	queueSize        = 100
)

// messageWriter is the part of kafka.Writer the producer uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer implements events.Publisher on a small worker pool
type Producer struct {
	writer    messageWriter
	topic     string
	logger    zerolog.Logger
	jobs      chan kafka.Message
	workerNum int
	wg        sync.WaitGroup

	closeOnce sync.Once
}

// ProducerConfig holds configuration for Kafka producer
type ProducerConfig struct {
	Brokers   []string
	Topic     string
	Logger    zerolog.Logger
	WorkerNum int
}

// NewProducer creates a producer writing to cfg.Topic
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: no topic configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		Async:        false,
	}
	return newProducer(writer, cfg), nil
}

func newProducer(writer messageWriter, cfg ProducerConfig) *Producer {
	workerNum := cfg.WorkerNum
	if workerNum <= 0 {
		workerNum = defaultWorkerNum
	}

	p := &Producer{
		writer:    writer,
		topic:     cfg.Topic,
		logger:    cfg.Logger.With().Str("component", "kafka-producer").Logger(),
		jobs:      make(chan kafka.Message, queueSize),
		workerNum: workerNum,
	}

	for i := 0; i < workerNum; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

func (p *Producer) worker() {
	defer p.wg.Done()
	for msg := range p.jobs {
		func() {
			defer p.recover()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := p.writer.WriteMessages(ctx, msg); err != nil {
				p.logger.Error().
					Err(err).
					Str("key", string(msg.Key)).
					Msg("Failed to send audit event to Kafka")
				return
			}
			p.logger.Debug().
				Str("key", string(msg.Key)).
				Msg("Audit event sent to Kafka")
		}()
	}
}

// Publish queues the event for the worker pool. A full queue drops the
// event with an error rather than stalling the caller.
func (p *Producer) Publish(ctx context.Context, event events.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.Key),
		Value: value,
		Time:  event.At,
	}

	select {
	case p.jobs <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.logger.Warn().Str("type", event.Type).Msg("Audit queue full, dropping event")
		return fmt.Errorf("kafka: audit queue full")
	}
}

// PublishSync writes the event before returning
func (p *Producer) PublishSync(ctx context.Context, event events.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.Key),
		Value: value,
		Time:  event.At,
	}); err != nil {
		p.logger.Error().Err(err).Str("type", event.Type).Msg("Failed to send audit event to Kafka")
		return err
	}
	return nil
}

// Close drains the queue and closes the writer
func (p *Producer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.jobs)
		p.wg.Wait()
		if cerr := p.writer.Close(); cerr != nil {
			p.logger.Error().Err(cerr).Msg("Error closing Kafka producer")
			err = cerr
		}
	})
	return err
}

func (p *Producer) recover() {
	if r := recover(); r != nil {
		stack := debug.Stack()
		p.logger.Error().
			Str("operation", "publish_audit_event").
			Str("panic", fmt.Sprintf("%v", r)).
			Str("stack_trace", string(stack)).
			Msg("Panic recovered")
	}
}
