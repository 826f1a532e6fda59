package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink forwards bus events to a topic. Events are keyed by type.
type KafkaSink struct {
	w       messageWriter
	inbox   chan kafka.Message
	closeCh chan struct{}
	mu      sync.RWMutex
	closed  bool
	logger  zerolog.Logger
}

func NewKafkaSink(brokers []string, topic string, buf int, logger *zerolog.Logger) *KafkaSink {
	return newKafkaSink(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}, buf, logger)
}

func newKafkaSink(w messageWriter, buf int, logger *zerolog.Logger) *KafkaSink {
	if buf <= 0 {
		buf = 128
	}
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &KafkaSink{
		w:       w,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		logger:  l.With().Str("component", "kafka_sink").Logger(),
	}
}

// Attach subscribes the sink to every event on bus.
func (s *KafkaSink) Attach(bus *EventBus) {
	bus.SubscribeAll(s.Handle)
}

// Handle enqueues the event. A full buffer drops it.
func (s *KafkaSink) Handle(event *Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(event.Type),
		Value: value,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	select {
	case s.inbox <- msg:
	default:
		s.logger.Warn().Str("event_type", event.Type).Str("event_id", event.ID).Msg("kafka buffer full, event dropped")
	}
	return nil
}

// Start runs the writer loop until ctx is done or Close is called, then
// flushes what is buffered.
func (s *KafkaSink) Start(ctx context.Context) {
	go func() {
		defer close(s.closeCh)
		for {
			select {
			case <-ctx.Done():
				s.Close()
				for m := range s.inbox {
					s.write(m)
				}
				s.closeWriter()
				return
			case m, ok := <-s.inbox:
				if !ok {
					s.closeWriter()
					return
				}
				s.write(m)
			}
		}
	}()
}

// Close stops intake. Buffered events are still written.
func (s *KafkaSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.inbox)
	}
}

// WaitClosed blocks until the writer loop has exited.
func (s *KafkaSink) WaitClosed() { <-s.closeCh }

func (s *KafkaSink) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.w.WriteMessages(ctx, m); err != nil {
		s.logger.Error().Err(err).Str("key", string(m.Key)).Msg("kafka write failed")
	}
}

func (s *KafkaSink) closeWriter() {
	if err := s.w.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("kafka writer close failed")
	}
}
