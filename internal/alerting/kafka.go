package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"vault-rebalancer/internal/storage"
)

// SuggestionEvent is the message published for downstream consumers
// when the engine suggests a rebalance.
type SuggestionEvent struct {
	ActionID           int64     `json:"action_id"`
	ReasoningID        int64     `json:"reasoning_id"`
	Timestamp          time.Time `json:"timestamp"`
	SourceChainID      int64     `json:"source_chain_id"`
	DestinationChainID int64     `json:"destination_chain_id"`
	AmountMicro        int64     `json:"amount_micro"`
	ConfidenceScore    float64   `json:"confidence_score"`
}

// Emitter publishes suggestion events.
type Emitter interface {
	EmitSuggestion(ctx context.Context, action storage.RebalanceAction, confidence float64) error
	Close() error
}

// KafkaEmitter implements Emitter on a Kafka topic.
type KafkaEmitter struct {
	writer *kafka.Writer
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewKafkaEmitter creates an emitter for the given broker and topic.
func NewKafkaEmitter(brokerAddress, topic string, logger zerolog.Logger) *KafkaEmitter {
	return &KafkaEmitter{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokerAddress),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		logger: logger.With().Str("component", "kafka_emitter").Logger(),
	}
}

// EmitSuggestion publishes one suggestion event keyed by action id.
func (k *KafkaEmitter) EmitSuggestion(ctx context.Context, action storage.RebalanceAction, confidence float64) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	event := SuggestionEvent{
		ActionID:           action.ID,
		ReasoningID:        action.ReasoningID,
		Timestamp:          action.ActionAt,
		SourceChainID:      action.SourceChainID,
		DestinationChainID: action.DestinationChainID,
		AmountMicro:        action.AmountMicro,
		ConfidenceScore:    confidence,
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal suggestion event: %w", err)
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(action.ID, 10)),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("write suggestion event: %w", err)
	}

	k.logger.Info().
		Int64("action_id", action.ID).
		Msg("suggestion event published")
	return nil
}

// Close releases the underlying writer.
func (k *KafkaEmitter) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.writer != nil {
		err := k.writer.Close()
		k.writer = nil
		return err
	}
	return nil
}

var _ Emitter = (*KafkaEmitter)(nil)
