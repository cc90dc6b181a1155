package messaging

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"ballotbooth/contexts/election/voting-booth/ports"
)

const memberBuffer = 128

// consumerGroup fans a topic out to its members round-robin, so each event
// reaches one member of every group.
type consumerGroup struct {
	members []chan ports.EventEnvelope
	next    int
}

// Kafka is the event bus used by the booth outbox relay and the vote.cast
// notifier. Delivery is in-process with Kafka consumer-group semantics;
// brokers are recorded for logging only until an external broker client
// is wired.
type Kafka struct {
	mu      sync.Mutex
	topics  map[string]map[string]*consumerGroup
	brokers []string
	logger  *slog.Logger
}

func NewKafka(brokers []string, logger *slog.Logger) (*Kafka, error) {
	cleaned := make([]string, 0, len(brokers))
	for _, broker := range brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			cleaned = append(cleaned, broker)
		}
	}
	return &Kafka{
		topics:  make(map[string]map[string]*consumerGroup),
		brokers: cleaned,
		logger:  logger,
	}, nil
}

func (k *Kafka) Brokers() []string {
	return append([]string(nil), k.brokers...)
}

var _ ports.EventPublisher = (*Kafka)(nil)
var _ ports.EventSubscriber = (*Kafka)(nil)

// Publish never blocks on a consumer. An event for a group whose chosen
// member is full is dropped and logged; the outbox row is already marked
// published by then, so consumers must tolerate gaps.
func (k *Kafka) Publish(ctx context.Context, topic string, event ports.EventEnvelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	k.mu.Lock()
	targets := make(map[string]chan ports.EventEnvelope, len(k.topics[topic]))
	for name, group := range k.topics[topic] {
		if len(group.members) == 0 {
			continue
		}
		targets[name] = group.members[group.next%len(group.members)]
		group.next++
	}
	k.mu.Unlock()

	for name, member := range targets {
		select {
		case member <- event:
		default:
			k.log().Warn("dropping event for slow consumer group",
				"event", "kafka_publish_drop",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"consumer_group", name,
				"event_id", event.EventID,
			)
		}
	}

	k.log().Info("event published",
		"event", "kafka_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
		"partition_key", event.PartitionKey,
		"consumer_groups", len(targets),
	)
	return nil
}

// Subscribe joins consumerGroup on topic until ctx is done. Handler errors
// are logged and the event is not redelivered.
func (k *Kafka) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	ch := make(chan ports.EventEnvelope, memberBuffer)
	k.join(topic, consumerGroup, ch)

	go func() {
		defer k.leave(topic, consumerGroup, ch)
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-ch:
				if err := handler(ctx, event); err != nil {
					k.log().Error("consumer handler failed",
						"event", "kafka_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"topic", topic,
						"consumer_group", consumerGroup,
						"event_id", event.EventID,
						"event_type", event.EventType,
						"error", err.Error(),
					)
				}
			}
		}
	}()
	return nil
}

func (k *Kafka) join(topic string, name string, member chan ports.EventEnvelope) {
	k.mu.Lock()
	defer k.mu.Unlock()
	groups, ok := k.topics[topic]
	if !ok {
		groups = make(map[string]*consumerGroup)
		k.topics[topic] = groups
	}
	group, ok := groups[name]
	if !ok {
		group = &consumerGroup{}
		groups[name] = group
	}
	group.members = append(group.members, member)
}

func (k *Kafka) leave(topic string, name string, target chan ports.EventEnvelope) {
	k.mu.Lock()
	defer k.mu.Unlock()
	group, ok := k.topics[topic][name]
	if !ok {
		return
	}
	filtered := group.members[:0]
	for _, member := range group.members {
		if member != target {
			filtered = append(filtered, member)
		}
	}
	group.members = filtered
	if len(filtered) == 0 {
		delete(k.topics[topic], name)
	}
}

// members reports how many subscribers are joined to topic across groups.
func (k *Kafka) members(topic string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	total := 0
	for _, group := range k.topics[topic] {
		total += len(group.members)
	}
	return total
}

func (k *Kafka) log() *slog.Logger {
	if k.logger == nil {
		return slog.Default()
	}
	return k.logger
}
