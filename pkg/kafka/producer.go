package kafka

import (
	"fmt"
	"strconv"
	"sync"

	kafkaConf "github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rs/zerolog/log"
)

// ProducerMessage is one message to produce. Key and Partition are optional;
// a nil Partition lets the broker pick.
type ProducerMessage struct {
	Key       *string
	Value     []byte
	Headers   map[string][]byte
	Partition *int
}

func (m ProducerMessage) toConfluent(topic string) *kafka.Message {
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Value: m.Value,
	}
	if m.Key != nil {
		msg.Key = []byte(*m.Key)
	}
	if m.Partition != nil {
		msg.TopicPartition.Partition = int32(*m.Partition)
	}
	for k, v := range m.Headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: v})
	}
	return msg
}

// producerEntry binds a kafkaId's target topic to a shared confluent producer.
type producerEntry struct {
	producer *kafka.Producer
	topic    string
}

func (pe *producerEntry) produce(msgs []ProducerMessage) error {
	for _, m := range msgs {
		if err := pe.producer.Produce(m.toConfluent(pe.topic), nil); err != nil {
			return fmt.Errorf("kafka produce error: %w", err)
		}
	}
	return nil
}

// Package-level producer registry. kafkaIds that resolve to the same
// broker+auth settings share one confluent *kafka.Producer; only the target
// topic differs per id.
var (
	entries  = make(map[int]*producerEntry)
	clusters = make(map[string]*kafka.Producer)
	mu       sync.RWMutex
)

func clusterKey(cfg *kafkaConf.ProducerConfig) string {
	return cfg.BootstrapURLs + "|" + cfg.SecurityProtocol + "|" + cfg.SaslMechanism + "|" + cfg.SaslUsername
}

func newConfluentProducer(cfg *kafkaConf.ProducerConfig) (*kafka.Producer, error) {
	cm := kafka.ConfigMap{
		bootstrapServers: cfg.BootstrapURLs,
		clientId:         cfg.ClientID,
	}
	setIfPresent(cm, securityProtocol, cfg.SecurityProtocol)
	setIfPresent(cm, saslMechanism, cfg.SaslMechanism)
	setIfPresent(cm, saslUsername, cfg.SaslUsername)
	setIfPresent(cm, saslPassword, cfg.SaslPassword)

	p, err := kafka.NewProducer(&cm)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	go drainDeliveryReports(p)
	return p, nil
}

// drainDeliveryReports consumes the producer's event channel so Produce never
// blocks, logging failed deliveries.
func drainDeliveryReports(p *kafka.Producer) {
	for e := range p.Events() {
		m, ok := e.(*kafka.Message)
		if !ok || m.TopicPartition.Error == nil {
			continue
		}
		log.Error().Err(m.TopicPartition.Error).
			Str("topic", *m.TopicPartition.Topic).
			Msg("kafka delivery failed")
	}
}

// InitProducer builds a ProducerConfig from env prefix KAFKA_PRODUCER_<kafkaId>
// and registers the kafkaId → topic mapping, reusing an existing confluent
// producer when one is already open for the same cluster. Idempotent.
func InitProducer(kafkaId int) {
	if producerRegistered(kafkaId) {
		return
	}

	cfg, err := kafkaConf.NewKafkaConfig().BuildProducerConfigFromEnv("KAFKA_PRODUCER_" + strconv.Itoa(kafkaId))
	if err != nil {
		log.Error().Err(err).Int("kafkaId", kafkaId).Msg("failed to build producer config")
		return
	}

	mu.Lock()
	defer mu.Unlock()

	// Re-check under the write lock.
	if _, exists := entries[kafkaId]; exists {
		return
	}

	p, err := clusterProducerLocked(kafkaId, cfg)
	if err != nil {
		log.Error().Err(err).Int("kafkaId", kafkaId).Msg("failed to create kafka producer")
		return
	}
	entries[kafkaId] = &producerEntry{producer: p, topic: cfg.Topics}
	log.Info().Int("kafkaId", kafkaId).Str("topic", cfg.Topics).Msg("kafka producer registered")
}

func producerRegistered(kafkaId int) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, exists := entries[kafkaId]
	return exists
}

// clusterProducerLocked returns the shared producer for cfg's cluster,
// creating it on first use. Caller must hold mu.
func clusterProducerLocked(kafkaId int, cfg *kafkaConf.ProducerConfig) (*kafka.Producer, error) {
	key := clusterKey(cfg)
	if p, ok := clusters[key]; ok {
		return p, nil
	}
	p, err := newConfluentProducer(cfg)
	if err != nil {
		return nil, err
	}
	clusters[key] = p
	log.Info().Int("kafkaId", kafkaId).Str("cluster", key).Msg("created new confluent producer for cluster")
	return p, nil
}

// SendAndForget produces msgs to the topic registered for kafkaId. Delivery
// reports are drained in the background; failures only surface in logs.
func SendAndForget(kafkaId int, msgs []ProducerMessage) error {
	mu.RLock()
	entry, ok := entries[kafkaId]
	mu.RUnlock()
	if !ok {
		return fmt.Errorf("producer not initialised for kafkaId=%d", kafkaId)
	}
	return entry.produce(msgs)
}
