package kafka

import (
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	kafkaConf "github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rs/zerolog/log"
)

const (
	bootstrapServers     = "bootstrap.servers"
	groupID              = "group.id"
	autoOffsetReset      = "auto.offset.reset"
	reBalanceEnable      = "go.application.rebalance.enable"
	enableAutoCommit     = "enable.auto.commit"
	autoCommitIntervalMs = "auto.commit.interval.ms"
	saslUsername         = "sasl.username"
	saslPassword         = "sasl.password"
	saslMechanism        = "sasl.mechanisms"
	securityProtocol     = "security.protocol"
	clientId             = "client.id"

	batchFlushInterval = 30 * time.Second
)

// BatchHandler processes one batch of consumed messages. A nil return commits
// the batch (when auto-commit is off); an error seeks the batch's partitions
// back so the messages are redelivered.
type BatchHandler func(msgs []*kafka.Message, c *kafka.Consumer) error

type KafkaListener struct {
	consumers    []*kafka.Consumer
	kafkaConfig  *kafkaConf.KafkaConfig
	sigChan      chan os.Signal
	batchHandler BatchHandler
}

// StartConsumers starts one listener per id in the comma-separated kafkaIds
// list. Connection settings for each id come from env vars prefixed
// KAFKA_<id>; consumerName only labels the log lines.
func StartConsumers(kafkaIds string, consumerName string, handler BatchHandler) {
	for _, kafkaId := range strings.Split(kafkaIds, ",") {
		kafkaId = strings.TrimSpace(kafkaId)
		if kafkaId == "" {
			continue
		}
		cfg, err := kafkaConf.NewKafkaConfig().BuildConfigFromEnv("KAFKA_" + kafkaId)
		if err != nil {
			log.Error().Err(err).Msgf("Failed to build kafka config for %s (kafkaId=%s)", consumerName, kafkaId)
			continue
		}
		log.Info().Str("topic", cfg.Topics).Str("bootstrap", cfg.BootstrapURLs).Str("group", cfg.GroupID).
			Msgf("Starting %s consumer kafkaId=%s", consumerName, kafkaId)
		kl := NewKafkaListener(cfg, handler)
		kl.Init()
		kl.Consume()
		log.Info().Msgf("Started %s consumer for kafkaId=%s", consumerName, kafkaId)
	}
}

func NewKafkaListener(cfg *kafkaConf.KafkaConfig, batchHandler BatchHandler) *KafkaListener {
	return &KafkaListener{
		kafkaConfig:  cfg,
		batchHandler: batchHandler,
	}
}

func (k *KafkaListener) Init() {
	for i := 0; i < k.kafkaConfig.Concurrency; i++ {
		consumer, err := kafka.NewConsumer(k.consumerConfigMap(i))
		if err != nil {
			log.Panic().Err(err).Msg("Failed to create Kafka consumer.")
		}
		topics := k.subscriptionTopics()
		if err = consumer.SubscribeTopics(topics, nil); err != nil {
			log.Panic().Err(err).Msgf("Failed to subscribe to topics %v", topics)
		}
		k.consumers = append(k.consumers, consumer)
	}
	k.sigChan = make(chan os.Signal, 1)
	signal.Notify(k.sigChan, syscall.SIGINT, syscall.SIGTERM)
}

// consumerConfigMap assembles the confluent ConfigMap for consumer #index.
// The client id gets the index appended so instances are distinguishable.
func (k *KafkaListener) consumerConfigMap(index int) *kafka.ConfigMap {
	cm := kafka.ConfigMap{
		bootstrapServers:     k.kafkaConfig.BootstrapURLs,
		groupID:              k.kafkaConfig.GroupID,
		autoOffsetReset:      k.kafkaConfig.AutoOffsetReset,
		reBalanceEnable:      k.kafkaConfig.ReBalanceEnable,
		enableAutoCommit:     k.kafkaConfig.AutoCommitEnable,
		autoCommitIntervalMs: k.kafkaConfig.AutoCommitIntervalInMs,
		clientId:             k.kafkaConfig.ClientID + "-" + strconv.Itoa(index),
	}
	setIfPresent(cm, securityProtocol, k.kafkaConfig.SecurityProtocol)
	setIfPresent(cm, saslMechanism, k.kafkaConfig.SaslMechanism)
	setIfPresent(cm, saslUsername, k.kafkaConfig.SaslUsername)
	setIfPresent(cm, saslPassword, k.kafkaConfig.SaslPassword)
	return &cm
}

func setIfPresent(cm kafka.ConfigMap, key, value string) {
	if value != "" {
		cm[key] = value
	}
}

// subscriptionTopics splits the comma-separated topic list, trimming spaces.
// An all-blank list falls through to the raw (trimmed) value so subscription
// fails loudly instead of silently consuming nothing.
func (k *KafkaListener) subscriptionTopics() []string {
	parts := strings.Split(k.kafkaConfig.Topics, ",")
	topics := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			topics = append(topics, t)
		}
	}
	if len(topics) == 0 {
		topics = []string{strings.TrimSpace(k.kafkaConfig.Topics)}
	}
	return topics
}

// Consume starts one polling goroutine per consumer. Batches are handed to
// the handler when full or when the flush interval elapses; SIGINT/SIGTERM
// drains the pending batch before closing.
func (k *KafkaListener) Consume() {
	for i, c := range k.consumers {
		log.Info().Msgf("Starting consumer loop %v", i)
		go k.consumeLoop(c)
	}
}

func (k *KafkaListener) consumeLoop(consumer *kafka.Consumer) {
	defer k.recoverAndSeekBack(consumer)

	messages := make([]*kafka.Message, 0, k.kafkaConfig.BatchSize)
	flushTimer := time.NewTicker(batchFlushInterval)
	defer flushTimer.Stop()

	run := true
	for run {
		select {
		case <-k.sigChan:
			log.Info().Msgf("Terminating Instance %v", consumer)
			k.drainAndClose(consumer, messages)
			run = false

		case <-flushTimer.C:
			if len(messages) > 0 {
				log.Info().Int("msgCount", len(messages)).Msg("Flushing batch due to timeout")
				k.processBatch(consumer, messages)
				messages = messages[:0]
			}

		default:
			ev := consumer.Poll(k.kafkaConfig.PollTimeout)
			if ev == nil {
				continue
			}
			switch e := ev.(type) {
			case *kafka.Message:
				metric.Incr("events_consumed", []string{
					"topic:" + *e.TopicPartition.Topic,
					"group:" + k.kafkaConfig.GroupID,
					"client:" + k.kafkaConfig.ClientID,
				})
				log.Debug().Str("topic", *e.TopicPartition.Topic).Int32("partition", e.TopicPartition.Partition).Msg("Kafka message received")

				messages = append(messages, e)
				if len(messages) == k.kafkaConfig.BatchSize {
					log.Info().Int("msgCount", len(messages)).Msg("Processing batch (batch full)")
					k.processBatch(consumer, messages)
					messages = messages[:0]
				}

			case kafka.Error:
				if !e.IsFatal() {
					log.Error().Err(e).Msg("Non-fatal Kafka error encountered.")
					continue
				}
				log.Error().Err(e).Msg("Fatal Kafka error. Shutting down consumer.")
				if len(messages) > 0 {
					log.Info().Msgf("Processing remaining %d messages before fatal error", len(messages))
					k.processBatch(consumer, messages)
				}
				run = false

			default:
				log.Debug().Msgf("Ignored event: %#v", e)
			}
		}
	}
}

// recoverAndSeekBack is the deferred guard for a consume loop: on panic it
// rewinds every assigned partition so nothing is lost, then counts the event.
func (k *KafkaListener) recoverAndSeekBack(consumer *kafka.Consumer) {
	r := recover()
	if r == nil {
		return
	}
	log.Error().Msgf("%v : Recovered from panic: %v", consumer, r)
	partitions, _ := consumer.Assignment()
	if _, err := consumer.SeekPartitions(partitions); err != nil {
		log.Error().Msgf("%v : Failed to seek partitions", consumer)
	}
	metric.Incr("consumer_panic", []string{"group:" + k.kafkaConfig.GroupID, "client:" + k.kafkaConfig.ClientID})
}

// drainAndClose flushes any buffered messages, then unsubscribes and closes.
func (k *KafkaListener) drainAndClose(consumer *kafka.Consumer, messages []*kafka.Message) {
	if len(messages) > 0 {
		log.Debug().Msgf("Processing remaining %d messages before shutdown", len(messages))
		k.processBatch(consumer, messages)
	}
	if err := consumer.Unsubscribe(); err != nil {
		log.Error().Msg("Error while UnSubscribing Topic")
	}
	if err := consumer.Close(); err != nil {
		log.Error().Msg("Error while Closing Consumer")
	}
}

func (k *KafkaListener) processBatch(consumer *kafka.Consumer, messages []*kafka.Message) {
	if len(messages) == 0 {
		return
	}
	if err := k.batchHandler(messages, consumer); err != nil {
		log.Error().Err(err).Msg("Batch processing failed, seeking back")
		if _, seekErr := consumer.SeekPartitions(uniquePartitions(messages)); seekErr != nil {
			log.Error().Err(seekErr).Msg("Failed to seek partitions")
		}
		return
	}
	if !k.kafkaConfig.AutoCommitEnable {
		if _, err := consumer.Commit(); err != nil {
			log.Error().Err(err).Msg("Failed to commit")
		}
	}
}

// uniquePartitions collapses duplicate topic/partition/offset entries so
// SeekPartitions receives each one once.
func uniquePartitions(messages []*kafka.Message) []kafka.TopicPartition {
	seen := make(map[kafka.TopicPartition]struct{}, len(messages))
	out := make([]kafka.TopicPartition, 0, len(messages))
	for _, m := range messages {
		if _, ok := seen[m.TopicPartition]; ok {
			continue
		}
		seen[m.TopicPartition] = struct{}{}
		out = append(out, m.TopicPartition)
	}
	return out
}
