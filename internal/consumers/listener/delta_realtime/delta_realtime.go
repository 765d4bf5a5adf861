package delta_realtime

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/internal/consumers/handler/indexer"
	"github.com/Meesho/BharatMLStack/iris/internal/consumers/listener/realtime"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	partitionCount      = 256
	partitionQueueDepth = 500
	pausedRetryDelay    = 5 * time.Second
)

var (
	rtConsumer Consumer
	rtOnce     sync.Once
)

type RealTimeDeltaConsumer struct {
	configManager        config.Manager
	qdrantIndexerHandler indexer.Handler
	rateLimiters         map[int]*rate.Limiter
	partitionChans       []chan partitionJob
}

// partitionJob is one batch of events bound to a logical partition, together
// with the offsets needed to commit on success or rewind on failure.
type partitionJob struct {
	partition    int
	event        indexer.Event
	commitOffset kafka.TopicPartition
	seekOffset   kafka.TopicPartition
	commit       func()
	seek         func()
}

// jobItem is a single event flattened out of a partitionJob batch.
type jobItem struct {
	eventType indexer.EventType
	data      indexer.Data
}

func newRealTimeDeltaConsumer() Consumer {
	if rtConsumer == nil {
		rtOnce.Do(func() {
			consumer := &RealTimeDeltaConsumer{
				configManager:        config.NewManager(config.DefaultVersion),
				qdrantIndexerHandler: indexer.NewHandler(indexer.QDRANT),
				rateLimiters:         make(map[int]*rate.Limiter),
				partitionChans:       make([]chan partitionJob, partitionCount),
			}
			for partition, limiterConfig := range consumer.configManager.GetRateLimiters() {
				consumer.rateLimiters[partition] = newRateLimiter(limiterConfig)
			}
			for p := 0; p < partitionCount; p++ {
				ch := make(chan partitionJob, partitionQueueDepth)
				consumer.partitionChans[p] = ch
				go consumer.runPartitionWorker(p, ch)
			}
			rtConsumer = consumer
		})
	}
	return rtConsumer
}

// newRateLimiter treats unset limits as 1 so a half-configured limiter still
// lets events trickle through instead of blocking forever.
func newRateLimiter(limiterConfig config.RateLimiter) *rate.Limiter {
	if limiterConfig.RateLimit == 0 {
		limiterConfig.RateLimit = 1
	}
	if limiterConfig.BurstLimit == 0 {
		limiterConfig.BurstLimit = 1
	}
	return rate.NewLimiter(rate.Limit(limiterConfig.RateLimit), limiterConfig.BurstLimit)
}

// runPartitionWorker drains one partition channel for the life of the process.
// Jobs on the same partition run strictly in order.
func (r *RealTimeDeltaConsumer) runPartitionWorker(partition int, ch chan partitionJob) {
	for job := range ch {
		r.runJob(partition, job)
	}
}

// runJob shields the worker loop from panics in a single job. The panicked
// job is seeked so its events come around again, and the worker moves on.
func (r *RealTimeDeltaConsumer) runJob(partition int, job partitionJob) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Msgf("Recovered from panic in delta realtime worker for partition %d: %v", partition, rec)
			job.seek()
		}
	}()
	r.processJob(partition, job)
}

func (r *RealTimeDeltaConsumer) processJob(partition int, job partitionJob) {
	items, index := r.collectJobItems(job)

	indexConfig, err := r.configManager.GetIndexConfig(index)
	if err != nil {
		log.Error().Msgf("Error getting index config for index %s: %v", index, err)
		job.seek()
		return
	}
	if indexConfig.RateLimiter.RateLimit == 0 {
		// Zero rate means the index is paused. Park the partition and retry.
		metric.Gauge("partition_rt_consumption_stopped", 1, partitionTags(partition, index))
		time.Sleep(pausedRetryDelay)
		job.seek()
		return
	}

	limiter := r.rateLimiters[partition]
	chunkSize := len(items)
	if limiter != nil && limiter.Burst() > 0 {
		chunkSize = limiter.Burst()
	}

	chunksProcessed := 0
	for i := 0; i < len(items); i += chunkSize {
		end := i + chunkSize
		if end > len(items) {
			end = len(items)
		}
		if err := r.forwardChunk(partition, index, limiter, items[i:end]); err != nil {
			job.seek()
			return
		}
		chunksProcessed++
	}
	if chunksProcessed > 0 && len(items) > 0 {
		averageBatchSize := len(items) / chunksProcessed
		metric.Gauge("qdrant_avg_batch_size", float64(averageBatchSize), partitionTags(partition, index))
	}
	job.commit()
}

// collectJobItems flattens the job's event map, dropping events whose version
// matches neither the read nor the write side of the index. Returns the
// surviving items and the index name seen on the batch.
func (r *RealTimeDeltaConsumer) collectJobItems(job partitionJob) ([]jobItem, string) {
	var items []jobItem
	index := ""
	for eventType, eventData := range job.event.Data {
		for _, data := range eventData {
			index = data.Index
			indexConfig, err := r.configManager.GetIndexConfig(data.Index)
			if err != nil {
				log.Error().Msgf("Error getting index config for index %s: %v", data.Index, err)
				continue
			}
			if data.Version != indexConfig.WriteVersion && data.Version != indexConfig.ReadVersion {
				log.Error().Msgf("Version mismatch for index %s: %v", data.Index, data.Version)
				metric.Count("version_error", 1, []string{"index_name", data.Index})
				continue
			}
			items = append(items, jobItem{eventType: eventType, data: data})
		}
	}
	return items, index
}

// forwardChunk pushes one rate-limited slice of the batch through the indexer.
func (r *RealTimeDeltaConsumer) forwardChunk(partition int, index string, limiter *rate.Limiter, chunk []jobItem) error {
	if limiter != nil {
		metric.Gauge("partition_rt_consumption_stopped", 0, partitionTags(partition, index))
		if err := limiter.WaitN(context.Background(), len(chunk)); err != nil {
			log.Error().Msgf("Rate limiter Error for partition %v: %v", partition, err)
			return err
		}
	}
	microEvent := indexer.Event{Data: make(map[indexer.EventType][]indexer.Data)}
	for _, item := range chunk {
		microEvent.Data[item.eventType] = append(microEvent.Data[item.eventType], item.data)
	}
	if err := r.qdrantIndexerHandler.Process(microEvent); err != nil {
		log.Error().Msgf("Error processing delta event for partition %v: %v", partition, err)
		return err
	}
	metric.Count("qdrant_events", int64(len(chunk)), partitionTags(partition, index))
	return nil
}

func partitionTags(partition int, index string) []string {
	return []string{"partition", strconv.Itoa(partition), "index_name", index}
}

func (r *RealTimeDeltaConsumer) Process(events []realtime.DeltaEvent, c *kafka.Consumer) error {
	if err := r.ProcessDeltaEvent(events, c); err != nil {
		metric.Count("realtime_consumer_event_error", int64(len(events)), []string{})
		log.Error().Msg("Error processing combined indexer event")
		return err
	}

	return nil
}

// partitionBatch accumulates events destined for one logical partition along
// with the highest offset to commit and the lowest offset to seek back to.
type partitionBatch struct {
	event  indexer.Event
	commit kafka.TopicPartition
	seek   kafka.TopicPartition
}

func (r *RealTimeDeltaConsumer) ProcessDeltaEvent(events []realtime.DeltaEvent, c *kafka.Consumer) error {
	batches := make(map[int]*partitionBatch)
	for _, event := range events {
		if event.EventType == "UPSERT" && len(event.Vectors) == 0 {
			continue
		}
		indexConfig, err := r.configManager.GetIndexConfig(event.Index)
		if err != nil {
			log.Error().Msgf("Error getting index config for index %s: %v", event.Index, err)
			return err
		}
		batch, ok := batches[indexConfig.RTPartition]
		if !ok {
			batch = &partitionBatch{
				event:  indexer.Event{Data: make(map[indexer.EventType][]indexer.Data)},
				commit: event.TopicPartition,
				seek:   event.TopicPartition,
			}
			batches[indexConfig.RTPartition] = batch
		} else {
			if event.TopicPartition.Offset > batch.commit.Offset {
				batch.commit = event.TopicPartition
			}
			if event.TopicPartition.Offset < batch.seek.Offset {
				batch.seek = event.TopicPartition
			}
		}
		eventType := indexer.EventType(event.EventType)
		batch.event.Data[eventType] = append(batch.event.Data[eventType], indexer.Data{
			Index:   event.Index,
			Version: event.Version,
			Id:      event.Id,
			Payload: event.Payload,
			Vectors: event.Vectors,
		})
	}
	for partition, batch := range batches {
		r.enqueue(partition, batch, c)
	}

	return nil
}

// enqueue hands a batch to the partition's worker. Commit and seek act on the
// consumer that delivered the events, so a rewind lands on this group.
func (r *RealTimeDeltaConsumer) enqueue(partition int, batch *partitionBatch, c *kafka.Consumer) {
	commitOffset, seekOffset := batch.commit, batch.seek
	r.partitionChans[partition] <- partitionJob{
		partition:    partition,
		event:        batch.event,
		commitOffset: commitOffset,
		seekOffset:   seekOffset,
		commit:       func() { c.CommitOffsets([]kafka.TopicPartition{commitOffset}) },
		seek:         func() { c.SeekPartitions([]kafka.TopicPartition{seekOffset}) },
	}
}

func (r *RealTimeDeltaConsumer) RefreshRateLimiters(key, _, eventType string) error {
	log.Info().Msgf("Rate limiter change detected - Key: %s, EventType: %s", key, eventType)

	index := r.extractRateLimiterKey(key)
	if index == "" {
		return nil
	}
	indexConfig, err := r.configManager.GetIndexConfig(index)
	if err != nil {
		log.Error().Msgf("Error getting index config for index %s: %v", index, err)
		return err
	}
	if eventType == "DELETE" {
		log.Info().Msgf("Removed rate limiter: %v", indexConfig.RTPartition)
		return nil
	}
	if indexConfig.RTPartition == 0 {
		log.Error().Msgf("RTPartition is 0 for index %s", index)
		return nil
	}
	limiterConfig, ok := r.configManager.GetRateLimiters()[indexConfig.RTPartition]
	if !ok {
		log.Error().Msgf("Rate limiter key %v not found in config", indexConfig.RTPartition)
		return nil
	}
	r.rateLimiters[indexConfig.RTPartition] = newRateLimiter(limiterConfig)
	log.Info().Msgf("Updated rate limiter %v: rate=%d, burst=%d",
		indexConfig.RTPartition, limiterConfig.RateLimit, limiterConfig.BurstLimit)

	return nil
}

// extractRateLimiterKey pulls the index name out of an etcd rate limiter key,
// e.g. /config/iris/indexes/<index>/rate-limiter/rate-limit.
func (r *RealTimeDeltaConsumer) extractRateLimiterKey(key string) string {
	parts := strings.Split(key, "/")
	if len(parts) < 7 {
		return ""
	}
	switch parts[len(parts)-1] {
	case "rate-limit", "burst-limit":
		return parts[4]
	}
	return ""
}
