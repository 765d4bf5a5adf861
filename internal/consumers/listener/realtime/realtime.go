package realtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/internal/consumers/handler/indexer"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/docstore"
	"github.com/Meesho/BharatMLStack/iris/internal/skillset"
	skafka "github.com/Meesho/BharatMLStack/iris/pkg/kafka"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/rs/zerolog/log"
)

var (
	rtConsumer Consumer
	rtOnce     sync.Once
)

type RealtimeConsumer struct {
	configManager        config.Manager
	skillsetClient       skillset.Client
	documentStore        docstore.Store
	qdrantIndexerHandler indexer.Handler
}

func newRealtimeConsumer() Consumer {
	if rtConsumer == nil {
		rtOnce.Do(func() {
			rtConsumer = &RealtimeConsumer{
				configManager:        config.NewManager(config.DefaultVersion),
				skillsetClient:       skillset.NewClient(skillset.DefaultVersion),
				documentStore:        docstore.NewRepository(docstore.DefaultVersion),
				qdrantIndexerHandler: indexer.NewHandler(indexer.QDRANT),
			}
		})
	}
	return rtConsumer
}

// Process folds a poll batch into one combined indexer event and flushes it
// to the delta topic. Events that fail or panic go back onto the retry topic.
func (r *RealtimeConsumer) Process(events []Event) error {
	combined := indexer.Event{
		Data: make(map[indexer.EventType][]indexer.Data),
	}
	for _, event := range events {
		if err := r.processGuarded(event, combined); err != nil {
			metric.Count("realtime_consumer_event_error", int64(len(event.Data)), []string{"type", event.Type})
			log.Error().Msgf("Error processing realtime event: %v", err)
			r.ProduceMessage(event)
			return err
		}
	}
	log.Debug().Msgf("Realtime combined indexer event: %v", combined)
	for eventType, data := range combined.Data {
		if err := r.ProduceDeltaEvent(eventType, data); err != nil {
			log.Error().Msgf("Error producing delta event: %v", err)
			return err
		}
	}
	return nil
}

// processGuarded confines a panic to the event that raised it. The event goes
// back onto the retry topic and the rest of the batch keeps going.
func (r *RealtimeConsumer) processGuarded(event Event, combined indexer.Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			metric.Count("realtime_consumer_panic_event", int64(len(event.Data)), []string{"type", event.Type})
			log.Error().Msgf("panic occurred: %v", rec)
			r.ProduceMessage(event)
		}
	}()
	return r.ProcessRealtimeEvent(event, combined)
}

// ProduceDeltaEvent fans the collected indexer data out to the delta topic,
// one message per document, partitioned by the index's assigned RT partition.
func (r *RealtimeConsumer) ProduceDeltaEvent(eventType indexer.EventType, event []indexer.Data) error {
	messages := make([]skafka.ProducerMessage, 0, len(event))
	for _, eventData := range event {
		message, err := r.deltaMessage(eventType, eventData)
		if err != nil {
			return err
		}
		if message == nil {
			continue
		}
		messages = append(messages, *message)
	}
	if len(messages) == 0 {
		return nil
	}
	if err := skafka.SendAndForget(appConfig.RealTimeDeltaProducerKafkaId, messages); err != nil {
		log.Error().Msgf("Error in producing message %s", err)
		return err
	}
	return nil
}

// deltaMessage converts one indexer data item into a producer message. A nil
// message with nil error means the item was skipped.
func (r *RealtimeConsumer) deltaMessage(eventType indexer.EventType, eventData indexer.Data) (*skafka.ProducerMessage, error) {
	tags := []string{"type", string(eventType), "index_name", eventData.Index, "version", strconv.Itoa(eventData.Version)}
	metric.Count("realtime_delta_producer_event", 1, tags)
	if eventType == indexer.Upsert && len(eventData.Vectors) == 0 {
		metric.Count("vector_empty_upsert_event", 1, tags)
		return nil, nil
	}
	deltaEvent := DeltaEvent{
		Index:     eventData.Index,
		Version:   eventData.Version,
		Id:        eventData.Id,
		Payload:   eventData.Payload,
		Vectors:   eventData.Vectors,
		EventType: string(eventType),
	}
	jsonDeltaEvent, err := json.Marshal(deltaEvent)
	if err != nil {
		log.Error().Msgf("Error in Marshalling %s", err)
		return nil, err
	}
	indexConfig, err := r.configManager.GetIndexConfig(deltaEvent.Index)
	if err != nil {
		log.Error().Msgf("Error getting index config for index %s: %v", deltaEvent.Index, err)
		return nil, err
	}
	if indexConfig.RTPartition == 0 {
		metric.Count("realtime_delta_producer_error", 1, tags)
		log.Error().Msgf("RTPartition is 0 for index %s", deltaEvent.Index)
		return nil, fmt.Errorf("rt partition not assigned for index %s", deltaEvent.Index)
	}
	keyStr := ""
	return &skafka.ProducerMessage{
		Partition: &indexConfig.RTPartition,
		Key:       &keyStr,
		Value:     jsonDeltaEvent,
		Headers:   make(map[string][]byte),
	}, nil
}

// ProduceMessage pushes a failed event back onto the realtime retry topic.
func (r *RealtimeConsumer) ProduceMessage(event Event) {
	metric.Count("realtime_producer_event", int64(len(event.Data)), []string{"type", event.Type})
	jsonPayload, err := json.Marshal(event)
	if err != nil {
		log.Error().Msgf("Error in Marshalling %s", err)
		return
	}
	keyStr := ""
	messages := []skafka.ProducerMessage{{
		Key:     &keyStr,
		Value:   jsonPayload,
		Headers: make(map[string][]byte),
	}}
	if err := skafka.SendAndForget(appConfig.RealtimeProducerKafkaId, messages); err != nil {
		log.Error().Msgf("Error in producing message %s", err)
	}
}

func (r *RealtimeConsumer) ProcessRealtimeEvent(event Event, indexerEvent indexer.Event) error {
	indexerConfig, err := r.configManager.GetIndexerConfig(event.Indexer)
	if err != nil {
		log.Error().Msgf("Error getting indexer config for indexer %s: %v", event.Indexer, err)
		return err
	}
	if !indexerConfig.Enabled || !indexerConfig.RtDeltaProcessing {
		metric.Count("realtime_consumer_event_skipped", int64(len(event.Data)), []string{"indexer_name", event.Indexer})
		return nil
	}
	indexConfig, err := r.configManager.GetIndexConfig(indexerConfig.TargetIndex)
	if err != nil {
		log.Error().Msgf("Error getting index config for index %s: %v", indexerConfig.TargetIndex, err)
		return err
	}
	if !indexConfig.Enabled {
		metric.Count("realtime_consumer_event_skipped", int64(len(event.Data)), []string{"indexer_name", event.Indexer, "index_name", indexerConfig.TargetIndex})
		return nil
	}
	for _, data := range event.Data {
		if err = r.processDocumentDelta(event, indexerEvent, indexerConfig, indexConfig, data); err != nil {
			log.Error().Msgf("Error processing delta for document %s: %v", data.Id, err)
			return err
		}
	}
	return nil
}

func (r *RealtimeConsumer) processDocumentDelta(event Event, indexerEvent indexer.Event, indexerConfig *config.Indexer, indexConfig *config.Index, data Data) error {
	versions := r.targetVersions(indexConfig)
	indexerData := indexer.Data{
		Index: indexerConfig.TargetIndex,
		Id:    data.Id,
	}
	switch data.Operation {
	case delete:
		for _, version := range versions {
			indexerData.Version = version
			indexerEvent.Data[indexer.Delete] = append(indexerEvent.Data[indexer.Delete], indexerData)
		}
	case add:
		return r.processAddDelta(event, indexerEvent, indexerConfig, indexConfig, data, indexerData, versions)
	case upsertPayload:
		fields := r.mapFields(data, indexerConfig)
		payload, err := r.preparePayloadIndexMap(indexConfig, fields, nil, false)
		if err != nil {
			log.Error().Msgf("Error preparing payload index map: %v", err)
			return err
		}
		if len(payload) == 0 {
			metric.Count("realtime_consumer_event_skipped", 1, []string{"indexer_name", event.Indexer, "operation", string(data.Operation)})
			return nil
		}
		indexerData.Payload = payload
		for _, version := range versions {
			indexerData.Version = version
			indexerEvent.Data[indexer.UpsertPayload] = append(indexerEvent.Data[indexer.UpsertPayload], indexerData)
		}
	default:
		log.Error().Msgf("Invalid operation: %s", data.Operation)
		return fmt.Errorf("invalid operation: %s", data.Operation)
	}
	return nil
}

func (r *RealtimeConsumer) processAddDelta(event Event, indexerEvent indexer.Event, indexerConfig *config.Indexer, indexConfig *config.Index, data Data, indexerData indexer.Data, versions []int) error {
	fields := r.mapFields(data, indexerConfig)
	enrichment, err := r.skillsetClient.Enrich(indexerConfig.Skillset, fields)
	if err != nil {
		log.Error().Msgf("Error enriching document %s via skillset %s: %v", data.Id, indexerConfig.Skillset, err)
		return err
	}
	if dimension := indexConfig.VectorProfile.VectorDimension; dimension > 0 && uint64(len(enrichment.Vector)) != dimension {
		metric.Incr("document_dimension_mismatch", []string{"indexer_name", event.Indexer, "index_name", indexerConfig.TargetIndex})
		return fmt.Errorf("vector of dimension %d does not fit index %s profile dimension %d", len(enrichment.Vector), indexerConfig.TargetIndex, dimension)
	}
	indexerData.Vectors = enrichment.Vector
	indexerData.Payload, err = r.preparePayloadIndexMap(indexConfig, fields, enrichment.Fields, true)
	if err != nil {
		log.Error().Msgf("Error preparing payload index map: %v", err)
		return err
	}
	if err = r.persistDocument(data, indexerConfig, indexConfig, fields, enrichment); err != nil {
		return err
	}
	for _, version := range versions {
		indexerData.Version = version
		indexerEvent.Data[indexer.Upsert] = append(indexerEvent.Data[indexer.Upsert], indexerData)
	}
	return nil
}

// targetVersions returns the read version plus the write version when a full
// rebuild is in flight, so live updates land in both collections.
func (r *RealtimeConsumer) targetVersions(indexConfig *config.Index) []int {
	versions := []int{indexConfig.ReadVersion}
	if indexConfig.WriteVersion != indexConfig.ReadVersion {
		versions = append(versions, indexConfig.WriteVersion)
	}
	return versions
}

// mapFields translates raw source fields to index document fields through the
// indexer's field mappings. An empty mapping passes the fields through as is.
func (r *RealtimeConsumer) mapFields(data Data, indexerConfig *config.Indexer) map[string]string {
	if len(indexerConfig.FieldMappings) == 0 {
		return data.Fields
	}
	fields := make(map[string]string, len(indexerConfig.FieldMappings))
	for sourceField, documentField := range indexerConfig.FieldMappings {
		if value, ok := data.Fields[sourceField]; ok {
			fields[documentField] = value
		}
	}
	return fields
}

// preparePayloadIndexMap builds the vector db payload from the index payload
// schema. With defaults enabled every schema field is filled, falling back to
// the enriched response fields and then the schema default; without defaults
// only the fields present in the event survive, so a partial update leaves the
// rest of the stored payload untouched.
func (r *RealtimeConsumer) preparePayloadIndexMap(indexConfig *config.Index, fields map[string]string, enrichedFields map[string]interface{}, withDefaults bool) (map[string]interface{}, error) {
	payloadIndexMap := make(map[string]interface{})
	for key, payloadConfig := range indexConfig.Payload {
		fieldValue := fields[key]
		if fieldValue != "" {
			payloadValue, err := indexer.AdaptToPayloadValue(fieldValue, payloadConfig.FieldSchema)
			if err != nil {
				log.Error().Msgf("Error adapting payload value for key=%s schema=%s value=%q: %v", key, payloadConfig.FieldSchema, fieldValue, err)
				return nil, err
			}
			payloadIndexMap[key] = payloadValue
			continue
		}
		if !withDefaults {
			continue
		}
		if enrichedFields[key] != nil {
			payloadIndexMap[key] = enrichedFields[key]
			continue
		}
		payloadValue, err := indexer.AdaptToPayloadValue(payloadConfig.DefaultValue, payloadConfig.FieldSchema)
		if err != nil {
			log.Error().Msgf("Error adapting payload value for key=%s schema=%s value=%q: %v", key, payloadConfig.FieldSchema, payloadConfig.DefaultValue, err)
			return nil, err
		}
		payloadIndexMap[key] = payloadValue
	}
	return payloadIndexMap, nil
}

func (r *RealtimeConsumer) persistDocument(data Data, indexerConfig *config.Indexer, indexConfig *config.Index, fields map[string]string, enrichment *skillset.Enrichment) error {
	docStoreEnabled := indexerConfig.DocStoreEnabled
	if appConfig.AppEnv == "int" {
		docStoreEnabled = false
	}
	if !docStoreEnabled {
		return nil
	}
	docStoreVersions := []int{indexConfig.DocStoreReadVersion}
	if indexConfig.DocStoreWriteVersion != indexConfig.DocStoreReadVersion {
		docStoreVersions = append(docStoreVersions, indexConfig.DocStoreWriteVersion)
	}
	for _, version := range docStoreVersions {
		payload := docstore.Payload{
			DocumentId:   data.Id,
			Title:        fields[docstore.Title],
			ImageUrl:     fields[docstore.ImageUrl],
			Vector:       enrichment.Vector,
			SearchVector: enrichment.SearchVector,
			Version:      version,
		}
		if err := r.documentStore.Persist(indexConfig.StoreId, indexerConfig.DocStoreTtl, payload); err != nil {
			metric.Incr("document_store_persist_error", []string{"index_name", indexerConfig.TargetIndex, "store_id", indexConfig.StoreId})
			log.Error().Msgf("Error persisting document store data: %v", err)
			return err
		}
	}
	return nil
}
