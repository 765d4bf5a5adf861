package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/internal/config/enums"
	"github.com/Meesho/BharatMLStack/iris/internal/config/structs"
	"github.com/Meesho/BharatMLStack/iris/internal/consumers/handler/indexer"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/docstore"
	"github.com/Meesho/BharatMLStack/iris/internal/skillset"
	skafka "github.com/Meesho/BharatMLStack/iris/pkg/kafka"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/rs/zerolog/log"
)

var (
	documentConsumer Consumer
	documentOnce     sync.Once
)

type DocumentConsumer struct {
	qdrantIndexerHandler indexer.Handler
	documentStore        docstore.Store
	skillsetClient       skillset.Client
	configManager        config.Manager
	AppConfig            *structs.AppConfig
}

func newDocumentConsumer() Consumer {
	if documentConsumer == nil {
		documentOnce.Do(func() {
			documentConsumer = &DocumentConsumer{
				qdrantIndexerHandler: indexer.NewHandler(indexer.QDRANT),
				documentStore:        docstore.NewRepository(docstore.DefaultVersion),
				skillsetClient:       skillset.NewClient(skillset.DefaultVersion),
				configManager:        config.NewManager(config.DefaultVersion),
				AppConfig:            structs.GetAppConfig(),
			}
		})
	}
	return documentConsumer
}

func (d *DocumentConsumer) produceFailureEvents(failedEvents []Event) {
	for _, failedEvent := range failedEvents {
		metric.Incr("document_consumer_event_error", []string{"indexer_name", failedEvent.Indexer})
		indexerConf, err := d.configManager.GetIndexerConfig(failedEvent.Indexer)
		if err != nil {
			log.Error().Err(err).Msg("Error getting indexer config")
			continue
		}
		failureProducerKafkaId := indexerConf.FailureProducerKafkaId
		skafka.InitProducer(failureProducerKafkaId) // idempotent — ensures producer exists for this dynamic ID
		jsonBytes, err := json.Marshal(failedEvent)
		if err != nil {
			log.Error().Msgf("Error marshalling failed event: %v", err)
			return
		}
		keyStr := ""
		msgs := []skafka.ProducerMessage{
			{
				Key:     &keyStr,
				Value:   jsonBytes,
				Headers: make(map[string][]byte),
			},
		}
		sendErr := skafka.SendAndForget(failureProducerKafkaId, msgs)
		if sendErr != nil {
			log.Error().Err(sendErr).Int("failed_count", len(msgs)).Int("producer_kafka_id", failureProducerKafkaId).Msg("Error producing failed document events batch to failure topic")
			metric.Incr("document_failure_producer_event_error", []string{"indexer_name", failedEvent.Indexer})
		} else {
			log.Info().Int("produced_count", len(msgs)).Int("producer_kafka_id", failureProducerKafkaId).Msg("Successfully produced failed document events batch to failure topic")
			metric.Incr("document_failure_producer_event_success", []string{"indexer_name", failedEvent.Indexer})
		}
	}
}

func (d *DocumentConsumer) Process(event []Event) error {
	go func(event []Event) {
		var err error
		defer func() {
			if r := recover(); r != nil {
				metric.Count("document_consumer_panic_event", int64(len(event)), []string{})
				panicErr := fmt.Errorf("panic occurred: %v", r)
				log.Error().Msgf("%s", panicErr)
				if err == nil {
					err = panicErr
				} else {
					err = errors.Join(err, panicErr)
				}
			}
			if err != nil {
				d.produceFailureEvents(event)
			}
		}()

		indexerEvent := indexer.Event{
			Data: make(map[indexer.EventType][]indexer.Data),
		}

		documentErr := d.processDocumentEvent(event, indexerEvent)
		if documentErr != nil {
			log.Error().Err(documentErr).Msg("Error processing document events")
			err = documentErr
		}

		indexerErr := d.qdrantIndexerHandler.Process(indexerEvent)
		if indexerErr != nil {
			log.Error().Err(indexerErr).Msg("Error processing indexer event")
			err = indexerErr
		}

		log.Info().Msgf("Successfully processed document batch of size %d", len(event))
	}(event)
	return nil
}

func (d *DocumentConsumer) ProcessInSequence(events []Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metric.Count("document_consumer_panic_event", int64(len(events)), []string{})
			panicErr := fmt.Errorf("panic occurred: %v", r)
			log.Error().Msgf("%s", panicErr)
			if err == nil {
				err = panicErr
			} else {
				err = errors.Join(err, panicErr)
			}
		}
		if err != nil {
			d.produceFailureEvents(events)
		}
	}()

	indexerEvent := indexer.Event{
		Data: make(map[indexer.EventType][]indexer.Data),
	}

	documentErr := d.processDocumentEvent(events, indexerEvent)
	if documentErr != nil {
		log.Error().Err(documentErr).Msg("Error processing document events")
		return documentErr
	}

	indexerErr := d.qdrantIndexerHandler.Process(indexerEvent)
	if indexerErr != nil {
		log.Error().Err(indexerErr).Msg("Error processing indexer event")
		return indexerErr
	}

	log.Info().Msgf("Successfully processed document batch of size %d", len(events))
	return nil
}

func (d *DocumentConsumer) processDocumentEvent(events []Event, indexerEvent indexer.Event) error {
	for _, event := range events {
		indexerConfig, err := d.configManager.GetIndexerConfig(event.Indexer)
		if err != nil {
			log.Error().Msgf("Error getting indexer config for indexer %s: %v", event.Indexer, err)
			return err
		}
		if event.DocumentId == EOFDocumentId {
			if err = d.completeDispatchPartition(event, indexerConfig); err != nil {
				log.Error().Msgf("Error completing dispatch partition for indexer %s: %v", event.Indexer, err)
			}
			continue
		}
		indexConfig, err := d.configManager.GetIndexConfig(indexerConfig.TargetIndex)
		if err != nil {
			log.Error().Msgf("Error getting index config for index %s: %v", indexerConfig.TargetIndex, err)
			return err
		}
		data := indexer.Data{
			Index:   indexerConfig.TargetIndex,
			Version: event.Version,
			Id:      event.DocumentId,
		}
		switch event.Operation {
		case delete:
			indexerEvent.Data[indexer.Delete] = append(indexerEvent.Data[indexer.Delete], data)
		case add:
			if err = d.processAddOperation(event, indexerConfig, indexConfig, data, indexerEvent); err != nil {
				log.Error().Msgf("Error processing add operation: %v", err)
				return err
			}
		case upsertPayload:
			if err = d.processUpsertPayloadOperation(event, indexerConfig, indexConfig, data, indexerEvent); err != nil {
				log.Error().Msgf("Error processing upsert payload operation: %v", err)
				return err
			}
		default:
			log.Error().Msgf("Invalid operation: %s", event.Operation)
			return fmt.Errorf("invalid operation: %s", event.Operation)
		}
	}
	return nil
}

func (d *DocumentConsumer) processAddOperation(event Event, indexerConfig *config.Indexer, indexConfig *config.Index, data indexer.Data, indexerEvent indexer.Event) error {
	fields := d.mapFields(event, indexerConfig)
	enrichment, err := d.skillsetClient.Enrich(indexerConfig.Skillset, fields)
	if err != nil {
		log.Error().Msgf("Error enriching document %s via skillset %s: %v", event.DocumentId, indexerConfig.Skillset, err)
		return err
	}
	if dimension := indexConfig.VectorProfile.VectorDimension; dimension > 0 && uint64(len(enrichment.Vector)) != dimension {
		metric.Incr("document_dimension_mismatch", []string{"indexer_name", event.Indexer, "index_name", indexerConfig.TargetIndex})
		return fmt.Errorf("vector of dimension %d does not fit index %s profile dimension %d", len(enrichment.Vector), indexerConfig.TargetIndex, dimension)
	}
	data.Vectors = enrichment.Vector
	data.Payload, err = d.preparePayloadIndexMap(indexConfig, fields, enrichment.Fields)
	if err != nil {
		log.Error().Msgf("Error preparing payload index map: %v", err)
		return err
	}
	if err = d.persistDocument(event, indexerConfig, indexConfig, fields, enrichment); err != nil {
		return err
	}
	indexerEvent.Data[indexer.Upsert] = append(indexerEvent.Data[indexer.Upsert], data)
	return nil
}

func (d *DocumentConsumer) processUpsertPayloadOperation(event Event, indexerConfig *config.Indexer, indexConfig *config.Index, data indexer.Data, indexerEvent indexer.Event) error {
	fields := d.mapFields(event, indexerConfig)
	var err error
	data.Payload, err = d.preparePayloadIndexMap(indexConfig, fields, nil)
	if err != nil {
		log.Error().Msgf("Error preparing payload index map: %v", err)
		return err
	}
	indexerEvent.Data[indexer.UpsertPayload] = append(indexerEvent.Data[indexer.UpsertPayload], data)
	return nil
}

// mapFields translates raw source fields to index document fields through the
// indexer's field mappings. An empty mapping passes the fields through as is.
func (d *DocumentConsumer) mapFields(event Event, indexerConfig *config.Indexer) map[string]string {
	if len(indexerConfig.FieldMappings) == 0 {
		return event.Fields
	}
	fields := make(map[string]string, len(indexerConfig.FieldMappings))
	for sourceField, documentField := range indexerConfig.FieldMappings {
		if value, ok := event.Fields[sourceField]; ok {
			fields[documentField] = value
		}
	}
	return fields
}

func (d *DocumentConsumer) persistDocument(event Event, indexerConfig *config.Indexer, indexConfig *config.Index, fields map[string]string, enrichment *skillset.Enrichment) error {
	docStoreEnabled := indexerConfig.DocStoreEnabled
	if d.AppConfig.Configs.AppEnv == "int" {
		docStoreEnabled = false
	}
	if !docStoreEnabled {
		return nil
	}
	payload := docstore.Payload{
		DocumentId:   event.DocumentId,
		Title:        fields[docstore.Title],
		ImageUrl:     fields[docstore.ImageUrl],
		Vector:       enrichment.Vector,
		SearchVector: enrichment.SearchVector,
		Version:      indexConfig.DocStoreWriteVersion,
	}
	if err := d.documentStore.Persist(indexConfig.StoreId, indexerConfig.DocStoreTtl, payload); err != nil {
		metric.Incr("document_store_persist_error", []string{"indexer_name", event.Indexer, "store_id", indexConfig.StoreId})
		log.Error().Msgf("Error persisting document store data: %v", err)
		return err
	}
	return nil
}

// preparePayloadIndexMap builds the vector db payload for every field in the
// index payload schema: the event's mapped fields win, then enriched response
// fields, then the schema default.
func (d *DocumentConsumer) preparePayloadIndexMap(indexConfig *config.Index, fields map[string]string, enrichedFields map[string]interface{}) (map[string]interface{}, error) {
	payloadIndexMap := make(map[string]interface{})
	for key, payloadConfig := range indexConfig.Payload {
		fieldValue := fields[key]
		if fieldValue != "" {
			payloadValue, err := indexer.AdaptToPayloadValue(fieldValue, payloadConfig.FieldSchema)
			if err != nil {
				log.Error().Msgf(
					"Error adapting payload value for key=%s schema=%s value=%q: %v",
					key, payloadConfig.FieldSchema, fieldValue, err,
				)
				return nil, err
			}
			payloadIndexMap[key] = payloadValue
		} else if enrichedFields[key] != nil {
			payloadIndexMap[key] = enrichedFields[key]
		} else {
			payloadValue, err := indexer.AdaptToPayloadValue(payloadConfig.DefaultValue, payloadConfig.FieldSchema)
			if err != nil {
				log.Error().Msgf("Error adapting payload value for key=%s schema=%s value=%q: %v", key, payloadConfig.FieldSchema, payloadConfig.DefaultValue, err)
				return nil, err
			}
			payloadIndexMap[key] = payloadValue
		}
	}
	return payloadIndexMap, nil
}

// completeDispatchPartition records the EOF sentinel for a partition and, once
// every partition has drained, advances the run to DISPATCH_COMPLETED and
// notifies the state machine topic.
func (d *DocumentConsumer) completeDispatchPartition(event Event, indexerConfig *config.Indexer) error {
	if err := d.configManager.UpdatePartitionState(event.Indexer, event.Partition, 1); err != nil {
		log.Error().Msgf("Error updating partition state for indexer %s partition %s: %v", event.Indexer, event.Partition, err)
		return err
	}
	currentConfig, err := d.configManager.GetIndexerConfig(event.Indexer)
	if err != nil {
		log.Error().Msgf("Error getting indexer config for indexer %s: %v", event.Indexer, err)
		return err
	}
	for _, state := range currentConfig.PartitionStates {
		if state == 0 {
			return nil
		}
	}
	if currentConfig.RunState != enums.RUN_STARTED {
		return nil
	}
	if err = d.configManager.UpdateRunState(event.Indexer, enums.DISPATCH_COMPLETED); err != nil {
		log.Error().Msgf("Error updating run state for indexer %s: %v", event.Indexer, err)
		return err
	}
	return d.publishRunState(event, indexerConfig)
}

func (d *DocumentConsumer) publishRunState(event Event, indexerConfig *config.Indexer) error {
	statePayload := map[string]interface{}{
		"indexer":   event.Indexer,
		"index":     indexerConfig.TargetIndex,
		"version":   event.Version,
		"run_mode":  indexerConfig.RunMode,
		"run_state": enums.DISPATCH_COMPLETED,
	}
	jsonBytes, err := json.Marshal(statePayload)
	if err != nil {
		log.Error().Msgf("Error marshalling run state payload: %v", err)
		return err
	}
	runStateProducer := d.AppConfig.Configs.RunStateProducer
	skafka.InitProducer(runStateProducer)
	keyStr := ""
	msgs := []skafka.ProducerMessage{
		{
			Key:     &keyStr,
			Value:   jsonBytes,
			Headers: make(map[string][]byte),
		},
	}
	if err = skafka.SendAndForget(runStateProducer, msgs); err != nil {
		metric.Incr("run_state_producer_event_error", []string{"indexer_name", event.Indexer})
		log.Error().Err(err).Msgf("Error producing run state event for indexer %s", event.Indexer)
		return err
	}
	log.Info().Msgf("Dispatch completed for indexer %s, run version %d", event.Indexer, event.Version)
	return nil
}
