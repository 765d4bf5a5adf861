package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/internal/config/enums"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/blob"
	"github.com/Meesho/BharatMLStack/iris/internal/skillset"
	"github.com/rs/zerolog/log"
)

var (
	manager Manager
	once    sync.Once
)

// DocumentIdField is the staging identifier every uploaded document must
// carry. Dispatch reads it back when producing ingestion events.
const DocumentIdField = "document_id"

type RegistryManager struct {
	config         config.Manager
	skillsetClient skillset.Client
	blobStore      blob.Store
}

func initRegistryHandler() Manager {
	if manager == nil {
		once.Do(func() {
			manager = &RegistryManager{
				config:         config.NewManager(config.DefaultVersion),
				skillsetClient: skillset.NewClient(skillset.DefaultVersion),
				blobStore:      blob.NewRepository(blob.DefaultVersion),
			}
		})
	}
	return manager
}

func (r *RegistryManager) RegisterStore(request *CreateStoreRequest) error {
	err := r.config.RegisterStore(request.ConfId, request.Db, request.DocumentsTable)
	if err != nil {
		log.Error().Msgf("Error Registering Store for %s , %s", request.Db, request.DocumentsTable)
		return err
	}
	return nil
}

func (r *RegistryManager) RegisterFrequency(request *CreateFrequencyRequest) error {
	err := r.config.RegisterFrequency(request.Frequency)
	if err != nil {
		log.Error().Msgf("Error Registering Frequency for %s ", request.Frequency)
		return err
	}
	return nil
}

func (r *RegistryManager) RegisterDataSource(request *RegisterDataSourceRequest) error {
	if request.Container == "" {
		log.Error().Msgf("Container is empty for data source %s", request.DataSource)
		return errors.New("Container is empty")
	}
	if request.BatchSize == 0 {
		log.Error().Msgf("BatchSize is 0 for data source %s", request.DataSource)
		return errors.New("BatchSize is 0")
	}
	err := r.config.RegisterDataSource(request.DataSource, request.Container, request.Prefix, request.BatchSize)
	if err != nil {
		log.Error().Msgf("Error Registering Data Source for %s , %s", request.DataSource, request.Container)
		return err
	}
	return nil
}

func (r *RegistryManager) RegisterSkillset(request *RegisterSkillsetRequest) error {
	if len(request.InputMappings) == 0 {
		log.Error().Msgf("InputMappings are empty for skillset %s", request.Skillset)
		return errors.New("InputMappings are empty")
	}
	if len(request.OutputMappings) == 0 {
		log.Error().Msgf("OutputMappings are empty for skillset %s", request.Skillset)
		return errors.New("OutputMappings are empty")
	}
	if request.Dimension == 0 {
		log.Error().Msgf("Dimension is 0 for skillset %s", request.Skillset)
		return errors.New("Dimension is 0")
	}
	err := r.config.RegisterSkillset(request.Skillset, request.ClientId, request.Path, request.ApiKey, request.InputMappings, request.OutputMappings, request.Dimension, request.TimeoutInMs)
	if err != nil {
		log.Error().Msgf("Error Registering Skillset for %s , %s, %v", request.Skillset, request.ClientId, err)
		return err
	}
	return nil
}

// ProbeSkillset calls the candidate endpoint with the probe fields and checks
// a well-formed vector of the declared dimension comes back before the
// skillset is ever registered.
func (r *RegistryManager) ProbeSkillset(request *ProbeSkillsetRequest) (*ProbeSkillsetResponse, error) {
	conf := &config.Skillset{
		ClientId:       request.ClientId,
		Path:           request.Path,
		ApiKey:         request.ApiKey,
		InputMappings:  request.InputMappings,
		OutputMappings: request.OutputMappings,
		Dimension:      request.Dimension,
		TimeoutInMs:    request.TimeoutInMs,
	}
	enrichment, err := r.skillsetClient.EnrichWith(request.Skillset, conf, request.ProbeFields)
	if err != nil {
		log.Error().Msgf("Skillset probe failed for %s: %v", request.Skillset, err)
		return nil, err
	}
	return &ProbeSkillsetResponse{Dimension: len(enrichment.Vector)}, nil
}

func (r *RegistryManager) RegisterIndex(request *RegisterIndexRequest) error {
	if request.KeyField == "" {
		log.Error().Msgf("KeyField is empty for index %s", request.Index)
		return errors.New("KeyField is empty")
	}
	if request.VectorProfile.VectorDimension == 0 {
		log.Error().Msgf("VectorDimension is 0 for index %s", request.Index)
		return errors.New("VectorDimension is 0")
	}
	if err := validateDistanceMetric(request.VectorProfile.DistanceMetric); err != nil {
		log.Error().Msgf("Invalid distance metric %s for index %s", request.VectorProfile.DistanceMetric, request.Index)
		return err
	}
	if err := validatePayloadSchema(request.Payload); err != nil {
		log.Error().Msgf("Invalid payload schema for index %s: %v", request.Index, err)
		return err
	}
	if request.RtPartition == 0 {
		log.Error().Msgf("RtPartition is 0 for index %s", request.Index)
		return errors.New("RtPartition is 0")
	}
	if request.RateLimiter.RateLimit == 0 {
		log.Error().Msgf("RateLimit is 0 for index %s", request.Index)
		return errors.New("RateLimit is 0")
	}
	if request.RateLimiter.BurstLimit == 0 {
		log.Error().Msgf("BurstLimit is 0 for index %s", request.Index)
		return errors.New("BurstLimit is 0")
	}
	err := r.config.RegisterIndex(request.Index, request.StoreId, request.KeyField, request.Payload, request.VectorProfile, request.Vectorizer, request.VectorDbConfig, request.VectorDbType, request.DistributedCachingEnabled, request.DistributedCacheTTLSeconds, request.InMemoryCachingEnabled, request.InMemoryCacheTTLSeconds, request.RtPartition, request.RateLimiter)
	if err != nil {
		log.Error().Msgf("Error Registering Index for %s , %s, %v", request.Index, request.StoreId, err)
		return err
	}
	return nil
}

func (r *RegistryManager) RegisterIndexer(request *RegisterIndexerRequest) error {
	if request.NumberOfPartitions == 0 {
		log.Error().Msgf("NumberOfPartitions is 0 for indexer %s", request.Indexer)
		return errors.New("NumberOfPartitions is 0")
	}
	err := r.config.RegisterIndexer(request.Indexer, request.DataSource, request.Skillset, request.TargetIndex, request.FieldMappings, request.RunMode, request.KafkaId, request.FailureProducerKafkaId, request.TopicName, request.NumberOfPartitions, request.JobFrequency, request.DocStoreEnabled, request.DocStoreTtl)
	if err != nil {
		log.Error().Msgf("Error Registering Indexer for %s , %s, %v", request.Indexer, request.TargetIndex, err)
		return err
	}
	return nil
}

// StageDocuments uploads source documents into the data source's staging
// container. Objects already present are skipped, matching the upload helper
// behaviour of checking existence before pushing bytes.
func (r *RegistryManager) StageDocuments(dataSource string, request *StageDocumentsRequest) (*StageDocumentsResponse, error) {
	dataSourceConfig, err := r.config.GetDataSourceConfig(dataSource)
	if err != nil {
		log.Error().Msgf("Error getting data source config for %s: %v", dataSource, err)
		return nil, err
	}
	if !dataSourceConfig.Enabled {
		return nil, fmt.Errorf("data source %s is disabled", dataSource)
	}
	response := &StageDocumentsResponse{}
	for _, document := range request.Documents {
		documentId := document[DocumentIdField]
		if documentId == "" {
			return nil, fmt.Errorf("document is missing %s field", DocumentIdField)
		}
		key := stagingKey(dataSourceConfig.Prefix, documentId)
		exists, err := r.blobStore.Exists(dataSourceConfig.Container, key)
		if err != nil {
			log.Error().Msgf("Error checking staged document %s for %s: %v", key, dataSource, err)
			return nil, err
		}
		if exists {
			response.Skipped++
			continue
		}
		body, err := json.Marshal(document)
		if err != nil {
			return nil, err
		}
		if err = r.blobStore.Upload(dataSourceConfig.Container, key, body); err != nil {
			log.Error().Msgf("Error staging document %s for %s: %v", key, dataSource, err)
			return nil, err
		}
		response.Staged++
	}
	log.Info().Msgf("Staged %d documents (%d skipped) for data source %s", response.Staged, response.Skipped, dataSource)
	return response, nil
}

func stagingKey(prefix, documentId string) string {
	if prefix == "" {
		return documentId + ".json"
	}
	return prefix + "/" + documentId + ".json"
}

func validateDistanceMetric(metric string) error {
	switch enums.DistanceMetric(metric) {
	case enums.COSINE, enums.EUCLIDEAN, enums.DOT_PRODUCT, enums.MANHATTAN:
		return nil
	default:
		return fmt.Errorf("unsupported distance metric: %s", metric)
	}
}

func validatePayloadSchema(payload map[string]config.Payload) error {
	if len(payload) == 0 {
		return errors.New("Payload schema is empty")
	}
	for field, payloadConfig := range payload {
		switch payloadConfig.FieldSchema {
		case "keyword", "integer", "boolean":
		default:
			return fmt.Errorf("unsupported field_schema %s for field %s", payloadConfig.FieldSchema, field)
		}
	}
	return nil
}
