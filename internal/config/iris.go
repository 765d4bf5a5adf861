package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Meesho/BharatMLStack/iris/internal/config/enums"
	"github.com/Meesho/BharatMLStack/iris/pkg/etcd"
)

type IrisManager struct {
	etcd    etcd.Etcd
	appName string
}

// NewIrisManager creates an IrisManager with the given etcd client and app name.
// Used for testing with a mock etcd.
func NewIrisManager(etcd etcd.Etcd, appName string) *IrisManager {
	return &IrisManager{etcd: etcd, appName: appName}
}

func initIrisManager() Manager {
	if manager == nil {
		once.Do(func() {
			manager = &IrisManager{
				etcd:    etcd.Instance()[appName],
				appName: appName,
			}
		})
	}
	return manager
}

func (m *IrisManager) GetIrisConfig() (*Iris, error) {
	etcdConfigInstance, ok := m.etcd.GetConfigInstance().(*Iris)
	if !ok {
		return nil, errors.New("failed to cast etcd config instance to Iris type")
	}
	etcdConf := etcdConfigInstance
	if etcdConf == nil {
		return nil, errors.New("etcdConf not found in configuration")
	}
	return etcdConf, nil
}

// GetIndexes retrieves all registered indexes from the configuration.
// Returns a map of index names to their definitions or an error if indexes are not found.
func (m *IrisManager) GetIndexes() (map[string]Index, error) {
	etcdConfigInstance, ok := m.etcd.GetConfigInstance().(*Iris)
	if !ok {
		return nil, errors.New("failed to cast etcd config instance to Iris type")
	}
	indexes := etcdConfigInstance.Indexes
	if indexes == nil {
		return nil, errors.New("indexes not found in configuration")
	}
	return indexes, nil
}

func (m *IrisManager) GetDataSourceConfig(dataSource string) (*DataSource, error) {
	iris, err := m.GetIrisConfig()
	if err != nil {
		return nil, err
	}
	dataSourceConf, exists := iris.DataSources[dataSource]
	if !exists {
		return nil, fmt.Errorf("data source '%s' not found", dataSource)
	}
	return &dataSourceConf, nil
}

func (m *IrisManager) GetSkillsetConfig(skillset string) (*Skillset, error) {
	iris, err := m.GetIrisConfig()
	if err != nil {
		return nil, err
	}
	skillsetConf, exists := iris.Skillsets[skillset]
	if !exists {
		return nil, fmt.Errorf("skillset '%s' not found", skillset)
	}
	return &skillsetConf, nil
}

func (m *IrisManager) GetIndexConfig(index string) (*Index, error) {
	iris, err := m.GetIrisConfig()
	if err != nil {
		return nil, err
	}
	indexConf, exists := iris.Indexes[index]
	if !exists {
		return nil, fmt.Errorf("index '%s' not found", index)
	}
	return &indexConf, nil
}

func (m *IrisManager) GetIndexerConfig(indexer string) (*Indexer, error) {
	iris, err := m.GetIrisConfig()
	if err != nil {
		return nil, err
	}
	indexerConf, exists := iris.Indexers[indexer]
	if !exists {
		return nil, fmt.Errorf("indexer '%s' not found", indexer)
	}
	return &indexerConf, nil
}

// GetIndexersByFrequency retrieves every enabled indexer registered with the given job frequency.
// Returns a map of indexer names to their definitions.
func (m *IrisManager) GetIndexersByFrequency(frequency string) (map[string]Indexer, error) {
	iris, err := m.GetIrisConfig()
	if err != nil {
		return nil, err
	}
	indexers := make(map[string]Indexer)
	for indexerName, indexerConfig := range iris.Indexers {
		if indexerConfig.Enabled && indexerConfig.JobFrequency == frequency {
			indexers[indexerName] = indexerConfig
		}
	}
	return indexers, nil
}

func (m *IrisManager) GetStoreConfig(storeId string) (*Data, error) {
	iris, err := m.GetIrisConfig()
	if err != nil {
		return nil, err
	}
	storeConf, exists := iris.Storage.Stores[storeId]
	if !exists {
		return nil, fmt.Errorf("store '%s' not found", storeId)
	}
	return &storeConf, nil
}

// SetIndexOnboarded updates the onboarded flag of a specified index.
// Returns an error if the update fails.
func (m *IrisManager) SetIndexOnboarded(index string, onboarded bool) error {
	path := m.getIndexPath(index, "onboarded")
	err := m.etcd.SetValue(path, onboarded)
	return err
}

// UpdateRunState updates the run state of a specified indexer in etcd.
// Returns an error if the update fails.
func (m *IrisManager) UpdateRunState(indexer string, runState enums.RunState) error {
	path := m.getIndexerPath(indexer, "run-state")
	return m.etcd.SetValue(path, runState)
}

// UpdateIndexReadVersion updates the read version for the vector database of a specified index.
// Returns an error if the update fails.
func (m *IrisManager) UpdateIndexReadVersion(index string, version int) error {
	path := m.getIndexPath(index, "read-version")
	return m.etcd.SetValue(path, version)
}

// UpdateIndexWriteVersion updates the write version for the vector database of a specified index.
// Returns an error if the update fails.
func (m *IrisManager) UpdateIndexWriteVersion(index string, version int) error {
	path := m.getIndexPath(index, "write-version")
	return m.etcd.SetValue(path, version)
}

func (m *IrisManager) UpdateDocStoreReadVersion(index string, version int) error {
	path := m.getIndexPath(index, "doc-store-read-version")
	return m.etcd.SetValue(path, version)
}

func (m *IrisManager) UpdateDocStoreWriteVersion(index string, version int) error {
	path := m.getIndexPath(index, "doc-store-write-version")
	return m.etcd.SetValue(path, version)
}

// RegisterStore registers a new store in etcd with the provided config.
// Returns an error if the registration fails.
func (m *IrisManager) RegisterStore(confId int, db string, documentsTable string) error {
	iris, err := m.GetIrisConfig()
	if err != nil {
		return err
	}
	stores := iris.Storage.Stores
	storeId := len(stores) + 1
	path := fmt.Sprintf("/config/%s/storage/stores/%v", m.appName, storeId)
	data := Data{
		ConfId:         confId,
		DocumentsTable: documentsTable,
		Db:             db,
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return m.etcd.CreateNode(path, string(jsonData))
}

// RegisterFrequency registers a new frequency in etcd with the provided config.
// Returns an error if the registration fails.
func (m *IrisManager) RegisterFrequency(frequency string) error {
	iris, err := m.GetIrisConfig()
	if err != nil {
		return err
	}
	registeredFrequencies := iris.Storage.Frequencies
	if strings.Contains(registeredFrequencies, frequency) {
		return fmt.Errorf("frequency is already registered")
	}
	path := fmt.Sprintf("/config/%s/storage/frequencies", m.appName)
	registeredFrequencies = strings.Join([]string{registeredFrequencies, frequency}, ",")
	return m.etcd.SetValue(path, registeredFrequencies)
}

// RegisterDataSource registers a blob staging area the indexers read source documents from.
// Returns an error if the registration fails.
func (m *IrisManager) RegisterDataSource(dataSource string, container string, prefix string, batchSize int) error {
	dataSourcePath := fmt.Sprintf("/config/%s/datasources/%s", m.appName, dataSource)
	paths := map[string]interface{}{
		fmt.Sprintf("%s/container", dataSourcePath):  container,
		fmt.Sprintf("%s/prefix", dataSourcePath):     prefix,
		fmt.Sprintf("%s/batch-size", dataSourcePath): batchSize,
		fmt.Sprintf("%s/enabled", dataSourcePath):    true,
	}
	return m.etcd.CreateNodes(paths)
}

// RegisterSkillset registers the enrichment endpoint invoked per document during indexing.
// It creates the necessary nodes and sets the endpoint plus its field mappings.
//
// Parameters:
// - skillset: The name of the skillset being registered.
// - clientId: The http client connection id whose env prefix carries host and transport config.
// - path: The request path on the enrichment host.
// - apiKey: The api key sent with every enrichment request.
// - inputMappings: Request body field to source document field mappings.
// - outputMappings: Response field to index field mappings.
// - dimension: The embedding length the endpoint is expected to return.
//
// Returns an error if the registration fails.
func (m *IrisManager) RegisterSkillset(skillset string, clientId string, path string, apiKey string,
	inputMappings map[string]string, outputMappings map[string]string, dimension uint64, timeoutInMs int) error {
	paths := make(map[string]interface{})

	iris, err := m.GetIrisConfig()
	if err != nil {
		return err
	}
	for etcdSkillset := range iris.Skillsets {
		if etcdSkillset == skillset {
			return fmt.Errorf("skillset already registered")
		}
	}
	inputMappingsJson, err := json.Marshal(inputMappings)
	if err != nil {
		return fmt.Errorf("failed to marshal input mappings: %w", err)
	}
	outputMappingsJson, err := json.Marshal(outputMappings)
	if err != nil {
		return fmt.Errorf("failed to marshal output mappings: %w", err)
	}

	skillsetPath := fmt.Sprintf("/config/%s/skillsets/%s", m.appName, skillset)

	paths[fmt.Sprintf("%s/client-id", skillsetPath)] = clientId
	paths[fmt.Sprintf("%s/path", skillsetPath)] = path
	paths[fmt.Sprintf("%s/api-key", skillsetPath)] = apiKey
	paths[fmt.Sprintf("%s/input-mappings", skillsetPath)] = string(inputMappingsJson)
	paths[fmt.Sprintf("%s/output-mappings", skillsetPath)] = string(outputMappingsJson)
	paths[fmt.Sprintf("%s/dimension", skillsetPath)] = dimension
	paths[fmt.Sprintf("%s/timeout-in-ms", skillsetPath)] = timeoutInMs
	paths[fmt.Sprintf("%s/enabled", skillsetPath)] = true

	if err := m.etcd.CreateNodes(paths); err != nil {
		return fmt.Errorf("failed to create skillset properties: %w", err)
	}
	return nil
}

// RegisterIndex registers a new search index in etcd.
// It creates the necessary nodes and sets the vector profile, payload schema and serving properties.
//
// Parameters:
// - index: The name of the index being registered.
// - storeId: The document store the index persists records into.
// - keyField: The document identifier field.
// - payload: The payload schema, field name to schema definition.
// - vectorProfile: Vector dimension, distance metric and collection build params.
// - vectorizer: The skillset used for query time text vectorization.
// - vectorDbConfig: Configuration settings for the vector database.
// - vectorDbType: The type of vector database being used.
//
// Returns an error if the registration fails.
func (m *IrisManager) RegisterIndex(index string, storeId string, keyField string,
	payload map[string]Payload, vectorProfile VectorProfile, vectorizer Vectorizer,
	vectorDbConfig VectorDbConfig, vectorDbType string,
	distributedCacheEnabled bool, distributedCacheTtl int, inMemoryCacheEnabled bool, inMemoryCacheTtl int,
	rtPartition int, rateLimiter RateLimiter) error {
	paths := make(map[string]interface{})

	// Marshal config
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload schema: %w", err)
	}
	vectorProfileJson, err := json.Marshal(vectorProfile)
	if err != nil {
		return fmt.Errorf("failed to marshal vector profile: %w", err)
	}
	vectorizerJson, err := json.Marshal(vectorizer)
	if err != nil {
		return fmt.Errorf("failed to marshal vectorizer: %w", err)
	}
	vectorDbConfigJson, err := json.Marshal(vectorDbConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal vector DB config: %w", err)
	}

	// Create index node
	indexPath := fmt.Sprintf("/config/%s/indexes/%s", m.appName, index)
	if err := m.etcd.CreateNode(fmt.Sprintf("%s/enabled", indexPath), true); err != nil {
		return err
	}
	if err := m.etcd.CreateNode(fmt.Sprintf("%s/vector-db-type", indexPath), vectorDbType); err != nil {
		return err
	}

	// Set index properties
	paths[fmt.Sprintf("%s/store-id", indexPath)] = storeId
	paths[fmt.Sprintf("%s/key-field", indexPath)] = keyField
	paths[fmt.Sprintf("%s/payload", indexPath)] = string(payloadJson)
	paths[fmt.Sprintf("%s/vector-profile", indexPath)] = string(vectorProfileJson)
	paths[fmt.Sprintf("%s/vectorizer", indexPath)] = string(vectorizerJson)
	paths[fmt.Sprintf("%s/vector-db-config", indexPath)] = string(vectorDbConfigJson)
	paths[fmt.Sprintf("%s/read-version", indexPath)] = 1
	paths[fmt.Sprintf("%s/write-version", indexPath)] = 1
	paths[fmt.Sprintf("%s/doc-store-read-version", indexPath)] = 1
	paths[fmt.Sprintf("%s/doc-store-write-version", indexPath)] = 1
	paths[fmt.Sprintf("%s/onboarded", indexPath)] = false
	paths[fmt.Sprintf("%s/distributed-caching-enabled", indexPath)] = distributedCacheEnabled
	paths[fmt.Sprintf("%s/distributed-cache-TTL-seconds", indexPath)] = distributedCacheTtl
	paths[fmt.Sprintf("%s/in-memory-caching-enabled", indexPath)] = inMemoryCacheEnabled
	paths[fmt.Sprintf("%s/in-memory-cache-TTL-seconds", indexPath)] = inMemoryCacheTtl
	paths[fmt.Sprintf("%s/rt-partition", indexPath)] = rtPartition
	paths[fmt.Sprintf("%s/rate-limiter/burst-limit", indexPath)] = rateLimiter.BurstLimit
	paths[fmt.Sprintf("%s/rate-limiter/rate-limit", indexPath)] = rateLimiter.RateLimit
	// Create index properties nodes
	if err := m.etcd.CreateNodes(paths); err != nil {
		return fmt.Errorf("failed to create index properties: %w", err)
	}
	return nil
}

// RegisterIndexer registers a new indexer configuration in etcd.
// It creates the necessary nodes binding a data source, a skillset and a target index.
//
// Parameters:
// - indexer: The name of the indexer being registered.
// - dataSource: The registered data source the indexer reads staged documents from.
// - skillset: The registered skillset used for document enrichment.
// - targetIndex: The registered index the enriched documents land in.
// - fieldMappings: Source document field to index payload field mappings.
// - runMode: FULL rebuilds the write version, INCREMENTAL updates the read version in place.
//
// Returns an error if the registration fails.
func (m *IrisManager) RegisterIndexer(indexer string, dataSource string, skillset string, targetIndex string,
	fieldMappings map[string]string, runMode string, kafkaId int, failureProducerKafkaId int, topicName string,
	numberOfPartitions int, jobFrequency string, docStoreEnabled bool, docStoreTtl int) error {
	paths := make(map[string]interface{})

	iris, err := m.GetIrisConfig()
	if err != nil {
		return err
	}
	registeredFrequencies := iris.Storage.Frequencies
	if !strings.Contains(registeredFrequencies, jobFrequency) {
		return fmt.Errorf("frequency is not registered, please register frequency first")
	}

	for etcdIndexer := range iris.Indexers {
		if etcdIndexer == indexer {
			return fmt.Errorf("indexer already registered")
		}
	}
	if _, exists := iris.DataSources[dataSource]; !exists {
		return fmt.Errorf("data source '%s' not found", dataSource)
	}
	if _, exists := iris.Skillsets[skillset]; !exists {
		return fmt.Errorf("skillset '%s' not found", skillset)
	}
	if _, exists := iris.Indexes[targetIndex]; !exists {
		return fmt.Errorf("index '%s' not found", targetIndex)
	}
	fieldMappingsJson, err := json.Marshal(fieldMappings)
	if err != nil {
		return fmt.Errorf("failed to marshal field mappings: %w", err)
	}

	// Create indexer node
	indexerPath := fmt.Sprintf("/config/%s/indexers/%s", m.appName, indexer)

	// Set properties
	paths[fmt.Sprintf("%s/data-source", indexerPath)] = dataSource
	paths[fmt.Sprintf("%s/skillset", indexerPath)] = skillset
	paths[fmt.Sprintf("%s/target-index", indexerPath)] = targetIndex
	paths[fmt.Sprintf("%s/field-mappings", indexerPath)] = string(fieldMappingsJson)
	paths[fmt.Sprintf("%s/run-mode", indexerPath)] = runMode
	paths[fmt.Sprintf("%s/kafka-id", indexerPath)] = kafkaId
	paths[fmt.Sprintf("%s/failure-producer-kafka-id", indexerPath)] = failureProducerKafkaId
	paths[fmt.Sprintf("%s/topic-name", indexerPath)] = topicName
	paths[fmt.Sprintf("%s/job-frequency", indexerPath)] = jobFrequency
	paths[fmt.Sprintf("%s/doc-store-enabled", indexerPath)] = docStoreEnabled
	paths[fmt.Sprintf("%s/doc-store-ttl", indexerPath)] = docStoreTtl
	paths[fmt.Sprintf("%s/enabled", indexerPath)] = true
	paths[fmt.Sprintf("%s/rt-delta-processing", indexerPath)] = true
	paths[fmt.Sprintf("%s/run-state", indexerPath)] = "COMPLETED"
	for i := 0; i < numberOfPartitions; i++ {
		paths[fmt.Sprintf("%s/partition-states/%s", indexerPath, strconv.Itoa(i))] = 0
	}
	paths[fmt.Sprintf("%s/number-of-partitions", indexerPath)] = numberOfPartitions

	// Create nodes with properties
	if err := m.etcd.CreateNodes(paths); err != nil {
		return fmt.Errorf("failed to create indexer properties: %w", err)
	}
	return nil
}

// ResetPartitionStates marks every dispatch partition of the indexer as pending.
// Called at run start before documents are dispatched.
func (m *IrisManager) ResetPartitionStates(indexer string) error {
	indexerConf, err := m.GetIndexerConfig(indexer)
	if err != nil {
		return err
	}
	partitionPath := m.getIndexerPath(indexer, "partition-states")
	paths := make(map[string]interface{})
	for i := 0; i < indexerConf.NumberOfPartitions; i++ {
		paths[fmt.Sprintf("%s/%s", partitionPath, strconv.Itoa(i))] = 0
	}
	return m.etcd.SetValues(paths)
}

func (m *IrisManager) UpdatePartitionState(indexer string, partition string, state int) error {
	partitionPath := m.getIndexerPath(indexer, "partition-states")
	path := fmt.Sprintf("%s/%s", partitionPath, partition)
	err := m.etcd.SetValue(path, state)
	if err != nil {
		return err
	}
	return nil
}

func (m *IrisManager) UpdateVectorDbConfig(index string, vectorDbConfig VectorDbConfig) error {
	indexPath := m.getIndexPath(index, "vector-db-config")
	vectorDbConfigJson, err := json.Marshal(vectorDbConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal vector DB config: %w", err)
	}
	err = m.etcd.SetValue(indexPath, string(vectorDbConfigJson))
	if err != nil {
		return err
	}
	return nil
}

// getIndexPath constructs the etcd path based on the provided index name and the last node.
// The last node is the final node in the path, such as "onboarded".
func (m *IrisManager) getIndexPath(index, lastNode string) string {
	return fmt.Sprintf("/config/%s/indexes/%s/%s", m.appName, index, lastNode)
}

// getIndexerPath constructs the etcd path based on the provided indexer name and the last node.
// The last node is the final node in the path, such as "run-state" or "partition-states".
func (m *IrisManager) getIndexerPath(indexer, lastNode string) string {
	return fmt.Sprintf("/config/%s/indexers/%s/%s", m.appName, indexer, lastNode)
}

func (m *IrisManager) GetRateLimiters() map[int]RateLimiter {
	RateLimiters := make(map[int]RateLimiter)
	etcdConfigs := m.etcd.GetConfigInstance().(*Iris)
	for _, indexConfig := range etcdConfigs.Indexes {
		RateLimiters[indexConfig.RTPartition] = indexConfig.RateLimiter
	}
	return RateLimiters
}

func (m *IrisManager) RegisterWatchPathCallbackWithEvent(path string, callback func(key, value, eventType string) error) error {
	return m.etcd.RegisterWatchPathCallbackWithEvent(path, callback)
}

func (m *IrisManager) UpdateRateLimiter(index string, burstLimit int, rateLimit int) error {
	indexPath := fmt.Sprintf("/config/%s/indexes/%s", m.appName, index)
	if err := m.etcd.SetValue(fmt.Sprintf("%s/rate-limiter/burst-limit", indexPath), burstLimit); err != nil {
		return fmt.Errorf("failed to update rate limiter burst limit: %w", err)
	}
	if err := m.etcd.SetValue(fmt.Sprintf("%s/rate-limiter/rate-limit", indexPath), rateLimit); err != nil {
		return fmt.Errorf("failed to update rate limiter rate limit: %w", err)
	}
	return nil
}
