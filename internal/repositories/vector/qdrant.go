package vector

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/internal/config/enums"
	"github.com/Meesho/BharatMLStack/iris/internal/config/structs"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/resolver"
)

const (
	SearchIndexedOnly = "search_indexed_only"
)

// Qdrant serves every index whose vector db type is QDRANT, holding one
// client set per index keyed by index name.
type Qdrant struct {
	QdrantClients map[string]*QdrantClient
	configManager config.Manager
	AppConfig     *structs.AppConfig
}

// QdrantClient bundles the per-index gRPC clients. Read and write traffic
// go to separate hosts; the backup client mirrors writes while an index is
// being migrated to a new cluster.
type QdrantClient struct {
	ReadClient    *qdrant.Client
	WriteClient   *qdrant.Client
	BackupClient  *qdrant.Client
	ReadHost      string
	WriteHost     string
	BackupHost    string
	Deadline      int
	WriteDeadline int
}

func readConn(client *QdrantClient) *grpc.ClientConn {
	return client.ReadClient.GetConnection()
}

func writeConn(client *QdrantClient) *grpc.ClientConn {
	return client.WriteClient.GetConnection()
}

func backupConn(client *QdrantClient) *grpc.ClientConn {
	return client.BackupClient.GetConnection()
}

// writeCtx bounds a write-path call by the client's write deadline.
func writeCtx(client *QdrantClient) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(client.WriteDeadline)*time.Millisecond)
}

// createQdrantInstance dials clients for every qdrant-backed index found in
// the etcd config tree.
func createQdrantInstance() *Qdrant {
	resolver.SetDefaultScheme("dns")
	configManager := config.NewManager(config.DefaultVersion)
	irisConfig, err := configManager.GetIrisConfig()
	if err != nil {
		log.Panic().Msgf("Error getting vector configs from etcd: %v", err)
	}
	qdrantClients := make(map[string]*QdrantClient)
	for index, indexConfig := range irisConfig.Indexes {
		if indexConfig.VectorDbType != enums.QDRANT {
			continue
		}
		if client := bootClientsForIndex(index, indexConfig); client != nil {
			qdrantClients[index] = client
		}
	}
	return &Qdrant{
		QdrantClients: qdrantClients,
		configManager: configManager,
		AppConfig:     structs.GetAppConfig(),
	}
}

// bootClientsForIndex dials the read/write pair for an enabled index, plus
// the backup client when one is configured. Returns nil when the index
// needs no clients at all.
func bootClientsForIndex(index string, indexConfig config.Index) *QdrantClient {
	vectorConfig := indexConfig.VectorDbConfig
	var client *QdrantClient
	if indexConfig.Enabled {
		client = &QdrantClient{
			ReadHost:      vectorConfig.ReadHost,
			WriteHost:     vectorConfig.WriteHost,
			Deadline:      vectorConfig.Http2Config.Deadline,
			WriteDeadline: vectorConfig.Http2Config.WriteDeadline,
		}
		if vectorConfig.ReadHost != "" {
			client.ReadClient, _ = dialAndCheck(index, vectorConfig, vectorConfig.ReadHost)
			log.Info().Msgf("Read client created for index %s", index)
		}
		if vectorConfig.WriteHost != "" {
			client.WriteClient, _ = dialAndCheck(index, vectorConfig, vectorConfig.WriteHost)
			log.Info().Msgf("Write client created for index %s", index)
		}
	}
	if indexConfig.BackupConfig.Enabled && indexConfig.BackupConfig.Host != "" {
		backupClient, _ := dialAndCheck(index, vectorConfig, indexConfig.BackupConfig.Host)
		if client == nil {
			// Backup-only index: carry the deadlines on the backup hosts so
			// the client struct stays usable.
			client = &QdrantClient{
				ReadHost:      indexConfig.BackupConfig.Host,
				WriteHost:     indexConfig.BackupConfig.Host,
				Deadline:      vectorConfig.Http2Config.Deadline,
				WriteDeadline: vectorConfig.Http2Config.WriteDeadline,
			}
		}
		client.BackupClient = backupClient
		client.BackupHost = indexConfig.BackupConfig.Host
		log.Info().Msgf("Backup client created for index %s with host %s", index, indexConfig.BackupConfig.Host)
	}
	return client
}

// dialAndCheck dials a client for the host and pings it. The dial error is
// swallowed here; an unreachable node surfaces through the health check so
// callers can decide whether to keep a previous client.
func dialAndCheck(index string, vectorConfig config.VectorDbConfig, host string) (*qdrant.Client, error) {
	client, _ := createQdrantClient(vectorConfig, host)
	return client, healthCheck(index, client)
}

// createQdrantClient dials a single host using the index's vector db config.
func createQdrantClient(vectorConfig config.VectorDbConfig, host string) (*qdrant.Client, error) {
	port, err := strconv.Atoi(vectorConfig.Port)
	if err != nil {
		log.Error().Msgf("Could not convert port to int: %v", err)
		return nil, err
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
		GrpcOptions: []grpc.DialOption{
			grpc.WithInsecure(),
			grpc.WithDefaultServiceConfig(`{"loadBalancingPolicy":"round_robin"}`),
			grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		},
	})
	if err != nil {
		log.Error().Msgf("Could not create qdrant client: %v", err)
		return nil, err
	}
	return client, nil
}

func healthCheck(index string, client *qdrant.Client) error {
	healthCheckResult, err := client.HealthCheck(context.Background())
	if err != nil {
		log.Warn().Msgf("Could not get health for %s: %v", index, err)
		return err
	}
	log.Info().Msgf("Client version: %s", healthCheckResult.GetVersion())
	return nil
}

// CreateCollection creates the collection backing the given index version
// and, unless the index defers payload indexing until after the bulk load,
// its payload field indexes.
func (q *Qdrant) CreateCollection(index string, version int) error {
	client := q.getQdrantClient(index)
	indexConfig, err := q.configManager.GetIndexConfig(index)
	if err != nil {
		log.Error().Msgf("Could not get index config: %v", err)
		return err
	}
	collectionName := getCollectionName(index, strconv.Itoa(version))
	if err := q.createCollection(client, collectionName, indexConfig, index, version); err != nil {
		return err
	}
	log.Info().Msgf("Collection created: %v", collectionName)
	if indexConfig.VectorDbConfig.Params["after_collection_index_payload"] == "true" {
		return nil
	}
	return q.CreateFieldIndexes(index, version)
}

// DeleteCollection deletes the collection backing the given index version.
func (q *Qdrant) DeleteCollection(index string, version int) error {
	client := q.getQdrantClient(index)
	collectionName := getCollectionName(index, strconv.Itoa(version))
	if err := q.deleteCollection(client, index, version, collectionName); err != nil {
		return err
	}
	log.Info().Msgf("Collection deleted: %v", collectionName)
	return nil
}

// splitBatchKey parses the "index|version" key that bulk requests group
// their data under.
func splitBatchKey(key string) (index, version string, err error) {
	parts := strings.Split(key, "|")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid key format: %s", key)
	}
	return parts[0], parts[1], nil
}

// BulkUpsert upserts a batch of points per "index|version" key.
func (q *Qdrant) BulkUpsert(upsertRequest UpsertRequest) error {
	for key, data := range upsertRequest.Data {
		start := time.Now()
		index, version, err := splitBatchKey(key)
		if err != nil {
			return err
		}
		client := q.getQdrantClient(index)
		tags := getMetricTags(index, version)
		metric.Incr("vector_db_bulk_upsert", tags)
		upsertPoints, err := q.prepareUpsertPoints(data)
		if err != nil {
			log.Error().Msgf("Failed to prepare upsert points: %v", err)
			return err
		}
		if err := q.upsertPoints(client, index, version, upsertPoints); err != nil {
			log.Error().Msgf("Could not upsert points: %v", err)
			metric.Incr("vector_db_bulk_upsert_error", tags)
			return err
		}
		metric.Timing("vector_db_bulk_upsert_latency", time.Since(start), tags)
	}
	return nil
}

// BulkDelete deletes a batch of points per "index|version" key.
func (q *Qdrant) BulkDelete(deleteRequest DeleteRequest) error {
	for key, data := range deleteRequest.Data {
		start := time.Now()
		index, version, err := splitBatchKey(key)
		if err != nil {
			return err
		}
		client := q.getQdrantClient(index)
		tags := getMetricTags(index, version)
		metric.Incr("vector_db_bulk_delete", tags)
		deletePoints, err := q.prepareDeletePoints(data)
		if err != nil {
			log.Error().Msgf("Failed to prepare delete points: %v", err)
			return err
		}
		if err := q.deletePoints(client, index, version, deletePoints); err != nil {
			log.Error().Msgf("Could not delete points: %v", err)
			metric.Incr("vector_db_bulk_delete_error", tags)
			return err
		}
		metric.Timing("vector_db_bulk_delete_latency", time.Since(start), tags)
	}
	return nil
}

// BulkUpsertPayload rewrites point payloads per "index|version" key without
// touching the vectors.
func (q *Qdrant) BulkUpsertPayload(upsertPayloadRequest UpsertPayloadRequest) error {
	for key, data := range upsertPayloadRequest.Data {
		start := time.Now()
		index, version, err := splitBatchKey(key)
		if err != nil {
			return err
		}
		client := q.getQdrantClient(index)
		tags := getMetricTags(index, version)
		metric.Incr("vector_db_bulk_upsert_payload", tags)
		if err := q.upsertPayloads(client, index, version, data); err != nil {
			log.Error().Msgf("Could not upsert payloads: %v", err)
			metric.Incr("vector_db_bulk_upsert_payload_error", tags)
			return err
		}
		metric.Timing("vector_db_bulk_upsert_payload_latency", time.Since(start), tags)
	}
	return nil
}

// UpdateIndexingThreshold updates the optimizer indexing threshold of the
// collection backing the given index version.
func (q *Qdrant) UpdateIndexingThreshold(index string, version int, indexingThreshold string) error {
	client := q.getQdrantClient(index)
	collectionName := getCollectionName(index, strconv.Itoa(version))
	threshold := mustUint64(indexingThreshold)
	ctx, cancel := writeCtx(client)
	defer cancel()
	if err := q.updateCollectionIndexingThreshold(ctx, client, index, version, collectionName, &threshold); err != nil {
		return err
	}
	log.Info().Msgf("Indexing threshold updated for collection %s to %d", collectionName, threshold)
	return nil
}

// GetCollectionInfo retrieves collection info through the write client.
func (q *Qdrant) GetCollectionInfo(index string, version int) (*CollectionInfoResponse, error) {
	return q.collectionInfo(index, version, writeConn)
}

// GetReadCollectionInfo retrieves collection info through the read client.
func (q *Qdrant) GetReadCollectionInfo(index string, version int) (*CollectionInfoResponse, error) {
	return q.collectionInfo(index, version, readConn)
}

func (q *Qdrant) collectionInfo(index string, version int, conn func(*QdrantClient) *grpc.ClientConn) (info *CollectionInfoResponse, err error) {
	// A missing client or connection panics inside the qdrant client; report
	// it as an empty result instead of taking the caller down.
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("panic occurred: %v", r)
		}
	}()
	client := q.getQdrantClient(index)
	ctx, cancel := writeCtx(client)
	defer cancel()
	collectionsClient := qdrant.NewCollectionsClient(conn(client))
	collectionName := getCollectionName(index, strconv.Itoa(version))
	response, err := collectionsClient.Get(ctx, &qdrant.GetCollectionInfoRequest{
		CollectionName: collectionName,
	})
	if err != nil || response == nil {
		log.Error().Msgf("Failed to get collection info for %s: %v", collectionName, err)
		return nil, err
	}
	indexConfig, err := q.configManager.GetIndexConfig(index)
	if err != nil {
		log.Error().Msgf("Error getting index config for %s: %v", index, err)
		return nil, err
	}
	return q.mapCollectionInfoResponse(response, indexConfig.Payload), nil
}

func (q *Qdrant) BatchQuery(request *BatchQueryRequest, metricTags []string) (*BatchQueryResponse, error) {
	start := time.Now()
	tags := append([]string{"vector_db_type", "qdrant"}, metricTags...)
	metric.Incr("vector_db_batch_query", tags)
	indexConfig, err := q.configManager.GetIndexConfig(request.Index)
	if err != nil {
		log.Error().Msgf("Error getting index config for %s: %v", request.Index, err)
		return nil, err
	}
	client := q.getQdrantClient(request.Index)
	collectionName := getCollectionName(request.Index, strconv.Itoa(request.Version))
	searchPoints := make([]*qdrant.SearchPoints, 0, len(request.RequestList))
	if err := q.prepareQueryPointsFromRequestList(&searchPoints, request, collectionName, indexConfig); err != nil {
		metric.Incr("vector_db_query_prepare_failure", tags)
		log.Error().Msgf("Error preparing query points for request %+v, error %+v", *request, err)
		return nil, err
	}
	pointsClient := qdrant.NewPointsClient(queryConn(client, indexConfig))
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(client.Deadline)*time.Millisecond)
	defer cancel()
	queryBatchResponse, err := pointsClient.SearchBatch(ctx, &qdrant.SearchBatchPoints{
		CollectionName: collectionName,
		SearchPoints:   searchPoints,
	})
	if err != nil {
		metric.Incr("vector_db_batch_query_failure", tags)
		log.Error().Msgf("Error executing batch search for request %+v, error %+v", *request, err)
		return nil, err
	}
	result := parseBatchResponse(queryBatchResponse.GetResult(), request.RequestList, request)
	metric.Timing("vector_db_batch_query_latency", time.Since(start), tags)
	return result, nil
}

// queryConn routes the configured percentage of query traffic to the backup
// cluster while a migration is in flight.
func queryConn(client *QdrantClient, indexConfig *config.Index) *grpc.ClientConn {
	backup := indexConfig.BackupConfig
	if backup.Enabled && rand.Intn(101) < backup.RoutePercentage {
		return backupConn(client)
	}
	return readConn(client)
}

func (q *Qdrant) prepareQueryPointsFromRequestList(queryPoints *[]*qdrant.SearchPoints, request *BatchQueryRequest,
	collectionName string, indexConfig *config.Index) error {
	searchIndexedOnly := indexConfig.VectorDbConfig.Params[SearchIndexedOnly] != "false"
	for _, details := range request.RequestList {
		filter, err := parseFiltersToQdrantFilters(details, indexConfig.Payload)
		if err != nil {
			return err
		}
		offset := uint64(details.Offset)
		*queryPoints = append(*queryPoints, &qdrant.SearchPoints{
			Vector:         details.Embedding,
			CollectionName: collectionName,
			Filter:         filter,
			Limit:          uint64(details.CandidateLimit),
			Offset:         &offset,
			WithPayload:    qdrant.NewWithPayloadInclude(details.Payload...),
			Params: &qdrant.SearchParams{
				IndexedOnly: &searchIndexedOnly,
				HnswEf:      searchEf(details, indexConfig),
			},
		})
	}
	return nil
}

// searchEf resolves the hnsw_ef for one query: the per-request override
// wins, then the profile's ef_search, then the server default.
func searchEf(details *QueryDetails, indexConfig *config.Index) *uint64 {
	ef, ok := details.SearchParams["hnsw_ef"]
	if !ok {
		ef = indexConfig.VectorProfile.Params["ef_search"]
	}
	if ef == "" {
		return nil
	}
	hnswEf, err := strconv.ParseUint(ef, 10, 64)
	if err != nil {
		return nil
	}
	return &hnswEf
}

// collectionParam reads a numeric collection tuning param, falling back
// when the param is not set.
func collectionParam(params map[string]string, name string, fallback uint64) uint64 {
	if _, ok := params[name]; ok {
		return *paramUint64(params, name)
	}
	return fallback
}

// createCollection creates the collection in qdrant. Vector size, distance
// and HNSW build params come from the index's vector profile, the remaining
// knobs from vector-db-config params.
func (q *Qdrant) createCollection(client *QdrantClient, collectionName string, indexConfig *config.Index, index string, version int) error {
	params := indexConfig.VectorDbConfig.Params
	profileParams := indexConfig.VectorProfile.Params
	indexingThreshold := uint64(0)
	segmentNumber := collectionParam(params, "segment_number", 8)
	maxSegmentSize := collectionParam(params, "max_segment_size_in_mb", 200) * 1024
	m := collectionParam(profileParams, "m", 32)
	efConstruct := collectionParam(profileParams, "ef_construct", 200)
	maxIndexingThreads := paramUint64(params, "max_indexing_threads")
	replicationFactor := paramUint32(params, "replication_factor")
	if q.AppConfig.Configs.AppEnv == "int" {
		// Single-node int clusters cannot honour prod replication or
		// indexing thread counts.
		maxIndexingThreads = qdrant.PtrOf(uint64(0))
		replicationFactor = qdrant.PtrOf(uint32(1))
	}
	request := &qdrant.CreateCollection{
		CollectionName:         collectionName,
		ShardNumber:            paramUint32(params, "shard_number"),
		ReplicationFactor:      replicationFactor,
		WriteConsistencyFactor: paramUint32(params, "write_consistency_factor"),
		OnDiskPayload:          paramBool(params, "on_disk_payload"),
		VectorsConfig: &qdrant.VectorsConfig{Config: &qdrant.VectorsConfig_Params{
			Params: &qdrant.VectorParams{
				Size:     indexConfig.VectorProfile.VectorDimension,
				Distance: convertToDistance(indexConfig.VectorProfile.DistanceMetric),
			},
		}},
		OptimizersConfig: &qdrant.OptimizersConfigDiff{
			DefaultSegmentNumber: &segmentNumber,
			IndexingThreshold:    &indexingThreshold,
			MaxSegmentSize:       &maxSegmentSize,
		},
		HnswConfig: &qdrant.HnswConfigDiff{
			M:                  &m,
			EfConstruct:        &efConstruct,
			MaxIndexingThreads: maxIndexingThreads,
		},
	}
	ctx, cancel := writeCtx(client)
	defer cancel()
	writeClient := qdrant.NewCollectionsClient(writeConn(client))
	if _, err := writeClient.Create(ctx, request); err != nil {
		log.Error().Msgf("Could not create collection: %v", err)
		return err
	}
	// The backup create stays synchronous so the field-index mirror that may
	// follow finds the collection in place.
	if dualWriteActive(indexConfig) {
		backupClient := qdrant.NewCollectionsClient(backupConn(client))
		if _, err := backupClient.Create(ctx, request); err != nil {
			metric.Incr("vector_db_create_collection_backup_error", getMetricTags(index, strconv.Itoa(version)))
		}
	}
	return nil
}

// CreateFieldIndexes creates payload field indexes for every indexed field
// of the index's payload schema.
func (q *Qdrant) CreateFieldIndexes(index string, version int) error {
	client := q.getQdrantClient(index)
	indexConfig, err := q.configManager.GetIndexConfig(index)
	if err != nil {
		log.Error().Msgf("Could not get index config: %v", err)
		return err
	}
	collectionName := getCollectionName(index, strconv.Itoa(version))
	writeClient := qdrant.NewPointsClient(writeConn(client))
	for field, payloadSchema := range indexConfig.Payload {
		if !payloadSchema.Indexed {
			continue
		}
		if err := q.createFieldIndex(writeClient, collectionName, field, GetFieldIndexType(payloadSchema.FieldSchema)); err != nil {
			return err
		}
	}
	if dualWriteActive(indexConfig) {
		go q.mirrorFieldIndexes(client, index, version, collectionName, indexConfig)
	}
	return nil
}

// mirrorFieldIndexes replays field index creation on the backup cluster.
func (q *Qdrant) mirrorFieldIndexes(client *QdrantClient, index string, version int, collectionName string, indexConfig *config.Index) {
	backupClient := qdrant.NewPointsClient(backupConn(client))
	for field, payloadSchema := range indexConfig.Payload {
		if !payloadSchema.Indexed {
			continue
		}
		if err := q.createFieldIndex(backupClient, collectionName, field, GetFieldIndexType(payloadSchema.FieldSchema)); err != nil {
			metric.Incr("vector_db_field_index_creation_backup_error", getMetricTags(index, strconv.Itoa(version)))
		}
	}
}

func (q *Qdrant) createFieldIndex(pointsClient qdrant.PointsClient, collectionName, fieldIndexName string, fieldType qdrant.FieldType) error {
	_, err := pointsClient.CreateFieldIndex(context.Background(), &qdrant.CreateFieldIndexCollection{
		CollectionName:   collectionName,
		FieldName:        fieldIndexName,
		FieldType:        &fieldType,
		FieldIndexParams: q.getFieldIndexParams(fieldType),
	})
	if err != nil {
		log.Error().Msgf("Could not create field index: %v", err)
		return err
	}
	return nil
}

// getFieldIndexParams returns the index params for a payload field type.
// Integer fields keep both lookup and range enabled so match and range
// operators stay servable.
func (q *Qdrant) getFieldIndexParams(fieldType qdrant.FieldType) *qdrant.PayloadIndexParams {
	switch fieldType {
	case qdrant.FieldType_FieldTypeKeyword:
		return &qdrant.PayloadIndexParams{
			IndexParams: &qdrant.PayloadIndexParams_KeywordIndexParams{
				KeywordIndexParams: &qdrant.KeywordIndexParams{},
			},
		}
	case qdrant.FieldType_FieldTypeInteger:
		return &qdrant.PayloadIndexParams{
			IndexParams: &qdrant.PayloadIndexParams_IntegerIndexParams{
				IntegerIndexParams: &qdrant.IntegerIndexParams{
					Lookup: qdrant.PtrOf(true),
					Range:  qdrant.PtrOf(true),
				},
			},
		}
	case qdrant.FieldType_FieldTypeBool:
		return &qdrant.PayloadIndexParams{
			IndexParams: &qdrant.PayloadIndexParams_BoolIndexParams{
				BoolIndexParams: &qdrant.BoolIndexParams{},
			},
		}
	default:
		return nil
	}
}

// dualWriteActive reports whether writes for the index are mirrored to its
// backup cluster.
func dualWriteActive(indexConfig *config.Index) bool {
	backup := indexConfig.BackupConfig
	return backup.Enabled && backup.DualWriteEnabled && backup.Host != ""
}

// mirrorWrite replays a successful primary write against the backup cluster
// in the background when the index has dual writes enabled. The config
// lookup error is returned so callers surface it like any other failure;
// backup op failures themselves only bump metrics.
func (q *Qdrant) mirrorWrite(client *QdrantClient, index, attemptMetric, errMetric string, tags []string, op func(ctx context.Context) error) error {
	indexConfig, err := q.configManager.GetIndexConfig(index)
	if err != nil {
		log.Error().Msgf("Error getting index config for %s: %v", index, err)
		return err
	}
	if !dualWriteActive(indexConfig) {
		return nil
	}
	go func() {
		ctx, cancel := writeCtx(client)
		defer cancel()
		err := op(ctx)
		if attemptMetric != "" {
			metric.Incr(attemptMetric, tags)
		}
		if err != nil {
			metric.Incr(errMetric, tags)
		}
	}()
	return nil
}

func (q *Qdrant) deleteCollection(client *QdrantClient, index string, version int, collectionName string) error {
	ctx, cancel := writeCtx(client)
	defer cancel()
	writeClient := qdrant.NewCollectionsClient(writeConn(client))
	if _, err := writeClient.Delete(ctx, &qdrant.DeleteCollection{CollectionName: collectionName}); err != nil {
		log.Error().Msgf("Failed to delete collection %v: %v", collectionName, err)
		return err
	}
	// The backup cluster serves the previous collection version, so the
	// mirrored delete targets version-1.
	return q.mirrorWrite(client, index, "", "vector_db_delete_collection_backup_error", getMetricTags(index, strconv.Itoa(version)), func(ctx context.Context) error {
		if version-1 < 0 {
			return nil
		}
		backupClient := qdrant.NewCollectionsClient(backupConn(client))
		_, err := backupClient.Delete(ctx, &qdrant.DeleteCollection{
			CollectionName: getCollectionName(index, strconv.Itoa(version-1)),
		})
		return err
	})
}

func pointIdNum(id string) *qdrant.PointId {
	return &qdrant.PointId{PointIdOptions: &qdrant.PointId_Num{Num: mustUint64(id)}}
}

func payloadValues(fields map[string]interface{}) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(fields))
	for key, value := range fields {
		payload[key] = adaptToPayloadValue(value)
	}
	return payload
}

func pointsSelector(ids ...*qdrant.PointId) *qdrant.PointsSelector {
	return &qdrant.PointsSelector{
		PointsSelectorOneOf: &qdrant.PointsSelector_Points{
			Points: &qdrant.PointsIdsList{Ids: ids},
		},
	}
}

func (q *Qdrant) prepareUpsertPoints(data []Data) ([]*qdrant.PointStruct, error) {
	points := make([]*qdrant.PointStruct, 0, len(data))
	for _, d := range data {
		points = append(points, &qdrant.PointStruct{
			Id:      pointIdNum(d.Id),
			Payload: payloadValues(d.Payload),
			Vectors: &qdrant.Vectors{VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: d.Vectors}}},
		})
	}
	return points, nil
}

func (q *Qdrant) upsertPoints(client *QdrantClient, index, version string, upsertPoints []*qdrant.PointStruct) error {
	wait := true
	request := &qdrant.UpsertPoints{
		CollectionName: getCollectionName(index, version),
		Wait:           &wait,
		Points:         upsertPoints,
	}
	ctx, cancel := writeCtx(client)
	defer cancel()
	writePointsClient := qdrant.NewPointsClient(writeConn(client))
	if _, err := writePointsClient.Upsert(ctx, request); err != nil {
		log.Error().Msgf("Failed to upsert points: %v", err)
		return err
	}
	return q.mirrorWrite(client, index, "vector_db_bulk_upsert_backup", "vector_db_bulk_upsert_backup_error", getMetricTags(index, version), func(ctx context.Context) error {
		backupClient := qdrant.NewPointsClient(backupConn(client))
		_, err := backupClient.Upsert(ctx, request)
		return err
	})
}

func (q *Qdrant) prepareDeletePoints(data []Data) ([]*qdrant.PointId, error) {
	ids := make([]*qdrant.PointId, 0, len(data))
	for _, d := range data {
		ids = append(ids, pointIdNum(d.Id))
	}
	return ids, nil
}

func (q *Qdrant) deletePoints(client *QdrantClient, index, version string, deletePoints []*qdrant.PointId) error {
	wait := true
	request := &qdrant.DeletePoints{
		CollectionName: getCollectionName(index, version),
		Wait:           &wait,
		Points:         pointsSelector(deletePoints...),
	}
	ctx, cancel := writeCtx(client)
	defer cancel()
	writePointsClient := qdrant.NewPointsClient(writeConn(client))
	if _, err := writePointsClient.Delete(ctx, request); err != nil {
		log.Error().Msgf("Failed to delete points: %v", err)
		return err
	}
	return q.mirrorWrite(client, index, "vector_db_bulk_delete_backup", "vector_db_bulk_delete_backup_error", getMetricTags(index, version), func(ctx context.Context) error {
		backupClient := qdrant.NewPointsClient(backupConn(client))
		_, err := backupClient.Delete(ctx, request)
		return err
	})
}

func (q *Qdrant) upsertPayloads(client *QdrantClient, index, version string, data []Data) error {
	for _, d := range data {
		payload, selector, err := q.prepareUpsertPayload(d)
		if err != nil {
			log.Error().Msgf("Failed to prepare upsert payload: %v", err)
			return err
		}
		if err := q.setPayload(client, index, version, payload, selector, true); err != nil {
			log.Error().Msgf("Could not set payload: %v", err)
			metric.Count("vector_db_bulk_upsert_payload_error", int64(len(data)), getMetricTags(index, version))
			return err
		}
	}
	return nil
}

func (q *Qdrant) prepareUpsertPayload(d Data) (map[string]*qdrant.Value, *qdrant.PointsSelector, error) {
	return payloadValues(d.Payload), pointsSelector(pointIdNum(d.Id)), nil
}

func (q *Qdrant) setPayload(client *QdrantClient, index, version string, payload map[string]*qdrant.Value, selector *qdrant.PointsSelector, wait bool) error {
	request := &qdrant.SetPayloadPoints{
		CollectionName: getCollectionName(index, version),
		Wait:           &wait,
		Payload:        payload,
		PointsSelector: selector,
	}
	ctx, cancel := writeCtx(client)
	defer cancel()
	writePointsClient := qdrant.NewPointsClient(writeConn(client))
	if _, err := writePointsClient.SetPayload(ctx, request); err != nil {
		log.Error().Msgf("Failed to set payload: %v", err)
		return err
	}
	return q.mirrorWrite(client, index, "vector_db_bulk_upsert_payload_backup", "vector_db_bulk_upsert_payload_backup_error", getMetricTags(index, version), func(ctx context.Context) error {
		backupClient := qdrant.NewPointsClient(backupConn(client))
		_, err := backupClient.SetPayload(ctx, request)
		return err
	})
}

func (q *Qdrant) updateCollectionIndexingThreshold(ctx context.Context, client *QdrantClient, index string, version int, collectionName string, indexingThreshold *uint64) error {
	request := &qdrant.UpdateCollection{
		CollectionName: collectionName,
		OptimizersConfig: &qdrant.OptimizersConfigDiff{
			IndexingThreshold: indexingThreshold,
		},
	}
	collectionsClient := qdrant.NewCollectionsClient(writeConn(client))
	if _, err := collectionsClient.Update(ctx, request); err != nil {
		log.Error().Msgf("Failed to update indexing threshold for collection %s: %v", collectionName, err)
		return err
	}
	return q.mirrorWrite(client, index, "", "vector_db_update_indexing_threshold_backup_error", getMetricTags(index, strconv.Itoa(version)), func(ctx context.Context) error {
		backupClient := qdrant.NewCollectionsClient(backupConn(client))
		_, err := backupClient.Update(ctx, request)
		return err
	})
}

// mapCollectionInfoResponse flattens the qdrant collection info into the
// response struct the admin surface reports.
func (q *Qdrant) mapCollectionInfoResponse(response *qdrant.GetCollectionInfoResponse, payloadSchema map[string]config.Payload) *CollectionInfoResponse {
	var pointsCount, indexedVectorsCount float64
	if response.Result.IndexedVectorsCount != nil {
		indexedVectorsCount = float64(*response.Result.IndexedVectorsCount)
	}
	if response.Result.PointsCount != nil {
		pointsCount = float64(*response.Result.PointsCount)
	}
	var payloadPointsCount []float64
	if response.Result.PayloadSchema != nil {
		for key := range payloadSchema {
			if response.Result.PayloadSchema[key] != nil {
				payloadPointsCount = append(payloadPointsCount, float64(*response.Result.PayloadSchema[key].Points))
			}
		}
	}
	return &CollectionInfoResponse{
		Status:              adaptToStatus(response.Result.Status),
		IndexedVectorsCount: indexedVectorsCount,
		PointsCount:         pointsCount,
		PayloadPointsCount:  payloadPointsCount,
	}
}

func (q *Qdrant) getQdrantClient(index string) *QdrantClient {
	return q.QdrantClients[index]
}

func getMetricTags(index string, version string) []string {
	return []string{"vector_db_type", "qdrant", "index_name", index, "index_version", version}
}

// RefreshClients reacts to etcd watch events on index configuration,
// creating clients for newly enabled indexes and swapping clients whose
// hosts moved.
func (q *Qdrant) RefreshClients(key, value, eventType string) error {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("Recovered from panic: %v", r)
		}
	}()
	if eventType == "DELETE" {
		return nil
	}
	index := q.extractIndexKey(key)
	if index == "" {
		return nil
	}
	indexConfig, err := q.configManager.GetIndexConfig(index)
	if err != nil {
		log.Error().Msgf("Error getting index config for %s: %v", index, err)
		return nil
	}
	if indexConfig.VectorDbType != enums.QDRANT {
		return nil
	}
	log.Info().Msgf("Qdrant index config change detected - Key: %s, EventType: %s", key, eventType)
	if !indexConfig.Enabled {
		return nil
	}
	if _, exists := q.QdrantClients[index]; !exists {
		return q.createClientsForIndex(index, indexConfig)
	}
	return q.swapChangedClients(index, indexConfig)
}

// createClientsForIndex dials a full client set for an index that had none.
func (q *Qdrant) createClientsForIndex(index string, indexConfig *config.Index) error {
	vectorConfig := indexConfig.VectorDbConfig
	var readClient, writeClient *qdrant.Client
	var err error
	if vectorConfig.ReadHost != "" {
		readClient, err = dialAndCheck(index, vectorConfig, vectorConfig.ReadHost)
	}
	if vectorConfig.WriteHost != "" {
		writeClient, err = dialAndCheck(index, vectorConfig, vectorConfig.WriteHost)
	}
	if err != nil {
		log.Error().Msgf("Failed to create qdrant client for %s: %v", index, err)
		return err
	}
	q.QdrantClients[index] = &QdrantClient{
		ReadClient:    readClient,
		WriteClient:   writeClient,
		ReadHost:      vectorConfig.ReadHost,
		WriteHost:     vectorConfig.WriteHost,
		Deadline:      vectorConfig.Http2Config.Deadline,
		WriteDeadline: vectorConfig.Http2Config.WriteDeadline,
	}
	if indexConfig.BackupConfig.Enabled && indexConfig.BackupConfig.Host != "" {
		backupClient, err := dialAndCheck(index, vectorConfig, indexConfig.BackupConfig.Host)
		if err != nil {
			log.Error().Msgf("Failed to create qdrant backup client for %s: %v", index, err)
			return err
		}
		q.QdrantClients[index].BackupClient = backupClient
		q.QdrantClients[index].BackupHost = indexConfig.BackupConfig.Host
		log.Info().Msgf("Backup client created for index %s with host %s", index, indexConfig.BackupConfig.Host)
	}
	log.Info().Msgf("Read and write clients created at runtime for index %s", index)
	return nil
}

// swapChangedClients re-dials clients whose hosts moved, keeping the
// existing connection when the new host fails its health check.
func (q *Qdrant) swapChangedClients(index string, indexConfig *config.Index) error {
	current := q.QdrantClients[index]
	vectorConfig := indexConfig.VectorDbConfig
	if current.ReadHost != vectorConfig.ReadHost {
		var readClient *qdrant.Client
		var err error
		if vectorConfig.ReadHost != "" {
			readClient, err = dialAndCheck(index, vectorConfig, vectorConfig.ReadHost)
		}
		if err != nil {
			log.Error().Msgf("Failed to create qdrant client for %s: %v", index, err)
			return err
		}
		current.ReadHost = vectorConfig.ReadHost
		current.ReadClient = readClient
		log.Info().Msgf("Read client refreshed for index %s with new host %s", index, vectorConfig.ReadHost)
	}
	if current.WriteHost != vectorConfig.WriteHost {
		var writeClient *qdrant.Client
		var err error
		if vectorConfig.WriteHost != "" {
			writeClient, err = dialAndCheck(index, vectorConfig, vectorConfig.WriteHost)
		}
		if err != nil {
			log.Error().Msgf("Failed to create qdrant client for %s: %v", index, err)
			return err
		}
		current.WriteHost = vectorConfig.WriteHost
		current.WriteClient = writeClient
		log.Info().Msgf("Write client refreshed for index %s with new host %s", index, vectorConfig.WriteHost)
	}
	if current.BackupHost != indexConfig.BackupConfig.Host &&
		indexConfig.BackupConfig.Enabled && indexConfig.BackupConfig.Host != "" {
		backupClient, err := dialAndCheck(index, vectorConfig, indexConfig.BackupConfig.Host)
		if err != nil {
			log.Error().Msgf("Failed to create qdrant backup client for %s: %v", index, err)
			return err
		}
		current.BackupClient = backupClient
		current.BackupHost = indexConfig.BackupConfig.Host
		log.Info().Msgf("Backup client refreshed for index %s with new host %s", index, indexConfig.BackupConfig.Host)
	}
	return nil
}

// extractIndexKey pulls the index name out of an etcd watch key. Only keys
// under the indexes subtree that touch client wiring are considered.
func (q *Qdrant) extractIndexKey(key string) string {
	parts := strings.Split(key, "/")
	if len(parts) < 6 || parts[3] != "indexes" {
		return ""
	}
	for _, part := range parts {
		switch part {
		case "vector-db-config", "enabled", "backup-config":
			return parts[4]
		}
	}
	return ""
}
