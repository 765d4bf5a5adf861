package indexer

import (
	"strconv"
	"sync"

	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/internal/config/enums"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/vector"
	"github.com/rs/zerolog/log"
)

var (
	qdrantHandler Handler
	once          sync.Once
)

type QdrantIndexer struct {
	configManager config.Manager
}

func initQdrantIndexerHandler() Handler {
	if qdrantHandler == nil {
		once.Do(func() {
			qdrantHandler = &QdrantIndexer{
				configManager: config.NewManager(config.DefaultVersion),
			}
		})
	}
	return qdrantHandler
}

func (q *QdrantIndexer) Process(event Event) error {
	var err error
	for eventType, data := range event.Data {
		switch eventType {
		case Upsert:
			err = q.bulkUpsert(data)
		case Delete:
			err = q.bulkDelete(data)
		case UpsertPayload:
			err = q.bulkUpsertPayload(data)
		default:
			log.Error().Msgf("Invalid event type: %s", eventType)
		}
	}
	return err
}

// getKey names the collection bucket for an index version pair.
func (q *QdrantIndexer) getKey(index string, version int) string {
	return index + "|" + strconv.Itoa(version)
}

// groupByCollection buckets documents per collection key and records which
// vector db types serve them. Documents of disabled indexes are dropped.
func (q *QdrantIndexer) groupByCollection(data []Data) (map[string][]vector.Data, map[enums.VectorDbType]bool, error) {
	grouped := make(map[string][]vector.Data)
	dbTypes := make(map[enums.VectorDbType]bool)
	for _, d := range data {
		indexConfig, err := q.configManager.GetIndexConfig(d.Index)
		if err != nil {
			log.Error().Msgf("Error getting index config for index %s: %v", d.Index, err)
			return nil, nil, err
		}
		if !indexConfig.Enabled {
			continue
		}
		key := q.getKey(d.Index, d.Version)
		grouped[key] = append(grouped[key], vector.Data{
			Id:      d.Id,
			Payload: d.Payload,
			Vectors: d.Vectors,
		})
		dbTypes[indexConfig.VectorDbType] = true
	}
	return grouped, dbTypes, nil
}

func (q *QdrantIndexer) bulkUpsert(data []Data) error {
	grouped, dbTypes, err := q.groupByCollection(data)
	if err != nil {
		return err
	}
	for dbType := range dbTypes {
		if err := vector.GetRepository(dbType).BulkUpsert(vector.UpsertRequest{Data: grouped}); err != nil {
			log.Error().Msgf("Error in bulk upsert: %s", err)
			return err
		}
	}
	return nil
}

func (q *QdrantIndexer) bulkDelete(data []Data) error {
	grouped, dbTypes, err := q.groupByCollection(data)
	if err != nil {
		return err
	}
	for dbType := range dbTypes {
		if err := vector.GetRepository(dbType).BulkDelete(vector.DeleteRequest{Data: grouped}); err != nil {
			log.Error().Msgf("Error in bulk delete: %s", err)
			return err
		}
	}
	return nil
}

func (q *QdrantIndexer) bulkUpsertPayload(data []Data) error {
	grouped, dbTypes, err := q.groupByCollection(data)
	if err != nil {
		return err
	}
	for dbType := range dbTypes {
		if err := vector.GetRepository(dbType).BulkUpsertPayload(vector.UpsertPayloadRequest{Data: grouped}); err != nil {
			log.Error().Msgf("Error in bulk upsert payload: %s", err)
			return err
		}
	}
	return nil
}
