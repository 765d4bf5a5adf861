package docstore

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/pkg/ds"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/Meesho/BharatMLStack/iris/pkg/scylla"
	"github.com/gocql/gocql"
	"github.com/rs/zerolog/log"
)

type DocumentStore struct {
	Stores        map[string]StoreData
	configManager config.Manager
	sessionMap    map[int]*gocql.Session
}

type StoreData struct {
	Session   *gocql.Session
	TableName string
	Keyspace  string
}

const (
	envPrefix       = "STORAGE_DOCUMENT_STORE"
	searchColumns   = "search_vector"
	documentColumns = "title, image_url, vector"
	persistColumns  = "*"
)

// initDocumentStore initializes the document store and returns it.
func initDocumentStore() Store {
	if documentStore == nil {
		once.Do(func() {
			queryCache = ds.NewSyncMap[string, string]()
			sessionMap := InitSessions()
			stores, err := initializeStores(sessionMap)
			if err != nil {
				log.Panic().Msgf("Failed to initialize stores: %v", err)
			}
			documentStore = &DocumentStore{
				Stores:        stores,
				configManager: config.NewManager(config.DefaultVersion),
				sessionMap:    sessionMap,
			}
		})
	}
	return documentStore
}

// initializeStores sets up the store connections and returns a map of StoreData.
func initializeStores(sessionMap map[int]*gocql.Session) (map[string]StoreData, error) {
	stores := make(map[string]StoreData)
	configManager := config.NewManager(config.DefaultVersion)
	irisConfig, err := configManager.GetIrisConfig()
	if err != nil {
		return nil, fmt.Errorf("error getting stores from etcd: %w", err)
	}
	etcdStores := irisConfig.Storage.Stores
	for storeId, data := range etcdStores {
		store, err := createStoreData(data, sessionMap)
		if err != nil {
			log.Error().Msgf("Failed to create store data for storeId %s: %v", storeId, err)
			continue // Log error but continue with other stores
		}
		stores[storeId] = store
	}
	return stores, nil
}

func InitSessions() map[int]*gocql.Session {
	connectionMap := make(map[int]*gocql.Session)
	count := appConfig.StorageDocumentStoreCount
	if count > 0 {
		for configId := 1; configId <= count; configId++ {
			configPrefix := fmt.Sprintf("%s_%d", envPrefix, configId)
			clusterConfig, err := scylla.BuildClusterConfigFromEnv(configPrefix)
			if err != nil {
				log.Panic().Msgf("error building scylla db cluster for configPrefix - %v with error %v"+
					"Error - ", configPrefix, err)
			}
			session, err := clusterConfig.CreateSession()
			if err != nil {
				log.Panic().Msgf("Error connecting scylla db.Error - %#v", err)
			}
			connectionMap[configId] = session
		}
	}
	return connectionMap
}

// createStoreData builds the StoreData from the given store configuration.
func createStoreData(data config.Data, sessionMap map[int]*gocql.Session) (StoreData, error) {
	if _, ok := sessionMap[data.ConfId]; !ok {
		return StoreData{}, fmt.Errorf("session not found for config id %d", data.ConfId)
	}
	return StoreData{
		Session:   sessionMap[data.ConfId],
		TableName: data.DocumentsTable,
		Keyspace:  data.Db,
	}, nil
}

// BulkQuery retrieves document fields for the keys in the bulk query. The
// query type selects the column set: search pulls the search vector, document
// pulls title, image url and the stored vector.
func (d *DocumentStore) BulkQuery(storeId string, bulkQuery *BulkQuery, queryType string) error {
	startTime := time.Now()
	metric.Count("document_store_db_retrieve_count", int64(len(bulkQuery.CacheKeys)), []string{
		metric.TagAsString("store_id", storeId),
	})
	if queryType == QueryTypeDocument {
		preparedQuery := createPreparedQuery(d.Stores[storeId], documentColumns, queryType)
		err := bulkExecuteAsyncForDocument(bulkQuery, preparedQuery)
		if err != nil {
			return err
		}
	} else if queryType == QueryTypeSearch {
		preparedQuery := createPreparedQuery(d.Stores[storeId], searchColumns, queryType)
		err := bulkExecuteAsync(bulkQuery, preparedQuery)
		if err != nil {
			return err
		}
	}
	metric.Timing("document_store_db_retrieve_latency", time.Since(startTime), []string{
		metric.TagAsString("store_id", storeId),
	})
	return nil
}

// BulkQueryConsumer retrieves full document rows for the given document IDs.
func (d *DocumentStore) BulkQueryConsumer(storeId string, bulkQuery *BulkQuery) (map[string]map[string]interface{}, error) {
	t1 := time.Now()
	metric.Count("document_store_db_retrieve_count", int64(len(bulkQuery.DocumentIds)), []string{
		metric.TagAsString("store_id", storeId),
	})
	preparedQuery := createPreparedQuery(d.Stores[storeId], persistColumns, "consumer")
	documentStorePayloads := bulkExecuteAsyncForConsumer(bulkQuery, preparedQuery)
	metric.Timing("document_store_db_retrieve_latency", time.Since(t1), []string{
		metric.TagAsString("store_id", storeId),
	})
	return *documentStorePayloads, nil
}

// Persist stores the given payload in the document store with an optional TTL.
func (d *DocumentStore) Persist(storeId string, ttl int, payload Payload) error {
	startTime := time.Now()
	metric.Incr("document_store_db_persist_count", []string{metric.TagAsString("store_id", storeId)})
	columns, err := preparePersistColumns(payload)
	if err != nil {
		log.Error().Msgf("Error preparing columns for document %v: %v\n", payload.DocumentId, err)
		return err
	}
	preparedQuery, columnNames := createPersistPreparedQuery(d.Stores[storeId], columns, ttl)
	if err := executePersist(payload, columns, preparedQuery, columnNames); err != nil {
		log.Error().Msgf("Error persisting data for document %v: %v\n", payload.DocumentId, err)
		metric.Incr("document_store_db_persist_failure_count", []string{
			metric.TagAsString("store_id", storeId),
		})
		return err
	}
	metric.Timing("document_store_db_persist_latency", time.Since(startTime), []string{
		metric.TagAsString("store_id", storeId),
	})
	return nil
}

// preparePersistColumns prepares the column data for persisting.
func preparePersistColumns(payload Payload) (map[string]interface{}, error) {
	columns := map[string]interface{}{
		"document_id":   payload.DocumentId,
		"title":         payload.Title,
		"image_url":     payload.ImageUrl,
		"vector":        payload.Vector,
		"search_vector": payload.SearchVector,
		"version":       payload.Version,
	}
	return columns, nil
}

func bulkExecuteAsync(bulkQuery *BulkQuery, preparedQuery *gocql.Query) error {
	var wg sync.WaitGroup
	type vectorResult struct {
		key          string
		searchVector []float32
	}

	resultChan := make(chan vectorResult, len(bulkQuery.CacheKeys))
	// Pre-extract documentIds (single-threaded, fast)
	documentIds := make(map[string]string, len(bulkQuery.CacheKeys))
	for key, cacheStruct := range bulkQuery.CacheKeys {
		documentIds[key] = cacheStruct.DocumentId
	}

	for key := range bulkQuery.CacheKeys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			// Avoid copying query by recreating from session if needed
			query := *preparedQuery
			(&query).Bind(documentIds[key], bulkQuery.Version).Consistency(gocql.One)
			var searchVector []float32
			err := (&query).Scan(&searchVector)
			if err != nil && err != gocql.ErrNotFound {
				metric.Incr("document_store_db_retrieve_failure", []string{"db", "scylla"})
				log.Error().Msgf("Error executing cql query for key %s: %v\n", key, err)
				return
			}
			resultChan <- vectorResult{key: key, searchVector: searchVector}
		}(key)
	}

	wg.Wait()
	close(resultChan)

	for res := range resultChan {
		cacheStruct := bulkQuery.CacheKeys[res.key]
		cacheStruct.SearchVector = res.searchVector
		bulkQuery.CacheKeys[res.key] = cacheStruct
	}
	return nil
}

func bulkExecuteAsyncForDocument(bulkQuery *BulkQuery, preparedQuery *gocql.Query) error {
	var wg sync.WaitGroup
	type documentResult struct {
		key      string
		title    string
		imageUrl string
		vector   []float32
	}

	resultChan := make(chan documentResult, len(bulkQuery.CacheKeys))

	documentIds := make(map[string]string, len(bulkQuery.CacheKeys))
	for key, cacheStruct := range bulkQuery.CacheKeys {
		documentIds[key] = cacheStruct.DocumentId
	}

	for key := range bulkQuery.CacheKeys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			query := *preparedQuery
			(&query).Bind(documentIds[key], bulkQuery.Version).Consistency(gocql.One)
			var title string
			var imageUrl string
			var docVector []float32
			err := (&query).Scan(&title, &imageUrl, &docVector)
			if err != nil && err != gocql.ErrNotFound {
				metric.Incr("document_store_db_retrieve_failure", []string{"db", "scylla"})
				log.Error().Msgf("Error executing cql query for key %s: %v\n", key, err)
				return
			}
			resultChan <- documentResult{key: key, title: title, imageUrl: imageUrl, vector: docVector}
		}(key)
	}

	wg.Wait()
	close(resultChan)

	for res := range resultChan {
		cacheStruct := bulkQuery.CacheKeys[res.key]
		cacheStruct.Title = res.title
		cacheStruct.ImageUrl = res.imageUrl
		cacheStruct.Vector = res.vector
		bulkQuery.CacheKeys[res.key] = cacheStruct
	}
	return nil
}

func bulkExecuteAsyncForConsumer(bulkQuery *BulkQuery, preparedQuery *gocql.Query) *map[string]map[string]interface{} {
	var wg sync.WaitGroup
	var mu sync.Mutex
	payloads := make(map[string]map[string]interface{})
	for _, documentId := range bulkQuery.DocumentIds {
		wg.Add(1)
		go func(documentId string) {
			defer wg.Done()
			query := *preparedQuery
			query.Bind(documentId, bulkQuery.Version).Consistency(gocql.One)
			res, err := query.Iter().SliceMap()
			if err != nil {
				metric.Incr("document_store_db_retrieve_failure", []string{"db", "scylla"})
				log.Error().Msgf("Error executing cql query %v: %v\n", query, err)
				return
			}
			mu.Lock()
			if len(res) != 0 {
				payloads[documentId] = res[0]
			}
			mu.Unlock()
		}(documentId)
	}

	wg.Wait()
	return &payloads
}

func executePersist(payload Payload, columns map[string]interface{}, preparedQuery *gocql.Query, columnNames []string) error {
	var bindValues []interface{}
	for _, column := range columnNames {
		bindValues = append(bindValues, columns[column])
	}
	preparedQuery.Bind(bindValues...)
	preparedQuery.Consistency(gocql.One)
	_, err := preparedQuery.Iter().SliceMap()
	if err != nil {
		log.Error().Msgf("Error executing cql query %v: %v\n", payload.DocumentId, err)
		return err
	}
	return nil
}

func createPreparedQuery(store StoreData, column string, queryType string) *gocql.Query {
	cachedQuery, found := queryCache.Get(store.TableName + "_retrieve_" + queryType)
	var query string
	var preparedQuery *gocql.Query
	if !found {
		query = fmt.Sprintf(GenericRetrieveQuery, column, store.Keyspace, store.TableName, DocumentId, Version)
		queryCache.Set(store.TableName+"_retrieve_"+queryType, query)
		preparedQuery = store.Session.Query(query)
	} else {
		preparedQuery = store.Session.Query(cachedQuery)
	}
	return preparedQuery
}

func createPersistPreparedQuery(store StoreData, columns map[string]interface{}, ttl int) (*gocql.Query, []string) {
	var query string
	var preparedQuery *gocql.Query
	columnNames := make([]string, 0, len(columns))
	placeholders := make([]string, 0, len(columns))
	for col := range columns {
		columnNames = append(columnNames, col)
		placeholders = append(placeholders, "?")
	}
	sort.Strings(columnNames)
	columnsStr := strings.Join(columnNames, ", ")
	cachedQuery, found := queryCache.Get(store.TableName + "_" + columnsStr + "_persist")
	if !found {
		placeholdersStr := strings.Join(placeholders, ", ")
		query = fmt.Sprintf(GenericPersistQuery, store.Keyspace, store.TableName, columnsStr, placeholdersStr, ttl)
		queryCache.Set(store.TableName+"_"+columnsStr+"_persist", query)
		preparedQuery = store.Session.Query(query)
	} else {
		query = cachedQuery
		preparedQuery = store.Session.Query(query)
	}
	return preparedQuery, columnNames
}
