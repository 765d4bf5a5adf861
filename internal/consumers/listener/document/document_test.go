package document

import (
	"errors"
	"testing"

	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/internal/config/enums"
	"github.com/Meesho/BharatMLStack/iris/internal/config/structs"
	"github.com/Meesho/BharatMLStack/iris/internal/consumers/handler/indexer"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/docstore"
	"github.com/Meesho/BharatMLStack/iris/internal/skillset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestMapFields_AppliesMappings(t *testing.T) {
	d := &DocumentConsumer{}
	event := Event{Fields: map[string]string{"product_title": "red dress", "img": "https://img/1.jpg", "extra": "x"}}
	conf := &config.Indexer{FieldMappings: map[string]string{"product_title": "title", "img": "image_url"}}
	fields := d.mapFields(event, conf)
	assert.Equal(t, map[string]string{"title": "red dress", "image_url": "https://img/1.jpg"}, fields)
}

func TestMapFields_EmptyMappingPassthrough(t *testing.T) {
	d := &DocumentConsumer{}
	event := Event{Fields: map[string]string{"title": "red dress"}}
	conf := &config.Indexer{}
	assert.Equal(t, event.Fields, d.mapFields(event, conf))
}

func TestPreparePayloadIndexMap_Precedence(t *testing.T) {
	d := &DocumentConsumer{}
	indexConfig := &config.Index{Payload: map[string]config.Payload{
		"category": {FieldSchema: "keyword", DefaultValue: "unknown"},
		"price":    {FieldSchema: "integer", DefaultValue: "0"},
		"in_stock": {FieldSchema: "boolean", DefaultValue: "true"},
	}}
	payload, err := d.preparePayloadIndexMap(indexConfig, map[string]string{"category": "apparel"}, map[string]interface{}{"price": 499})
	assert.NoError(t, err)
	assert.Equal(t, "apparel", payload["category"])
	assert.Equal(t, 499, payload["price"])
	assert.Equal(t, true, payload["in_stock"])
}

func TestPreparePayloadIndexMap_Defaults(t *testing.T) {
	d := &DocumentConsumer{}
	indexConfig := &config.Index{Payload: map[string]config.Payload{
		"category": {FieldSchema: "keyword", DefaultValue: ""},
	}}
	payload, err := d.preparePayloadIndexMap(indexConfig, map[string]string{}, nil)
	assert.NoError(t, err)
	assert.Equal(t, "", payload["category"])
}

func TestPreparePayloadIndexMap_BadSchema(t *testing.T) {
	d := &DocumentConsumer{}
	indexConfig := &config.Index{Payload: map[string]config.Payload{
		"price": {FieldSchema: "integer"},
	}}
	_, err := d.preparePayloadIndexMap(indexConfig, map[string]string{"price": "abc"}, nil)
	assert.Error(t, err)
}

func newTestConsumer(configManager config.Manager, skillsetClient skillset.Client, documentStore docstore.Store, handler indexer.Handler) *DocumentConsumer {
	return &DocumentConsumer{
		qdrantIndexerHandler: handler,
		documentStore:        documentStore,
		skillsetClient:       skillsetClient,
		configManager:        configManager,
		AppConfig:            &structs.AppConfig{},
	}
}

func productsIndexerConfig() *config.Indexer {
	return &config.Indexer{
		TargetIndex:            "products",
		Skillset:               "clip-embedder",
		RunMode:                enums.FULL,
		DocStoreEnabled:        true,
		DocStoreTtl:            3600,
		FailureProducerKafkaId: 9,
		PartitionStates:        map[string]int{"0": 0, "1": 0},
		RunState:               enums.RUN_STARTED,
	}
}

func productsIndexConfig() *config.Index {
	return &config.Index{
		StoreId:              "1",
		KeyField:             "id",
		Enabled:              true,
		VectorDbType:         enums.QDRANT,
		VectorProfile:        config.VectorProfile{VectorDimension: 4},
		Payload:              map[string]config.Payload{"title": {FieldSchema: "keyword", DefaultValue: ""}},
		DocStoreWriteVersion: 2,
	}
}

func TestProcessInSequence_AddOperation(t *testing.T) {
	mockConfig := &config.MockConfigManager{}
	mockConfig.On("GetIndexerConfig", "products-indexer").Return(productsIndexerConfig(), nil)
	mockConfig.On("GetIndexConfig", "products").Return(productsIndexConfig(), nil)

	mockSkillset := &skillset.MockClient{}
	mockSkillset.On("Enrich", "clip-embedder", mock.Anything).Return(&skillset.Enrichment{
		Vector:       []float32{1, 2, 3, 4},
		SearchVector: []float32{5, 6, 7, 8},
		Fields:       map[string]interface{}{},
	}, nil)

	mockStore := &docstore.MockStore{}
	mockStore.On("Persist", "1", 3600, mock.MatchedBy(func(p docstore.Payload) bool {
		return p.DocumentId == "p1" && p.Version == 2 && p.Title == "red dress" && p.ImageUrl == "https://img/1.jpg"
	})).Return(nil)

	mockHandler := &indexer.MockHandler{}
	var captured indexer.Event
	mockHandler.On("Process", mock.MatchedBy(func(e indexer.Event) bool {
		captured = e
		return true
	})).Return(nil)

	d := newTestConsumer(mockConfig, mockSkillset, mockStore, mockHandler)
	err := d.ProcessInSequence([]Event{{
		Indexer:    "products-indexer",
		DocumentId: "p1",
		Fields:     map[string]string{"title": "red dress", "image_url": "https://img/1.jpg"},
		Operation:  add,
		Version:    3,
		Partition:  "0",
	}})

	assert.NoError(t, err)
	assert.Len(t, captured.Data[indexer.Upsert], 1)
	data := captured.Data[indexer.Upsert][0]
	assert.Equal(t, "products", data.Index)
	assert.Equal(t, 3, data.Version)
	assert.Equal(t, "p1", data.Id)
	assert.Equal(t, []float32{1, 2, 3, 4}, data.Vectors)
	assert.Equal(t, "red dress", data.Payload["title"])
	mockStore.AssertExpectations(t)
}

func TestProcessInSequence_DeleteOperation(t *testing.T) {
	mockConfig := &config.MockConfigManager{}
	mockConfig.On("GetIndexerConfig", "products-indexer").Return(productsIndexerConfig(), nil)
	mockConfig.On("GetIndexConfig", "products").Return(productsIndexConfig(), nil)

	mockSkillset := &skillset.MockClient{}
	mockStore := &docstore.MockStore{}
	mockHandler := &indexer.MockHandler{}
	var captured indexer.Event
	mockHandler.On("Process", mock.MatchedBy(func(e indexer.Event) bool {
		captured = e
		return true
	})).Return(nil)

	d := newTestConsumer(mockConfig, mockSkillset, mockStore, mockHandler)
	err := d.ProcessInSequence([]Event{{
		Indexer:    "products-indexer",
		DocumentId: "p2",
		Operation:  delete,
		Version:    3,
	}})

	assert.NoError(t, err)
	assert.Len(t, captured.Data[indexer.Delete], 1)
	assert.Equal(t, "p2", captured.Data[indexer.Delete][0].Id)
	mockSkillset.AssertNotCalled(t, "Enrich", mock.Anything, mock.Anything)
	mockStore.AssertNotCalled(t, "Persist", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessInSequence_UpsertPayloadOperation(t *testing.T) {
	mockConfig := &config.MockConfigManager{}
	mockConfig.On("GetIndexerConfig", "products-indexer").Return(productsIndexerConfig(), nil)
	mockConfig.On("GetIndexConfig", "products").Return(productsIndexConfig(), nil)

	mockSkillset := &skillset.MockClient{}
	mockHandler := &indexer.MockHandler{}
	var captured indexer.Event
	mockHandler.On("Process", mock.MatchedBy(func(e indexer.Event) bool {
		captured = e
		return true
	})).Return(nil)

	d := newTestConsumer(mockConfig, mockSkillset, &docstore.MockStore{}, mockHandler)
	err := d.ProcessInSequence([]Event{{
		Indexer:    "products-indexer",
		DocumentId: "p3",
		Fields:     map[string]string{"title": "blue kurta"},
		Operation:  upsertPayload,
		Version:    3,
	}})

	assert.NoError(t, err)
	assert.Len(t, captured.Data[indexer.UpsertPayload], 1)
	assert.Equal(t, "blue kurta", captured.Data[indexer.UpsertPayload][0].Payload["title"])
	mockSkillset.AssertNotCalled(t, "Enrich", mock.Anything, mock.Anything)
}

func TestProcessInSequence_DimensionMismatch(t *testing.T) {
	mockConfig := &config.MockConfigManager{}
	mockConfig.On("GetIndexerConfig", "products-indexer").Return(productsIndexerConfig(), nil)
	mockConfig.On("GetIndexConfig", "products").Return(productsIndexConfig(), nil)

	mockSkillset := &skillset.MockClient{}
	mockSkillset.On("Enrich", "clip-embedder", mock.Anything).Return(&skillset.Enrichment{
		Vector: []float32{1, 2},
		Fields: map[string]interface{}{},
	}, nil)

	mockHandler := &indexer.MockHandler{}
	mockHandler.On("Process", mock.Anything).Return(nil)

	d := newTestConsumer(mockConfig, mockSkillset, &docstore.MockStore{}, mockHandler)
	err := d.ProcessInSequence([]Event{{
		Indexer:    "products-indexer",
		DocumentId: "p1",
		Fields:     map[string]string{"title": "red dress"},
		Operation:  add,
		Version:    3,
	}})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestProcessInSequence_InvalidOperation(t *testing.T) {
	mockConfig := &config.MockConfigManager{}
	mockConfig.On("GetIndexerConfig", "products-indexer").Return(productsIndexerConfig(), nil)
	mockConfig.On("GetIndexConfig", "products").Return(productsIndexConfig(), nil)

	mockHandler := &indexer.MockHandler{}
	mockHandler.On("Process", mock.Anything).Return(nil)

	d := newTestConsumer(mockConfig, &skillset.MockClient{}, &docstore.MockStore{}, mockHandler)
	err := d.ProcessInSequence([]Event{{
		Indexer:    "products-indexer",
		DocumentId: "p1",
		Operation:  "REPLACE",
		Version:    3,
	}})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid operation")
}

func TestProcessInSequence_EOFCompletesDispatch(t *testing.T) {
	indexerConf := productsIndexerConfig()
	indexerConf.PartitionStates = map[string]int{"0": 1, "1": 1}
	mockConfig := &config.MockConfigManager{}
	mockConfig.On("GetIndexerConfig", "products-indexer").Return(indexerConf, nil)
	mockConfig.On("UpdatePartitionState", "products-indexer", "1", 1).Return(nil)
	mockConfig.On("UpdateRunState", "products-indexer", enums.DISPATCH_COMPLETED).Return(nil)

	mockHandler := &indexer.MockHandler{}
	mockHandler.On("Process", mock.Anything).Return(nil)

	d := newTestConsumer(mockConfig, &skillset.MockClient{}, &docstore.MockStore{}, mockHandler)
	err := d.ProcessInSequence([]Event{{
		Indexer:    "products-indexer",
		DocumentId: EOFDocumentId,
		Version:    3,
		Partition:  "1",
	}})

	assert.NoError(t, err)
	mockConfig.AssertCalled(t, "UpdatePartitionState", "products-indexer", "1", 1)
	mockConfig.AssertCalled(t, "UpdateRunState", "products-indexer", enums.DISPATCH_COMPLETED)
}

func TestProcessInSequence_EOFPartitionsIncomplete(t *testing.T) {
	indexerConf := productsIndexerConfig()
	indexerConf.PartitionStates = map[string]int{"0": 1, "1": 0}
	mockConfig := &config.MockConfigManager{}
	mockConfig.On("GetIndexerConfig", "products-indexer").Return(indexerConf, nil)
	mockConfig.On("UpdatePartitionState", "products-indexer", "0", 1).Return(nil)

	mockHandler := &indexer.MockHandler{}
	mockHandler.On("Process", mock.Anything).Return(nil)

	d := newTestConsumer(mockConfig, &skillset.MockClient{}, &docstore.MockStore{}, mockHandler)
	err := d.ProcessInSequence([]Event{{
		Indexer:    "products-indexer",
		DocumentId: EOFDocumentId,
		Version:    3,
		Partition:  "0",
	}})

	assert.NoError(t, err)
	mockConfig.AssertNotCalled(t, "UpdateRunState", mock.Anything, mock.Anything)
}

func TestProcessInSequence_EOFRunStateAlreadyAdvanced(t *testing.T) {
	indexerConf := productsIndexerConfig()
	indexerConf.PartitionStates = map[string]int{"0": 1, "1": 1}
	indexerConf.RunState = enums.INDEXING_STARTED
	mockConfig := &config.MockConfigManager{}
	mockConfig.On("GetIndexerConfig", "products-indexer").Return(indexerConf, nil)
	mockConfig.On("UpdatePartitionState", "products-indexer", "1", 1).Return(nil)

	mockHandler := &indexer.MockHandler{}
	mockHandler.On("Process", mock.Anything).Return(nil)

	d := newTestConsumer(mockConfig, &skillset.MockClient{}, &docstore.MockStore{}, mockHandler)
	err := d.ProcessInSequence([]Event{{
		Indexer:    "products-indexer",
		DocumentId: EOFDocumentId,
		Version:    3,
		Partition:  "1",
	}})

	assert.NoError(t, err)
	mockConfig.AssertNotCalled(t, "UpdateRunState", mock.Anything, mock.Anything)
}

func TestProcessInSequence_EnrichmentFailure(t *testing.T) {
	mockConfig := &config.MockConfigManager{}
	mockConfig.On("GetIndexerConfig", "products-indexer").Return(productsIndexerConfig(), nil)
	mockConfig.On("GetIndexConfig", "products").Return(productsIndexConfig(), nil)

	mockSkillset := &skillset.MockClient{}
	mockSkillset.On("Enrich", "clip-embedder", mock.Anything).Return(nil, errors.New("endpoint timeout"))

	mockHandler := &indexer.MockHandler{}
	mockHandler.On("Process", mock.Anything).Return(nil)

	d := newTestConsumer(mockConfig, mockSkillset, &docstore.MockStore{}, mockHandler)
	err := d.ProcessInSequence([]Event{{
		Indexer:    "products-indexer",
		DocumentId: "p1",
		Fields:     map[string]string{"title": "red dress"},
		Operation:  add,
		Version:    3,
	}})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint timeout")
}

func TestPersistDocument_SkippedInIntEnv(t *testing.T) {
	mockStore := &docstore.MockStore{}
	d := &DocumentConsumer{
		documentStore: mockStore,
		AppConfig:     &structs.AppConfig{Configs: structs.Configs{AppEnv: "int"}},
	}
	err := d.persistDocument(
		Event{DocumentId: "p1"},
		productsIndexerConfig(),
		productsIndexConfig(),
		map[string]string{"title": "red dress"},
		&skillset.Enrichment{Vector: []float32{1, 2, 3, 4}},
	)
	assert.NoError(t, err)
	mockStore.AssertNotCalled(t, "Persist", mock.Anything, mock.Anything, mock.Anything)
}

func TestPersistDocument_DisabledOnIndexer(t *testing.T) {
	mockStore := &docstore.MockStore{}
	indexerConf := productsIndexerConfig()
	indexerConf.DocStoreEnabled = false
	d := &DocumentConsumer{
		documentStore: mockStore,
		AppConfig:     &structs.AppConfig{},
	}
	err := d.persistDocument(
		Event{DocumentId: "p1"},
		indexerConf,
		productsIndexConfig(),
		map[string]string{},
		&skillset.Enrichment{Vector: []float32{1, 2, 3, 4}},
	)
	assert.NoError(t, err)
	mockStore.AssertNotCalled(t, "Persist", mock.Anything, mock.Anything, mock.Anything)
}

func TestNewConsumer_UnknownVersion(t *testing.T) {
	assert.Nil(t, NewConsumer(99))
}
