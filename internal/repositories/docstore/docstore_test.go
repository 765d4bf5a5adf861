package docstore

import (
	"testing"

	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
)

func TestPreparePersistColumns(t *testing.T) {
	payload := Payload{
		DocumentId:   "101",
		Title:        "red shoes",
		ImageUrl:     "https://img.example.com/101.jpg",
		Vector:       []float32{0.1, 0.2},
		SearchVector: []float32{0.3, 0.4},
		Version:      2,
	}

	columns, err := preparePersistColumns(payload)

	assert.NoError(t, err)
	assert.Equal(t, "101", columns["document_id"])
	assert.Equal(t, "red shoes", columns["title"])
	assert.Equal(t, "https://img.example.com/101.jpg", columns["image_url"])
	assert.Equal(t, []float32{0.1, 0.2}, columns["vector"])
	assert.Equal(t, []float32{0.3, 0.4}, columns["search_vector"])
	assert.Equal(t, 2, columns["version"])
}

func TestCreateStoreData(t *testing.T) {
	sessionMap := map[int]*gocql.Session{1: nil}
	data := config.Data{ConfId: 1, DocumentsTable: "documents", Db: "iris"}

	store, err := createStoreData(data, sessionMap)

	assert.NoError(t, err)
	assert.Equal(t, "documents", store.TableName)
	assert.Equal(t, "iris", store.Keyspace)
}

func TestCreateStoreData_MissingSession(t *testing.T) {
	data := config.Data{ConfId: 7, DocumentsTable: "documents", Db: "iris"}

	_, err := createStoreData(data, map[int]*gocql.Session{})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "session not found for config id 7")
}
