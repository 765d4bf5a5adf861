package search

import (
	"sync"

	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/distributedcache"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/docstore"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/inmemorycache"
	"github.com/Meesho/BharatMLStack/iris/internal/skillset"
	"github.com/gin-gonic/gin"
)

var (
	once      sync.Once
	handlerV1 *HandlerV1
)

const (
	DefaultVersion = 1
)

// Handler serves the query route.
type Handler interface {
	Query(ctx *gin.Context)
}

func GetHandler(version int) Handler {
	switch version {
	case DefaultVersion:
		return InitV1()
	default:
		return nil
	}
}

// SetMockSearchHandler creates the handler instance with the given databases
// This would be handy in places where we want to create a handler with specific database instances
func SetMockSearchHandler(documentStore docstore.Store, skillsetClient skillset.Client, configManager config.Manager,
	inMemCache inmemorycache.Database, distributedCache distributedcache.Database) *HandlerV1 {
	once.Do(func() {})
	handlerV1 = &HandlerV1{
		configManager:    configManager,
		documentStore:    documentStore,
		skillsetClient:   skillsetClient,
		inMemCache:       inMemCache,
		distributedCache: distributedCache,
	}
	return handlerV1
}
