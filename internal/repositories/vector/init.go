package vector

import (
	"sync"

	"github.com/Meesho/BharatMLStack/iris/internal/config/enums"
)

var (
	vectorDb Database
	syncOnce sync.Once
)

// GetRepository returns the vector database implementation for the given
// type. Only qdrant is wired today.
func GetRepository(vectorDbType enums.VectorDbType) Database {
	switch vectorDbType {
	case enums.QDRANT:
		return qdrantInstance()
	default:
		return nil
	}
}

func qdrantInstance() Database {
	// vectorDb may be preset via SetTestInstance; only dial the real
	// clients when nothing is installed.
	if vectorDb == nil {
		syncOnce.Do(func() {
			vectorDb = createQdrantInstance()
		})
	}
	return vectorDb
}
