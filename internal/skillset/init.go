package skillset

import (
	"sync"

	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/pkg/httpclient"
	"github.com/rs/zerolog/log"
)

var (
	client Client
	once   sync.Once
)

const (
	DefaultVersion = 1
)

func NewClient(version int) Client {
	switch version {
	case DefaultVersion:
		return initHttpSkillsetClient()
	default:
		log.Error().Msgf("Invalid skillset client version: %d", version)
		return nil
	}
}

func initHttpSkillsetClient() Client {
	if client == nil {
		once.Do(func() {
			client = &HttpSkillsetClient{
				configManager: config.NewManager(config.DefaultVersion),
				clients:       make(map[string]*httpclient.HTTPClient),
			}
		})
	}
	return client
}

// SetInstance sets the client instance, only being used for testing
func SetInstance(provider Client) {
	client = provider
	once.Do(func() {}) // Marking the sync once as done
}
