package skillset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Meesho/BharatMLStack/iris/internal/config"
	httpHelper "github.com/Meesho/BharatMLStack/iris/pkg/api/http"
	"github.com/Meesho/BharatMLStack/iris/pkg/httpclient"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/rs/zerolog/log"
)

const (
	// VectorField is the reserved output mapping target carrying the embedding.
	VectorField = "vector"
	// SearchVectorField is the reserved output mapping target for a separate
	// retrieval-side embedding space.
	SearchVectorField = "search_vector"
)

// HttpSkillsetClient calls skillset endpoints over the shared http client.
// Connections are cached per skillset client id, so circuit breaking and
// external api metrics are scoped per downstream service.
type HttpSkillsetClient struct {
	configManager config.Manager
	clients       map[string]*httpclient.HTTPClient
	mu            sync.RWMutex
}

func (c *HttpSkillsetClient) Enrich(skillset string, source map[string]string) (*Enrichment, error) {
	conf, err := c.configManager.GetSkillsetConfig(skillset)
	if err != nil {
		log.Error().Msgf("Error fetching skillset config for %s, error: %v", skillset, err)
		return nil, err
	}
	if !conf.Enabled {
		return nil, fmt.Errorf("skillset %s is disabled", skillset)
	}
	return c.EnrichWith(skillset, conf, source)
}

func (c *HttpSkillsetClient) EnrichWith(skillset string, conf *config.Skillset, source map[string]string) (*Enrichment, error) {
	requestBody := make(map[string]string, len(conf.InputMappings))
	for requestField, sourceField := range conf.InputMappings {
		value, ok := source[sourceField]
		if !ok {
			metric.Incr("skillset_enrichment_error", []string{"skillset_name", skillset, "reason", "missing_source_field"})
			return nil, fmt.Errorf("source field %s required by skillset %s is missing", sourceField, skillset)
		}
		requestBody[requestField] = value
	}
	response, err := c.call(skillset, conf, requestBody)
	if err != nil {
		return nil, err
	}
	return c.mapResponse(skillset, conf, response)
}

func (c *HttpSkillsetClient) call(skillset string, conf *config.Skillset, requestBody map[string]string) (map[string]interface{}, error) {
	body, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}
	client := c.clientFor(conf.ClientId)
	request, err := http.NewRequest(http.MethodPost, client.Endpoint+conf.Path, bytes.NewReader(body))
	if err != nil {
		log.Error().Msgf("Error building request for skillset %s, error: %v", skillset, err)
		return nil, err
	}
	request.Header.Set(httpHelper.HeaderContentType, httpHelper.HeaderValueApplicationJson)
	if conf.ApiKey != "" {
		request.Header.Set(httpHelper.HeaderApiKey, conf.ApiKey)
	}
	if conf.TimeoutInMs > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(conf.TimeoutInMs)*time.Millisecond)
		defer cancel()
		request = request.WithContext(ctx)
	}
	resp, err := client.Do(request)
	if err != nil {
		metric.Incr("skillset_enrichment_error", []string{"skillset_name", skillset, "reason", "call_failed"})
		log.Error().Msgf("Error calling skillset %s, error: %v", skillset, err)
		return nil, err
	}
	defer resp.Body.Close()
	if !httpHelper.IsStandard2xx(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, resp.Body)
		metric.Incr("skillset_enrichment_error", []string{"skillset_name", skillset, "reason", "non_2xx"})
		return nil, fmt.Errorf("skillset %s returned status %d", skillset, resp.StatusCode)
	}
	var response map[string]interface{}
	if err = json.NewDecoder(resp.Body).Decode(&response); err != nil {
		log.Error().Msgf("Error decoding skillset %s response, error: %v", skillset, err)
		return nil, err
	}
	return response, nil
}

func (c *HttpSkillsetClient) mapResponse(skillset string, conf *config.Skillset, response map[string]interface{}) (*Enrichment, error) {
	enrichment := &Enrichment{Fields: make(map[string]interface{})}
	for responseField, documentField := range conf.OutputMappings {
		value, ok := response[responseField]
		if !ok {
			continue
		}
		switch documentField {
		case VectorField:
			vector, err := toVector(value)
			if err != nil {
				return nil, fmt.Errorf("skillset %s field %s: %w", skillset, responseField, err)
			}
			enrichment.Vector = vector
		case SearchVectorField:
			vector, err := toVector(value)
			if err != nil {
				return nil, fmt.Errorf("skillset %s field %s: %w", skillset, responseField, err)
			}
			enrichment.SearchVector = vector
		default:
			enrichment.Fields[documentField] = value
		}
	}
	if enrichment.Vector == nil {
		metric.Incr("skillset_enrichment_error", []string{"skillset_name", skillset, "reason", "missing_vector"})
		return nil, fmt.Errorf("skillset %s response has no output mapped to %s", skillset, VectorField)
	}
	if conf.Dimension > 0 && uint64(len(enrichment.Vector)) != conf.Dimension {
		metric.Incr("skillset_enrichment_error", []string{"skillset_name", skillset, "reason", "dimension_mismatch"})
		return nil, fmt.Errorf("skillset %s returned vector of dimension %d, expected %d", skillset, len(enrichment.Vector), conf.Dimension)
	}
	if enrichment.SearchVector == nil {
		enrichment.SearchVector = enrichment.Vector
	}
	return enrichment, nil
}

func (c *HttpSkillsetClient) clientFor(clientId string) *httpclient.HTTPClient {
	c.mu.RLock()
	client, ok := c.clients[clientId]
	c.mu.RUnlock()
	if ok {
		return client
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok = c.clients[clientId]; ok {
		return client
	}
	client = httpclient.NewConn(clientId)
	c.clients[clientId] = client
	return client
}

func toVector(value interface{}) ([]float32, error) {
	elements, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a numeric array, got %T", value)
	}
	vector := make([]float32, 0, len(elements))
	for _, element := range elements {
		number, ok := element.(float64)
		if !ok {
			return nil, fmt.Errorf("expected a numeric array, got element %T", element)
		}
		vector = append(vector, float32(number))
	}
	return vector, nil
}
