package blob

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	httpHelper "github.com/Meesho/BharatMLStack/iris/pkg/api/http"
	"github.com/Meesho/BharatMLStack/iris/pkg/httpclient"
	"github.com/rs/zerolog/log"
)

const (
	envPrefix = "HTTP_BLOB"
)

// HttpBlobStore talks to the blob endpoint over the shared http client, so
// circuit breaking and external api metrics come from that layer.
type HttpBlobStore struct {
	client *httpclient.HTTPClient
}

type listObjectsResponse struct {
	Keys []string `json:"keys"`
}

func initBlobStore() Store {
	if blobStore == nil {
		once.Do(func() {
			blobStore = &HttpBlobStore{
				client: httpclient.NewConn(envPrefix),
			}
		})
	}
	return blobStore
}

func (h *HttpBlobStore) objectUrl(container, key string) string {
	return h.client.Endpoint + "/" + container + "/" + key
}

func (h *HttpBlobStore) Upload(container, key string, body []byte) error {
	req, err := http.NewRequest(http.MethodPut, h.objectUrl(container, key), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set(httpHelper.HeaderContentType, httpHelper.HeaderValueApplicationJson)
	resp, err := h.client.Do(req)
	if err != nil {
		log.Error().Msgf("Error uploading blob %s/%s: %v", container, key, err)
		return err
	}
	defer resp.Body.Close()
	if !httpHelper.IsStandard2xx(resp.StatusCode) {
		return fmt.Errorf("blob upload %s/%s failed with status %d", container, key, resp.StatusCode)
	}
	return nil
}

func (h *HttpBlobStore) Exists(container, key string) (bool, error) {
	req, err := http.NewRequest(http.MethodHead, h.objectUrl(container, key), nil)
	if err != nil {
		return false, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		log.Error().Msgf("Error checking blob %s/%s: %v", container, key, err)
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if !httpHelper.IsStandard2xx(resp.StatusCode) {
		return false, fmt.Errorf("blob head %s/%s failed with status %d", container, key, resp.StatusCode)
	}
	return true, nil
}

func (h *HttpBlobStore) List(container, prefix string) ([]string, error) {
	listUrl := h.client.Endpoint + "/" + container
	if prefix != "" {
		listUrl += "?prefix=" + url.QueryEscape(prefix)
	}
	req, err := http.NewRequest(http.MethodGet, listUrl, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		log.Error().Msgf("Error listing blobs %s/%s: %v", container, prefix, err)
		return nil, err
	}
	defer resp.Body.Close()
	if !httpHelper.IsStandard2xx(resp.StatusCode) {
		return nil, fmt.Errorf("blob list %s/%s failed with status %d", container, prefix, resp.StatusCode)
	}
	var listResponse listObjectsResponse
	if err = json.NewDecoder(resp.Body).Decode(&listResponse); err != nil {
		log.Error().Msgf("Error parsing blob list response for %s/%s: %v", container, prefix, err)
		return nil, err
	}
	return listResponse.Keys, nil
}

func (h *HttpBlobStore) Download(container, key string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, h.objectUrl(container, key), nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		log.Error().Msgf("Error downloading blob %s/%s: %v", container, key, err)
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("blob %s/%s not found", container, key)
	}
	if !httpHelper.IsStandard2xx(resp.StatusCode) {
		return nil, fmt.Errorf("blob download %s/%s failed with status %d", container, key, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
