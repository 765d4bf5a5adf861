package etcd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hnswParams struct {
	M           int
	EfConstruct int
}

type indexEntry struct {
	Dimension int
	Metric    string
}

type hydrationConfig struct {
	AppName string
	Port    int
	Debug   bool
	Ratio   float64
	Hnsw    hnswParams
	Profile indexEntry
	Indexes map[string]indexEntry
	Labels  map[string]string
	Raw     []byte
	Source  interface{}
}

// hydrationFixture returns data/meta maps the way fetchChildren builds them:
// keys normalized (lowercase, dashes stripped), metaMap keeping the original
// spelling.
func hydrationFixture() (map[string]string, map[string]string) {
	entries := map[string]string{
		"/config/iris/appname":                     "iris",
		"/config/iris/port":                        "8080",
		"/config/iris/debug":                       "true",
		"/config/iris/ratio":                       "0.95",
		"/config/iris/hnsw/m":                      "32",
		"/config/iris/hnsw/efconstruct":            "200",
		"/config/iris/profile":                     `{"Dimension":1024,"Metric":"cosine"}`,
		"/config/iris/indexes/Red-Shoes/dimension": "1024",
		"/config/iris/indexes/Red-Shoes/metric":    "cosine",
		"/config/iris/labels/env":                  "prod",
		"/config/iris/raw":                         "[1 2 3]",
		"/config/iris/source":                      "blob",
	}
	dataMap := make(map[string]string, len(entries))
	metaMap := make(map[string]string, len(entries))
	for original, value := range entries {
		key := normalizeKey(original)
		dataMap[key] = value
		metaMap[key] = original
	}
	return dataMap, metaMap
}

func TestHandleStruct(t *testing.T) {
	t.Run("hydrates scalars, nested structs, json blobs and maps", func(t *testing.T) {
		v := &V1{handledPrefix: map[string]string{}}
		dataMap, metaMap := hydrationFixture()
		var config hydrationConfig

		err := v.handleStruct(&dataMap, &metaMap, &config, "/config/iris")

		require.NoError(t, err)
		assert.Equal(t, "iris", config.AppName)
		assert.Equal(t, 8080, config.Port)
		assert.True(t, config.Debug)
		assert.InDelta(t, 0.95, config.Ratio, 1e-9)
		assert.Equal(t, hnswParams{M: 32, EfConstruct: 200}, config.Hnsw)
		assert.Equal(t, indexEntry{Dimension: 1024, Metric: "cosine"}, config.Profile)
		assert.Equal(t, map[string]string{"env": "prod"}, config.Labels)
		assert.Equal(t, []byte{1, 2, 3}, config.Raw)
		assert.Equal(t, "blob", config.Source)
	})

	t.Run("map keys keep their original spelling", func(t *testing.T) {
		v := &V1{handledPrefix: map[string]string{}}
		dataMap, metaMap := hydrationFixture()
		var config hydrationConfig

		err := v.handleStruct(&dataMap, &metaMap, &config, "/config/iris")

		require.NoError(t, err)
		require.Contains(t, config.Indexes, "Red-Shoes")
		assert.Equal(t, indexEntry{Dimension: 1024, Metric: "cosine"}, config.Indexes["Red-Shoes"])
	})

	t.Run("rejects non-pointer output", func(t *testing.T) {
		v := &V1{handledPrefix: map[string]string{}}
		dataMap, metaMap := hydrationFixture()

		err := v.handleStruct(&dataMap, &metaMap, hydrationConfig{}, "/config/iris")

		assert.EqualError(t, err, "output is not a non-nil pointer")
	})

	t.Run("rejects pointer to non-struct", func(t *testing.T) {
		v := &V1{handledPrefix: map[string]string{}}
		dataMap, metaMap := hydrationFixture()
		var n int

		err := v.handleStruct(&dataMap, &metaMap, &n, "/config/iris")

		assert.EqualError(t, err, "output does not point to a struct")
	})

	t.Run("surfaces malformed json blobs", func(t *testing.T) {
		v := &V1{handledPrefix: map[string]string{}}
		dataMap, metaMap := hydrationFixture()
		dataMap["/config/iris/profile"] = "{not json"
		var config hydrationConfig

		err := v.handleStruct(&dataMap, &metaMap, &config, "/config/iris")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode json at key /config/iris/profile")
	})

	t.Run("rejects nested paths under scalar-valued maps", func(t *testing.T) {
		v := &V1{handledPrefix: map[string]string{}}
		dataMap := map[string]string{"/config/iris/labels/a/b": "x"}
		metaMap := map[string]string{"/config/iris/labels/a/b": "/config/iris/labels/a/b"}
		var config hydrationConfig

		err := v.handleStruct(&dataMap, &metaMap, &config, "/config/iris")

		assert.EqualError(t, err, "nested path cannot hydrate scalar map values")
	})
}

func TestUpdateMaps(t *testing.T) {
	newV1 := func() *V1 {
		return &V1{
			dataMap: map[string]string{
				"/config/iris/port":      "8080",
				"/config/iris/indexes/a": "1",
				"/config/iris/indexes/b": "2",
			},
			metaMap: map[string]string{
				"/config/iris/port":      "/config/iris/port",
				"/config/iris/indexes/a": "/config/iris/indexes/a",
				"/config/iris/indexes/b": "/config/iris/indexes/b",
			},
		}
	}

	t.Run("put normalizes the key and records the original path", func(t *testing.T) {
		v := newV1()

		v.updateMaps("PUT", "/config/iris/Rate-Limit", "100")

		assert.Equal(t, "100", v.dataMap["/config/iris/ratelimit"])
		assert.Equal(t, "/config/iris/Rate-Limit", v.metaMap["/config/iris/ratelimit"])
	})

	t.Run("delete removes the exact key only", func(t *testing.T) {
		v := newV1()

		v.updateMaps("DELETE", "/config/iris/port", "")

		assert.NotContains(t, v.dataMap, "/config/iris/port")
		assert.Contains(t, v.dataMap, "/config/iris/indexes/a")
	})

	t.Run("delete with trailing slash removes the subtree", func(t *testing.T) {
		v := newV1()

		v.updateMaps("DELETE", "/config/iris/indexes/", "")

		assert.NotContains(t, v.dataMap, "/config/iris/indexes/a")
		assert.NotContains(t, v.dataMap, "/config/iris/indexes/b")
		assert.Contains(t, v.dataMap, "/config/iris/port")
	})
}

func TestParseByteSlice(t *testing.T) {
	t.Run("reads the bracketed rendering", func(t *testing.T) {
		out, err := parseByteSlice("[10 20 30]")

		require.NoError(t, err)
		assert.Equal(t, []byte{10, 20, 30}, out)
	})

	t.Run("empty brackets give an empty slice", func(t *testing.T) {
		out, err := parseByteSlice("[]")

		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("rejects non-numeric parts", func(t *testing.T) {
		_, err := parseByteSlice("[1 x]")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid byte at index 1")
	})
}

func TestCommonOriginalPrefix(t *testing.T) {
	v := &V1{}

	prefix := v.commonOriginalPrefix("/config/iris/Data-Sources/blob/prefix", "/config/iris/datasources")

	assert.Equal(t, "/config/iris/Data-Sources", prefix)
}

func TestRegisterWatchPathCallbackWithEvent(t *testing.T) {
	v := &V1{watchCallbacks: make(map[string][]func(key, value, eventType string) error)}
	callback := func(key, value, eventType string) error { return nil }

	require.NoError(t, v.RegisterWatchPathCallbackWithEvent("/indexes", callback))
	require.NoError(t, v.RegisterWatchPathCallbackWithEvent("/indexes", callback))
	require.NoError(t, v.RegisterWatchPathCallbackWithEvent("/storage", callback))

	assert.Len(t, v.watchCallbacks["/indexes"], 2)
	assert.Len(t, v.watchCallbacks["/storage"], 1)
}
