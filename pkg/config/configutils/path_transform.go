package configutils

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// NestedMapToPathMap flattens a nested map into slash separated paths, so
// {"database": {"host": "x"}} becomes {"/database/host": "x"}. Leaf values
// are stringified.
func NestedMapToPathMap(input map[string]interface{}, currentPath string, result map[string]string) {
	for key, value := range input {
		childPath := currentPath + "/" + key
		if nested, ok := value.(map[string]interface{}); ok {
			NestedMapToPathMap(nested, childPath, result)
			continue
		}
		result[childPath] = stringify(value)
	}
}

// NormalizePathMap lowercases every key in dataMap and strips dashes,
// recording the normalized-to-original mapping in metaMap so the original
// spelling can be recovered later.
func NormalizePathMap(dataMap, metaMap map[string]string) {
	keys := make([]string, 0, len(dataMap))
	for key := range dataMap {
		keys = append(keys, key)
	}
	for _, key := range keys {
		normalized := strings.ToLower(strings.ReplaceAll(key, "-", ""))
		value := dataMap[key]
		dataMap[normalized] = value
		metaMap[normalized] = key
		if normalized != key {
			delete(dataMap, key)
		}
	}
}

// stringify renders scalars with strconv and falls back to JSON for
// composite values.
func stringify(value interface{}) string {
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			log.Error().Err(err).Msgf("failed to marshal %v to json", v)
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
