package indexer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AdaptToPayloadValue coerces a raw string field to the typed value the index
// payload schema declares. A `[...]` value is treated as a JSON array of the
// schema's element type.
func AdaptToPayloadValue(rawValue string, fieldSchema string) (interface{}, error) {
	rawValue = strings.TrimSpace(rawValue)
	fieldSchema = strings.ToLower(strings.TrimSpace(fieldSchema))

	isArray := strings.HasPrefix(rawValue, "[") && strings.HasSuffix(rawValue, "]")

	if rawValue == "" {
		switch fieldSchema {
		case "keyword":
			if isArray {
				return []string{""}, nil
			}
			return "", nil
		case "integer":
			if isArray {
				return []int{0}, nil
			}
			return 0, nil
		case "boolean":
			if isArray {
				return []bool{false}, nil
			}
			return false, nil
		default:
			return nil, fmt.Errorf("unsupported field_schema for empty value: %s", fieldSchema)
		}
	}

	switch fieldSchema {
	case "integer":
		if isArray {
			var v []int
			if err := json.Unmarshal([]byte(rawValue), &v); err != nil {
				return nil, err
			}
			return v, nil
		}
		return strconv.Atoi(rawValue)

	case "keyword":
		if isArray {
			var v []string
			if err := json.Unmarshal([]byte(rawValue), &v); err != nil {
				return nil, err
			}
			return v, nil
		}
		return rawValue, nil

	case "boolean":
		if isArray {
			var v []bool
			if err := json.Unmarshal([]byte(rawValue), &v); err != nil {
				return nil, err
			}
			return v, nil
		}
		return strconv.ParseBool(rawValue)

	default:
		return nil, fmt.Errorf("unsupported field_schema: %s", fieldSchema)
	}
}
