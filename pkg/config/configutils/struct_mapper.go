package configutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// visitedPrefixes memoizes map prefixes already expanded during recursion so
// sibling keys under the same prefix are not descended twice.
var visitedPrefixes = make(map[string]bool)

// MapToStruct hydrates output from a flattened path map. dataMap keys are
// normalized slash paths ("/database/dbhost") and metaMap maps each
// normalized path back to its original spelling ("/database/db-host").
// Struct and map fields may arrive either as a JSON blob at a terminal path
// or as deeper path segments; both forms are handled.
func MapToStruct(dataMap, metaMap *map[string]string, output interface{}, prefix string) error {
	log.Debug().Msgf("hydrating struct at prefix %s", prefix)
	prefix = strings.ToLower(strings.ReplaceAll(prefix, "-", ""))

	valPtr := reflect.ValueOf(output)
	if valPtr.Kind() != reflect.Ptr || valPtr.IsNil() {
		return errors.New("output is not a non-nil pointer")
	}
	val := valPtr.Elem()
	if val.Kind() != reflect.Struct {
		return errors.New("output does not point to a struct")
	}

	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		fieldVal := val.Field(i)
		fieldPath := strings.ToLower(prefix + "/" + field.Name)
		data, ok := (*dataMap)[fieldPath]

		switch {
		case field.Type.Kind() == reflect.Struct && !ok:
			// No value at this path, the struct's fields live deeper.
			if err := MapToStruct(dataMap, metaMap, fieldVal.Addr().Interface(), fieldPath); err != nil {
				return err
			}
		case field.Type.Kind() == reflect.Struct:
			if err := json.Unmarshal([]byte(data), fieldVal.Addr().Interface()); err != nil {
				return fmt.Errorf("failed to decode json at key %s: %v", fieldPath, err)
			}
		case field.Type.Kind() == reflect.Map && ok:
			if err := json.Unmarshal([]byte(data), fieldVal.Addr().Interface()); err != nil {
				return fmt.Errorf("failed to decode json at key %s: %v", fieldPath, err)
			}
		case field.Type.Kind() == reflect.Map:
			// Map entries live at deeper paths under this field.
			entries := reflect.MakeMap(field.Type)
			entriesPtr := entries.Interface()
			if err := mapToMap(dataMap, metaMap, &entriesPtr, fieldPath); err != nil {
				return err
			}
			fieldVal.Set(entries)
		case field.Type.Kind() == reflect.Interface && ok:
			fieldVal.Set(reflect.ValueOf(&data).Elem())
		case ok:
			if err := setScalarFromString(fieldVal, data); err != nil {
				return err
			}
		}
	}
	return nil
}

func mapToMap(dataMap, metaMap *map[string]string, output interface{}, prefix string) error {
	log.Debug().Msgf("hydrating map at prefix %s", prefix)
	prefix = strings.ToLower(strings.ReplaceAll(prefix, "-", ""))

	valPtr := reflect.ValueOf(output)
	if valPtr.Kind() != reflect.Ptr || valPtr.IsNil() {
		return errors.New("output is not a non-nil pointer")
	}
	valInterface := valPtr.Elem()
	if valInterface.Kind() != reflect.Interface || valInterface.Elem().Kind() != reflect.Map {
		return errors.New("output does not point to an interface holding a map")
	}

	val := valInterface.Elem()
	valueType := val.Type().Elem()

	for key, data := range *dataMap {
		if !strings.HasPrefix(key, prefix) {
			continue
		}

		// relativePath is the key under prefix; mapKey is the same segment
		// in its original spelling, recovered through metaMap.
		relativePath := strings.TrimPrefix(key, prefix+"/")
		originalPath, ok := (*metaMap)[key]
		if !ok {
			return errors.New("no original path for key " + key + " in metaMap")
		}
		mapKey := strings.TrimPrefix(originalPath, originalPrefixOf(originalPath, prefix)+"/")

		switch {
		case isLeafPath(relativePath) && (valueType.Kind() == reflect.Struct || valueType.Kind() == reflect.Map):
			// JSON blob at a terminal path.
			entry := reflect.New(valueType)
			if err := json.Unmarshal([]byte(data), entry.Interface()); err != nil {
				return fmt.Errorf("failed to decode json at key %s: %v", key, err)
			}
			val.SetMapIndex(reflect.ValueOf(mapKey), entry.Elem())
			delete(*dataMap, key)
		case isLeafPath(relativePath):
			entry := reflect.New(valueType).Elem()
			if err := setScalarFromString(entry, data); err != nil {
				return err
			}
			val.SetMapIndex(reflect.ValueOf(mapKey), entry)
			delete(*dataMap, key)
		case valueType.Kind() == reflect.Struct:
			childPrefix := prefix + "/" + strings.Split(relativePath, "/")[0]
			if visitedPrefixes[childPrefix] {
				continue
			}
			visitedPrefixes[childPrefix] = true
			entry := reflect.New(valueType).Elem()
			if err := MapToStruct(dataMap, metaMap, entry.Addr().Interface(), childPrefix); err != nil {
				return err
			}
			val.SetMapIndex(reflect.ValueOf(strings.Split(mapKey, "/")[0]), entry)
		case valueType.Kind() == reflect.Map:
			childPrefix := prefix + "/" + strings.Split(relativePath, "/")[0]
			if visitedPrefixes[childPrefix] {
				continue
			}
			visitedPrefixes[childPrefix] = true
			entry := reflect.MakeMap(valueType)
			entryPtr := entry.Interface()
			if err := mapToMap(dataMap, metaMap, &entryPtr, childPrefix); err != nil {
				return err
			}
			val.SetMapIndex(reflect.ValueOf(strings.Split(mapKey, "/")[0]), entry)
		default:
			// A nested path can only materialize into a struct or map value.
			return errors.New("nested path cannot hydrate scalar map values")
		}
	}
	return nil
}

func setScalarFromString(target reflect.Value, data string) error {
	switch target.Kind() {
	case reflect.String:
		target.SetString(data)
	case reflect.Bool:
		parsed, err := strconv.ParseBool(data)
		if err != nil {
			return err
		}
		target.SetBool(parsed)
	case reflect.Float32, reflect.Float64:
		parsed, err := strconv.ParseFloat(data, target.Type().Bits())
		if err != nil {
			return err
		}
		target.SetFloat(parsed)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		parsed, err := strconv.ParseInt(data, 10, target.Type().Bits())
		if err != nil {
			return err
		}
		target.SetInt(parsed)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		parsed, err := strconv.ParseUint(data, 10, target.Type().Bits())
		if err != nil {
			return err
		}
		target.SetUint(parsed)
	}
	return nil
}

// originalPrefixOf returns the leading segments of originalPath that
// normalize to prefix, preserving their original spelling.
func originalPrefixOf(originalPath, prefix string) string {
	originalSegments := strings.Split(strings.TrimPrefix(originalPath, "/"), "/")
	prefixSegments := strings.Split(strings.TrimPrefix(prefix, "/"), "/")
	var common []string
	for i, segment := range originalSegments {
		if i >= len(prefixSegments) || !strings.EqualFold(strings.ReplaceAll(segment, "-", ""), prefixSegments[i]) {
			break
		}
		common = append(common, segment)
	}
	return "/" + strings.Join(common, "/")
}

func isLeafPath(path string) bool {
	return !strings.Contains(path, "/")
}
