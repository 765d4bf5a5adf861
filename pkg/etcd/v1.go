package etcd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// V1 hydrates a config struct from an etcd prefix and keeps it current
// through a prefix watcher. Keys match struct fields after lowercasing and
// stripping dashes; metaMap remembers each key's original spelling so map
// keys keep their case.
type V1 struct {
	conn           *clientv3.Client
	basePath       string
	config         interface{}
	appName        string
	handledPrefix  map[string]string
	watchCallbacks map[string][]func(key, value, eventType string) error
	dataMap        map[string]string
	metaMap        map[string]string
	mu             sync.Mutex
}

func newV1Etcd(config interface{}) Etcd {
	return newV1EtcdFromAppName(config, appName)
}

func newV1EtcdFromAppName(config interface{}, configAppName string) Etcd {
	if configAppName == "" || etcdServers == "" {
		log.Panic().Msg("app name or etcd endpoints not configured")
	}
	conn, err := clientv3.New(clientv3.Config{
		Endpoints:           strings.Split(etcdServers, ","),
		Username:            username,
		Password:            password,
		DialTimeout:         timeout,
		DialKeepAliveTime:   timeout,
		PermitWithoutStream: true,
	})
	if err != nil {
		log.Panic().Err(err).Msg("failed to create etcd client")
	}
	client := &V1{
		conn:           conn,
		basePath:       configPath + configAppName,
		config:         config,
		appName:        configAppName,
		watchCallbacks: make(map[string][]func(key, value, eventType string) error),
	}
	if err = client.updateConfig(config); err != nil {
		log.Panic().Err(err).Msg("config hydration from etcd failed")
	}
	if watcherEnabled {
		client.watchPrefix(context.Background(), client.basePath)
	}
	return client
}

func (v *V1) GetConfigInstance() interface{} {
	return v.config
}

func (v *V1) updateConfig(config interface{}) error {
	v.handledPrefix = make(map[string]string)
	dataMap := make(map[string]string)
	metaMap := make(map[string]string)
	if err := fetchChildren(v.basePath, v.conn, dataMap, metaMap); err != nil {
		log.Error().Err(err).Msg("failed to read config tree from etcd")
		return err
	}
	if err := v.handleStruct(&dataMap, &metaMap, config, v.basePath); err != nil {
		log.Error().Err(err).Msg("failed to hydrate config struct from etcd")
		return err
	}
	v.dataMap = dataMap
	v.metaMap = metaMap
	return nil
}

func (v *V1) watchPrefix(ctx context.Context, prefix string) {
	watchChan := v.conn.Watch(ctx, prefix, clientv3.WithPrefix())
	go func() {
		for {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Error().Msgf("watcher panic recovered: %v", r)
					}
				}()
				for resp := range watchChan {
					for _, event := range resp.Events {
						v.applyEvent(prefix, event)
					}
				}
			}()
			// throttle restarts when the watch loop keeps dying
			time.Sleep(5 * time.Second)
		}
	}()
}

// applyEvent folds one watch event into the data maps, re-hydrates the
// config struct, and fires the callbacks registered under the changed path.
func (v *V1) applyEvent(prefix string, event *clientv3.Event) {
	key := string(event.Kv.Key)
	value := string(event.Kv.Value)
	v.handledPrefix = make(map[string]string)
	log.Debug().Msgf("etcd event %s on %s", event.Type.String(), key)
	v.updateMaps(event.Type.String(), key, value)
	if err := v.handleStruct(&v.dataMap, &v.metaMap, v.config, v.basePath); err != nil {
		log.Error().Err(err).Msg("re-hydration failed, watch callbacks skipped")
		return
	}
	for path, callbacks := range v.watchCallbacks {
		if !strings.HasPrefix(key, prefix+path) {
			continue
		}
		for _, callback := range callbacks {
			if err := callback(key, value, event.Type.String()); err != nil {
				log.Error().Err(err).Msgf("watch callback failed for path %s", path)
			}
		}
	}
}

func (v *V1) updateMaps(eventType, nodePath, value string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	key := normalizeKey(nodePath)
	switch eventType {
	case "PUT":
		v.dataMap[key] = value
		v.metaMap[key] = nodePath
	case "DELETE":
		// a key ending in "/" deletes the whole subtree
		if !strings.HasSuffix(key, "/") {
			delete(v.dataMap, key)
			delete(v.metaMap, key)
			return
		}
		for k := range v.dataMap {
			if strings.HasPrefix(k, key) {
				delete(v.dataMap, k)
				delete(v.metaMap, k)
			}
		}
	}
}

// fetchChildren loads every key under path into dataMap keyed by its
// normalized form. Keys with empty values carry no config and are skipped.
func fetchChildren(path string, conn *clientv3.Client, dataMap, metaMap map[string]string) error {
	children, err := conn.Get(context.Background(), path, clientv3.WithPrefix())
	if err != nil {
		log.Error().Err(err).Msgf("failed to read etcd subtree at %s", path)
		return err
	}
	for _, child := range children.Kvs {
		nodePath := string(child.Key)
		if nodePath == path || len(child.Value) == 0 {
			continue
		}
		key := normalizeKey(nodePath)
		dataMap[key] = string(child.Value)
		metaMap[key] = nodePath
	}
	return nil
}

func normalizeKey(nodePath string) string {
	return strings.ToLower(strings.ReplaceAll(nodePath, "-", ""))
}

// handleStruct fills output's fields from dataMap entries under prefix.
// Struct and map fields may arrive either as a JSON blob at the field's own
// path or as deeper path segments; both forms are handled.
func (v *V1) handleStruct(dataMap, metaMap *map[string]string, output interface{}, prefix string) error {
	prefix = normalizeKey(prefix)
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
			// the struct's fields live at deeper paths
			if err := v.handleStruct(dataMap, metaMap, fieldVal.Addr().Interface(), fieldPath); err != nil {
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
			entries := reflect.MakeMap(field.Type)
			entriesPtr := entries.Interface()
			if err := v.handleMap(dataMap, metaMap, &entriesPtr, fieldPath); err != nil {
				return err
			}
			fieldVal.Set(entries)
		case field.Type.Kind() == reflect.Interface && ok:
			fieldVal.Set(reflect.ValueOf(&data).Elem())
		case ok:
			if err := setScalar(fieldVal, data); err != nil {
				return err
			}
		}
	}
	return nil
}

// handleMap fills the map held by output's interface from dataMap entries
// under prefix. Map keys are recovered in their original spelling through
// metaMap; handledPrefix stops sibling keys from hydrating the same nested
// entry twice.
func (v *V1) handleMap(dataMap, metaMap *map[string]string, output interface{}, prefix string) error {
	prefix = normalizeKey(prefix)
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
		relativeKey := strings.TrimPrefix(key, prefix+"/")
		originalPath, ok := (*metaMap)[key]
		if !ok {
			return errors.New("no original path recorded for key " + key)
		}
		mapKey := strings.TrimPrefix(originalPath, v.commonOriginalPrefix(originalPath, prefix)+"/")

		switch {
		case isLeafKey(relativeKey) && valueType.Kind() == reflect.Struct:
			entry := reflect.New(valueType)
			if err := json.Unmarshal([]byte(data), entry.Interface()); err != nil {
				return fmt.Errorf("failed to decode json at key %s: %v", key, err)
			}
			val.SetMapIndex(reflect.ValueOf(mapKey), entry.Elem())
		case isLeafKey(relativeKey) && valueType.Kind() == reflect.Map:
			entry := reflect.MakeMap(valueType)
			entryPtr := entry.Interface()
			if err := json.Unmarshal([]byte(data), &entryPtr); err != nil {
				return fmt.Errorf("failed to decode json at key %s: %v", key, err)
			}
			val.SetMapIndex(reflect.ValueOf(mapKey), entry)
		case isLeafKey(relativeKey):
			entry := reflect.New(valueType).Elem()
			if err := setScalar(entry, data); err != nil {
				return err
			}
			val.SetMapIndex(reflect.ValueOf(mapKey), entry)
		case valueType.Kind() == reflect.Struct:
			childPrefix := prefix + "/" + strings.Split(relativeKey, "/")[0]
			if v.handledPrefix[childPrefix] == childPrefix {
				continue
			}
			v.handledPrefix[childPrefix] = childPrefix
			entry := reflect.New(valueType).Elem()
			if err := v.handleStruct(dataMap, metaMap, entry.Addr().Interface(), childPrefix); err != nil {
				return err
			}
			val.SetMapIndex(reflect.ValueOf(strings.Split(mapKey, "/")[0]), entry)
		case valueType.Kind() == reflect.Map:
			childPrefix := prefix + "/" + strings.Split(relativeKey, "/")[0]
			if v.handledPrefix[childPrefix] == childPrefix {
				continue
			}
			v.handledPrefix[childPrefix] = childPrefix
			entry := reflect.MakeMap(valueType)
			entryPtr := entry.Interface()
			if err := v.handleMap(dataMap, metaMap, &entryPtr, childPrefix); err != nil {
				return err
			}
			val.SetMapIndex(reflect.ValueOf(strings.Split(mapKey, "/")[0]), entry)
		default:
			return errors.New("nested path cannot hydrate scalar map values")
		}
	}
	return nil
}

func setScalar(target reflect.Value, data string) error {
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
	case reflect.Slice:
		if target.Type().Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf("unsupported slice type %s", target.Type())
		}
		raw, err := parseByteSlice(data)
		if err != nil {
			return err
		}
		target.SetBytes(raw)
	default:
		return fmt.Errorf("unsupported scalar kind %s", target.Kind())
	}
	return nil
}

// parseByteSlice reads the "[1 2 3]" rendering etcd holds for []byte values.
func parseByteSlice(input string) ([]byte, error) {
	parts := strings.Fields(strings.Trim(input, "[]"))
	out := make([]byte, len(parts))
	for i, part := range parts {
		value, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid byte at index %d: %v", i, err)
		}
		out[i] = byte(value)
	}
	return out, nil
}

func isLeafKey(key string) bool {
	return !strings.Contains(key, "/")
}

// commonOriginalPrefix returns the leading segments of originalPath whose
// normalized forms match prefix, keeping the original spelling.
func (v *V1) commonOriginalPrefix(originalPath, prefix string) string {
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

func (v *V1) SetValue(path string, value interface{}) error {
	if _, err := v.conn.Put(context.Background(), path, fmt.Sprintf("%v", value)); err != nil {
		log.Error().Msgf("failed to set value at %s: %v", path, err)
		return err
	}
	return nil
}

// SetValues writes every path-value pair, stopping at the first failure.
func (v *V1) SetValues(paths map[string]interface{}) error {
	for path, value := range paths {
		if err := v.SetValue(path, value); err != nil {
			return err
		}
	}
	return nil
}

// CreateNode writes a new leaf at path, refusing to overwrite an existing one.
func (v *V1) CreateNode(path string, value interface{}) error {
	exists, err := v.IsLeafNodeExist(path)
	if err != nil {
		return err
	}
	if exists {
		return errors.New("node already exists at " + path)
	}
	if _, err := v.conn.Put(context.Background(), path, fmt.Sprintf("%v", value)); err != nil {
		log.Error().Msgf("failed to create node %s: %v", path, err)
		return err
	}
	return nil
}

// CreateNodes creates a leaf per path-value pair, stopping at the first failure.
func (v *V1) CreateNodes(paths map[string]interface{}) error {
	for path, value := range paths {
		if err := v.CreateNode(path, value); err != nil {
			return err
		}
	}
	return nil
}

// IsNodeExist reports whether any key exists strictly below path.
func (v *V1) IsNodeExist(path string) (bool, error) {
	response, err := v.conn.Get(context.Background(), path, clientv3.WithPrefix())
	if err != nil {
		return false, err
	}
	for _, kv := range response.Kvs {
		if strings.Contains(string(kv.Key), path+"/") {
			return true, nil
		}
	}
	return false, nil
}

// IsLeafNodeExist reports whether a key exists exactly at path.
func (v *V1) IsLeafNodeExist(path string) (bool, error) {
	response, err := v.conn.Get(context.Background(), path)
	if err != nil {
		return false, err
	}
	return len(response.Kvs) > 0, nil
}

// RegisterWatchPathCallbackWithEvent adds a callback fired with the changed
// key, its value, and the event type whenever the path changes.
func (v *V1) RegisterWatchPathCallbackWithEvent(path string, callback func(key, value, eventType string) error) error {
	v.watchCallbacks[path] = append(v.watchCallbacks[path], callback)
	return nil
}
