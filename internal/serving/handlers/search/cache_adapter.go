package search

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"strconv"
	"strings"

	"github.com/Meesho/BharatMLStack/iris/internal/repositories"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/vector"
)

const (
	SearchPrefix      = "sr"
	CacheKeySeparator = ":"
	CacheVersion      = "V1"
)

func GetCacheKeysForVectors(request SearchStructRequest, readVersion int) map[string]repositories.CacheStruct {
	cacheKeys := make(map[string]repositories.CacheStruct, len(request.Vectors))
	for index, queryVector := range request.Vectors {
		key := buildDetailedCacheKey(SearchPrefix, request.Index, strconv.Itoa(readVersion), strconv.Itoa(request.Limit), getHashForVector(queryVector), getHash(request.Filters[index]), getHash(request.Select))
		if _, ok := cacheKeys[key]; ok {
			cacheStruct := cacheKeys[key]
			cacheStruct.Index = append(cacheStruct.Index, index)
			cacheKeys[key] = cacheStruct
		} else {
			cacheKeys[key] = repositories.CacheStruct{
				Index:        []int{index},
				SearchVector: queryVector,
				Filters:      request.Filters[index],
			}
		}
	}
	return cacheKeys
}

func GetCacheKeysForTexts(request SearchStructRequest, readVersion int) map[string]repositories.CacheStruct {
	cacheKeys := make(map[string]repositories.CacheStruct, len(request.Texts))
	for index, text := range request.Texts {
		key := buildDetailedCacheKey(SearchPrefix, request.Index, strconv.Itoa(readVersion), strconv.Itoa(request.Limit), getHash(text), getHash(request.Filters[index]), getHash(request.Select))
		if _, ok := cacheKeys[key]; ok {
			cacheStruct := cacheKeys[key]
			cacheStruct.Index = append(cacheStruct.Index, index)
			cacheKeys[key] = cacheStruct
		} else {
			cacheKeys[key] = repositories.CacheStruct{
				Index:   []int{index},
				Text:    text,
				Filters: request.Filters[index],
			}
		}
	}
	return cacheKeys
}

func GetCacheKeysForDocumentIds(request SearchStructRequest, readVersion int) map[string]repositories.CacheStruct {
	cacheKeys := make(map[string]repositories.CacheStruct, len(request.DocumentIds))
	for index, id := range request.DocumentIds {
		key := buildDetailedCacheKey(SearchPrefix, request.Index, strconv.Itoa(readVersion), strconv.Itoa(request.Limit), id, getHash(request.Filters[index]), getHash(request.Select))
		if _, ok := cacheKeys[key]; ok {
			cacheStruct := cacheKeys[key]
			cacheStruct.Index = append(cacheStruct.Index, index)
			cacheKeys[key] = cacheStruct
		} else {
			cacheKeys[key] = repositories.CacheStruct{
				Index:      []int{index},
				DocumentId: id,
				Filters:    request.Filters[index],
			}
		}
	}
	return cacheKeys
}

// getHashForVector hashes the raw float bits with FNV, which is cheap enough
// to run on the hot path.
func getHashForVector(queryVector []float32) string {
	if len(queryVector) == 0 {
		return "e"
	}
	hasher := fnv.New64a()
	var buf [4]byte
	for _, v := range queryVector {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		hasher.Write(buf[:])
	}
	return hashToHexString(hasher.Sum64())
}

func getHash(any interface{}) string {
	if any == nil {
		return "e"
	}
	switch v := any.(type) {
	case []*vector.Filter:
		if len(v) == 0 {
			return "e"
		}
		hasher := fnv.New64a()
		for _, filter := range v {
			if filter != nil {
				hasher.Write([]byte(filter.Field))
				hasher.Write([]byte(filter.Op))
				for _, value := range filter.Values {
					hasher.Write([]byte(value))
				}
			}
		}
		return hashToHexString(hasher.Sum64())

	case []string:
		if len(v) == 0 {
			return "e"
		}
		hasher := fnv.New64a()
		for _, s := range v {
			hasher.Write([]byte(s))
		}
		return hashToHexString(hasher.Sum64())

	case string:
		if v == "" {
			return "e"
		}
		hasher := fnv.New64a()
		hasher.Write([]byte(v))
		return hashToHexString(hasher.Sum64())

	default:
		hasher := fnv.New64a()
		hasher.Write([]byte("unknown"))
		return hashToHexString(hasher.Sum64())
	}
}

func hashToHexString(hash uint64) string {
	const hexChars = "0123456789abcdef"
	result := make([]byte, 16) // 64 bits = 16 hex chars
	for i := 0; i < 8; i++ {
		b := byte(hash >> (8 * (7 - i)))
		result[i*2] = hexChars[b>>4]
		result[i*2+1] = hexChars[b&0x0f]
	}
	return string(result)
}

func buildDetailedCacheKey(prefix, index, version, limit, id, filter, selected string) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(index) + len(version) + len(limit) + len(id) +
		len(filter) + len(selected) + len(CacheVersion) + 8)
	b.WriteString(prefix)
	b.WriteString(CacheKeySeparator)
	b.WriteString(index)
	b.WriteString(CacheKeySeparator)
	b.WriteString(version)
	b.WriteString(CacheKeySeparator)
	b.WriteString(limit)
	b.WriteString(CacheKeySeparator)
	b.WriteString(id)
	b.WriteString(CacheKeySeparator)
	b.WriteString(filter)
	b.WriteString(CacheKeySeparator)
	b.WriteString(selected)
	b.WriteString(CacheKeySeparator)
	b.WriteString(CacheVersion)
	return b.String()
}
