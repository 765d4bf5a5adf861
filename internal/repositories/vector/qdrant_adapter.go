package vector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"
)

// Collection tuning params arrive as strings from the etcd index config.
// They are operator-controlled, so a value that does not parse is a
// deployment mistake and aborts startup rather than building a collection
// with silent defaults.
func mustAtoi(data string) int {
	n, err := strconv.Atoi(data)
	if err != nil {
		log.Fatal().Msgf("integer parse failed: %v", err)
	}
	return n
}

func paramUint32(params map[string]string, name string) *uint32 {
	n := uint32(mustAtoi(params[name]))
	return &n
}

func paramUint64(params map[string]string, name string) *uint64 {
	n := uint64(mustAtoi(params[name]))
	return &n
}

func mustUint64(data string) uint64 {
	return uint64(mustAtoi(data))
}

func paramBool(params map[string]string, name string) *bool {
	b, err := strconv.ParseBool(params[name])
	if err != nil {
		log.Fatal().Msgf("boolean parse failed: %v", err)
	}
	return &b
}

var distanceByMetric = map[string]qdrant.Distance{
	"COSINE":      qdrant.Distance_Cosine,
	"EUCLIDEAN":   qdrant.Distance_Euclid,
	"DOT_PRODUCT": qdrant.Distance_Dot,
	"MANHATTAN":   qdrant.Distance_Manhattan,
}

func convertToDistance(s string) qdrant.Distance {
	if distance, ok := distanceByMetric[s]; ok {
		return distance
	}
	return qdrant.Distance_UnknownDistance
}

func stringValue(v string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
}

func integerValue(v int64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: v}}
}

func doubleValue(v float64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: v}}
}

func boolValue(v bool) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: v}}
}

func listValue(values []*qdrant.Value) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}
}

// adaptToPayloadValue maps an enriched document field to the qdrant payload
// value type. Comma-separated strings become list payloads so keyword fields
// can hold multiple match targets.
func adaptToPayloadValue(value interface{}) *qdrant.Value {
	switch v := value.(type) {
	case string:
		parts := strings.Split(v, ",")
		if len(parts) == 1 {
			return stringValue(v)
		}
		values := make([]*qdrant.Value, 0, len(parts))
		for _, item := range parts {
			values = append(values, stringValue(item))
		}
		return listValue(values)
	case int:
		return integerValue(int64(v))
	case int64:
		return integerValue(v)
	case float32:
		return doubleValue(float64(v))
	case float64:
		return doubleValue(v)
	case bool:
		return boolValue(v)
	case []int:
		values := make([]*qdrant.Value, 0, len(v))
		for _, item := range v {
			values = append(values, integerValue(int64(item)))
		}
		return listValue(values)
	case []string:
		values := make([]*qdrant.Value, 0, len(v))
		for _, item := range v {
			values = append(values, stringValue(item))
		}
		return listValue(values)
	case []bool:
		values := make([]*qdrant.Value, 0, len(v))
		for _, item := range v {
			values = append(values, boolValue(item))
		}
		return listValue(values)
	default:
		return &qdrant.Value{Kind: &qdrant.Value_NullValue{NullValue: 0}}
	}
}

func GetFieldIndexType(fieldIndexType string) qdrant.FieldType {
	switch strings.ToUpper(fieldIndexType) {
	case "KEYWORD":
		return qdrant.FieldType_FieldTypeKeyword
	case "INTEGER":
		return qdrant.FieldType_FieldTypeInteger
	case "FLOAT":
		return qdrant.FieldType_FieldTypeFloat
	case "BOOLEAN":
		return qdrant.FieldType_FieldTypeBool
	case "DATETIME":
		return qdrant.FieldType_FieldTypeDatetime
	case "GEO":
		return qdrant.FieldType_FieldTypeGeo
	case "TEXT":
		return qdrant.FieldType_FieldTypeText
	default:
		return qdrant.FieldType_FieldTypeKeyword
	}
}

func adaptToStatus(status qdrant.CollectionStatus) string {
	switch status {
	case qdrant.CollectionStatus_Green:
		return "GREEN"
	case qdrant.CollectionStatus_Yellow:
		return "YELLOW"
	case qdrant.CollectionStatus_Red:
		return "RED"
	case qdrant.CollectionStatus_Grey:
		return "GREY"
	default:
		return "UNKNOWN"
	}
}

func getCollectionName(index string, version string) string {
	return index + "_v" + version
}

func parseFiltersToQdrantFilters(request *QueryDetails, payloadSchema map[string]config.Payload) (*qdrant.Filter, error) {
	must := make([]*qdrant.Condition, 0)
	mustNot := make([]*qdrant.Condition, 0)

	for _, filter := range request.MetadataFilters {
		cond, err := conditionForFilter(filter, payloadSchema)
		if err != nil {
			return nil, err
		}
		if cond.IsNegated {
			mustNot = append(mustNot, cond.Condition)
		} else {
			must = append(must, cond.Condition)
		}
	}

	out := &qdrant.Filter{}
	if len(must) > 0 {
		out.Must = must
	}
	if len(mustNot) > 0 {
		out.MustNot = mustNot
	}
	return out, nil
}

func conditionForFilter(filter *Filter, payloadSchema map[string]config.Payload) (*FilterCondition, error) {
	payloadInfo, exists := payloadSchema[filter.Field]
	if !exists {
		return nil, fmt.Errorf("field %s not found in payload schema", filter.Field)
	}
	if err := validateFilter(filter); err != nil {
		return nil, fmt.Errorf("failed to validate filter for field %s with operator %v: %w", filter.Field, filter.Op, err)
	}
	convertedValue, err := convertFilterValuesBySchema(filter.Values, payloadInfo.FieldSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to convert filter values for field %s: %w", filter.Field, err)
	}
	filterCondition, err := buildFilterCondition(filter.Op, filter.Field, convertedValue)
	if err != nil {
		return nil, fmt.Errorf("failed to build condition for field %s with operator %v: %w", filter.Field, filter.Op, err)
	}
	return filterCondition, nil
}

func validateFilter(filter *Filter) error {
	switch filter.Op {
	case IN, NIN, LTE, GTE, LT, GT:
		if len(filter.Values) == 0 {
			return fmt.Errorf("operator %v requires at least one value for field %s", filter.Op, filter.Field)
		}
	case BTW, BTWE:
		if len(filter.Values) < 2 {
			return fmt.Errorf("operator %v requires at least two values for field %s", filter.Op, filter.Field)
		}
	case EX:
		// EX checks presence only
	default:
		return fmt.Errorf("unsupported operator %v for field %s", filter.Op, filter.Field)
	}
	return nil
}

func adaptScoredPoints(result []*qdrant.ScoredPoint) []*SimilarCandidate {
	similarCandidates := make([]*SimilarCandidate, len(result))
	for j, point := range result {
		payload := make(map[string]string, len(point.Payload))
		for key, value := range point.Payload {
			payload[key] = value.GetStringValue()
		}
		similarCandidates[j] = &SimilarCandidate{
			Id:      strconv.FormatUint(point.Id.GetNum(), 10),
			Score:   point.Score,
			Payload: payload,
		}
	}
	return similarCandidates
}

// Results arrive score-descending from qdrant, so first/last bound the batch.
func emitScoreGauges(result []*qdrant.ScoredPoint, bulkRequest *BatchQueryRequest) {
	if len(result) == 0 {
		return
	}
	totalScore := 0.0
	for _, point := range result {
		totalScore += float64(point.Score)
	}
	tags := []string{
		"vector_db_type", "qdrant",
		"index_name", bulkRequest.Index,
		"index_version", strconv.Itoa(bulkRequest.Version),
	}
	metric.Gauge("qdrant_query_similarity_mean_score", totalScore/float64(len(result)), tags)
	metric.Gauge("qdrant_query_similarity_max_score", float64(result[0].Score), tags)
	metric.Gauge("qdrant_query_similarity_min_score", float64(result[len(result)-1].Score), tags)
}

func parseBatchResponse(batchResult []*qdrant.BatchResult, requestList []*QueryDetails, bulkRequest *BatchQueryRequest) *BatchQueryResponse {
	similarCandidatesList := make(map[string][]*SimilarCandidate, len(batchResult))
	for i := range batchResult {
		similarCandidatesList[requestList[i].CacheKey] = adaptScoredPoints(batchResult[i].Result)
		emitScoreGauges(batchResult[i].Result, bulkRequest)
	}
	return &BatchQueryResponse{SimilarCandidatesList: similarCandidatesList}
}
