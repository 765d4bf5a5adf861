package vector

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
)

func TestGetCollectionName(t *testing.T) {
	assert.Equal(t, "products_v1", getCollectionName("products", "1"))
	assert.Equal(t, "catalog_v12", getCollectionName("catalog", "12"))
}

func TestConvertToDistance(t *testing.T) {
	tests := []struct {
		input    string
		expected qdrant.Distance
	}{
		{"COSINE", qdrant.Distance_Cosine},
		{"EUCLIDEAN", qdrant.Distance_Euclid},
		{"DOT_PRODUCT", qdrant.Distance_Dot},
		{"MANHATTAN", qdrant.Distance_Manhattan},
		{"DOT", qdrant.Distance_UnknownDistance},
		{"cosine", qdrant.Distance_UnknownDistance},
		{"", qdrant.Distance_UnknownDistance},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, convertToDistance(tt.input), "input: %s", tt.input)
	}
}

func TestGetFieldIndexType(t *testing.T) {
	tests := []struct {
		input    string
		expected qdrant.FieldType
	}{
		{"KEYWORD", qdrant.FieldType_FieldTypeKeyword},
		{"keyword", qdrant.FieldType_FieldTypeKeyword},
		{"BOOLEAN", qdrant.FieldType_FieldTypeBool},
		{"INTEGER", qdrant.FieldType_FieldTypeInteger},
		{"integer", qdrant.FieldType_FieldTypeInteger},
		{"FLOAT", qdrant.FieldType_FieldTypeFloat},
		{"DATETIME", qdrant.FieldType_FieldTypeDatetime},
		{"GEO", qdrant.FieldType_FieldTypeGeo},
		{"TEXT", qdrant.FieldType_FieldTypeText},
		{"unknown", qdrant.FieldType_FieldTypeKeyword},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, GetFieldIndexType(tt.input), "input: %s", tt.input)
	}
}

func TestAdaptToStatus(t *testing.T) {
	assert.Equal(t, "GREEN", adaptToStatus(qdrant.CollectionStatus_Green))
	assert.Equal(t, "YELLOW", adaptToStatus(qdrant.CollectionStatus_Yellow))
	assert.Equal(t, "RED", adaptToStatus(qdrant.CollectionStatus_Red))
	assert.Equal(t, "GREY", adaptToStatus(qdrant.CollectionStatus_Grey))
	assert.Equal(t, "UNKNOWN", adaptToStatus(qdrant.CollectionStatus_UnknownCollectionStatus))
}

func TestParamUint32(t *testing.T) {
	params := map[string]string{"shard_number": "6"}
	result := paramUint32(params, "shard_number")
	assert.Equal(t, uint32(6), *result)
}

func TestParamUint64(t *testing.T) {
	params := map[string]string{"max_segment_size_in_mb": "204800"}
	result := paramUint64(params, "max_segment_size_in_mb")
	assert.Equal(t, uint64(204800), *result)
}

func TestMustUint64(t *testing.T) {
	assert.Equal(t, uint64(42), mustUint64("42"))
	assert.Equal(t, uint64(0), mustUint64("0"))
}

func TestParamBool(t *testing.T) {
	params := map[string]string{"on_disk_payload": "true", "other": "false"}
	assert.True(t, *paramBool(params, "on_disk_payload"))
	assert.False(t, *paramBool(params, "other"))
}

func TestAdaptToPayloadValue_SingleString(t *testing.T) {
	value := adaptToPayloadValue("hello")
	assert.Equal(t, "hello", value.GetStringValue())
}

func TestAdaptToPayloadValue_CommaSeparatedString(t *testing.T) {
	value := adaptToPayloadValue("a,b,c")
	list := value.GetListValue()
	assert.NotNil(t, list)
	assert.Len(t, list.Values, 3)
	assert.Equal(t, "a", list.Values[0].GetStringValue())
	assert.Equal(t, "c", list.Values[2].GetStringValue())
}

func TestAdaptToPayloadValue_Int(t *testing.T) {
	value := adaptToPayloadValue(42)
	assert.Equal(t, int64(42), value.GetIntegerValue())
}

func TestAdaptToPayloadValue_Int64(t *testing.T) {
	value := adaptToPayloadValue(int64(99))
	assert.Equal(t, int64(99), value.GetIntegerValue())
}

func TestAdaptToPayloadValue_Float32(t *testing.T) {
	value := adaptToPayloadValue(float32(1.5))
	assert.InDelta(t, 1.5, value.GetDoubleValue(), 0.001)
}

func TestAdaptToPayloadValue_Float64(t *testing.T) {
	value := adaptToPayloadValue(float64(2.75))
	assert.InDelta(t, 2.75, value.GetDoubleValue(), 0.001)
}

func TestAdaptToPayloadValue_Bool(t *testing.T) {
	value := adaptToPayloadValue(true)
	assert.True(t, value.GetBoolValue())
}

func TestAdaptToPayloadValue_IntSlice(t *testing.T) {
	value := adaptToPayloadValue([]int{1, 2})
	list := value.GetListValue()
	assert.Len(t, list.Values, 2)
	assert.Equal(t, int64(1), list.Values[0].GetIntegerValue())
	assert.Equal(t, int64(2), list.Values[1].GetIntegerValue())
}

func TestAdaptToPayloadValue_StringSlice(t *testing.T) {
	value := adaptToPayloadValue([]string{"x", "y"})
	list := value.GetListValue()
	assert.Len(t, list.Values, 2)
	assert.Equal(t, "x", list.Values[0].GetStringValue())
}

func TestAdaptToPayloadValue_BoolSlice(t *testing.T) {
	value := adaptToPayloadValue([]bool{true, false})
	list := value.GetListValue()
	assert.Len(t, list.Values, 2)
	assert.True(t, list.Values[0].GetBoolValue())
	assert.False(t, list.Values[1].GetBoolValue())
}

func TestAdaptToPayloadValue_Unknown(t *testing.T) {
	value := adaptToPayloadValue(struct{}{})
	assert.NotNil(t, value.GetKind())
	_, isNull := value.GetKind().(*qdrant.Value_NullValue)
	assert.True(t, isNull)
}

func scoredPoint(id uint64, score float32, payload map[string]*qdrant.Value) *qdrant.ScoredPoint {
	return &qdrant.ScoredPoint{
		Id:      &qdrant.PointId{PointIdOptions: &qdrant.PointId_Num{Num: id}},
		Score:   score,
		Payload: payload,
	}
}

func TestParseBatchResponse_SingleQuery(t *testing.T) {
	batchResult := []*qdrant.BatchResult{
		{
			Result: []*qdrant.ScoredPoint{
				scoredPoint(101, 0.95, map[string]*qdrant.Value{
					"title": {Kind: &qdrant.Value_StringValue{StringValue: "red shoes"}},
				}),
				scoredPoint(102, 0.85, nil),
			},
		},
	}
	requestList := []*QueryDetails{{CacheKey: "q1"}}
	bulkRequest := &BatchQueryRequest{Index: "products", Version: 1}

	response := parseBatchResponse(batchResult, requestList, bulkRequest)

	candidates := response.SimilarCandidatesList["q1"]
	assert.Len(t, candidates, 2)
	assert.Equal(t, "101", candidates[0].Id)
	assert.InDelta(t, 0.95, candidates[0].Score, 0.001)
	assert.Equal(t, "red shoes", candidates[0].Payload["title"])
	assert.Equal(t, "102", candidates[1].Id)
}

func TestParseBatchResponse_EmptyResult(t *testing.T) {
	batchResult := []*qdrant.BatchResult{
		{Result: []*qdrant.ScoredPoint{}},
	}
	requestList := []*QueryDetails{{CacheKey: "q1"}}
	bulkRequest := &BatchQueryRequest{Index: "products", Version: 1}

	response := parseBatchResponse(batchResult, requestList, bulkRequest)

	candidates := response.SimilarCandidatesList["q1"]
	assert.Empty(t, candidates)
}

func TestParseBatchResponse_MultipleQueries(t *testing.T) {
	batchResult := []*qdrant.BatchResult{
		{Result: []*qdrant.ScoredPoint{scoredPoint(1, 0.9, nil)}},
		{Result: []*qdrant.ScoredPoint{scoredPoint(2, 0.8, nil), scoredPoint(3, 0.7, nil)}},
	}
	requestList := []*QueryDetails{{CacheKey: "q1"}, {CacheKey: "q2"}}
	bulkRequest := &BatchQueryRequest{Index: "products", Version: 2}

	response := parseBatchResponse(batchResult, requestList, bulkRequest)

	assert.Len(t, response.SimilarCandidatesList, 2)
	assert.Len(t, response.SimilarCandidatesList["q1"], 1)
	assert.Len(t, response.SimilarCandidatesList["q2"], 2)
	assert.Equal(t, "3", response.SimilarCandidatesList["q2"][1].Id)
}
