package vector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"
)

func buildMatchFilterCondition(field string, match *qdrant.Match, negated bool) *FilterCondition {
	condition := &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{Key: field, Match: match},
		},
	}
	return &FilterCondition{Condition: condition, IsNegated: negated}
}

func buildRangeFilterCondition(field string, r *qdrant.Range) *FilterCondition {
	condition := &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{Key: field, Range: r},
		},
	}
	return &FilterCondition{Condition: condition, IsNegated: false}
}

func buildIsNullFilterCondition(field string, negated bool) *FilterCondition {
	condition := &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_IsNull{
			IsNull: &qdrant.IsNullCondition{Key: field},
		},
	}
	return &FilterCondition{Condition: condition, IsNegated: negated}
}

// rangeForOperator maps a relational operator onto a qdrant range clause.
// BTW/BTWE read two values, the rest read one.
func rangeForOperator(operator FilterOperator, values []float64) (*qdrant.Range, bool) {
	switch operator {
	case LTE:
		return &qdrant.Range{Lte: &values[0]}, true
	case GTE:
		return &qdrant.Range{Gte: &values[0]}, true
	case LT:
		return &qdrant.Range{Lt: &values[0]}, true
	case GT:
		return &qdrant.Range{Gt: &values[0]}, true
	case BTW:
		return &qdrant.Range{Gt: &values[0], Lt: &values[1]}, true
	case BTWE:
		return &qdrant.Range{Gte: &values[0], Lte: &values[1]}, true
	default:
		return nil, false
	}
}

func buildFilterCondition(operator FilterOperator, field string, value interface{}) (*FilterCondition, error) {
	log.Debug().Msgf("building %v condition on field %s", operator, field)
	switch v := value.(type) {
	case []string:
		return buildStringFilterCondition(operator, field, v)
	case []int64:
		return buildIntFilterCondition(operator, field, v)
	case []float64:
		return buildFloatFilterCondition(operator, field, v)
	default:
		return nil, fmt.Errorf("unexpected value type %T in filter for field %s", value, field)
	}
}

func buildStringFilterCondition(operator FilterOperator, field string, values []string) (*FilterCondition, error) {
	switch operator {
	case IN, NIN:
		match := &qdrant.Match{MatchValue: &qdrant.Match_Keywords{Keywords: &qdrant.RepeatedStrings{Strings: values}}}
		return buildMatchFilterCondition(field, match, operator == NIN), nil
	case EX:
		return buildIsNullFilterCondition(field, true), nil
	default:
		return nil, fmt.Errorf("unsupported operator %v for string type on field %s", operator, field)
	}
}

func buildIntFilterCondition(operator FilterOperator, field string, values []int64) (*FilterCondition, error) {
	switch operator {
	case IN, NIN:
		match := &qdrant.Match{MatchValue: &qdrant.Match_Integers{Integers: &qdrant.RepeatedIntegers{Integers: values}}}
		return buildMatchFilterCondition(field, match, operator == NIN), nil
	case EX:
		return buildIsNullFilterCondition(field, true), nil
	}
	floats := make([]float64, len(values))
	for i, v := range values {
		floats[i] = float64(v)
	}
	if r, ok := rangeForOperator(operator, floats); ok {
		return buildRangeFilterCondition(field, r), nil
	}
	return nil, fmt.Errorf("unsupported operator %v for int type on field %s", operator, field)
}

func buildFloatFilterCondition(operator FilterOperator, field string, values []float64) (*FilterCondition, error) {
	if operator == EX {
		return buildIsNullFilterCondition(field, true), nil
	}
	if r, ok := rangeForOperator(operator, values); ok {
		return buildRangeFilterCondition(field, r), nil
	}
	return nil, fmt.Errorf("unsupported operator %v for float type on field %s", operator, field)
}

// convertFilterValuesBySchema coerces the string-typed filter values into
// the native type of the payload field. Unrecognised schemas pass through
// as strings.
func convertFilterValuesBySchema(values []string, fieldSchema string) (interface{}, error) {
	switch strings.ToLower(fieldSchema) {
	case "integer":
		intValues := make([]int64, len(values))
		for i, val := range values {
			parsed, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse integer value %q as %s: %w", val, fieldSchema, err)
			}
			intValues[i] = parsed
		}
		return intValues, nil
	case "float":
		floatValues := make([]float64, len(values))
		for i, val := range values {
			parsed, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse float value %q as %s: %w", val, fieldSchema, err)
			}
			floatValues[i] = parsed
		}
		return floatValues, nil
	default:
		return values, nil
	}
}
