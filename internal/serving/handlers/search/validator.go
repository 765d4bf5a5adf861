package search

import (
	"fmt"

	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/vector"
)

func validateQueryRequest(request *QueryRequest) (bool, string) {
	textsLen := len(request.Texts)
	vectorsLen := len(request.Vectors)
	documentIdsLen := len(request.DocumentIds)
	filtersLen := len(request.Filters)

	// exactly one query source should be present
	sources := 0
	if textsLen > 0 {
		sources++
	}
	if vectorsLen > 0 {
		sources++
	}
	if documentIdsLen > 0 {
		sources++
	}
	if sources == 0 {
		return false, "texts, vectors or document_ids is required"
	}
	if sources > 1 {
		return false, "only one of texts, vectors or document_ids can be set"
	}

	// limit should be a positive number
	if request.Limit <= 0 {
		return false, "limit is required"
	}
	if request.Offset < 0 {
		return false, "offset cannot be negative"
	}

	for _, text := range request.Texts {
		if text == "" {
			return false, "texts cannot contain empty strings"
		}
	}
	for _, id := range request.DocumentIds {
		if id == "" {
			return false, "document_ids cannot contain empty strings"
		}
	}

	// either global_filters or filters should be used, not both
	if filtersLen > 0 && len(request.GlobalFilters) > 0 {
		return false, "either global_filters or filters should be used, not both"
	}

	// if filters are used then a filter list should be present for every query
	numQueries := textsLen + vectorsLen + documentIdsLen
	if filtersLen > 0 && filtersLen != numQueries {
		return false, "filters should be present for each query"
	}

	return true, ""
}

// validateFilters checks filter operators and fields against the payload
// schema registered for the index.
func validateFilters(filters [][]*vector.Filter, indexConfig *config.Index) (bool, string) {
	for _, queryFilters := range filters {
		for _, filter := range queryFilters {
			if filter == nil {
				continue
			}
			if filter.Field == "" {
				return false, "filter field is required"
			}
			if !filter.Op.IsValid() {
				return false, fmt.Sprintf("unsupported filter op %s for field %s", filter.Op, filter.Field)
			}
			if _, ok := indexConfig.Payload[filter.Field]; !ok {
				return false, fmt.Sprintf("filter field %s is not in the payload schema", filter.Field)
			}
			switch filter.Op {
			case vector.BTW, vector.BTWE:
				if len(filter.Values) != 2 {
					return false, fmt.Sprintf("filter op %s requires exactly two values", filter.Op)
				}
			case vector.EX:
			default:
				if len(filter.Values) == 0 {
					return false, fmt.Sprintf("filter op %s requires at least one value", filter.Op)
				}
			}
		}
	}
	return true, ""
}
