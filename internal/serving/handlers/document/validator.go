package document

func validateFetchRequest(request *FetchRequest) (bool, string) {
	if len(request.Ids) == 0 {
		return false, "ids is required"
	}
	for _, id := range request.Ids {
		if id == "" {
			return false, "ids cannot contain empty strings"
		}
	}
	return true, ""
}

func validateScoresRequest(request *ScoresRequest) (bool, string) {
	if len(request.Vector) == 0 {
		return false, "vector is required"
	}
	if len(request.Ids) == 0 {
		return false, "at least one id is required"
	}
	for _, id := range request.Ids {
		if id == "" {
			return false, "ids cannot contain empty strings"
		}
	}
	return true, ""
}
