package document

type FetchRequest struct {
	Ids []string `json:"ids"`
}

type DocumentRecord struct {
	Id       string    `json:"id"`
	Title    string    `json:"title,omitempty"`
	ImageUrl string    `json:"image_url,omitempty"`
	Vector   []float32 `json:"vector,omitempty"`
}

type FetchResponse struct {
	Index     string            `json:"index"`
	Documents []*DocumentRecord `json:"documents"`
}

type ScoresRequest struct {
	Vector []float32 `json:"vector"`
	Ids    []string  `json:"ids"`
}

type CandidateScore struct {
	Id    string  `json:"id"`
	Score float32 `json:"score"`
}

type ScoresResponse struct {
	Index  string            `json:"index"`
	Scores []*CandidateScore `json:"scores"`
}
