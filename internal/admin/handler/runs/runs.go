package runs

type Manager interface {
	StartRun(request *StartRunRequest) (*StartRunResponse, error)
	ForceRun(request *StartRunRequest) (*StartRunResponse, error)
	RunByFrequency(request *RunByFrequencyRequest) (*RunByFrequencyResponse, error)
	PromoteIndex(request *PromoteIndexRequest) error
	GetCollectionInfo(request *CollectionInfoRequest) (*CollectionInfoResponse, error)
	PublishCollectionMetrics() error
}
