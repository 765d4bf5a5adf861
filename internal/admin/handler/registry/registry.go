package registry

type Manager interface {
	RegisterStore(*CreateStoreRequest) error
	RegisterFrequency(request *CreateFrequencyRequest) error
	RegisterDataSource(*RegisterDataSourceRequest) error
	RegisterSkillset(*RegisterSkillsetRequest) error
	ProbeSkillset(*ProbeSkillsetRequest) (*ProbeSkillsetResponse, error)
	RegisterIndex(*RegisterIndexRequest) error
	RegisterIndexer(*RegisterIndexerRequest) error
	StageDocuments(dataSource string, request *StageDocumentsRequest) (*StageDocumentsResponse, error)
}
