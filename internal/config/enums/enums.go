package enums

// RunMode controls how an indexer materializes documents into the target
// index. FULL builds a fresh collection version and promotes it once
// indexing settles, INCREMENTAL applies changes to the live read version.
type RunMode string

const (
	FULL        RunMode = "FULL"
	INCREMENTAL RunMode = "INCREMENTAL"
)

// RunState tracks an indexer run through the orchestration state machine.
type RunState string

const (
	RUN_STARTED                     RunState = "RUN_STARTED"
	DISPATCH_COMPLETED              RunState = "DISPATCH_COMPLETED"
	INDEXING_STARTED                RunState = "INDEXING_STARTED"
	INDEXING_IN_PROGRESS            RunState = "INDEXING_IN_PROGRESS"
	INDEXING_COMPLETED_WITH_PROMOTE RunState = "INDEXING_COMPLETED_WITH_PROMOTE"
	VERSION_PROMOTED                RunState = "VERSION_PROMOTED"
	INDEXING_COMPLETED              RunState = "INDEXING_COMPLETED"
	COMPLETED                       RunState = "COMPLETED"
	FAILED                          RunState = "FAILED"
)

type VectorDbType string

const (
	QDRANT VectorDbType = "QDRANT"
)

// DistanceMetric is the similarity function configured on an index's
// vector profile.
type DistanceMetric string

const (
	COSINE      DistanceMetric = "COSINE"
	EUCLIDEAN   DistanceMetric = "EUCLIDEAN"
	DOT_PRODUCT DistanceMetric = "DOT_PRODUCT"
	MANHATTAN   DistanceMetric = "MANHATTAN"
)
