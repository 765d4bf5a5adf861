package workflow

import "github.com/Meesho/BharatMLStack/iris/internal/config/enums"

// RunStateExecutorPayload is the message the run state machine passes to
// itself over the run state topic. One message per state transition.
type RunStateExecutorPayload struct {
	Indexer  string         `json:"indexer"`
	Index    string         `json:"index"`
	Version  int            `json:"version"`
	RunMode  enums.RunMode  `json:"run_mode"`
	RunState enums.RunState `json:"run_state"`
	Counter  int            `json:"counter"`
}
