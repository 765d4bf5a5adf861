package manualcb

// passThroughBreaker is the disabled-breaker stand-in: every permit is
// granted and recorded outcomes are discarded.
type passThroughBreaker struct{}

func NewPassThroughBreaker() *passThroughBreaker {
	return &passThroughBreaker{}
}

func (passThroughBreaker) IsAllowed() bool { return true }

func (passThroughBreaker) RecordSuccess() {}

func (passThroughBreaker) RecordFailure() {}
