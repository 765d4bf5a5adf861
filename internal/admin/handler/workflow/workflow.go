package workflow

type StateMachine interface {
	ProcessStates(payload *RunStateExecutorPayload) error
}
