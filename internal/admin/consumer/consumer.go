package consumer

import (
	"encoding/json"

	"github.com/Meesho/BharatMLStack/iris/internal/admin/handler/workflow"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rs/zerolog/log"
)

// ProcessStatesConsumer drains run state transitions off the run state topic.
// A failed transition is not retried here; the state machine has already
// marked the run FAILED, so the record is committed either way.
func ProcessStatesConsumer(records []*kafka.Message, c *kafka.Consumer) error {
	stateMachine := workflow.NewStateMachine(workflow.DefaultVersion)
	for _, record := range records {
		var payload workflow.RunStateExecutorPayload
		if err := json.Unmarshal(record.Value, &payload); err != nil {
			log.Error().Msgf("Error in Unmarshalling %s", err)
			continue
		}
		log.Info().Msgf("Processing state %s for indexer %s", payload.RunState, payload.Indexer)
		if err := stateMachine.ProcessStates(&payload); err != nil {
			log.Error().Msgf("Error in Processing State %s", err)
		}
		if _, err := c.CommitMessage(record); err != nil {
			return err
		}
	}
	return nil
}
