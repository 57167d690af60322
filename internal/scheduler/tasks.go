package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskWithdrawPurge = "withdraw.purge"

const (
	TriggerSchedule = "schedule"
	TriggerForce    = "force"
)

// WithdrawPurgePayload is also the asynq uniqueness key, so it carries
// nothing that differs between two requests for the same kind of run.
type WithdrawPurgePayload struct {
	Trigger string `json:"trigger"`
}

func NewWithdrawPurgeTask(payload WithdrawPurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWithdrawPurge, data), nil
}

func ParseWithdrawPurgePayload(task *asynq.Task) (WithdrawPurgePayload, error) {
	var payload WithdrawPurgePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return WithdrawPurgePayload{}, err
	}
	if payload.Trigger == "" {
		payload.Trigger = TriggerSchedule
	}
	return payload, nil
}
