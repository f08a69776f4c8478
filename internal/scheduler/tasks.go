package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskMonitorRun = "monitor.run"

type MonitorRunPayload struct {
	Trigger      string `json:"trigger"`
	ForceRefresh bool   `json:"forceRefresh"`
}

func NewMonitorRunTask(payload MonitorRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMonitorRun, data), nil
}

func ParseMonitorRunPayload(task *asynq.Task) (MonitorRunPayload, error) {
	var payload MonitorRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return MonitorRunPayload{}, err
	}
	return payload, nil
}
