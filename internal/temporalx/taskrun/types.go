package taskrun

import "time"

const (
	WorkflowName = "ingest_task"
	ActivityRun  = "ingest_task_run"
)

type RunResult struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	// Terminal is set once the task can never run again.
	Terminal bool `json:"terminal"`
	// NotBefore is when a deferred or retrying task becomes runnable again.
	NotBefore *time.Time `json:"not_before,omitempty"`
}
