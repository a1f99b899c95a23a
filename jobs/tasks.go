package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCascadeReconcile repairs sales orders missing a derived record.
	TaskCascadeReconcile = "sales:cascade-reconcile"
)

// CascadeReconcilePayload bounds one reconciliation pass.
type CascadeReconcilePayload struct {
	Limit int `json:"limit"`
}

// NewCascadeReconcileTask constructs an Asynq task for one reconciliation pass.
func NewCascadeReconcileTask(limit int) (*asynq.Task, error) {
	body, err := json.Marshal(CascadeReconcilePayload{Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCascadeReconcile, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
