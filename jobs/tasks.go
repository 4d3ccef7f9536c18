package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTotalsIntegrity recomputes stored document totals and flags drift.
	TaskTotalsIntegrity = "docs:totals_integrity"
	// TaskSequenceGapScan reports holes in issued document number sequences.
	TaskSequenceGapScan = "docs:sequence_gap_scan"
)

// TotalsIntegrityPayload scopes an integrity run. A zero TenantID scans
// every tenant. Repair rewrites drifted totals instead of only
// reporting them.
type TotalsIntegrityPayload struct {
	TenantID int64 `json:"tenant_id"`
	Repair   bool  `json:"repair"`
}

// SequenceGapScanPayload scopes a gap scan. A zero TenantID scans every
// tenant.
type SequenceGapScanPayload struct {
	TenantID int64 `json:"tenant_id"`
}

// NewTotalsIntegrityTask constructs an Asynq task.
func NewTotalsIntegrityTask(payload TotalsIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTotalsIntegrity, data), nil
}

// NewSequenceGapScanTask constructs an Asynq task.
func NewSequenceGapScanTask(payload SequenceGapScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSequenceGapScan, data), nil
}
