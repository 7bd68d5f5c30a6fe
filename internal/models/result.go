// internal/models/result.go
// 發送結果與批次執行狀態資料模型

package models

import "time"

// SendStatus 單封發送狀態
type SendStatus string

const (
	StatusSent   SendStatus = "sent"
	StatusFailed SendStatus = "failed"
)

// SendResult 單一收件人的發送結果
type SendResult struct {
	Email  string     `json:"email"`
	Name   string     `json:"name"`
	Row    Row        `json:"row,omitempty"`
	Status SendStatus `json:"status"`
	Reason SendReason `json:"reason,omitempty"`
	Error  string     `json:"error,omitempty"`
	SentAt time.Time  `json:"sent_at"`
}

// RunState 批次執行狀態
type RunState string

const (
	RunIdle      RunState = "idle"
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunStopped   RunState = "stopped"
)

// Run 一次批次發送的結果
type Run struct {
	ID         string       `json:"run_id"`
	State      RunState     `json:"state"`
	Total      int          `json:"total"`
	Skipped    int          `json:"skipped"`
	Results    []SendResult `json:"results"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// Counts 回傳成功與失敗數
func (r *Run) Counts() (sent, failed int) {
	for _, res := range r.Results {
		if res.Status == StatusSent {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed
}

// RunStatus 批次進度快照 (供 API 與狀態快取使用)
type RunStatus struct {
	RunID      string       `json:"run_id"`
	State      RunState     `json:"state"`
	Total      int          `json:"total"`
	Sent       int          `json:"sent"`
	Failed     int          `json:"failed"`
	Skipped    int          `json:"skipped"`
	Current    string       `json:"current,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Results    []SendResult `json:"results"`
}

// Snapshot 由 Run 建立進度快照
func (r *Run) Snapshot(current string) RunStatus {
	sent, failed := r.Counts()
	results := make([]SendResult, len(r.Results))
	copy(results, r.Results)
	return RunStatus{
		RunID:      r.ID,
		State:      r.State,
		Total:      r.Total,
		Sent:       sent,
		Failed:     failed,
		Skipped:    r.Skipped,
		Current:    current,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Results:    results,
	}
}

// Done 判斷批次是否已結束
func (s *RunStatus) Done() bool {
	return s.State == RunCompleted || s.State == RunStopped
}
