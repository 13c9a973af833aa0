package audit

import "time"

// Event is one recorded mutation. OldData and NewData are snapshots of the
// affected row before and after the change; for creates OldData is nil.
type Event struct {
	Action      string
	TableName   string
	RecordID    string
	OldData     map[string]any
	NewData     map[string]any
	PerformedBy string
	At          time.Time
}

// FieldChange is one field-level difference between the snapshots.
type FieldChange struct {
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

// LogEntry is one stored audit row.
type LogEntry struct {
	ID            int64          `json:"id"`
	TableName     string         `json:"tableName"`
	RecordID      string         `json:"recordId"`
	Action        string         `json:"action"`
	OldData       map[string]any `json:"oldData,omitempty"`
	NewData       map[string]any `json:"newData,omitempty"`
	FieldChanges  []FieldChange  `json:"fieldChanges,omitempty"`
	ChangeSummary string         `json:"changeSummary"`
	PerformedBy   string         `json:"performedBy"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// TimelineFilters narrows timeline reads.
type TimelineFilters struct {
	From        time.Time
	To          time.Time
	TableName   string
	RecordID    string
	Action      string
	PerformedBy string
	Page        int
	PageSize    int
}

// PagingInfo carries pagination metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result bundles timeline rows with paging.
type Result struct {
	Rows   []LogEntry `json:"rows"`
	Paging PagingInfo `json:"paging"`
}
