package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// RecorderRepository persists audit rows.
type RecorderRepository interface {
	Insert(ctx context.Context, entry LogEntry) (int64, error)
}

// Recorder turns mutation events into stored audit rows with a field-level
// diff and a human-readable summary.
type Recorder struct {
	repo    RecorderRepository
	printer *message.Printer
	now     func() time.Time
}

// NewRecorder constructs Recorder.
func NewRecorder(repo RecorderRepository) *Recorder {
	return &Recorder{
		repo:    repo,
		printer: message.NewPrinter(language.English),
		now:     time.Now,
	}
}

// Record persists one audit event. The write is synchronous; callers that
// treat the trail as best-effort handle the error themselves.
func (r *Recorder) Record(ctx context.Context, event Event) error {
	at := event.At
	if at.IsZero() {
		at = r.now()
	}
	changes := DiffFields(event.OldData, event.NewData)
	entry := LogEntry{
		TableName:     event.TableName,
		RecordID:      event.RecordID,
		Action:        event.Action,
		OldData:       event.OldData,
		NewData:       event.NewData,
		FieldChanges:  changes,
		ChangeSummary: r.summarize(event, changes),
		PerformedBy:   event.PerformedBy,
		CreatedAt:     at,
	}
	_, err := r.repo.Insert(ctx, entry)
	return err
}

// DiffFields computes field-level differences over the union of both
// snapshots, in field order. Values are compared by their printed form so
// snapshots that round-tripped through JSON still match.
func DiffFields(oldData, newData map[string]any) []FieldChange {
	keys := map[string]bool{}
	for k := range oldData {
		keys[k] = true
	}
	for k := range newData {
		keys[k] = true
	}
	fields := make([]string, 0, len(keys))
	for k := range keys {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	var changes []FieldChange
	for _, field := range fields {
		oldVal, newVal := oldData[field], newData[field]
		if fmt.Sprint(oldVal) == fmt.Sprint(newVal) {
			continue
		}
		changes = append(changes, FieldChange{Field: field, Old: oldVal, New: newVal})
	}
	return changes
}

func (r *Recorder) summarize(event Event, changes []FieldChange) string {
	actor := event.PerformedBy
	if actor == "" {
		actor = "system"
	}
	switch event.Action {
	case "create":
		return r.printer.Sprintf("%s created %s %s", actor, event.TableName, event.RecordID)
	case "delete":
		return r.printer.Sprintf("%s deleted %s %s", actor, event.TableName, event.RecordID)
	}
	if len(changes) == 0 {
		return r.printer.Sprintf("%s touched %s %s without field changes", actor, event.TableName, event.RecordID)
	}
	parts := make([]string, 0, len(changes))
	for _, c := range changes {
		parts = append(parts, r.printer.Sprintf("%s changed from %v to %v", c.Field, c.Old, c.New))
	}
	return r.printer.Sprintf("%s updated %s %s: %s", actor, event.TableName, event.RecordID, strings.Join(parts, "; "))
}
