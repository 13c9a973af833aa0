package audit

import (
	"context"

	"github.com/frostline-foods/frostline/internal/inventory"
)

// InventoryTrail adapts the recorder to the ledger's audit port.
type InventoryTrail struct {
	rec *Recorder
}

// NewInventoryTrail constructs InventoryTrail.
func NewInventoryTrail(rec *Recorder) *InventoryTrail {
	return &InventoryTrail{rec: rec}
}

// Record implements inventory.AuditPort.
func (t *InventoryTrail) Record(ctx context.Context, event inventory.AuditEvent) error {
	return t.rec.Record(ctx, Event{
		Action:      event.Action,
		TableName:   event.TableName,
		RecordID:    event.RecordID,
		OldData:     event.OldData,
		NewData:     event.NewData,
		PerformedBy: event.PerformedBy,
		At:          event.At,
	})
}
