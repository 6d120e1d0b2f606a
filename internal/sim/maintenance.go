package sim

import (
	"context"
	"fmt"
	"time"

	"wardcore/pkg/domain"
)

// ConfirmMaintenance books a maintenance slot for a device. The device moves
// to in_maintenance when the slot is now or past, otherwise to
// maintenance_due with the slot recorded.
func (e *Engine) ConfirmMaintenance(ctx context.Context, deviceID string, slot time.Time) (domain.Device, error) {
	now := e.nowFn()
	device, err := e.store.UpdateDevice(ctx, deviceID, func(d *domain.Device) error {
		if d.Status == domain.DeviceInMaintenance {
			return fmt.Errorf("device %s already in maintenance", d.Name)
		}
		scheduled := slot
		d.NextMaintenance = &scheduled
		if !slot.After(now) {
			d.Status = domain.DeviceInMaintenance
		} else {
			d.Status = domain.DeviceMaintenanceDue
		}
		return nil
	})
	if err != nil {
		return domain.Device{}, err
	}
	_ = e.store.AppendAudit(ctx, domain.AuditEntry{
		Action:     "maintenance.confirm",
		Actor:      "engine",
		Detail:     map[string]any{"device_id": deviceID, "slot": slot.Format(time.RFC3339)},
		OccurredAt: now,
	})
	return device, nil
}

// CompleteMaintenance returns a device to service and stamps the
// maintenance time.
func (e *Engine) CompleteMaintenance(ctx context.Context, deviceID string) (domain.Device, error) {
	now := e.nowFn()
	device, err := e.store.UpdateDevice(ctx, deviceID, func(d *domain.Device) error {
		if d.Status != domain.DeviceInMaintenance && d.Status != domain.DeviceMaintenanceDue {
			return fmt.Errorf("device %s has no maintenance to complete", d.Name)
		}
		finished := now
		d.LastMaintenance = &finished
		d.NextMaintenance = nil
		d.Status = domain.DeviceOperational
		return nil
	})
	if err != nil {
		return domain.Device{}, err
	}
	_ = e.store.AppendAudit(ctx, domain.AuditEntry{
		Action:     "maintenance.complete",
		Actor:      "engine",
		Detail:     map[string]any{"device_id": deviceID},
		OccurredAt: now,
	})
	return device, nil
}

// PlaceOrder restocks an inventory position by quantity units.
func (e *Engine) PlaceOrder(ctx context.Context, itemID string, quantity int) (domain.InventoryItem, error) {
	if quantity <= 0 {
		return domain.InventoryItem{}, fmt.Errorf("order quantity must be positive, got %d", quantity)
	}
	item, err := e.store.AdjustInventory(ctx, itemID, quantity)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	_ = e.store.AppendAudit(ctx, domain.AuditEntry{
		Action:     "inventory.order",
		Actor:      "engine",
		Detail:     map[string]any{"item_id": itemID, "quantity": float64(quantity)},
		OccurredAt: e.nowFn(),
	})
	return item, nil
}
