package sim

import (
	"context"
	"testing"
	"time"

	"wardcore/pkg/domain"
)

func TestConfirmAndCompleteMaintenance(t *testing.T) {
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	engine, store := newTestEngine(t, at, false)
	ctx := context.Background()
	device, err := store.CreateDevice(ctx, domain.Device{Name: "MRI", Department: "Cardiology"})
	if err != nil {
		t.Fatalf("create device: %v", err)
	}

	slot := at.Add(48 * time.Hour)
	confirmed, err := engine.ConfirmMaintenance(ctx, device.ID, slot)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != domain.DeviceMaintenanceDue {
		t.Fatalf("future slot should mark maintenance_due, got %s", confirmed.Status)
	}
	if confirmed.NextMaintenance == nil || !confirmed.NextMaintenance.Equal(slot) {
		t.Fatalf("slot not recorded: %+v", confirmed.NextMaintenance)
	}

	immediate, err := engine.ConfirmMaintenance(ctx, device.ID, at)
	if err != nil {
		t.Fatalf("confirm immediate: %v", err)
	}
	if immediate.Status != domain.DeviceInMaintenance {
		t.Fatalf("past slot should enter maintenance, got %s", immediate.Status)
	}
	if _, err := engine.ConfirmMaintenance(ctx, device.ID, slot); err == nil {
		t.Fatalf("confirming a device already in maintenance should fail")
	}

	completed, err := engine.CompleteMaintenance(ctx, device.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != domain.DeviceOperational {
		t.Fatalf("completed device should be operational, got %s", completed.Status)
	}
	if completed.LastMaintenance == nil || completed.NextMaintenance != nil {
		t.Fatalf("maintenance timestamps wrong: %+v", completed)
	}
	if _, err := engine.CompleteMaintenance(ctx, device.ID); err == nil {
		t.Fatalf("completing an operational device should fail")
	}
}

func TestPlaceOrderRestocksInventory(t *testing.T) {
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	engine, store := newTestEngine(t, at, false)
	ctx := context.Background()
	item, err := store.CreateInventoryItem(ctx, domain.InventoryItem{Name: "Infusion sets", Department: "ICU", Quantity: 2, ReorderLevel: 5})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	restocked, err := engine.PlaceOrder(ctx, item.ID, 20)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if restocked.Quantity != 22 || restocked.Critical() {
		t.Fatalf("restock failed: %+v", restocked)
	}
	if _, err := engine.PlaceOrder(ctx, item.ID, 0); err == nil {
		t.Fatalf("zero quantity order should be rejected")
	}
	if _, err := engine.PlaceOrder(ctx, "missing", 5); err == nil {
		t.Fatalf("unknown item order should fail")
	}
	audits := store.AuditEntries()
	found := false
	for _, entry := range audits {
		if entry.Action == "inventory.order" {
			found = true
		}
	}
	if !found {
		t.Fatalf("order should append an audit entry")
	}
}
