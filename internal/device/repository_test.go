package device

import (
	"context"
	"errors"
	"testing"
)

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	dev := testDevice("kitchen", "Kitchen", "192.168.1.40")
	if err := repo.Create(ctx, dev); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if dev.CreatedAt.IsZero() || dev.UpdatedAt.IsZero() {
		t.Error("Create() should set timestamps")
	}

	got, err := repo.GetByID(ctx, "kitchen")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Kitchen" || got.Address != "192.168.1.40" || got.Port != DefaultPort || got.Polling != DefaultPolling {
		t.Errorf("GetByID() = %+v", got)
	}
}

func TestSQLiteRepository_GetByID_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_CreateDuplicates(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testDevice("a", "A", "10.0.0.1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name string
		dev  *Device
	}{
		{"same id", testDevice("a", "Other", "10.0.0.2")},
		{"same endpoint", testDevice("b", "B", "10.0.0.1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.Create(ctx, tt.dev); !errors.Is(err, ErrDeviceExists) {
				t.Errorf("Create() error = %v, want ErrDeviceExists", err)
			}
		})
	}
}

func TestSQLiteRepository_List(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	for _, d := range []*Device{
		testDevice("z", "Study", "10.0.0.3"),
		testDevice("y", "Bedroom", "10.0.0.2"),
		testDevice("x", "Kitchen", "10.0.0.1"),
	} {
		if err := repo.Create(ctx, d); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"Bedroom", "Kitchen", "Study"}
	if len(devices) != len(want) {
		t.Fatalf("List() returned %d devices, want %d", len(devices), len(want))
	}
	for i, name := range want {
		if devices[i].Name != name {
			t.Errorf("devices[%d].Name = %q, want %q", i, devices[i].Name, name)
		}
	}
}

func TestSQLiteRepository_Update(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	dev := testDevice("lounge", "Lounge", "10.0.0.8")
	if err := repo.Create(ctx, dev); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	dev.Address = "10.0.0.9"
	dev.Polling = 10
	if err := repo.Update(ctx, dev); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "lounge")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Address != "10.0.0.9" || got.Polling != 10 {
		t.Errorf("after Update() = %+v", got)
	}

	if err := repo.Update(ctx, testDevice("ghost", "", "10.0.0.10")); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Update() missing error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_DeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	store := NewSQLiteStoreRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testDevice("den", "Den", "10.0.0.4")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Set(ctx, "den", "mutevol", "0.40"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := repo.Delete(ctx, "den"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "den"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("second Delete() error = %v, want ErrDeviceNotFound", err)
	}

	values, err := store.Load(ctx, "den")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(values) != 0 {
		t.Errorf("store should be empty after delete, got %v", values)
	}
}
