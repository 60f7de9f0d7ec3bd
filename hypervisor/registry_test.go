package hypervisor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/vmctl-dev/vmctl/config"
	"github.com/vmctl-dev/vmctl/types"
)

func testRegistry(t *testing.T) (*Registry, *config.Config) {
	t.Helper()
	conf := config.DefaultConfig()
	conf.DataDir = t.TempDir()
	reg, err := NewRegistry(conf)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	reg.alive = func(int) bool { return true }
	return reg, conf
}

func testRecord(name string) *types.VM {
	now := time.Now().UTC()
	return &types.VM{
		Name:      name,
		State:     types.VMStateConfiguring,
		BootID:    "boot-1",
		CPU:       2,
		Memory:    2147483648,
		MAC:       "02:00:00:00:00:01",
		Disk:      "/work/ubuntu.raw",
		EFIStore:  "/work/efi_vars.store",
		MachineID: "/work/machine_id.bin",
		PID:       4242,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// --- Register / Get ---

func TestRegistryRegisterGet(t *testing.T) {
	reg, _ := testRegistry(t)
	ctx := context.Background()

	if err := reg.Register(ctx, testRecord("devbox")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	rec, err := reg.Get(ctx, "devbox")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Name != "devbox" || rec.CPU != 2 || rec.Memory != 2147483648 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.State != types.VMStateConfiguring {
		t.Fatalf("state = %s, want %s", rec.State, types.VMStateConfiguring)
	}
}

func TestRegistryGetMissing(t *testing.T) {
	reg, _ := testRegistry(t)

	_, err := reg.Get(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistryRegisterRefusesLiveRecord(t *testing.T) {
	reg, _ := testRegistry(t)
	ctx := context.Background()

	if err := reg.Register(ctx, testRecord("devbox")); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	err := reg.Register(ctx, testRecord("devbox"))
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestRegistryRegisterReplacesTerminalRecord(t *testing.T) {
	reg, _ := testRegistry(t)
	ctx := context.Background()

	if err := reg.Register(ctx, testRecord("devbox")); err != nil {
		t.Fatal(err)
	}
	for _, state := range []types.VMState{types.VMStateStarting, types.VMStateRunning, types.VMStateStopped} {
		if err := reg.Transition(ctx, "devbox", state, nil); err != nil {
			t.Fatalf("Transition to %s: %v", state, err)
		}
	}

	fresh := testRecord("devbox")
	fresh.BootID = "boot-2"
	if err := reg.Register(ctx, fresh); err != nil {
		t.Fatalf("Register over stopped record: %v", err)
	}
	rec, err := reg.Get(ctx, "devbox")
	if err != nil {
		t.Fatal(err)
	}
	if rec.BootID != "boot-2" {
		t.Fatalf("BootID = %s, want boot-2", rec.BootID)
	}
}

// --- Transition ---

func TestRegistryTransitionTimestamps(t *testing.T) {
	reg, _ := testRegistry(t)
	ctx := context.Background()

	if err := reg.Register(ctx, testRecord("devbox")); err != nil {
		t.Fatal(err)
	}
	if err := reg.Transition(ctx, "devbox", types.VMStateStarting, nil); err != nil {
		t.Fatal(err)
	}
	if err := reg.Transition(ctx, "devbox", types.VMStateRunning, func(rec *types.VM) {
		rec.SerialLog = "/work/serial.log"
	}); err != nil {
		t.Fatal(err)
	}

	rec, err := reg.Get(ctx, "devbox")
	if err != nil {
		t.Fatal(err)
	}
	if rec.StartedAt == nil {
		t.Fatal("StartedAt not set on Running")
	}
	if rec.SerialLog != "/work/serial.log" {
		t.Fatalf("mutate not applied, SerialLog = %q", rec.SerialLog)
	}

	if err := reg.Transition(ctx, "devbox", types.VMStateStopped, nil); err != nil {
		t.Fatal(err)
	}
	rec, err = reg.Get(ctx, "devbox")
	if err != nil {
		t.Fatal(err)
	}
	if rec.StoppedAt == nil {
		t.Fatal("StoppedAt not set on Stopped")
	}
	if rec.PID != 0 {
		t.Fatalf("PID = %d after stop, want 0", rec.PID)
	}
}

func TestRegistryTransitionRejectsInvalid(t *testing.T) {
	reg, _ := testRegistry(t)
	ctx := context.Background()

	if err := reg.Register(ctx, testRecord("devbox")); err != nil {
		t.Fatal(err)
	}
	err := reg.Transition(ctx, "devbox", types.VMStateRunning, nil)
	if err == nil || !strings.Contains(err.Error(), "invalid transition") {
		t.Fatalf("expected invalid transition error, got %v", err)
	}
}

func TestRegistryTransitionMissing(t *testing.T) {
	reg, _ := testRegistry(t)

	err := reg.Transition(context.Background(), "ghost", types.VMStateStarting, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// --- Reconciliation ---

func TestRegistryReconcilesDeadRunning(t *testing.T) {
	reg, conf := testRegistry(t)
	ctx := context.Background()

	rec := testRecord("devbox")
	rec.State = types.VMStateRunning
	if err := reg.Register(ctx, rec); err != nil {
		t.Fatal(err)
	}

	reg.alive = func(int) bool { return false }

	got, err := reg.Get(ctx, "devbox")
	if err != nil {
		t.Fatal(err)
	}
	if got.State != types.VMStateStopped {
		t.Fatalf("state = %s, want %s", got.State, types.VMStateStopped)
	}
	if got.PID != 0 || got.StoppedAt == nil {
		t.Fatalf("record not cleaned: PID=%d StoppedAt=%v", got.PID, got.StoppedAt)
	}

	// The correction is persisted, not just reported.
	data, err := os.ReadFile(conf.IndexFile())
	if err != nil {
		t.Fatal(err)
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		t.Fatal(err)
	}
	if idx.VMs["devbox"].State != types.VMStateStopped {
		t.Fatalf("persisted state = %s, want %s", idx.VMs["devbox"].State, types.VMStateStopped)
	}
}

func TestRegistryReconcilesDeadStarting(t *testing.T) {
	reg, _ := testRegistry(t)
	ctx := context.Background()

	rec := testRecord("devbox")
	rec.State = types.VMStateStarting
	if err := reg.Register(ctx, rec); err != nil {
		t.Fatal(err)
	}

	reg.alive = func(int) bool { return false }

	got, err := reg.Get(ctx, "devbox")
	if err != nil {
		t.Fatal(err)
	}
	if got.State != types.VMStateFailed {
		t.Fatalf("state = %s, want %s", got.State, types.VMStateFailed)
	}
}

// --- Delete ---

func TestRegistryDelete(t *testing.T) {
	reg, _ := testRegistry(t)
	ctx := context.Background()

	rec := testRecord("devbox")
	rec.State = types.VMStateStopped
	if err := reg.Register(ctx, rec); err != nil {
		t.Fatal(err)
	}

	removed, err := reg.Delete(ctx, "devbox")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if removed.Name != "devbox" {
		t.Fatalf("removed record = %+v", removed)
	}
	if _, err := reg.Get(ctx, "devbox"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRegistryDeleteRefusesRunning(t *testing.T) {
	reg, _ := testRegistry(t)
	ctx := context.Background()

	rec := testRecord("devbox")
	rec.State = types.VMStateRunning
	if err := reg.Register(ctx, rec); err != nil {
		t.Fatal(err)
	}

	if _, err := reg.Delete(ctx, "devbox"); err == nil {
		t.Fatal("expected delete of a running VM to fail")
	}
	if _, err := reg.Get(ctx, "devbox"); err != nil {
		t.Fatalf("record should survive refused delete: %v", err)
	}
}

func TestRegistryDeleteMissing(t *testing.T) {
	reg, _ := testRegistry(t)

	_, err := reg.Delete(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// --- Index behaviour ---

func TestRegistryListSorted(t *testing.T) {
	reg, _ := testRegistry(t)
	ctx := context.Background()

	for _, name := range []string{"charlie", "alpha", "bravo"} {
		if err := reg.Register(ctx, testRecord(name)); err != nil {
			t.Fatal(err)
		}
	}

	vms, err := reg.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, vm := range vms {
		names = append(names, vm.Name)
	}
	want := []string{"alpha", "bravo", "charlie"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
}

func TestRegistryEmptyIndex(t *testing.T) {
	reg, _ := testRegistry(t)

	vms, err := reg.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(vms) != 0 {
		t.Fatalf("fresh registry should be empty, got %d records", len(vms))
	}
}

func TestRegistryCorruptIndex(t *testing.T) {
	reg, conf := testRegistry(t)

	if err := os.WriteFile(conf.IndexFile(), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := reg.List(context.Background())
	if err == nil || !strings.Contains(err.Error(), "decode index") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestRegistrySharedBetweenHandles(t *testing.T) {
	reg1, conf := testRegistry(t)
	ctx := context.Background()

	if err := reg1.Register(ctx, testRecord("devbox")); err != nil {
		t.Fatal(err)
	}

	reg2, err := NewRegistry(conf)
	if err != nil {
		t.Fatal(err)
	}
	reg2.alive = func(int) bool { return true }

	rec, err := reg2.Get(ctx, "devbox")
	if err != nil {
		t.Fatalf("second handle Get: %v", err)
	}
	if rec.BootID != "boot-1" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}
