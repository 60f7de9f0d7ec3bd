package hypervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/vmctl-dev/vmctl/config"
	"github.com/vmctl-dev/vmctl/lock"
	"github.com/vmctl-dev/vmctl/lock/flock"
	"github.com/vmctl-dev/vmctl/types"
	"github.com/vmctl-dev/vmctl/utils"
	"github.com/vmctl-dev/vmctl/version"
)

// Index is the persisted registry of guests, keyed by VM name.
type Index struct {
	VMs map[string]*types.VM `json:"vms"`
}

func (idx *Index) Init() {
	if idx.VMs == nil {
		idx.VMs = make(map[string]*types.VM)
	}
}

// Registry persists VM records in a flock-guarded JSON index so that
// concurrent vmctl invocations observe consistent state. Records whose
// supervisor process has died are reconciled to a terminal state on
// every access.
type Registry struct {
	path   string
	locker lock.Locker

	// alive reports whether a supervisor PID still belongs to us.
	// Swappable in tests.
	alive func(pid int) bool
}

// NewRegistry builds the registry over {DataDir}/run/vms.json.
func NewRegistry(conf *config.Config) (*Registry, error) {
	if err := conf.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("ensure state dirs: %w", err)
	}
	return &Registry{
		path:   conf.IndexFile(),
		locker: flock.New(conf.IndexLock()),
		alive:  func(pid int) bool { return utils.VerifyProcess(pid, version.NAME) },
	}, nil
}

// With runs fn with a read view of the index. Liveness corrections made
// by reconciliation are persisted so a crashed supervisor does not leave
// a stale running record behind.
func (r *Registry) With(ctx context.Context, fn func(idx *Index) error) error {
	return lock.WithLock(ctx, r.locker, func() error {
		idx, err := r.load()
		if err != nil {
			return err
		}
		if r.reconcile(idx) {
			if err := r.save(idx); err != nil {
				return err
			}
		}
		return fn(idx)
	})
}

// Update runs fn with exclusive access to the index and persists the result.
func (r *Registry) Update(ctx context.Context, fn func(idx *Index) error) error {
	return lock.WithLock(ctx, r.locker, func() error {
		idx, err := r.load()
		if err != nil {
			return err
		}
		r.reconcile(idx)
		if err := fn(idx); err != nil {
			return err
		}
		return r.save(idx)
	})
}

// Register writes a fresh record for a launch. An existing record with
// the same name may only be replaced once it has reached a terminal
// state.
func (r *Registry) Register(ctx context.Context, rec *types.VM) error {
	return r.Update(ctx, func(idx *Index) error {
		if cur := idx.VMs[rec.Name]; cur != nil && !cur.State.Terminal() {
			return fmt.Errorf("%s (PID %d): %w", cur.Name, cur.PID, ErrAlreadyRunning)
		}
		idx.VMs[rec.Name] = rec
		return nil
	})
}

// Get returns a detached copy of the named record.
func (r *Registry) Get(ctx context.Context, name string) (types.VM, error) {
	var rec types.VM
	err := r.With(ctx, func(idx *Index) error {
		var lerr error
		if rec, lerr = utils.LookupCopy(idx.VMs, name); lerr != nil {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil
	})
	return rec, err
}

// List returns detached copies of all records, sorted by name.
func (r *Registry) List(ctx context.Context) ([]types.VM, error) {
	var out []types.VM
	err := r.With(ctx, func(idx *Index) error {
		for _, rec := range idx.VMs {
			if rec == nil {
				continue
			}
			out = append(out, *rec)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b types.VM) int { return strings.Compare(a.Name, b.Name) })
	return out, err
}

// Transition moves the named record to state, applying mutate (if
// non-nil) under the same lock. Transitions outside the lifecycle graph
// are rejected.
func (r *Registry) Transition(ctx context.Context, name string, to types.VMState, mutate func(*types.VM)) error {
	return r.Update(ctx, func(idx *Index) error {
		rec := idx.VMs[name]
		if rec == nil {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		if !types.CanTransition(rec.State, to) {
			return fmt.Errorf("%s: invalid transition %s -> %s", name, rec.State, to)
		}
		now := time.Now().UTC()
		rec.State = to
		rec.UpdatedAt = now
		switch to {
		case types.VMStateRunning:
			rec.StartedAt = &now
		case types.VMStateStopped, types.VMStateFailed:
			rec.StoppedAt = &now
			rec.PID = 0
		}
		if mutate != nil {
			mutate(rec)
		}
		return nil
	})
}

// Delete removes the named record and returns a copy of it. Records in
// a non-terminal state are refused.
func (r *Registry) Delete(ctx context.Context, name string) (types.VM, error) {
	var rec types.VM
	err := r.Update(ctx, func(idx *Index) error {
		cur := idx.VMs[name]
		if cur == nil {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		if !cur.State.Terminal() {
			return fmt.Errorf("%s is %s, stop it before removing", name, cur.State)
		}
		rec = *cur
		delete(idx.VMs, name)
		return nil
	})
	return rec, err
}

func (r *Registry) load() (*Index, error) {
	idx := &Index{}
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			idx.Init()
			return idx, nil
		}
		return nil, fmt.Errorf("read index %s: %w", r.path, err)
	}
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, fmt.Errorf("decode index %s: %w", r.path, err)
	}
	idx.Init()
	return idx, nil
}

// save writes the index atomically via a temp file in the same directory.
func (r *Registry) save(idx *Index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".vms-*.json")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace index %s: %w", r.path, err)
	}
	return nil
}

// reconcile flips records whose supervisor process is gone to a terminal
// state: Running becomes Stopped, anything earlier becomes Failed.
// Returns true when a record changed.
func (r *Registry) reconcile(idx *Index) bool {
	changed := false
	for _, rec := range idx.VMs {
		if rec == nil || rec.State.Terminal() {
			continue
		}
		if r.alive(rec.PID) {
			continue
		}
		now := time.Now().UTC()
		if rec.State == types.VMStateRunning {
			rec.State = types.VMStateStopped
		} else {
			rec.State = types.VMStateFailed
		}
		rec.PID = 0
		rec.UpdatedAt = now
		rec.StoppedAt = &now
		changed = true
	}
	return changed
}
