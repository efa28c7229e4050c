// Package sync reconciles the local store with the configured remote
// backend. Records are merged per id with last-write-wins on updated_at;
// every local write leaves the record pending until a push succeeds.
package sync

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cashlia/cashlia-core/internal/remote"
	"github.com/cashlia/cashlia-core/pkg/enums"
	"github.com/cashlia/cashlia-core/pkg/errors"
	"github.com/cashlia/cashlia-core/pkg/logger"
	"github.com/cashlia/cashlia-core/pkg/prefs"
	"github.com/cashlia/cashlia-core/pkg/store"
)

// RecordFailure identifies one record that could not be synced.
type RecordFailure struct {
	Table string
	ID    string
	Err   error
}

// Result summarizes one sync pass. A pass keeps going past individual record
// failures; they are collected here instead.
type Result struct {
	Pushed   int
	Pulled   int
	Failures []RecordFailure
}

type Engine struct {
	store    store.Store
	prefs    prefs.Prefs
	log      *logger.Logger
	adapters map[enums.SyncMethod]remote.Adapter

	locks sync.Map // "table/id" -> *sync.Mutex

	mu      sync.Mutex
	stopSub context.CancelFunc
	subWait sync.WaitGroup
}

func NewEngine(st store.Store, p prefs.Prefs, log *logger.Logger, adapters ...remote.Adapter) *Engine {
	byMethod := make(map[enums.SyncMethod]remote.Adapter, len(adapters))
	for _, a := range adapters {
		if a != nil {
			byMethod[a.Method()] = a
		}
	}
	return &Engine{store: st, prefs: p, log: log, adapters: byMethod}
}

// Method returns the sync method selected in preferences.
func (e *Engine) Method(ctx context.Context) (enums.SyncMethod, error) {
	raw, err := e.prefs.Get(ctx, prefs.KeySyncMethod)
	if err != nil {
		if errors.IsNotFound(err) {
			return enums.SyncMethodNone, nil
		}
		return enums.SyncMethodNone, err
	}
	return enums.ParseSyncMethod(raw)
}

// SetMethod selects (or disables) the sync backend.
func (e *Engine) SetMethod(ctx context.Context, method enums.SyncMethod) error {
	if !method.IsValid() {
		return errors.New(errors.CodeValidation, "unknown sync method")
	}
	if method != enums.SyncMethodNone {
		if _, ok := e.adapters[method]; !ok {
			return errors.New(errors.CodeConfiguration, "sync backend unavailable: "+method.String())
		}
	}
	return e.prefs.Set(ctx, prefs.KeySyncMethod, method.String())
}

func (e *Engine) adapter(ctx context.Context) (remote.Adapter, error) {
	method, err := e.Method(ctx)
	if err != nil {
		return nil, err
	}
	if method == enums.SyncMethodNone {
		return nil, errors.New(errors.CodeConfiguration, "no sync method configured")
	}
	adapter, ok := e.adapters[method]
	if !ok {
		return nil, errors.New(errors.CodeConfiguration, "sync backend unavailable: "+method.String())
	}
	return adapter, nil
}

// SyncAll pushes every pending record of every synced table. One record
// failing does not abort the pass; the record is marked with status error
// and reported in the result.
func (e *Engine) SyncAll(ctx context.Context) (*Result, error) {
	adapter, err := e.adapter(ctx)
	if err != nil {
		return nil, err
	}
	result := &Result{}
	for _, table := range store.SyncedTables {
		pending, err := e.store.Query(ctx, store.Query{
			Table: table,
			Where: []store.Cond{store.Eq("sync_status", enums.SyncStatusPending.String())},
		})
		if err != nil {
			return result, err
		}
		for _, row := range pending {
			if err := e.pushRecord(ctx, adapter, table, row); err != nil {
				result.Failures = append(result.Failures, RecordFailure{
					Table: table, ID: row.String("id"), Err: err,
				})
				continue
			}
			result.Pushed++
		}
	}
	tctx := e.log.WithFields(ctx, map[string]any{"pushed": result.Pushed, "failed": len(result.Failures)})
	e.log.Info(tctx, "sync pass finished")
	return result, nil
}

func (e *Engine) pushRecord(ctx context.Context, adapter remote.Adapter, table string, row store.Row) error {
	id := row.String("id")
	unlock := e.lock(table, id)
	defer unlock()

	payload, err := marshalRecord(row)
	if err != nil {
		return err
	}
	if err := adapter.Save(ctx, table, id, payload); err != nil {
		if _, statusErr := e.store.Execute(ctx, store.Update(table,
			store.Row{"sync_status": enums.SyncStatusError.String()},
			store.Eq("id", id))); statusErr != nil {
			e.log.Error(ctx, "mark record errored", statusErr)
		}
		return err
	}
	_, err = e.store.Execute(ctx, store.Update(table,
		store.Row{"sync_status": enums.SyncStatusSynced.String()},
		store.Eq("id", id)))
	return err
}

// PullUpdates fetches every remote record and merges it into the local
// store.
func (e *Engine) PullUpdates(ctx context.Context) (*Result, error) {
	adapter, err := e.adapter(ctx)
	if err != nil {
		return nil, err
	}
	result := &Result{}
	for _, table := range store.SyncedTables {
		records, err := adapter.List(ctx, table)
		if err != nil {
			return result, err
		}
		for id, payload := range records {
			applied, err := e.mergeRecord(ctx, adapter, table, id, payload)
			if err != nil {
				result.Failures = append(result.Failures, RecordFailure{Table: table, ID: id, Err: err})
				continue
			}
			if applied {
				result.Pulled++
			}
		}
	}
	return result, nil
}

// mergeRecord applies one remote record with last-write-wins semantics:
//
//	no local row            -> insert as synced
//	remote updated_at newer -> overwrite local, mark synced
//	local newer and pending -> push local instead
//	otherwise               -> nothing to do
//
// It reports whether the local store changed.
func (e *Engine) mergeRecord(ctx context.Context, adapter remote.Adapter, table, id string, payload []byte) (bool, error) {
	unlock := e.lock(table, id)
	defer unlock()

	var incoming store.Row
	if err := json.Unmarshal(payload, &incoming); err != nil {
		return false, errors.Wrap(errors.CodeSync, err, "decode remote record")
	}
	if incoming.String("id") == "" {
		incoming["id"] = id
	}

	locals, err := e.store.Query(ctx, store.Query{
		Table: table,
		Where: []store.Cond{store.Eq("id", id)},
	})
	if err != nil {
		return false, err
	}

	if len(locals) == 0 {
		values := incoming.Clone()
		values["sync_status"] = enums.SyncStatusSynced.String()
		if _, err := e.store.Execute(ctx, store.Insert(table, values)); err != nil {
			return false, err
		}
		return true, nil
	}

	local := locals[0]
	remoteStamp := incoming.String("updated_at")
	localStamp := local.String("updated_at")

	switch {
	case remoteStamp > localStamp:
		values := incoming.Clone()
		values["sync_status"] = enums.SyncStatusSynced.String()
		if _, err := e.store.Execute(ctx, store.Update(table, values, store.Eq("id", id))); err != nil {
			return false, err
		}
		return true, nil
	case localStamp > remoteStamp && local.String("sync_status") == enums.SyncStatusPending.String():
		outgoing, err := marshalRecord(local)
		if err != nil {
			return false, err
		}
		if err := adapter.Save(ctx, table, id, outgoing); err != nil {
			return false, err
		}
		if _, err := e.store.Execute(ctx, store.Update(table,
			store.Row{"sync_status": enums.SyncStatusSynced.String()},
			store.Eq("id", id))); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, nil
	}
}

// StartSubscriptions begins applying pushed changes when the active backend
// supports them. Pull-only backends return without starting anything.
func (e *Engine) StartSubscriptions(ctx context.Context) error {
	adapter, err := e.adapter(ctx)
	if err != nil {
		return err
	}
	subscriber, ok := adapter.(remote.Subscriber)
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopSub != nil {
		return errors.New(errors.CodeConflict, "subscriptions already running")
	}
	subCtx, cancel := context.WithCancel(ctx)
	e.stopSub = cancel

	for _, table := range store.SyncedTables {
		events, stop, err := subscriber.Subscribe(subCtx, table)
		if err != nil {
			cancel()
			e.stopSub = nil
			return err
		}
		e.subWait.Add(1)
		go func(table string, events <-chan remote.Event, stop func()) {
			defer e.subWait.Done()
			defer stop()
			for {
				select {
				case <-subCtx.Done():
					return
				case evt, ok := <-events:
					if !ok {
						return
					}
					if _, err := e.mergeRecord(subCtx, adapter, table, evt.ID, evt.Payload); err != nil {
						e.log.Error(e.log.WithTable(subCtx, table), "apply remote change", err)
					}
				}
			}
		}(table, events, stop)
	}
	e.log.Info(ctx, "sync subscriptions started")
	return nil
}

// Stop ends the subscription goroutines and waits for them to drain.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.stopSub
	e.stopSub = nil
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	e.subWait.Wait()
}

func (e *Engine) lock(table, id string) func() {
	actual, _ := e.locks.LoadOrStore(table+"/"+id, &sync.Mutex{})
	mu := actual.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// marshalRecord serializes a row for the wire without its local-only sync
// state.
func marshalRecord(row store.Row) ([]byte, error) {
	wire := row.Clone()
	delete(wire, "sync_status")
	payload, err := json.Marshal(wire)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "encode record")
	}
	return payload, nil
}
