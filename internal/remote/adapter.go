// Package remote defines the contract every cloud backend implements. The
// sync engine only ever talks to these interfaces; adapters handle transport
// and encrypt payloads before anything leaves the device.
package remote

import (
	"context"

	"github.com/cashlia/cashlia-core/pkg/enums"
)

// Adapter stores and retrieves per-record payloads grouped into collections
// (one collection per synced table). Payloads cross this interface as
// plaintext JSON; each adapter seals them with the install's cipher.
type Adapter interface {
	Method() enums.SyncMethod
	Save(ctx context.Context, collection, id string, payload []byte) error
	Fetch(ctx context.Context, collection, id string) ([]byte, error)
	// List returns every record in the collection keyed by id.
	List(ctx context.Context, collection string) (map[string][]byte, error)
	Delete(ctx context.Context, collection, id string) error
}

// Event is a change notification from a backend that supports push.
type Event struct {
	Collection string
	ID         string
	Payload    []byte
}

// Subscriber is implemented by backends that can push changes. Pull-only
// backends (drive) don't implement it; the engine polls those instead.
type Subscriber interface {
	// Subscribe streams remote changes for a collection until stop is
	// called or ctx ends.
	Subscribe(ctx context.Context, collection string) (<-chan Event, func(), error)
}
