// Package docstore syncs through a hosted document store reached over the
// Redis protocol. Each collection is a hash of id to sealed payload, and
// every write is announced on a pub/sub channel so other devices can apply
// it without polling.
package docstore

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/cashlia/cashlia-core/internal/remote"
	"github.com/cashlia/cashlia-core/pkg/config"
	"github.com/cashlia/cashlia-core/pkg/enums"
	"github.com/cashlia/cashlia-core/pkg/errors"
	"github.com/cashlia/cashlia-core/pkg/logger"
	"github.com/cashlia/cashlia-core/pkg/security"
)

const (
	collectionKeyPrefix = "cashlia:sync:"
	eventChannelPrefix  = "cashlia:events:"
)

type Adapter struct {
	client *redis.Client
	cipher *security.Cipher
	log    *logger.Logger
}

// New dials the configured document store.
func New(cfg config.RedisConfig, cipher *security.Cipher, log *logger.Logger) (*Adapter, error) {
	if !cfg.Configured() {
		return nil, errors.New(errors.CodeConfiguration, "document store sync is not configured")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, errors.Wrap(errors.CodeConfiguration, err, "invalid document store url")
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:         cfg.Address,
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		}
	}
	return NewWithClient(redis.NewClient(opts), cipher, log), nil
}

// NewWithClient wraps an existing client. Tests use this with miniredis.
func NewWithClient(client *redis.Client, cipher *security.Cipher, log *logger.Logger) *Adapter {
	return &Adapter{client: client, cipher: cipher, log: log}
}

func (a *Adapter) Method() enums.SyncMethod {
	return enums.SyncMethodDocstore
}

// event is the wire form of a change notification. Data stays sealed.
type event struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

func (a *Adapter) Save(ctx context.Context, collection, id string, payload []byte) error {
	sealed, err := a.cipher.Encrypt(ctx, payload)
	if err != nil {
		return err
	}
	if err := a.client.HSet(ctx, collectionKey(collection), id, sealed).Err(); err != nil {
		return errors.Wrap(errors.CodeSync, err, "save "+collection+"/"+id)
	}
	raw, err := json.Marshal(event{ID: id, Data: sealed})
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "encode event")
	}
	if err := a.client.Publish(ctx, eventChannel(collection), raw).Err(); err != nil {
		return errors.Wrap(errors.CodeSync, err, "announce "+collection+"/"+id)
	}
	return nil
}

func (a *Adapter) Fetch(ctx context.Context, collection, id string) ([]byte, error) {
	sealed, err := a.client.HGet(ctx, collectionKey(collection), id).Result()
	if err == redis.Nil {
		return nil, errors.New(errors.CodeNotFound, "record not found")
	}
	if err != nil {
		return nil, errors.Wrap(errors.CodeSync, err, "fetch "+collection+"/"+id)
	}
	return a.cipher.Decrypt(ctx, sealed)
}

func (a *Adapter) List(ctx context.Context, collection string) (map[string][]byte, error) {
	sealed, err := a.client.HGetAll(ctx, collectionKey(collection)).Result()
	if err != nil {
		return nil, errors.Wrap(errors.CodeSync, err, "list "+collection)
	}
	out := make(map[string][]byte, len(sealed))
	for id, value := range sealed {
		payload, err := a.cipher.Decrypt(ctx, value)
		if err != nil {
			// One unreadable record must not block the rest of the
			// collection, same as the subscribe path.
			a.log.Error(a.log.WithField(ctx, "record_id", collection+"/"+id), "skipping unreadable record", err)
			continue
		}
		out[id] = payload
	}
	return out, nil
}

func (a *Adapter) Delete(ctx context.Context, collection, id string) error {
	if err := a.client.HDel(ctx, collectionKey(collection), id).Err(); err != nil {
		return errors.Wrap(errors.CodeSync, err, "delete "+collection+"/"+id)
	}
	return nil
}

// Subscribe follows the collection's event channel. Events arrive already
// decrypted; payloads that fail to open are dropped rather than poisoning
// the stream.
func (a *Adapter) Subscribe(ctx context.Context, collection string) (<-chan remote.Event, func(), error) {
	sub := a.client.Subscribe(ctx, eventChannel(collection))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, errors.Wrap(errors.CodeSync, err, "subscribe "+collection)
	}

	events := make(chan remote.Event)
	done := make(chan struct{})
	go func() {
		defer close(events)
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var evt event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					continue
				}
				payload, err := a.cipher.Decrypt(ctx, evt.Data)
				if err != nil {
					continue
				}
				select {
				case events <- remote.Event{Collection: collection, ID: evt.ID, Payload: payload}:
				case <-ctx.Done():
					return
				case <-done:
					return
				}
			}
		}
	}()

	var stopped bool
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		close(done)
		sub.Close()
	}
	return events, stop, nil
}

func (a *Adapter) Close() error {
	return a.client.Close()
}

func collectionKey(collection string) string {
	return collectionKeyPrefix + collection
}

func eventChannel(collection string) string {
	return eventChannelPrefix + collection
}
