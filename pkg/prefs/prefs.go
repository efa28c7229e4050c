// Package prefs implements the small persisted key-value store the core uses
// for selections, sessions, tokens and the sync method. Values are plain
// strings; absence is reported with a NOT_FOUND error.
package prefs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/cashlia/cashlia-core/pkg/errors"
)

// Well-known preference keys consumed by the core.
const (
	KeyCurrentBusiness   = "current_business_id"
	KeyCurrentBook       = "current_book_id"
	KeySyncMethod        = "sync_method"
	KeyEncryptionKey     = "encryption_key"
	KeyUserSession       = "user_session"
	KeyDriveToken        = "drive_access_token"
	KeyDriveRefreshToken = "drive_refresh_token"
	KeyPendingInvitation = "pending_invitation"
)

// Prefs is the load/store contract for per-install preferences.
type Prefs interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// FilePrefs persists preferences as a single JSON object on disk.
type FilePrefs struct {
	mu   sync.Mutex
	path string
}

// NewFilePrefs opens (or lazily creates) a file-backed preference store.
func NewFilePrefs(path string) (*FilePrefs, error) {
	if path == "" {
		return nil, errors.New(errors.CodeConfiguration, "prefs path is required")
	}
	return &FilePrefs{path: path}, nil
}

func (p *FilePrefs) Get(ctx context.Context, key string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	values, err := p.load()
	if err != nil {
		return "", err
	}
	value, ok := values[key]
	if !ok {
		return "", errors.New(errors.CodeNotFound, "preference not set").WithDetails(key)
	}
	return value, nil
}

func (p *FilePrefs) Set(ctx context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	values, err := p.load()
	if err != nil {
		return err
	}
	values[key] = value
	return p.persist(values)
}

func (p *FilePrefs) Remove(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	values, err := p.load()
	if err != nil {
		return err
	}
	delete(values, key)
	return p.persist(values)
}

func (p *FilePrefs) load() (map[string]string, error) {
	raw, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "read preferences")
	}
	values := map[string]string{}
	if len(raw) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "decode preferences")
	}
	return values, nil
}

func (p *FilePrefs) persist(values map[string]string) error {
	raw, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "encode preferences")
	}
	tmp := p.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return errors.Wrap(errors.CodeDependency, err, "create preferences dir")
	}
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return errors.Wrap(errors.CodeDependency, err, "write preferences")
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return errors.Wrap(errors.CodeDependency, err, "replace preferences")
	}
	return nil
}

// Memory is an in-process Prefs used by tests.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemory returns an empty in-memory preference store.
func NewMemory() *Memory {
	return &Memory{values: map[string]string{}}
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	if !ok {
		return "", errors.New(errors.CodeNotFound, "preference not set").WithDetails(key)
	}
	return value, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
