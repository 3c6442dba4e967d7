package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var errCorrupt = errors.New("corrupt store file")

type fileEntry struct {
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// fileBackend JSON-файл с правами 0600. Запись атомарная: временный файл и rename
type fileBackend struct {
	name     string
	path     string
	honorTTL bool
	now      func() time.Time
	mu       sync.Mutex
}

// NewCookieJar хранилище с семантикой cookie: у каждой записи свой срок жизни
func NewCookieJar(path string) Backend {
	return &fileBackend{name: "cookie", path: path, honorTTL: true, now: time.Now}
}

// NewFileStore хранилище с семантикой localStorage: записи живут до явного удаления
func NewFileStore(path string) Backend {
	return &fileBackend{name: "local", path: path, now: time.Now}
}

func (f *fileBackend) Name() string { return f.name }

func (f *fileBackend) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return "", err
	}
	e, ok := data[key]
	if !ok {
		return "", ErrNotFound
	}
	if e.ExpiresAt != nil && !f.now().Before(*e.ExpiresAt) {
		return "", ErrNotFound
	}
	return e.Value, nil
}

func (f *fileBackend) Set(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// повреждённый файл перезаписываем: все ключи в нём принадлежат сессии
	data, err := f.load()
	if errors.Is(err, errCorrupt) {
		data, err = make(map[string]fileEntry), nil
	}
	if err != nil {
		return err
	}

	e := fileEntry{Value: value}
	if f.honorTTL && ttl > 0 {
		exp := f.now().Add(ttl)
		e.ExpiresAt = &exp
	}
	data[key] = e
	f.dropExpired(data)

	return f.save(data)
}

func (f *fileBackend) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	changed := false
	if errors.Is(err, errCorrupt) {
		data, err, changed = make(map[string]fileEntry), nil, true
	}
	if err != nil {
		return err
	}

	for _, k := range keys {
		if _, ok := data[k]; ok {
			delete(data, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.save(data)
}

func (f *fileBackend) dropExpired(data map[string]fileEntry) {
	now := f.now()
	for k, e := range data {
		if e.ExpiresAt != nil && !now.Before(*e.ExpiresAt) {
			delete(data, k)
		}
	}
}

func (f *fileBackend) load() (map[string]fileEntry, error) {
	data := make(map[string]fileEntry)

	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s store: %w", f.name, err)
	}
	if len(b) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("%w %s: %v", errCorrupt, f.path, err)
	}
	return data, nil
}

func (f *fileBackend) save(data map[string]fileEntry) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write %s store: %w", f.name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s store: %w", f.name, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path)
}
