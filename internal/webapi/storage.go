package webapi

import (
	"slices"
	"sync"

	"github.com/cryguy/offscreen/internal/core"
	"github.com/cryguy/offscreen/internal/eventloop"
)

// Storage is a string key/value store backing window.localStorage.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	Clear() error
	Keys() ([]string, error)
}

// MemoryStorage is a Storage that lives as long as the value does. It backs
// sessionStorage and localStorage for pages without an origin.
type MemoryStorage struct {
	mu    sync.Mutex
	items map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	m.items[key] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Delete(key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Clear() error {
	m.mu.Lock()
	clear(m.items)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Keys() ([]string, error) {
	m.mu.Lock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	m.mu.Unlock()
	slices.Sort(keys)
	return keys, nil
}

const storageJS = `
(function() {
	function make(p) {
		var s = {
			getItem: function(k) { return JSON.parse(__storageGet(p, String(k))); },
			setItem: function(k, v) { __storageSet(p, String(k), String(v)); },
			removeItem: function(k) { __storageDelete(p, String(k)); },
			clear: function() { __storageClear(p); },
			key: function(i) {
				var keys = JSON.parse(__storageKeys(p));
				return i >= 0 && i < keys.length ? keys[i] : null;
			}
		};
		Object.defineProperty(s, 'length', { get: function() { return JSON.parse(__storageKeys(p)).length; } });
		return s;
	}
	globalThis.localStorage = make('local');
	globalThis.sessionStorage = make('session');
})();
`

// SetupStorage installs localStorage, backed by the page's store, and a
// per-document sessionStorage.
func SetupStorage(rt core.JSRuntime, _ *eventloop.EventLoop, page Page) error {
	session := NewMemoryStorage()
	var local Storage = page.Storage()
	if local == nil {
		local = NewMemoryStorage()
	}
	pick := func(area string) Storage {
		if area == "session" {
			return session
		}
		return local
	}

	if err := rt.RegisterFunc("__storageGet", func(area, key string) (string, error) {
		v, ok, err := pick(area).Get(key)
		if err != nil || !ok {
			return "null", err
		}
		return jsonString(v), nil
	}); err != nil {
		return err
	}
	if err := rt.RegisterFunc("__storageSet", func(area, key, value string) (int, error) {
		return 0, pick(area).Set(key, value)
	}); err != nil {
		return err
	}
	if err := rt.RegisterFunc("__storageDelete", func(area, key string) (int, error) {
		return 0, pick(area).Delete(key)
	}); err != nil {
		return err
	}
	if err := rt.RegisterFunc("__storageClear", func(area string) (int, error) {
		return 0, pick(area).Clear()
	}); err != nil {
		return err
	}
	if err := rt.RegisterFunc("__storageKeys", func(area string) (string, error) {
		keys, err := pick(area).Keys()
		if err != nil {
			return "[]", err
		}
		if keys == nil {
			keys = []string{}
		}
		return jsonString(keys), nil
	}); err != nil {
		return err
	}
	return rt.Eval(storageJS)
}
