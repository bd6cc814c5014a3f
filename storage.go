package battlecard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zalando/go-keyring"
)

// The token pair is the only state persisted outside process memory. It lives
// under these two keys in whichever store the client was configured with.
const (
	StorageKeyAccessToken  = "battlecard.access_token"
	StorageKeyRefreshToken = "battlecard.refresh_token"
)

// keyringService is the service name used for system keyring entries.
const keyringService = "battlecard"

var (
	// ErrTokenNotFound is returned when a key has no stored value.
	ErrTokenNotFound = errors.New("battlecard: token not found")

	// ErrStoreUnavailable is returned when the backing store cannot be
	// reached, e.g. a locked keyring or an unwritable credentials file.
	ErrStoreUnavailable = errors.New("battlecard: token store unavailable")
)

// TokenStore is the minimal key-value persistence capability the token
// manager writes through. Implementations must be safe for concurrent use.
type TokenStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps tokens in process memory. It is the default store and
// the one tests use.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTokenNotFound, key)
	}
	return v, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return fmt.Errorf("%w: %s", ErrTokenNotFound, key)
	}
	delete(s.values, key)
	return nil
}

// KeyringStore persists tokens in the system keyring: Keychain Access on
// macOS, Secret Service on Linux, Credential Manager on Windows.
type KeyringStore struct {
	available bool
}

// NewKeyringStore probes the keyring service and returns a store backed by
// it. A locked or absent keyring is detected up front so callers can fall
// back to a FileStore.
func NewKeyringStore() *KeyringStore {
	s := &KeyringStore{available: true}
	_, err := keyring.Get(keyringService, "__battlecard_probe__")
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		s.available = false
	}
	return s
}

// Available reports whether the keyring service answered the startup probe.
func (s *KeyringStore) Available() bool {
	return s.available
}

func (s *KeyringStore) Get(_ context.Context, key string) (string, error) {
	if !s.available {
		return "", ErrStoreUnavailable
	}
	v, err := keyring.Get(keyringService, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrTokenNotFound, key)
		}
		return "", fmt.Errorf("keyring: %w", err)
	}
	return v, nil
}

func (s *KeyringStore) Set(_ context.Context, key, value string) error {
	if !s.available {
		return ErrStoreUnavailable
	}
	if err := keyring.Set(keyringService, key, value); err != nil {
		return fmt.Errorf("keyring: %w", err)
	}
	return nil
}

func (s *KeyringStore) Delete(_ context.Context, key string) error {
	if !s.available {
		return ErrStoreUnavailable
	}
	if err := keyring.Delete(keyringService, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrTokenNotFound, key)
		}
		return fmt.Errorf("keyring: %w", err)
	}
	return nil
}

// FileStore persists tokens as a JSON map in a mode-0600 file. Meant for
// headless environments where no keyring service runs.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store writing to the given path. Parent directories
// are created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultCredentialsPath returns the conventional location for the
// credentials file under the user config directory.
func DefaultCredentialsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("battlecard: resolve config dir: %w", err)
	}
	return filepath.Join(dir, "battlecard", "credentials.json"), nil
}

func (s *FileStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTokenNotFound, key)
	}
	return v, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return fmt.Errorf("%w: %s", ErrTokenNotFound, key)
	}
	delete(values, key)
	return s.save(values)
}

func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		// A corrupt file is unrecoverable; start over rather than wedge
		// every auth operation.
		return make(map[string]string), nil
	}
	return values, nil
}

func (s *FileStore) save(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
