package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/billaspace/anonxmusic/internal/ports"
)

const (
	bansFileMode    = 0o600
	bansDirMode     = 0o700
	tempFilePattern = ".bans-*.toml.tmp"
)

type fileSchema struct {
	Global []int64 `toml:"gbanned"`
	Local  []int64 `toml:"banned"`
}

// Store is the fallback ban store: one TOML file, replaced atomically on
// every write so a crash never leaves a half-written ban list.
type Store struct {
	path string
	mu   *sync.RWMutex
}

var _ ports.BanStore = (*Store)(nil)

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

func NewStore(path string) (*Store, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve bans path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	return &Store{path: absPath, mu: lockForPath(absPath)}, nil
}

func (s *Store) LoadGlobalBans(ctx context.Context) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.read()
	if err != nil {
		return nil, err
	}
	return file.Global, nil
}

func (s *Store) LoadLocalBans(ctx context.Context) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.read()
	if err != nil {
		return nil, err
	}
	return file.Local, nil
}

func (s *Store) PersistBan(ctx context.Context, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return err
	}

	for _, existing := range file.Global {
		if existing == userID {
			return nil
		}
	}
	file.Global = append(file.Global, userID)

	return s.write(file)
}

func (s *Store) PersistUnban(ctx context.Context, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return err
	}

	file.Global = remove(file.Global, userID)
	file.Local = remove(file.Local, userID)

	return s.write(file)
}

func (s *Store) read() (fileSchema, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{}, nil
		}
		return fileSchema{}, fmt.Errorf("read bans file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode bans file: %w", err)
	}
	return file, nil
}

func (s *Store) write(file fileSchema) error {
	if err := os.MkdirAll(filepath.Dir(s.path), bansDirMode); err != nil {
		return fmt.Errorf("create bans directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode bans file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp bans file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp bans file: %w", err)
	}

	if err := tempFile.Chmod(bansFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp bans file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp bans file: %w", err)
	}

	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace bans file: %w", err)
	}

	cleanup = false
	return nil
}

func remove(ids []int64, userID int64) []int64 {
	out := ids[:0]
	for _, id := range ids {
		if id != userID {
			out = append(out, id)
		}
	}
	return out
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}
