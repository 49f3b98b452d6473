// Package trust persists the device trust blob the remote issues so later
// logons can skip secondary verification.
package trust

import (
	"crypto/sha1"
	"os"
	"path/filepath"

	"github.com/eshaffer321/steamtotwitter-go/internal/types"
	"github.com/moby/sys/atomicwriter"
	"github.com/pkg/errors"
)

// Token is a stored trust blob and its SHA-1 hash
type Token struct {
	Data []byte
	Hash []byte
}

// NewToken hashes data
func NewToken(data []byte) Token {
	sum := sha1.Sum(data)
	return Token{Data: data, Hash: sum[:]}
}

// Store loads and saves the token
type Store interface {
	// Load returns ok=false when nothing is stored yet
	Load() (tok Token, ok bool, err error)
	Save(data []byte) (Token, error)
}

// FileStore keeps the raw blob in a single file
type FileStore struct {
	path   string
	logger types.Logger
}

// NewFileStore creates a store at path
func NewFileStore(path string, logger types.Logger) *FileStore {
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the file location
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the blob from disk
func (s *FileStore) Load() (Token, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Token{}, false, nil
		}
		return Token{}, false, errors.Wrap(err, "failed to read trust file")
	}
	if len(data) == 0 {
		return Token{}, false, nil
	}

	tok := NewToken(data)
	s.logger.Debug("Trust token loaded", "path", s.path, "bytes", len(data))
	return tok, true, nil
}

// Save writes the blob, replacing any previous one
func (s *FileStore) Save(data []byte) (Token, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return Token{}, errors.Wrap(err, "failed to create trust directory")
	}

	// a crash never leaves half a blob behind
	if err := atomicwriter.WriteFile(s.path, data, 0600); err != nil {
		return Token{}, errors.Wrap(err, "failed to write trust file")
	}

	s.logger.Info("Trust token saved", "path", s.path)
	return NewToken(data), nil
}
