package checkpoint

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/sarchlab/cyclesim/insts"
)

var (
	// ErrNotFound is returned by Load when no image is stored for a key.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("checkpoint store closed")
)

const wordBytes = 8

var imagePrefix = []byte("image/")

// Store persists memory images in a pebble database.
type Store struct {
	mu     sync.RWMutex
	db     *pebble.DB
	closed bool
}

// Open opens or creates the store in dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}

	return &Store{db: db}, nil
}

func imageKey(k Key) []byte {
	return append(append([]byte(nil), imagePrefix...), k[:]...)
}

// Save stores image under k, replacing any previous image.
func (s *Store) Save(k Key, image []insts.Word) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if err := s.db.Set(imageKey(k), encodeImage(image), pebble.Sync); err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", k, err)
	}

	return nil
}

// Load returns the image stored under k.
func (s *Store) Load(k Key) ([]insts.Word, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	value, closer, err := s.db.Get(imageKey(k))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, k)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", k, err)
	}
	defer closer.Close()

	return decodeImage(value)
}

// Close closes the underlying database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.db.Close()
}

func encodeImage(image []insts.Word) []byte {
	buf := make([]byte, len(image)*wordBytes)
	for i, w := range image {
		binary.LittleEndian.PutUint64(buf[i*wordBytes:], uint64(w))
	}
	return buf
}

func decodeImage(buf []byte) ([]insts.Word, error) {
	if len(buf)%wordBytes != 0 {
		return nil, fmt.Errorf("corrupt checkpoint: %d bytes is not a whole number of words", len(buf))
	}

	image := make([]insts.Word, len(buf)/wordBytes)
	for i := range image {
		image[i] = insts.Word(binary.LittleEndian.Uint64(buf[i*wordBytes:]))
	}
	return image, nil
}
