// Package identity provides the per-visitor conversation identifier.
package identity

import (
	"math/rand"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stravella/chatwidget/internal/widgetconfig"
)

const keyNamespace = "stravella_thread_id"

// Origin says where a resolved thread id came from.
type Origin string

const (
	OriginStored    Origin = "stored"
	OriginCreated   Origin = "created"
	OriginEphemeral Origin = "ephemeral"
)

var threadIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// StorageKey is the key a thread id for (clientID, packID) is stored under.
func StorageKey(clientID, packID string) string {
	return keyNamespace + "::" + clientID + "::" + packID
}

// NewThreadID returns a random version 4 UUID string.
func NewThreadID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fallbackThreadID()
	}
	return id.String()
}

// fallbackThreadID fills the v4 template from a non-cryptographic source
// when the system random reader fails.
func fallbackThreadID() string {
	const template = "xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx"
	const hex = "0123456789abcdef"
	b := []byte(template)
	for i, c := range b {
		r := rand.Intn(16)
		switch c {
		case 'x':
			b[i] = hex[r]
		case 'y':
			b[i] = hex[(r&0x3)|0x8]
		}
	}
	return string(b)
}

// ValidThreadID reports whether id has the shape NewThreadID produces.
func ValidThreadID(id string) bool {
	return threadIDPattern.MatchString(id)
}

// Observer is notified of every resolution.
type Observer interface {
	ObserveThreadID(origin Origin)
}

// Store hands out thread ids, persisting them in Storage when it can.
type Store struct {
	storage  Storage
	log      zerolog.Logger
	observer Observer
}

func NewStore(storage Storage, logger zerolog.Logger) *Store {
	if storage == nil {
		storage = UnavailableStorage{}
	}
	return &Store{storage: storage, log: logger}
}

// WithObserver sets the observer and returns the store.
func (s *Store) WithObserver(o Observer) *Store {
	s.observer = o
	return s
}

// GetOrCreateThreadID returns the thread id for the config's client and pack,
// creating and persisting one on first use. It never fails: when storage
// errors, a fresh id is returned without being persisted.
func (s *Store) GetOrCreateThreadID(cfg widgetconfig.Config) string {
	id, _ := s.Resolve(cfg)
	return id
}

// Resolve is GetOrCreateThreadID that also reports the id's origin.
func (s *Store) Resolve(cfg widgetconfig.Config) (string, Origin) {
	id, origin := s.resolve(cfg)
	if s.observer != nil {
		s.observer.ObserveThreadID(origin)
	}
	return id, origin
}

func (s *Store) resolve(cfg widgetconfig.Config) (string, Origin) {
	key := StorageKey(cfg.ClientID, cfg.PackID)

	existing, err := s.storage.Get(key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("thread id storage read failed, using ephemeral id")
		return NewThreadID(), OriginEphemeral
	}
	if existing = strings.TrimSpace(existing); existing != "" {
		return existing, OriginStored
	}

	id := NewThreadID()
	if err := s.storage.Set(key, id); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("thread id storage write failed, using ephemeral id")
		return id, OriginEphemeral
	}
	s.log.Debug().Str("key", key).Str("thread_id", id).Msg("created thread id")
	return id, OriginCreated
}
