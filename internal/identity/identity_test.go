package identity

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stravella/chatwidget/internal/widgetconfig"
)

type flakyStorage struct {
	getErr, setErr error
	values         map[string]string
	sets           int
}

func (f *flakyStorage) Get(key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	return f.values[key], nil
}

func (f *flakyStorage) Set(key, value string) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	if f.values == nil {
		f.values = make(map[string]string)
	}
	f.values[key] = value
	return nil
}

type originRecorder []Origin

func (r *originRecorder) ObserveThreadID(o Origin) { *r = append(*r, o) }

func testConfig() widgetconfig.Config {
	return widgetconfig.Resolve(widgetconfig.Options{}, widgetconfig.Overrides{ClientID: "acme", PackID: "plumbing"})
}

func TestStorageKey(t *testing.T) {
	assert.Equal(t, "stravella_thread_id::acme::plumbing", StorageKey("acme", "plumbing"))
	assert.NotEqual(t, StorageKey("acme", "a"), StorageKey("acme", "b"))
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	var rec originRecorder
	s := NewStore(NewMemoryStorage(), zerolog.Nop()).WithObserver(&rec)
	cfg := testConfig()

	first := s.GetOrCreateThreadID(cfg)
	second := s.GetOrCreateThreadID(cfg)

	assert.True(t, ValidThreadID(first), first)
	assert.Equal(t, first, second)
	assert.Equal(t, originRecorder{OriginCreated, OriginStored}, rec)
}

func TestGetOrCreateSeparatesPacks(t *testing.T) {
	s := NewStore(NewMemoryStorage(), zerolog.Nop())
	a := s.GetOrCreateThreadID(testConfig())

	other := testConfig()
	other.PackID = "hvac"
	b := s.GetOrCreateThreadID(other)

	assert.NotEqual(t, a, b)
}

func TestGetOrCreateTrimsStoredValue(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(StorageKey("acme", "plumbing"), "  existing-thread \n"))
	s := NewStore(storage, zerolog.Nop())

	id, origin := s.Resolve(testConfig())
	assert.Equal(t, "existing-thread", id)
	assert.Equal(t, OriginStored, origin)
}

func TestGetOrCreateReplacesBlankValue(t *testing.T) {
	storage := &flakyStorage{values: map[string]string{StorageKey("acme", "plumbing"): "   "}}
	s := NewStore(storage, zerolog.Nop())

	id, origin := s.Resolve(testConfig())
	assert.True(t, ValidThreadID(id))
	assert.Equal(t, OriginCreated, origin)
	assert.Equal(t, id, storage.values[StorageKey("acme", "plumbing")])
}

func TestGetOrCreateStorageFailures(t *testing.T) {
	boom := errors.New("quota exceeded")
	cases := []struct {
		name    string
		storage Storage
	}{
		{"read and write fail", UnavailableStorage{}},
		{"read fails", &flakyStorage{getErr: boom}},
		{"write fails", &flakyStorage{setErr: boom}},
		{"nil storage", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore(tc.storage, zerolog.Nop())
			first, origin := s.Resolve(testConfig())
			second := s.GetOrCreateThreadID(testConfig())

			assert.Equal(t, OriginEphemeral, origin)
			assert.True(t, ValidThreadID(first), first)
			assert.True(t, ValidThreadID(second), second)
			assert.NotEqual(t, first, second, "degraded ids are not remembered")
		})
	}
}

func TestReadFailureSkipsWrite(t *testing.T) {
	storage := &flakyStorage{getErr: errors.New("denied")}
	NewStore(storage, zerolog.Nop()).GetOrCreateThreadID(testConfig())
	assert.Zero(t, storage.sets)
}

func TestThreadIDShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		id := NewThreadID()
		require.Len(t, id, 36)
		require.True(t, ValidThreadID(id), id)

		fb := fallbackThreadID()
		require.Len(t, fb, 36)
		require.True(t, ValidThreadID(fb), fb)
	}
	assert.False(t, ValidThreadID("not-a-uuid"))
	assert.False(t, ValidThreadID("123e4567-e89b-12d3-a456-426614174000"))
}
