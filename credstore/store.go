package credstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrStorage reports that the persistent medium rejected a write and the
	// store is now holding credentials in memory only. It is non-fatal: the
	// save itself succeeded into the fallback holder.
	ErrStorage = errors.New("credential storage degraded")

	// ErrEmptyAccessToken rejects a save of an incomplete pair.
	ErrEmptyAccessToken = errors.New("access token must not be empty")
)

// DefaultStalenessCeiling is the absolute age after which a persisted
// credential is discarded unconditionally.
const DefaultStalenessCeiling = 24 * time.Hour

// Store owns the encoded-at-rest form of the credential pair and the user
// profile blob. All writers go through Save/SaveProfile so every persisted
// record is complete and self-consistent; partial updates are impossible by
// construction.
//
// Store is safe for concurrent use.
type Store struct {
	medium    Medium
	cipher    Cipher
	staleness time.Duration
	log       *slog.Logger
	now       func() time.Time

	mu         sync.Mutex
	degraded   bool
	memCred    *StoredCredential
	memProfile []byte
	lastIssued int64
}

// NewStore builds a store over the given medium and cipher. A zero staleness
// falls back to [DefaultStalenessCeiling]; a nil logger discards.
func NewStore(medium Medium, cipher Cipher, staleness time.Duration, log *slog.Logger) *Store {
	if cipher == nil {
		cipher = Base64Cipher{}
	}
	if staleness <= 0 {
		staleness = DefaultStalenessCeiling
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Store{
		medium:    medium,
		cipher:    cipher,
		staleness: staleness,
		log:       log,
		now:       time.Now,
	}
}

// Save encodes and persists a complete token pair. A zero IssuedAt is stamped
// with the current time, and IssuedAt never regresses across saves. On a
// medium write failure the pair is kept in a memory holder for the remainder
// of the process lifetime and Save returns [ErrStorage]; callers log it and
// carry on.
func (s *Store) Save(ctx context.Context, pair TokenPair) error {
	if pair.AccessToken == "" {
		return ErrEmptyAccessToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if pair.IssuedAt == 0 {
		pair.IssuedAt = now.Unix()
	}
	if pair.IssuedAt < s.lastIssued {
		pair.IssuedAt = s.lastIssued
	}
	s.lastIssued = pair.IssuedAt

	rec := &StoredCredential{
		Pair:          pair,
		StoredAt:      now.Unix(),
		SchemaVersion: RecordVersionCurrent,
	}

	if s.degraded {
		s.memCred = rec
		return nil
	}

	encoded, err := Encode(rec)
	if err != nil {
		return err
	}
	sealed, err := s.cipher.Seal(encoded)
	if err != nil {
		return err
	}

	if err := s.medium.Write(ctx, CredentialKey, sealed); err != nil {
		s.degraded = true
		s.memCred = rec
		s.log.Warn("credential write failed, degrading to memory", "error", err)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	s.memCred = nil
	return nil
}

// Load returns the persisted token pair, or ok=false when no usable record
// exists. A stale or undecodable record is erased as a side effect and
// reported as absent.
func (s *Store) Load(ctx context.Context) (TokenPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		if s.memCred == nil || s.isStale(s.memCred) {
			if s.memCred != nil {
				s.eraseLocked(ctx, CredentialKey)
			}
			s.memCred = nil
			return TokenPair{}, false, nil
		}
		return s.memCred.Pair, true, nil
	}

	sealed, err := s.medium.Read(ctx, CredentialKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, false, nil
		}
		return TokenPair{}, false, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	rec, err := s.decodeRecord(sealed)
	if err != nil {
		s.log.Warn("erasing undecodable credential record", "error", err)
		s.eraseLocked(ctx, CredentialKey)
		return TokenPair{}, false, nil
	}

	if s.isStale(rec) {
		s.log.Debug("erasing stale credential record",
			"stored_at", rec.StoredAt, "ceiling", s.staleness)
		s.eraseLocked(ctx, CredentialKey)
		return TokenPair{}, false, nil
	}

	if rec.Pair.IssuedAt > s.lastIssued {
		s.lastIssued = rec.Pair.IssuedAt
	}
	return rec.Pair, true, nil
}

// Clear erases the credential and profile records and any memory fallback.
// It is idempotent and deliberately never fails: a medium that cannot erase
// is logged and left to staleness eviction.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.memCred = nil
	s.memProfile = nil
	s.eraseLocked(ctx, CredentialKey, ProfileKey)
}

// SaveProfile persists the opaque user-profile blob with the same
// degradation behavior as Save.
func (s *Store) SaveProfile(ctx context.Context, profile []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]byte, len(profile))
	copy(cp, profile)

	if s.degraded {
		s.memProfile = cp
		return nil
	}

	sealed, err := s.cipher.Seal(cp)
	if err != nil {
		return err
	}
	if err := s.medium.Write(ctx, ProfileKey, sealed); err != nil {
		s.degraded = true
		s.memProfile = cp
		s.log.Warn("profile write failed, degrading to memory", "error", err)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	s.memProfile = nil
	return nil
}

// LoadProfile returns the persisted profile blob, or ok=false when absent or
// unreadable. Unreadable records are erased.
func (s *Store) LoadProfile(ctx context.Context) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		if s.memProfile == nil {
			return nil, false, nil
		}
		return s.memProfile, true, nil
	}

	sealed, err := s.medium.Read(ctx, ProfileKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	data, err := s.cipher.Open(sealed)
	if err != nil {
		s.log.Warn("erasing undecodable profile record", "error", err)
		s.eraseLocked(ctx, ProfileKey)
		return nil, false, nil
	}
	return data, true, nil
}

// Degraded reports whether the store has fallen back to memory-only mode.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *Store) decodeRecord(sealed []byte) (*StoredCredential, error) {
	encoded, err := s.cipher.Open(sealed)
	if err != nil {
		return nil, err
	}
	return Decode(encoded)
}

func (s *Store) isStale(rec *StoredCredential) bool {
	return s.now().Sub(time.Unix(rec.StoredAt, 0)) > s.staleness
}

// eraseLocked attempts the medium erase even in degraded mode: a medium that
// rejected a write may still hold records persisted before degradation, and
// those must not outlive a clear.
func (s *Store) eraseLocked(ctx context.Context, keys ...string) {
	if err := s.medium.Erase(ctx, keys...); err != nil && !errors.Is(err, ErrNotFound) {
		s.log.Warn("credential erase failed", "error", err)
	}
}
