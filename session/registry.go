package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/MrEthical07/goSession/device"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/store"
	"go.uber.org/zap"
)

var (
	// ErrUnauthorized is matched by every verification failure.
	ErrUnauthorized = errors.New("authentication failed")
	// ErrRevoked means the credential has no record: revoked, expired in the
	// store, or never registered. These cases are deliberately indistinguishable.
	ErrRevoked = errors.New("session revoked or unknown")
	// ErrSubjectMismatch means the stored record belongs to another subject.
	ErrSubjectMismatch = errors.New("session subject mismatch")
	// ErrRecordCorrupt means the stored record could not be decoded.
	ErrRecordCorrupt = errors.New("session record corrupt")
)

const (
	recordPrefix = "auth:token:"
	indexPrefix  = "auth:user_tokens:"

	// DefaultIndexGrace is how much longer a subject index lives than its members.
	DefaultIndexGrace = time.Hour

	mgetBatch = 500
)

// RecordKey returns the store key of a credential's record.
func RecordKey(credential string) string { return recordPrefix + credential }

// IndexKey returns the store key of a subject's index.
func IndexKey(subjectID string) string { return indexPrefix + subjectID }

// Codec signs and verifies credentials.
type Codec interface {
	Issue(subject string) (string, *jwt.Claims, error)
	Verify(credential string) (*jwt.Claims, error)
}

// Config tunes a [Registry].
type Config struct {
	// SingleSessionPerDevice revokes the subject's existing sessions of the
	// same device class before a new one is recorded.
	SingleSessionPerDevice bool
	// VerifySubject cross-checks the stored subject against the decoded claim.
	VerifySubject bool
	// IndexGrace extends the index TTL beyond the validity window.
	IndexGrace time.Duration
}

// DefaultConfig enables replacement and subject cross-checks.
func DefaultConfig() Config {
	return Config{
		SingleSessionPerDevice: true,
		VerifySubject:          true,
		IndexGrace:             DefaultIndexGrace,
	}
}

// Option customizes a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for hygiene and sweep diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock overrides the clock used by listings and sweeps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// Registry is the session state machine. It holds no state of its own beyond
// the injected store handle and is safe for concurrent use.
type Registry struct {
	store store.Store
	codec Codec
	cfg   Config
	log   *zap.Logger
	now   func() time.Time
}

// NewRegistry builds a Registry over s and codec.
func NewRegistry(s store.Store, codec Codec, cfg Config, opts ...Option) *Registry {
	if cfg.IndexGrace <= 0 {
		cfg.IndexGrace = DefaultIndexGrace
	}
	r := &Registry{
		store: s,
		codec: codec,
		cfg:   cfg,
		log:   zap.NewNop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Issued is the result of a successful [Registry.Issue].
type Issued struct {
	Credential string
	Claims     *jwt.Claims
	Record     Record
	// Replaced counts the same-class sessions revoked to make room.
	Replaced int
}

// Issue creates a credential for subjectID and records it. With
// SingleSessionPerDevice set, existing sessions of the same device class are
// revoked before the new record is written.
//
// CONCURRENCY NOTE: two concurrent issues for the same subject and class can
// both pass the replacement step and leave two live sessions. Callers needing
// strict exclusivity must serialize logins per subject.
func (r *Registry) Issue(ctx context.Context, subjectID string, meta Metadata) (*Issued, error) {
	info := device.Detect(meta.UserAgent, meta.DeviceHint)

	credential, claims, err := r.codec.Issue(subjectID)
	if err != nil {
		return nil, fmt.Errorf("issue credential: %w", err)
	}

	replaced := 0
	if r.cfg.SingleSessionPerDevice {
		replaced, err = r.revokeClass(ctx, subjectID, info.Class)
		if err != nil {
			return nil, err
		}
	}

	rec := Record{
		SubjectID:     subjectID,
		CreatedAt:     claims.IssuedAt.Unix(),
		ExpiresAt:     claims.ExpiresAt.Unix(),
		DeviceType:    info.Class,
		DeviceLabel:   info.Label,
		SourceAddress: meta.SourceAddress,
	}
	ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)

	if err := store.SetJSON(ctx, r.store, RecordKey(credential), rec, ttl); err != nil {
		return nil, err
	}
	if err := r.store.SAdd(ctx, IndexKey(subjectID), credential); err != nil {
		return nil, err
	}
	if _, err := r.store.Expire(ctx, IndexKey(subjectID), ttl+r.cfg.IndexGrace); err != nil {
		return nil, err
	}

	return &Issued{Credential: credential, Claims: claims, Record: rec, Replaced: replaced}, nil
}

// Verify authenticates a credential: signature and expiry first, then record
// liveness and, when enabled, the subject cross-check. Every failure matches
// ErrUnauthorized; store failures additionally match store.ErrUnavailable.
func (r *Registry) Verify(ctx context.Context, credential string) (*jwt.Claims, *Record, error) {
	claims, err := r.codec.Verify(credential)
	if err != nil {
		return nil, nil, errors.Join(ErrUnauthorized, err)
	}

	rec, ok, err := store.GetJSON[Record](ctx, r.store, RecordKey(credential))
	switch {
	case errors.Is(err, store.ErrEncoding):
		return nil, nil, errors.Join(ErrUnauthorized, ErrRecordCorrupt, err)
	case err != nil:
		return nil, nil, errors.Join(ErrUnauthorized, err)
	case !ok:
		return nil, nil, errors.Join(ErrUnauthorized, ErrRevoked)
	}

	if r.cfg.VerifySubject && rec.SubjectID != claims.Subject {
		return nil, nil, errors.Join(ErrUnauthorized, ErrSubjectMismatch)
	}
	return claims, &rec, nil
}

// Revoke deletes a credential's record and index membership. Revoking an
// absent credential is not an error.
//
// ATOMICITY NOTE: the two deletes are not transactional. A failure between them
// leaves a dangling index member, which later lookups treat as revoked.
func (r *Registry) Revoke(ctx context.Context, subjectID, credential string) error {
	if _, err := r.store.Delete(ctx, RecordKey(credential)); err != nil {
		return err
	}
	return r.store.SRem(ctx, IndexKey(subjectID), credential)
}

// RevokeAll revokes every credential in the subject index and deletes the
// index. The returned count is the index size read before deletion.
//
// ATOMICITY NOTE: a session issued concurrently after the index was read is not
// revoked. Callers that need a stronger guarantee must retry.
func (r *Registry) RevokeAll(ctx context.Context, subjectID string) (int, error) {
	members, err := r.store.SMembers(ctx, IndexKey(subjectID))
	if err != nil {
		return 0, err
	}
	for start := 0; start < len(members); start += mgetBatch {
		end := min(start+mgetBatch, len(members))
		keys := make([]string, 0, end-start)
		for _, m := range members[start:end] {
			keys = append(keys, RecordKey(m))
		}
		if _, err := r.store.Delete(ctx, keys...); err != nil {
			return 0, err
		}
	}
	if _, err := r.store.Delete(ctx, IndexKey(subjectID)); err != nil {
		return 0, err
	}
	return len(members), nil
}

// RevokeDevice revokes the subject's session for class. It reports whether a
// session was found; finding none is not an error.
func (r *Registry) RevokeDevice(ctx context.Context, subjectID string, class device.Class) (bool, error) {
	n, err := r.revokeClass(ctx, subjectID, class)
	return n > 0, err
}

func (r *Registry) revokeClass(ctx context.Context, subjectID string, class device.Class) (int, error) {
	sessions, err := r.load(ctx, subjectID)
	if err != nil {
		return 0, err
	}
	revoked := 0
	for _, s := range sessions {
		if s.Record.DeviceType != class {
			continue
		}
		if err := r.Revoke(ctx, subjectID, s.Credential); err != nil {
			return revoked, err
		}
		revoked++
	}
	return revoked, nil
}

// Sessions lists the subject's live sessions, newest first.
func (r *Registry) Sessions(ctx context.Context, subjectID string) ([]Session, error) {
	sessions, err := r.load(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	now := r.now()
	live := sessions[:0]
	for _, s := range sessions {
		if !s.Record.Expired(now) {
			live = append(live, s)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		return live[i].Record.CreatedAt > live[j].Record.CreatedAt
	})
	return live, nil
}

// load resolves the subject index into decodable records and prunes members
// whose record is gone.
func (r *Registry) load(ctx context.Context, subjectID string) ([]Session, error) {
	members, err := r.store.SMembers(ctx, IndexKey(subjectID))
	if err != nil {
		return nil, err
	}

	var (
		out      []Session
		dangling []string
	)
	for start := 0; start < len(members); start += mgetBatch {
		batch := members[start:min(start+mgetBatch, len(members))]
		keys := make([]string, len(batch))
		for i, m := range batch {
			keys[i] = RecordKey(m)
		}
		values, err := r.store.MGet(ctx, keys...)
		if err != nil {
			return nil, err
		}
		for i, m := range batch {
			raw, ok := values[keys[i]]
			if !ok {
				dangling = append(dangling, m)
				continue
			}
			rec, err := decodeRecord(raw)
			if err != nil {
				r.log.Warn("session: skipping corrupt record", zap.String("subject", subjectID), zap.Error(err))
				continue
			}
			out = append(out, Session{Credential: m, Record: rec})
		}
	}

	if len(dangling) > 0 {
		if err := r.store.SRem(ctx, IndexKey(subjectID), dangling...); err != nil {
			r.log.Debug("session: index prune failed", zap.String("subject", subjectID), zap.Error(err))
		}
	}
	return out, nil
}

// Count returns the subject index cardinality. Dangling members are counted
// until they are pruned.
func (r *Registry) Count(ctx context.Context, subjectID string) (int64, error) {
	return r.store.SCard(ctx, IndexKey(subjectID))
}

// Info returns the stored record for a credential.
func (r *Registry) Info(ctx context.Context, credential string) (*Record, bool, error) {
	rec, ok, err := store.GetJSON[Record](ctx, r.store, RecordKey(credential))
	if errors.Is(err, store.ErrEncoding) {
		return nil, false, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	if err != nil || !ok {
		return nil, false, err
	}
	return &rec, true, nil
}

// Sweep deletes records whose expiry has passed, together with their index
// membership, and returns how many were removed. Correctness never depends on
// it; it bounds memory when store-side expiry is not effective.
func (r *Registry) Sweep(ctx context.Context) (int, error) {
	keys, err := r.store.Keys(ctx, recordPrefix+"*")
	if err != nil {
		return 0, err
	}

	now := r.now()
	removed := 0
	for start := 0; start < len(keys); start += mgetBatch {
		batch := keys[start:min(start+mgetBatch, len(keys))]
		values, err := r.store.MGet(ctx, batch...)
		if err != nil {
			return removed, err
		}
		for _, key := range batch {
			raw, ok := values[key]
			if !ok {
				continue
			}
			rec, err := decodeRecord(raw)
			if err != nil {
				r.log.Warn("session: sweep skipping corrupt record", zap.Error(err))
				continue
			}
			if !rec.Expired(now) {
				continue
			}
			credential := key[len(recordPrefix):]
			if err := r.Revoke(ctx, rec.SubjectID, credential); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}
