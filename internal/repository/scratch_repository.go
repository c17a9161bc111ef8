package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ScratchSession is the server-side scratch record backing the onboarding
// wizard. The client accumulates form state locally; the server only
// tracks the issued session id and the chosen user type so that a resumed
// wizard can land on the right branch.
type ScratchSession struct {
	ID        string    `json:"id"`
	UserType  string    `json:"user_type,omitempty"` // athlete | business, empty until chosen
	CreatedAt time.Time `json:"created_at"`
}

// scratchStore is the slice of the Redis API the repo needs. Tests swap
// in a fake; *redis.Client satisfies it in production.
type scratchStore interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// ScratchRepo stores wizard scratch sessions in Redis with a TTL, so
// abandoned wizards expire without cleanup jobs. A nil Redis client
// disables the wizard endpoints; handlers report that to callers.
type ScratchRepo struct {
	RDB scratchStore
	TTL time.Duration
}

func NewScratchRepo(rdb *redis.Client, ttl time.Duration) *ScratchRepo {
	return &ScratchRepo{RDB: rdb, TTL: ttl}
}

func scratchKey(id string) string { return "wizard:scratch:" + id }

// New issues a fresh scratch session and stores it under its TTL.
func (r *ScratchRepo) New(ctx context.Context) (ScratchSession, error) {
	s := ScratchSession{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	body, err := json.Marshal(s)
	if err != nil {
		return ScratchSession{}, err
	}
	if err := r.RDB.Set(ctx, scratchKey(s.ID), body, r.TTL).Err(); err != nil {
		return ScratchSession{}, err
	}
	return s, nil
}

// Get fetches a scratch session by id. Unknown or expired ids map to
// ErrNotFound.
func (r *ScratchRepo) Get(ctx context.Context, id string) (ScratchSession, error) {
	body, err := r.RDB.Get(ctx, scratchKey(id)).Bytes()
	if err == redis.Nil {
		return ScratchSession{}, ErrNotFound
	}
	if err != nil {
		return ScratchSession{}, err
	}
	var s ScratchSession
	if err := json.Unmarshal(body, &s); err != nil {
		return ScratchSession{}, err
	}
	return s, nil
}

// SetUserType records the chosen role on an existing scratch session,
// refreshing its TTL so an active wizard does not expire mid-flow.
func (r *ScratchRepo) SetUserType(ctx context.Context, id, userType string) (ScratchSession, error) {
	s, err := r.Get(ctx, id)
	if err != nil {
		return ScratchSession{}, err
	}
	s.UserType = userType
	body, err := json.Marshal(s)
	if err != nil {
		return ScratchSession{}, err
	}
	if err := r.RDB.Set(ctx, scratchKey(id), body, r.TTL).Err(); err != nil {
		return ScratchSession{}, err
	}
	return s, nil
}
