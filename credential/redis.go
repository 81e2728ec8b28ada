package credential

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one Redis hash per account plus an email index key.
// All counter and lock mutations run as Lua scripts, which gives each
// account a single serialized read-modify-write.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a RedisStore. The prefix namespaces all keys and
// may be empty.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) recordKey(id string) string {
	return s.prefix + "cred:" + id
}

func (s *RedisStore) emailKey(email string) string {
	return s.prefix + "cred:email:" + email
}

const createScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1])
redis.call("HSET", KEYS[2],
  "id", ARGV[1],
  "email", ARGV[2],
  "password_hash", ARGV[3],
  "active", ARGV[4],
  "failed_login_count", "0")
if ARGV[5] ~= "" then
  redis.call("HSET", KEYS[2], "password_changed_at", ARGV[5])
end
return 1
`

const deleteScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("GET", KEYS[2]) == ARGV[1] then
  redis.call("DEL", KEYS[2])
end
redis.call("DEL", KEYS[1])
return 1
`

const updateEmailScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
if redis.call("HGET", KEYS[1], "email") ~= ARGV[1] then
  return -2
end
if KEYS[2] ~= KEYS[3] and redis.call("EXISTS", KEYS[3]) == 1 then
  return 0
end
redis.call("DEL", KEYS[2])
redis.call("SET", KEYS[3], ARGV[3])
redis.call("HSET", KEYS[1], "email", ARGV[2])
return 1
`

const updatePasswordScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1],
  "password_hash", ARGV[1],
  "password_changed_at", ARGV[2],
  "failed_login_count", "0")
redis.call("HDEL", KEYS[1], "locked_until")
return 1
`

const rehashPasswordScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "password_hash", ARGV[1])
return 1
`

const setActiveScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "active", ARGV[1])
return 1
`

const clearExpiredLockScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local locked = tonumber(redis.call("HGET", KEYS[1], "locked_until") or "0")
if locked > 0 and locked <= tonumber(ARGV[1]) then
  redis.call("HDEL", KEYS[1], "locked_until")
  redis.call("HSET", KEYS[1], "failed_login_count", "0")
  return 1
end
return 0
`

const recordFailureScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return {-1, 0, 0}
end
local now = tonumber(ARGV[1])
local locked = tonumber(redis.call("HGET", KEYS[1], "locked_until") or "0")
if locked > now then
  local count = tonumber(redis.call("HGET", KEYS[1], "failed_login_count") or "0")
  return {count, locked, 1}
end
if locked > 0 then
  redis.call("HDEL", KEYS[1], "locked_until")
  redis.call("HSET", KEYS[1], "failed_login_count", "0")
end
local count = redis.call("HINCRBY", KEYS[1], "failed_login_count", 1)
locked = 0
if count >= tonumber(ARGV[2]) then
  locked = now + tonumber(ARGV[3])
  redis.call("HSET", KEYS[1], "locked_until", locked)
end
return {count, locked, 0}
`

const recordSuccessScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "failed_login_count", "0")
redis.call("HDEL", KEYS[1], "locked_until")
return 1
`

var (
	createLua           = redis.NewScript(createScript)
	deleteLua           = redis.NewScript(deleteScript)
	updateEmailLua      = redis.NewScript(updateEmailScript)
	updatePasswordLua   = redis.NewScript(updatePasswordScript)
	rehashPasswordLua   = redis.NewScript(rehashPasswordScript)
	setActiveLua        = redis.NewScript(setActiveScript)
	clearExpiredLockLua = redis.NewScript(clearExpiredLockScript)
	recordFailureLua    = redis.NewScript(recordFailureScript)
	recordSuccessLua    = redis.NewScript(recordSuccessScript)
)

// GetByID loads a record by account id.
func (s *RedisStore) GetByID(ctx context.Context, id string) (*Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.recordKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return recordFromFields(fields)
}

// GetByEmail resolves the email index, then loads the record.
func (s *RedisStore) GetByEmail(ctx context.Context, email string) (*Record, error) {
	id, err := s.redis.Get(ctx, s.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.GetByID(ctx, id)
}

// Create inserts a record, refusing duplicate emails.
func (s *RedisStore) Create(ctx context.Context, rec *Record) error {
	changedAt := ""
	if rec.PasswordChangedAt != nil {
		changedAt = strconv.FormatInt(*rec.PasswordChangedAt, 10)
	}

	res, err := createLua.Run(ctx, s.redis,
		[]string{s.emailKey(rec.Email), s.recordKey(rec.ID)},
		rec.ID, rec.Email, rec.PasswordHash, boolField(rec.Active), changedAt,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res == 0 {
		return ErrDuplicateEmail
	}
	return nil
}

// Delete removes the record and its email index entry.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	res, err := deleteLua.Run(ctx, s.redis,
		[]string{s.recordKey(id), s.emailKey(rec.Email)}, id,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateEmail changes the record's email and moves the index entry.
func (s *RedisStore) UpdateEmail(ctx context.Context, id, email string) error {
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	res, err := updateEmailLua.Run(ctx, s.redis,
		[]string{s.recordKey(id), s.emailKey(rec.Email), s.emailKey(email)},
		rec.Email, email, id,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	switch res {
	case -1:
		return ErrNotFound
	case -2:
		// The record moved under us; the next attempt re-reads it.
		return fmt.Errorf("%w: concurrent email change", ErrUnavailable)
	case 0:
		return ErrDuplicateEmail
	}
	return nil
}

// UpdatePassword stores a new hash, stamps the change time, and resets
// the failure bookkeeping.
func (s *RedisStore) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt int64) error {
	res, err := updatePasswordLua.Run(ctx, s.redis,
		[]string{s.recordKey(id)},
		passwordHash, strconv.FormatInt(changedAt, 10),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res == 0 {
		return ErrNotFound
	}
	return nil
}

// RehashPassword replaces only the stored hash.
func (s *RedisStore) RehashPassword(ctx context.Context, id, passwordHash string) error {
	res, err := rehashPasswordLua.Run(ctx, s.redis, []string{s.recordKey(id)}, passwordHash).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive flips the activation flag.
func (s *RedisStore) SetActive(ctx context.Context, id string, active bool) error {
	res, err := setActiveLua.Run(ctx, s.redis, []string{s.recordKey(id)}, boolField(active)).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearExpiredLock resets the counter and lock iff the lock has lapsed.
func (s *RedisStore) ClearExpiredLock(ctx context.Context, id string, now int64) (bool, error) {
	res, err := clearExpiredLockLua.Run(ctx, s.redis,
		[]string{s.recordKey(id)}, strconv.FormatInt(now, 10),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res == -1 {
		return false, ErrNotFound
	}
	return res == 1, nil
}

// RecordFailure counts one failed attempt and sets the lock at threshold.
func (s *RedisStore) RecordFailure(ctx context.Context, id string, now int64, threshold int, lockSeconds int64) (FailureOutcome, error) {
	res, err := recordFailureLua.Run(ctx, s.redis,
		[]string{s.recordKey(id)},
		strconv.FormatInt(now, 10),
		strconv.Itoa(threshold),
		strconv.FormatInt(lockSeconds, 10),
	).Int64Slice()
	if err != nil {
		return FailureOutcome{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(res) != 3 {
		return FailureOutcome{}, fmt.Errorf("%w: malformed script reply", ErrUnavailable)
	}
	if res[0] < 0 {
		return FailureOutcome{}, ErrNotFound
	}

	return FailureOutcome{
		FailedLoginCount: int(res[0]),
		LockedUntil:      res[1],
		AlreadyLocked:    res[2] == 1,
	}, nil
}

// RecordSuccess resets the counter and lock.
func (s *RedisStore) RecordSuccess(ctx context.Context, id string) error {
	res, err := recordSuccessLua.Run(ctx, s.redis, []string{s.recordKey(id)}).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res == 0 {
		return ErrNotFound
	}
	return nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func recordFromFields(fields map[string]string) (*Record, error) {
	rec := &Record{
		ID:           fields["id"],
		Email:        fields["email"],
		PasswordHash: fields["password_hash"],
		Active:       fields["active"] == "1",
	}

	if raw, ok := fields["password_changed_at"]; ok && raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: corrupt password_changed_at", ErrUnavailable)
		}
		rec.PasswordChangedAt = &v
	}
	if raw, ok := fields["failed_login_count"]; ok && raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: corrupt failed_login_count", ErrUnavailable)
		}
		rec.FailedLoginCount = v
	}
	if raw, ok := fields["locked_until"]; ok && raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: corrupt locked_until", ErrUnavailable)
		}
		rec.LockedUntil = &v
	}

	return rec, nil
}
