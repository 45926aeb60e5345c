package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const keyLockPrefix = "partnersync:lock:"

// ProcessorLock guards webhook batch runs across replicas.
const ProcessorLock = "processor"

// The stored value is the owner, so only the lease that set it may delete it.
const leaseReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	ErrLockHeld          = errors.New("lock_held")
	ErrLockNotConfigured = errors.New("lock_not_configured")
	ErrInvalidLease      = errors.New("invalid_lease")
)

type Locker struct {
	client *redis.Client
	script *redis.Script
	host   string
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	host, err := os.Hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		host = "unknown"
	}
	return &Locker{
		client: client,
		script: redis.NewScript(leaseReleaseScript),
		host:   host,
	}
}

// Lease is a held named lock. Owner reads host/pid/nonce so an operator can
// tell from redis which replica is running a batch.
type Lease struct {
	Name  string
	Owner string

	locker *Locker
}

func LockKey(name string) string {
	return keyLockPrefix + strings.TrimSpace(name)
}

// Acquire takes the named lock for ttl. ErrLockHeld means another owner has it.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, ErrLockNotConfigured
	}
	name = strings.TrimSpace(name)
	if name == "" || ttl <= 0 {
		return nil, ErrInvalidLease
	}

	owner := l.ownerID()
	ok, err := l.client.SetNX(ctx, LockKey(name), owner, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lease{Name: name, Owner: owner, locker: l}, nil
}

// Holder reports the current owner of name, or "" when it is free.
func (l *Locker) Holder(ctx context.Context, name string) (string, error) {
	if l == nil || l.client == nil {
		return "", ErrLockNotConfigured
	}
	owner, err := l.client.Get(ctx, LockKey(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return owner, err
}

// Release drops the lease if it is still ours. An expired lease taken over by
// another owner is left alone.
func (ls *Lease) Release(ctx context.Context) error {
	if ls == nil || ls.locker == nil || ls.locker.client == nil {
		return nil
	}
	return ls.locker.script.Run(ctx, ls.locker.client, []string{LockKey(ls.Name)}, ls.Owner).Err()
}

func (l *Locker) ownerID() string {
	return fmt.Sprintf("%s/%d/%s", l.host, os.Getpid(), uuid.NewString())
}
