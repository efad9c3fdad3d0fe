package application

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultMemberCacheSize = 128
	defaultMemberCacheTTL  = time.Minute
)

// memberCache keeps recently loaded family rosters so that message capture
// does not hit storage for every chat message. Writes through FamilyService
// invalidate the affected family.
type memberCache struct {
	now     func() time.Time
	ttl     time.Duration
	entries *lru.Cache[string, memberCacheEntry]
}

type memberCacheEntry struct {
	members  []Member
	storedAt time.Time
}

func newMemberCache(ttl time.Duration, size int, now func() time.Time) *memberCache {
	if ttl <= 0 {
		ttl = defaultMemberCacheTTL
	}
	if size <= 0 {
		size = defaultMemberCacheSize
	}
	if now == nil {
		now = time.Now
	}
	entries, err := lru.New[string, memberCacheEntry](size)
	if err != nil {
		return nil
	}
	return &memberCache{now: now, ttl: ttl, entries: entries}
}

func (c *memberCache) Get(familyID string) ([]Member, bool) {
	if c == nil {
		return nil, false
	}
	entry, ok := c.entries.Get(familyID)
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		c.entries.Remove(familyID)
		return nil, false
	}
	return cloneMembers(entry.members), true
}

func (c *memberCache) Store(familyID string, members []Member) {
	if c == nil {
		return
	}
	c.entries.Add(familyID, memberCacheEntry{members: cloneMembers(members), storedAt: c.now()})
}

func (c *memberCache) Invalidate(familyID string) {
	if c == nil {
		return
	}
	c.entries.Remove(familyID)
}

func cloneMembers(members []Member) []Member {
	if len(members) == 0 {
		return nil
	}
	out := make([]Member, len(members))
	copy(out, members)
	return out
}
