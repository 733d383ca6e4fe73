package bucketing

import (
	"hash"
	"sync"

	"phone-auth-service/internal/config"

	"github.com/spaolacci/murmur3"
)

// BucketingManager spreads users over a fixed number of Scylla partitions.
type BucketingManager struct {
	userBuckets int
	hasherPool  sync.Pool
}

func NewBucketingManager(cfg *config.Config) *BucketingManager {
	return New(cfg.Bucketing.UserBuckets)
}

func New(userBuckets int) *BucketingManager {
	if userBuckets <= 0 {
		userBuckets = 1
	}
	return &BucketingManager{
		userBuckets: userBuckets,
		hasherPool: sync.Pool{
			New: func() interface{} {
				return murmur3.New64()
			},
		},
	}
}

// GetUserBucket returns consistent bucket for user (0 to userBuckets-1)
func (bm *BucketingManager) GetUserBucket(userID string) int {
	return int(bm.getHash(userID) % uint64(bm.userBuckets))
}

func (bm *BucketingManager) getHash(key string) uint64 {
	hasher := bm.hasherPool.Get().(hash.Hash64)
	defer bm.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(key))
	return hasher.Sum64()
}
