package watcher

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gocache "github.com/patrickmn/go-cache"
)

// LogCache holds logs fetched at header arrival until the block is confirmed.
type LogCache struct {
	c *gocache.Cache
}

func NewLogCache(ttl, cleanupInterval time.Duration) *LogCache {
	return &LogCache{c: gocache.New(ttl, cleanupInterval)}
}

func (l *LogCache) Put(blockHash common.Hash, logs []types.Log) {
	stored := make([]types.Log, len(logs))
	copy(stored, logs)
	l.c.SetDefault(blockHash.Hex(), stored)
}

// Take returns and evicts the logs cached for blockHash.
func (l *LogCache) Take(blockHash common.Hash) ([]types.Log, bool) {
	key := blockHash.Hex()
	val, found := l.c.Get(key)
	if !found {
		return nil, false
	}
	l.c.Delete(key)
	logs, ok := val.([]types.Log)
	return logs, ok
}

func (l *LogCache) Invalidate(blockHash common.Hash) {
	l.c.Delete(blockHash.Hex())
}

func (l *LogCache) Len() int {
	return l.c.ItemCount()
}
