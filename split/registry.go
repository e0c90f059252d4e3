package split

import (
	"fmt"
	"os"
	"time"

	"github.com/patrickmn/go-cache"
)

// Registry remembers which files a batch run already settled so that
// re-scanning a capture directory skips them. Entries are keyed by path,
// size and mtime, so a re-recorded file is picked up again.
type Registry struct {
	localCache *cache.Cache
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		localCache: cache.New(ttl, ttl),
	}
}

func registryKey(path string, fi os.FileInfo) string {
	return fmt.Sprintf("%s|%d|%d", path, fi.Size(), fi.ModTime().UnixNano())
}

// Settled reports whether the file was already processed in this run window.
func (r *Registry) Settled(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	_, found := r.localCache.Get(registryKey(path, fi))
	return found
}

// MarkSettled records the file's current identity.
func (r *Registry) MarkSettled(path string) {
	fi, err := os.Stat(path)
	if err != nil {
		return
	}
	r.localCache.SetDefault(registryKey(path, fi), true)
}
