package volume

import (
	"fmt"
	"sync"
)

// LoaderFunc reads an image from a path.
type LoaderFunc func(path string) (*Image, error)

// Cache provides thread-safe caching of loaded images to avoid redundant
// disk reads.
//
// Images are keyed by the exact path string passed to Load, so a relative and
// an absolute path to the same file are cached separately. Cached images stay
// in memory until Evict or Clear is called.
//
// Callers must treat cached images as read-only; clone before mutating.
//
// # Example Usage
//
//	cache := volume.NewCache(volumeio.ReadImage)
//	img, err := cache.Load("/data/ct.mha")
//	if err != nil {
//	    return err
//	}
//	cache.Evict("/data/ct.mha") // Optional: free memory
type Cache struct {
	mu     sync.RWMutex
	images map[string]*Image
	load   LoaderFunc
}

// NewCache creates an empty cache that reads misses with load.
func NewCache(load LoaderFunc) *Cache {
	return &Cache{
		images: make(map[string]*Image),
		load:   load,
	}
}

// Load returns the cached image for path or reads it with the cache's loader.
func (c *Cache) Load(path string) (*Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, err := c.load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Len returns the number of cached images.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Clear removes all images from the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]*Image)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path. Unknown paths
// are ignored.
func (c *Cache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}
