// Package bio is the buffer cache: a fixed number of 512-byte block
// buffers, keyed by (device, block number), evicted least-recently-
// used when full. Every filesystem (ext2, fat32) reads and writes
// through here instead of hitting the storage layer directly, so a
// hot directory or superblock is touched once per eviction cycle
// rather than once per operation.
package bio

import (
	"container/list"
	"fmt"
	"sync"

	"keelos/internal/defs"
	"keelos/internal/storage"
)

// BSIZE is the size of one cached block in bytes, matching the
// storage layer's sector-aligned transfer unit.
const BSIZE = 512

// NSLOTS is the number of blocks the cache holds before evicting.
const NSLOTS = 128

// Key identifies a block by the device that owns it and its block
// number on that device.
type Key struct {
	Dev   int
	Block int
}

// Block_t is one cached block: its data and the dirty flag that tells
// the cache whether it must be written back before eviction.
type Block_t struct {
	sync.Mutex
	Key   Key
	Data  [BSIZE]uint8
	dirty bool
	elem  *list.Element
}

// Cache is an LRU buffer cache in front of one or more storage.Backend
// devices, registered by device number.
type Cache struct {
	mu      sync.Mutex
	backend map[int]storage.Backend
	table   map[Key]*Block_t
	lru     *list.List // front = most recently used
}

// NewCache builds an empty cache with room for NSLOTS blocks.
func NewCache() *Cache {
	return &Cache{
		backend: map[int]storage.Backend{},
		table:   map[Key]*Block_t{},
		lru:     list.New(),
	}
}

// RegisterDevice associates device number dev with backend b.
func (c *Cache) RegisterDevice(dev int, b storage.Backend) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backend[dev] = b
}

// Bread returns the block at (dev, blockno), reading it from storage
// on a cache miss and evicting the least-recently-used block if the
// cache is full.
func (c *Cache) Bread(dev, blockno int) (*Block_t, defs.Err_t) {
	k := Key{Dev: dev, Block: blockno}

	c.mu.Lock()
	if b, ok := c.table[k]; ok {
		c.lru.MoveToFront(b.elem)
		c.mu.Unlock()
		return b, 0
	}
	c.mu.Unlock()

	be, ok := c.backend[dev]
	if !ok {
		return nil, -defs.ENXIO
	}
	b := &Block_t{Key: k}
	if err := be.ReadBlock(blockno, b.Data[:]); err != 0 {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.table[k]; ok {
		// lost the race with a concurrent reader; use their copy.
		c.lru.MoveToFront(existing.elem)
		return existing, 0
	}
	if len(c.table) >= NSLOTS {
		if err := c.evictOneLocked(); err != 0 {
			return nil, err
		}
	}
	b.elem = c.lru.PushFront(b)
	c.table[k] = b
	return b, 0
}

// evictOneLocked drops the least-recently-used clean block, writing
// back a dirty one first. Caller holds c.mu.
func (c *Cache) evictOneLocked() defs.Err_t {
	for e := c.lru.Back(); e != nil; e = e.Prev() {
		b := e.Value.(*Block_t)
		b.Lock()
		dirty := b.dirty
		b.Unlock()
		if dirty {
			if err := c.writebackLocked(b); err != 0 {
				return err
			}
		}
		c.lru.Remove(e)
		delete(c.table, b.Key)
		return 0
	}
	return -defs.ENOMEM
}

func (c *Cache) writebackLocked(b *Block_t) defs.Err_t {
	be, ok := c.backend[b.Key.Dev]
	if !ok {
		return -defs.ENXIO
	}
	b.Lock()
	defer b.Unlock()
	if err := be.WriteBlock(b.Key.Block, b.Data[:]); err != 0 {
		return err
	}
	b.dirty = false
	return 0
}

// Bwrite marks b dirty; it is written back on eviction or Sync.
func (c *Cache) Bwrite(b *Block_t) {
	b.Lock()
	b.dirty = true
	b.Unlock()
}

// Sync writes back every dirty block without evicting it.
func (c *Cache) Sync() defs.Err_t {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.table {
		b.Lock()
		dirty := b.dirty
		b.Unlock()
		if dirty {
			if err := c.writebackLocked(b); err != 0 {
				return err
			}
		}
	}
	return 0
}

// String renders the current cache contents, for diagnostics.
func (c *Cache) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := fmt.Sprintf("bio: %d/%d blocks cached\n", len(c.table), NSLOTS)
	return s
}
