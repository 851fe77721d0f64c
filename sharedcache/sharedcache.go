/*
Package sharedcache is a memcache tier shared by every API instance. It
should not matter to callers whether it is there: a nil or disabled Client
misses on every Get and drops every Set.

Eventual consistency of the cached items is promised, but nothing more.
*/
package sharedcache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/golang/glog"
)

func init() {
	// Document metadata is decoded JSON; these are the shapes it comes in.
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// Backend is the part of *memcache.Client the cache uses.
type Backend interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Delete(key string) error
}

type Client struct {
	mc     Backend
	prefix string
}

// New connects to memcached at host:port. An empty host returns nil, which
// is a valid, disabled cache.
func New(host string, port int, prefix string) *Client {
	if host == "" {
		return nil
	}
	return NewWithBackend(memcache.New(fmt.Sprintf("%s:%d", host, port)), prefix)
}

func NewWithBackend(b Backend, prefix string) *Client {
	return &Client{mc: b, prefix: prefix}
}

// Enabled reports whether items are actually cached.
func (c *Client) Enabled() bool {
	return c != nil && c.mc != nil
}

// Set puts data into the cache for ttl, rounded down to whole seconds.
func (c *Client) Set(key string, data any, ttl time.Duration) {
	if !c.Enabled() {
		return
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		glog.Errorf("encoding %s for cache: %+v", key, err)
		return
	}

	err := c.mc.Set(&memcache.Item{
		Key:        c.prefix + key,
		Value:      buf.Bytes(),
		Expiration: int32(ttl / time.Second),
	})
	if err != nil {
		glog.Errorf("mc.Set(%s) %+v", key, err)
	}
}

// Get decodes the item at key into dst, which must be a pointer.
func (c *Client) Get(key string, dst any) bool {
	if !c.Enabled() {
		return false
	}

	item, err := c.mc.Get(c.prefix + key)
	if err != nil {
		// Cache misses are expected, but other errors are logged.
		if err != memcache.ErrCacheMiss {
			glog.Warningf("mc.Get(%s) %+v", key, err)
		}
		return false
	}

	if err := gob.NewDecoder(bytes.NewReader(item.Value)).Decode(dst); err != nil {
		glog.Errorf("decoding cached %s: %+v", key, err)
		return false
	}
	return true
}

// Delete removes key from the cache, if it is there.
func (c *Client) Delete(key string) {
	if !c.Enabled() {
		return
	}

	err := c.mc.Delete(c.prefix + key)
	if err != nil && err != memcache.ErrCacheMiss {
		glog.Warningf("mc.Delete(%s) %+v", key, err)
	}
}
