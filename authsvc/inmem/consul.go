package inmem

import (
	"context"
	"time"

	consul "github.com/hashicorp/consul/api"
)

type consulClient struct {
	consul *consul.Client
	now    func() time.Time
}

// NewConsulClient stores entries in the Consul KV store. Consul keys do not
// expire, so the expiry is kept in the pair's flags as a unix timestamp and
// checked on read.
func NewConsulClient(c *consul.Client) Client {
	return &consulClient{consul: c, now: time.Now}
}

func (c *consulClient) Get(ctx context.Context, key string) error {
	kv, _, err := c.consul.KV().Get(key, (&consul.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return err
	}

	if kv == nil {
		return ErrKeyNotFound
	}

	if kv.Flags != 0 && c.now().Unix() >= int64(kv.Flags) {
		c.Delete(ctx, key)
		return ErrKeyNotFound
	}

	return nil
}

func (c *consulClient) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	p := &consul.KVPair{Key: key, Value: value}
	if ttl > 0 {
		p.Flags = uint64(c.now().Add(ttl).Unix())
	}
	_, err := c.consul.KV().Put(p, (&consul.WriteOptions{}).WithContext(ctx))

	return err
}

func (c *consulClient) Delete(ctx context.Context, key string) error {
	_, err := c.consul.KV().Delete(key, (&consul.WriteOptions{}).WithContext(ctx))

	return err
}
