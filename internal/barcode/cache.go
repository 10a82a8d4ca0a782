package barcode

import (
	lru "github.com/hashicorp/golang-lru"
)

// defaultCacheSize bounds how many distinct symbols are tracked between scans.
const defaultCacheSize = 64

// resultCache suppresses symbols that were already reported while they stay
// in view. A symbol is reported the first time it appears and again only
// after a scan in which it was absent.
type resultCache struct {
	seen *lru.Cache
}

func newResultCache(size int) (*resultCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &resultCache{seen: c}, nil
}

// filter returns the hits not reported by the previous scan and records the
// current scan as the new reference.
func (c *resultCache) filter(hits []Symbol) []Symbol {
	present := make(map[Symbol]struct{}, len(hits))
	out := make([]Symbol, 0, len(hits))
	for _, h := range hits {
		if _, dup := present[h]; dup {
			continue
		}
		present[h] = struct{}{}
		if _, ok := c.seen.Get(h); ok {
			continue
		}
		c.seen.Add(h, struct{}{})
		out = append(out, h)
	}
	for _, k := range c.seen.Keys() {
		s, ok := k.(Symbol)
		if !ok {
			continue
		}
		if _, still := present[s]; !still {
			c.seen.Remove(k)
		}
	}
	return out
}

func (c *resultCache) reset() {
	c.seen.Purge()
}
