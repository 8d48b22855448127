package search

// Config mirrors the reserved record-0 config map (spec §3), merged with
// Defaults() for any key the caller or on-disk record doesn't set.
type Config struct {
	PartialListLen  uint64
	PartialMinHits  uint64
	PartialShortest uint64
	PartialLongest  uint64
	PartialMatches  uint64
	L1Keywords      uint64
	L2Buckets       uint64
}

// Defaults returns the engine's built-in configuration defaults.
func Defaults() Config {
	return Config{
		PartialListLen:  1_000_000,
		PartialMinHits:  3,
		PartialShortest: 6,
		PartialLongest:  32,
		PartialMatches:  25,
		L1Keywords:      512_000,
		L2Buckets:       40 * 1024 * 1024,
	}
}

// merge fills any zero-valued field of c from d, used when an on-disk
// config record omits a key (spec §6: "missing keys fall back to
// defaults").
func (c Config) merge(d Config) Config {
	if c.PartialListLen == 0 {
		c.PartialListLen = d.PartialListLen
	}
	if c.PartialMinHits == 0 {
		c.PartialMinHits = d.PartialMinHits
	}
	if c.PartialShortest == 0 {
		c.PartialShortest = d.PartialShortest
	}
	if c.PartialLongest == 0 {
		c.PartialLongest = d.PartialLongest
	}
	if c.PartialMatches == 0 {
		c.PartialMatches = d.PartialMatches
	}
	if c.L1Keywords == 0 {
		c.L1Keywords = d.L1Keywords
	}
	if c.L2Buckets == 0 {
		c.L2Buckets = d.L2Buckets
	}
	return c
}

func configToDict(c Config) map[string]any {
	return map[string]any{
		"partial_list_len":  c.PartialListLen,
		"partial_min_hits":  c.PartialMinHits,
		"partial_shortest":  c.PartialShortest,
		"partial_longest":   c.PartialLongest,
		"partial_matches":   c.PartialMatches,
		"l1_keywords":       c.L1Keywords,
		"l2_buckets":        c.L2Buckets,
	}
}

func configFromDict(d map[string]any) Config {
	var c Config
	get := func(k string) uint64 {
		v, ok := d[k]
		if !ok {
			return 0
		}
		u, ok := v.(uint64)
		if !ok {
			return 0
		}
		return u
	}
	c.PartialListLen = get("partial_list_len")
	c.PartialMinHits = get("partial_min_hits")
	c.PartialShortest = get("partial_shortest")
	c.PartialLongest = get("partial_longest")
	c.PartialMatches = get("partial_matches")
	c.L1Keywords = get("l1_keywords")
	c.L2Buckets = get("l2_buckets")
	return c
}
