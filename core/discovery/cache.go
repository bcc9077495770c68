package discovery

import "sync"

// Entry is the discovery state of one config topic.
type Entry struct {
	Topic      string
	Configured bool
	Payload    ConfigPayload

	claimed bool
}

// Cache records discovery payloads per config topic. The first payload
// inserted for a topic is kept for the lifetime of the cache and the
// configured flag only ever moves from false to true.
//
// Publishing goes through Claim, then Confirm or Release, so two concurrent
// cycles never announce the same topic twice.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	order   []string
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Entry)}
}

// Add inserts payload for topic unless the topic is already known. It
// reports whether an insert happened.
func (c *Cache) Add(topic string, payload ConfigPayload) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[topic]; ok {
		return false
	}
	c.entries[topic] = &Entry{Topic: topic, Payload: payload}
	c.order = append(c.order, topic)
	return true
}

// Pending returns the entries not yet configured, in insertion order.
func (c *Cache) Pending() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Entry
	for _, t := range c.order {
		if e := c.entries[t]; !e.Configured {
			out = append(out, *e)
		}
	}
	return out
}

// Claim returns the unconfigured entries nobody else is publishing and
// reserves them for the caller.
func (c *Cache) Claim() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Entry
	for _, t := range c.order {
		e := c.entries[t]
		if e.Configured || e.claimed {
			continue
		}
		e.claimed = true
		out = append(out, *e)
	}
	return out
}

// Confirm marks a claimed topic as configured. It returns false when the
// topic is unknown or already configured.
func (c *Cache) Confirm(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[topic]
	if !ok || e.Configured {
		return false
	}
	e.Configured = true
	e.claimed = false
	return true
}

// Release gives a claimed topic back after a failed publish so the next
// cycle retries it.
func (c *Cache) Release(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[topic]; ok && !e.Configured {
		e.claimed = false
	}
}

// Get returns a copy of the entry for topic.
func (c *Cache) Get(topic string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[topic]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len returns the number of known topics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Configured returns the number of configured topics.
func (c *Cache) Configured() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.Configured {
			n++
		}
	}
	return n
}
