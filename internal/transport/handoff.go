package transport

import (
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/finreport/internal/extract"
)

// HandoffCodec keeps results in process memory and hands out an opaque token.
// A token can be redeemed once; after that, or after ttl, it decodes empty.
type HandoffCodec struct {
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu    sync.Mutex
	items map[string]handoffItem
}

type handoffItem struct {
	res     extract.Result
	expires time.Time
}

func NewHandoffCodec(ttl time.Duration, logger *slog.Logger) *HandoffCodec {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &HandoffCodec{ttl: ttl, now: time.Now, logger: logger, items: map[string]handoffItem{}}
}

func (c *HandoffCodec) Encode(r extract.Result) (string, error) {
	if r == nil {
		r = empty()
	}
	token := uuid.New().String()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
	c.items[token] = handoffItem{res: r, expires: c.now().Add(c.ttl)}
	return token, nil
}

func (c *HandoffCodec) Decode(raw string) extract.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[raw]
	if !ok {
		c.logger.Debug("transport.handoff.unknown_token")
		return empty()
	}
	delete(c.items, raw)
	if c.now().After(it.expires) {
		c.logger.Debug("transport.handoff.expired")
		return empty()
	}
	return it.res
}

// Pending returns how many tokens are waiting to be redeemed.
func (c *HandoffCodec) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *HandoffCodec) sweepLocked() {
	now := c.now()
	for k, it := range c.items {
		if now.After(it.expires) {
			delete(c.items, k)
		}
	}
}

// Target attaches the encoded result to base as the data parameter.
func (c *HandoffCodec) Target(base string, r extract.Result) (string, error) {
	return target(c, base, r)
}

// FromURL decodes the data parameter of u.
func (c *HandoffCodec) FromURL(u *url.URL) extract.Result {
	return fromURL(c, u)
}
