package basket

import (
	"context"
	"net/http"
)

// mutate wraps a basket mutation with stale-etag detection. On a
// precondition fault it performs exactly one corrective fetch to
// resynchronize the etag, then retries the call exactly once with the
// refreshed value. A second failure surfaces; a failed resync surfaces
// instead of retrying. Card and gift-card sub-resource calls bypass this
// wrapper; they carry their own etag mechanism.
func (c *Client) mutate(ctx context.Context, h *Handle, op string, notifySync bool, fn func(etag string) (*Basket, string, error)) (Basket, error) {
	server, etag, err := fn(h.Etag())
	if IsPreconditionFault(err) {
		fresh, freshEtag, ferr := c.do(ctx, request{method: http.MethodGet, path: "/baskets/" + h.ID()})
		if ferr != nil {
			c.metrics.IncConflictSurfaced()
			c.observe(ctx, op, ferr)
			return Basket{}, ferr
		}
		h.applyReplace(fresh, freshEtag)

		server, etag, err = fn(h.Etag())
		if err != nil {
			c.metrics.IncConflictSurfaced()
		} else {
			c.metrics.IncConflictRecovered()
		}
	}
	c.observe(ctx, op, err)
	if err != nil {
		return Basket{}, err
	}

	h.applyReplace(server, etag)
	if notifySync {
		c.publishSync(h)
	}
	return h.Snapshot(), nil
}
