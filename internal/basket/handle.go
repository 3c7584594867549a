package basket

import (
	"sync"
)

// Handle owns one basket entity together with its etag. It is threaded
// explicitly through the checkout machine and payment ledger; there is no
// ambient current-basket singleton.
type Handle struct {
	mu     sync.Mutex
	basket *Basket
	etag   string
}

func NewHandle() *Handle {
	return &Handle{basket: NewBasket()}
}

// ID returns the persisted basket id, or the sentinel while none is known.
func (h *Handle) ID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.basket == nil || h.basket.BasketID == "" {
		return SentinelID
	}
	return h.basket.BasketID
}

// Etag returns the most recently observed version token, empty before the
// basket's first successful server call.
func (h *Handle) Etag() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.etag
}

// Snapshot returns a copy of the current basket state.
func (h *Handle) Snapshot() Basket {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.basket == nil {
		return *NewBasket()
	}
	return *h.basket
}

// Workflow returns the client-only workflow state.
func (h *Handle) Workflow() WorkflowState {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.basket == nil {
		return NewBasket().Workflow
	}
	return h.basket.Workflow
}

// UpdateWorkflow mutates the workflow state under the handle's lock.
func (h *Handle) UpdateWorkflow(fn func(*WorkflowState)) WorkflowState {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.basket == nil {
		h.basket = NewBasket()
	}
	fn(&h.basket.Workflow)
	return h.basket.Workflow
}

// applyReplace merges a server representation and records its etag. An empty
// etag leaves the previous precondition in place.
func (h *Handle) applyReplace(server *Basket, etag string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.basket == nil {
		h.basket = NewBasket()
	}
	h.basket.Merge(server)
	if etag != "" {
		h.etag = etag
	}
}

// applyPayment merges only the payment fields of a sub-resource response.
func (h *Handle) applyPayment(server *Basket) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.basket == nil {
		h.basket = NewBasket()
	}
	h.basket.MergePayment(server)
}

// Seed primes the handle with a known server representation, used when a
// session is rehydrated after a restart. The workflow restore list is
// preserved the same way a live replace preserves it.
func (h *Handle) Seed(server Basket, etag string) {
	h.applyReplace(&server, etag)
}

// Clear resets the handle to a fresh unpersisted basket.
func (h *Handle) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.basket = NewBasket()
	h.etag = ""
}
