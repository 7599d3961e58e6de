package registry

import (
	"context"
	"time"
)

// ConnectionRequest is a short-lived pending pairing request (§3). TTL =
// 30s; entries older than the TTL are never observable to handlers (I5).
type ConnectionRequest struct {
	RequestID  string
	FromUserID string
	ToUserID   string
	CreatedAt  time.Time
}

// CreateRequest allocates a ConnectionRequest under the given id, stamping
// created_at to now. The caller supplies requestID (via the id generator)
// so creation and id-allocation stay decoupled from the registry lock.
func (h *Hub) CreateRequest(requestID, fromUserID, toUserID string, now time.Time) *ConnectionRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := &ConnectionRequest{
		RequestID:  requestID,
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		CreatedAt:  now,
	}
	h.requests[requestID] = r
	return r
}

// GetRequest returns the request for requestID, or ⊥ if absent or expired
// (I5). An expired entry found here is evicted as a side effect.
func (h *Hub) GetRequest(requestID string, now time.Time) (*ConnectionRequest, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.requests[requestID]
	if !ok {
		return nil, false
	}
	if now.Sub(r.CreatedAt) > h.requestTTL {
		delete(h.requests, requestID)
		return nil, false
	}
	return r, true
}

// RemoveRequest deletes requestID unconditionally.
func (h *Hub) RemoveRequest(requestID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.requests, requestID)
}

// SweepExpiredRequests evicts every request older than the TTL, returning
// the count removed. Intended to be called on a periodic ~10s timer
// (§4.5).
func (h *Hub) SweepExpiredRequests(now time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := 0
	for id, r := range h.requests {
		if now.Sub(r.CreatedAt) > h.requestTTL {
			delete(h.requests, id)
			removed++
		}
	}
	return removed
}

// RunRequestSweep runs SweepExpiredRequests on interval until ctx is
// canceled (§4.5's "periodic sweep (every 10s)").
func RunRequestSweep(ctx context.Context, h *Hub, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.SweepExpiredRequests(time.Now())
		}
	}
}
