package ws

import (
	"encoding/json"
	"sync"
)

// Client is a single WebSocket subscriber watching one payment.
type Client struct {
	CheckoutRequestID string
	Send              chan []byte
	hub               *PaymentHub
	mu                sync.Mutex
	closed            bool
}

// trySend delivers one message without blocking. Holding c.mu while sending
// keeps the channel open against a concurrent Close; a closed or full client
// just drops the message.
func (c *Client) trySend(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
	if c.hub != nil {
		c.hub.unregister(c)
	}
}

// PaymentHub fans payment status flips out to the clients waiting on them,
// keyed by checkout request id. The reconciler publishes; the ws endpoint
// subscribes the paying client so the UI does not have to poll blind while
// the STK prompt is open.
type PaymentHub struct {
	mu         sync.RWMutex
	byCheckout map[string]map[*Client]struct{}
}

func NewPaymentHub() *PaymentHub {
	return &PaymentHub{byCheckout: make(map[string]map[*Client]struct{})}
}

func (h *PaymentHub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.hub = h
	if h.byCheckout[c.CheckoutRequestID] == nil {
		h.byCheckout[c.CheckoutRequestID] = make(map[*Client]struct{})
	}
	h.byCheckout[c.CheckoutRequestID][c] = struct{}{}
}

func (h *PaymentHub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.byCheckout[c.CheckoutRequestID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byCheckout, c.CheckoutRequestID)
		}
	}
}

type statusMessage struct {
	Type              string `json:"type"`
	CheckoutRequestID string `json:"checkout_request_id"`
	Status            string `json:"status"`
	Receipt           string `json:"receipt,omitempty"`
}

// NotifyPayment implements the reconciler's StatusNotifier.
func (h *PaymentHub) NotifyPayment(checkoutRequestID, status, receipt string) {
	data, _ := json.Marshal(statusMessage{
		Type:              "payment_status",
		CheckoutRequestID: checkoutRequestID,
		Status:            status,
		Receipt:           receipt,
	})
	h.mu.RLock()
	m := h.byCheckout[checkoutRequestID]
	clients := make([]*Client, 0, len(m))
	for c := range m {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.trySend(data)
	}
}

func (h *PaymentHub) SubscriberCount(checkoutRequestID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byCheckout[checkoutRequestID])
}
