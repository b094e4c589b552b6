package ws

import (
	"encoding/json"
	"testing"
)

func newHubClient(checkoutID string) *Client {
	return &Client{CheckoutRequestID: checkoutID, Send: make(chan []byte, 16)}
}

func TestNotifyPaymentDeliversStatusMessage(t *testing.T) {
	hub := NewPaymentHub()
	c := newHubClient("ws_CO_100")
	hub.Register(c)
	defer c.Close()

	hub.NotifyPayment("ws_CO_100", "PAID", "QGH12ABC3D")

	select {
	case data := <-c.Send:
		var msg statusMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != "payment_status" || msg.Status != "PAID" || msg.Receipt != "QGH12ABC3D" {
			t.Fatalf("message = %+v", msg)
		}
	default:
		t.Fatal("no message delivered")
	}
}

func TestNotifyPaymentSkipsOtherCheckouts(t *testing.T) {
	hub := NewPaymentHub()
	c := newHubClient("ws_CO_100")
	hub.Register(c)
	defer c.Close()

	hub.NotifyPayment("ws_CO_999", "PAID", "")

	select {
	case <-c.Send:
		t.Fatal("subscriber for another checkout must not receive the message")
	default:
	}
}

func TestNotifyPaymentAfterCloseDoesNotPanic(t *testing.T) {
	hub := NewPaymentHub()
	c := newHubClient("ws_CO_100")
	hub.Register(c)
	c.Close()

	hub.NotifyPayment("ws_CO_100", "PAID", "QGH12ABC3D")

	if n := hub.SubscriberCount("ws_CO_100"); n != 0 {
		t.Fatalf("SubscriberCount = %d after close", n)
	}

	// A notify racing the disconnect can still hold a snapshot of the client
	// after Close ran; the delivery must drop the message, not send on the
	// closed channel.
	c.trySend([]byte(`{}`))
}

func TestCloseIsIdempotent(t *testing.T) {
	hub := NewPaymentHub()
	c := newHubClient("ws_CO_100")
	hub.Register(c)
	c.Close()
	c.Close()
}

func TestNotifyPaymentFullBufferDropsMessage(t *testing.T) {
	hub := NewPaymentHub()
	c := &Client{CheckoutRequestID: "ws_CO_100", Send: make(chan []byte)}
	hub.Register(c)
	defer c.Close()

	// Unbuffered channel with no reader: the send must not block the
	// reconciler.
	hub.NotifyPayment("ws_CO_100", "PAID", "")
}
