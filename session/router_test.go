package session

import (
	"testing"
)

func newRoutedClient() (*Client, map[Event][]*Envelope) {
	bus := NewDispatcher()
	received := make(map[Event][]*Envelope)
	for _, evt := range []Event{EventKickedOut, EventForcedLogout, EventMessage} {
		evt := evt
		bus.On(evt, func(data any) {
			received[evt] = append(received[evt], data.(*Envelope))
		})
	}
	c := NewClient(ClientConfig{Origin: "http://127.0.0.1"}, bus)
	return c, received
}

func routeRaw(t *testing.T, c *Client, raw string) {
	t.Helper()
	e, err := decodeEnvelope([]byte(raw))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	c.route(e)
}

func TestRouteKickedOut(t *testing.T) {
	c, received := newRoutedClient()
	routeRaw(t, c, `{"type":"kicked_out","message":"m","reason":"r","kicked_by":"a"}`)

	if len(received[EventKickedOut]) != 1 {
		t.Fatalf("expected one kicked-out event, got %d", len(received[EventKickedOut]))
	}
	e := received[EventKickedOut][0]
	if e.Message != "m" || e.Reason != "r" || e.KickedBy != "a" {
		t.Fatalf("payload not carried through: %+v", e)
	}
	if len(received[EventMessage]) != 0 || len(received[EventForcedLogout]) != 0 {
		t.Fatal("unexpected extra events")
	}
}

func TestRouteForceLogout(t *testing.T) {
	c, received := newRoutedClient()
	routeRaw(t, c, `{"type":"force_logout","message":"bye","reason":"maintenance"}`)

	if len(received[EventForcedLogout]) != 1 {
		t.Fatalf("expected one forced-logout event, got %d", len(received[EventForcedLogout]))
	}
	if received[EventForcedLogout][0].Reason != "maintenance" {
		t.Fatalf("payload not carried through: %+v", received[EventForcedLogout][0])
	}
}

func TestRouteLogOnlyTypes(t *testing.T) {
	c, received := newRoutedClient()
	for _, raw := range []string{
		`{"type":"connection_established","message":"ok"}`,
		`{"type":"pong","timestamp":123}`,
		`{"type":"user_status","is_online":true}`,
	} {
		routeRaw(t, c, raw)
	}
	for evt, list := range received {
		if len(list) != 0 {
			t.Fatalf("log-only types must publish nothing, got %d on %s", len(list), evt)
		}
	}
}

func TestRouteUnknownTypeGenericMessage(t *testing.T) {
	c, received := newRoutedClient()
	routeRaw(t, c, `{"type":"unknown_xyz","extra":1}`)

	if len(received[EventMessage]) != 1 {
		t.Fatalf("expected one generic message event, got %d", len(received[EventMessage]))
	}
	e := received[EventMessage][0]
	if e.Type != "unknown_xyz" {
		t.Fatalf("wrong envelope: %+v", e)
	}
	if _, ok := e.Payload["extra"]; !ok {
		t.Fatal("full payload not carried on generic message")
	}
}

func TestDecodeEnvelopeMalformed(t *testing.T) {
	if _, err := decodeEnvelope([]byte("not json")); err == nil {
		t.Fatal("expected decode error for malformed payload")
	}
}
