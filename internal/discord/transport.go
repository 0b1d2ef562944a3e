package discord

// Transport is a connection to the local Discord client.
//
// Connect starts connection establishment and returns without waiting for
// it; progress is reported through the Handler given to the factory.
// SetPresence and ClearPresence must not block on I/O and must not call
// Handler methods synchronously. Close releases the connection and is
// idempotent.
type Transport interface {
	Connect() error
	SetPresence(p *Presence) error
	ClearPresence() error
	Close() error
}

// Handler receives connection lifecycle events from a Transport.
// Methods may be called from a transport-owned goroutine.
type Handler interface {
	OnConnectionEstablished()
	OnReady()
	OnClose()
	OnError(err error)
}

// TransportFactory creates a Transport for an application ID.
type TransportFactory func(appID string, h Handler) Transport
