package route

// Payload models the three variants spec sec 3.2 calls out: owned bytes,
// bytes borrowed from the transport's receive frame, or empty. Go's
// garbage collector makes the lifetime distinction moot for memory
// safety, but the borrowed/owned tag is kept so code that must outlive
// the current turn (queueing a packet for later delivery, forwarding it
// to another Stage) is forced to call Copy() first, preserving the
// "zero-copy payloads may not outlive the frame" discipline at the API
// level rather than relying on an accident of the GC.
type Payload struct {
	bytes    []byte
	borrowed bool
}

// NewPayload wraps caller-owned bytes (e.g. a freshly serialized game payload).
func NewPayload(b []byte) Payload {
	return Payload{bytes: b}
}

// BorrowedPayload wraps bytes sliced directly out of a transport receive
// frame. Callers that need to hold onto it past the current dispatch
// turn must Copy() it first.
func BorrowedPayload(b []byte) Payload {
	return Payload{bytes: b, borrowed: true}
}

// EmptyPayload is the zero-length payload used by replies with no body.
func EmptyPayload() Payload { return Payload{} }

// Bytes returns the underlying byte slice. Do not retain it past the
// current turn if IsBorrowed is true.
func (p Payload) Bytes() []byte { return p.bytes }

// IsEmpty reports whether the payload carries no bytes.
func (p Payload) IsEmpty() bool { return len(p.bytes) == 0 }

// IsBorrowed reports whether the payload shares memory with a transport
// receive frame rather than owning a private copy.
func (p Payload) IsBorrowed() bool { return p.borrowed }

// Copy returns an owned payload: a no-op if already owned, otherwise a
// private copy of the borrowed bytes.
func (p Payload) Copy() Payload {
	if !p.borrowed {
		return p
	}
	b := make([]byte, len(p.bytes))
	copy(b, p.bytes)
	return Payload{bytes: b}
}
