package wire

// SessionOptions are the negotiated options carried on HELLO/HELLO_ACK.
// The initiator advertises; the responder may lower
// any cap but never raise one.
type SessionOptions struct {
	UseShm           bool
	NumWorkers       int32
	AllowListEnabled bool
	CallbacksEnabled bool
}

// Lower returns the options that result from a responder applying its
// own caps on top of the initiator's request: UseShm and CallbacksEnabled
// are ANDed; AllowListEnabled is ORed, since enabling the allow-list only
// restricts the session; and NumWorkers is lowered to cap.NumWorkers when
// that is positive and smaller (a zero cap leaves it unchanged).
func (o SessionOptions) Lower(cap SessionOptions) SessionOptions {
	out := SessionOptions{
		UseShm:           o.UseShm && cap.UseShm,
		AllowListEnabled: o.AllowListEnabled || cap.AllowListEnabled,
		CallbacksEnabled: o.CallbacksEnabled && cap.CallbacksEnabled,
		NumWorkers:       o.NumWorkers,
	}
	if cap.NumWorkers > 0 && cap.NumWorkers < out.NumWorkers {
		out.NumWorkers = cap.NumWorkers
	}
	return out
}

// Hello is the payload of a KindHello frame.
type Hello struct {
	ProtocolVersion int32
	PeerIdentity    string
	Options         SessionOptions
}

// HelloAck is the payload of a KindHelloAck frame.
type HelloAck struct {
	ProtocolVersion int32
	SessionID       string
	Options         SessionOptions
}

func writeSessionOptions(w *Writer, o SessionOptions) {
	w.WriteBool(o.UseShm)
	w.WriteInt32(o.NumWorkers)
	w.WriteBool(o.AllowListEnabled)
	w.WriteBool(o.CallbacksEnabled)
}

func readSessionOptions(r *Reader) (SessionOptions, error) {
	var o SessionOptions
	var err error
	if o.UseShm, err = r.ReadBool(); err != nil {
		return o, err
	}
	if o.NumWorkers, err = r.ReadInt32(); err != nil {
		return o, err
	}
	if o.AllowListEnabled, err = r.ReadBool(); err != nil {
		return o, err
	}
	if o.CallbacksEnabled, err = r.ReadBool(); err != nil {
		return o, err
	}
	return o, nil
}

// EncodeHello serializes h into a KindHello frame payload.
func EncodeHello(h Hello) []byte {
	w := NewWriter()
	w.WriteInt32(h.ProtocolVersion)
	w.WriteString(h.PeerIdentity)
	writeSessionOptions(w, h.Options)
	return w.Bytes()
}

// DecodeHello parses a KindHello frame payload.
func DecodeHello(payload []byte) (Hello, error) {
	r := NewReader(payload)
	var h Hello
	var err error
	if h.ProtocolVersion, err = r.ReadInt32(); err != nil {
		return h, err
	}
	if h.PeerIdentity, err = r.ReadString(); err != nil {
		return h, err
	}
	h.Options, err = readSessionOptions(r)
	return h, err
}

// EncodeHelloAck serializes a into a KindHelloAck frame payload.
func EncodeHelloAck(a HelloAck) []byte {
	w := NewWriter()
	w.WriteInt32(a.ProtocolVersion)
	w.WriteString(a.SessionID)
	writeSessionOptions(w, a.Options)
	return w.Bytes()
}

// DecodeHelloAck parses a KindHelloAck frame payload.
func DecodeHelloAck(payload []byte) (HelloAck, error) {
	r := NewReader(payload)
	var a HelloAck
	var err error
	if a.ProtocolVersion, err = r.ReadInt32(); err != nil {
		return a, err
	}
	if a.SessionID, err = r.ReadString(); err != nil {
		return a, err
	}
	a.Options, err = readSessionOptions(r)
	return a, err
}
