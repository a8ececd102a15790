package proxybridge

import (
	"github.com/deshaw/pjrmi-go/internal/handle"
	"github.com/deshaw/pjrmi-go/internal/pjerrors"
	"github.com/deshaw/pjrmi-go/internal/wire"
)

// encodeCallMethodPayload lays out a CALL_METHOD frame's body: handle,
// method name, argument count, then each argument Value in order.
func encodeCallMethodPayload(h handle.Handle, member string, args []wire.Value) []byte {
	w := wire.NewWriter()
	w.WriteUint64(uint64(h))
	w.WriteString(member)
	w.WriteUint64(uint64(len(args)))
	for _, a := range args {
		wire.WriteValue(w, a)
	}
	return w.Bytes()
}

// decodeCallMethodPayload is encodeCallMethodPayload's inverse.
func decodeCallMethodPayload(payload []byte) (h handle.Handle, member string, args []wire.Value, err error) {
	r := wire.NewReader(payload)
	hv, err := r.ReadUint64()
	if err != nil {
		return 0, "", nil, malformed(err)
	}
	member, err = r.ReadString()
	if err != nil {
		return 0, "", nil, malformed(err)
	}
	n, err := r.ReadUint64()
	if err != nil {
		return 0, "", nil, malformed(err)
	}
	args = make([]wire.Value, n)
	for i := range args {
		args[i], err = wire.ReadValue(r)
		if err != nil {
			return 0, "", nil, malformed(err)
		}
	}
	return handle.Handle(hv), member, args, nil
}

// encodeFieldPayload lays out a GET_FIELD/SET_FIELD frame's body:
// handle, field name, then a has-value flag and the value itself for
// SET_FIELD (value is nil for a GET_FIELD).
func encodeFieldPayload(h handle.Handle, name string, value *wire.Value) []byte {
	w := wire.NewWriter()
	w.WriteUint64(uint64(h))
	w.WriteString(name)
	w.WriteBool(value != nil)
	if value != nil {
		wire.WriteValue(w, *value)
	}
	return w.Bytes()
}

// decodeFieldPayload is encodeFieldPayload's inverse.
func decodeFieldPayload(payload []byte) (h handle.Handle, name string, value *wire.Value, err error) {
	r := wire.NewReader(payload)
	hv, err := r.ReadUint64()
	if err != nil {
		return 0, "", nil, malformed(err)
	}
	name, err = r.ReadString()
	if err != nil {
		return 0, "", nil, malformed(err)
	}
	hasValue, err := r.ReadBool()
	if err != nil {
		return 0, "", nil, malformed(err)
	}
	if hasValue {
		v, err := wire.ReadValue(r)
		if err != nil {
			return 0, "", nil, malformed(err)
		}
		value = &v
	}
	return handle.Handle(hv), name, value, nil
}

// encodeCallbackPayload lays out an INVOKE_PROXY_CALLBACK frame's body:
// the lambda handle, argument count, then each argument Value.
func encodeCallbackPayload(h handle.Handle, args []wire.Value) []byte {
	w := wire.NewWriter()
	w.WriteUint64(uint64(h))
	w.WriteUint64(uint64(len(args)))
	for _, a := range args {
		wire.WriteValue(w, a)
	}
	return w.Bytes()
}

// decodeCallbackPayload is encodeCallbackPayload's inverse.
func decodeCallbackPayload(payload []byte) (h handle.Handle, args []wire.Value, err error) {
	r := wire.NewReader(payload)
	hv, err := r.ReadUint64()
	if err != nil {
		return 0, nil, malformed(err)
	}
	n, err := r.ReadUint64()
	if err != nil {
		return 0, nil, malformed(err)
	}
	args = make([]wire.Value, n)
	for i := range args {
		args[i], err = wire.ReadValue(r)
		if err != nil {
			return 0, nil, malformed(err)
		}
	}
	return handle.Handle(hv), args, nil
}

// encodeReleaseHandlePayload lays out a RELEASE_HANDLE frame's body:
// the handle and the refcount decrement it carries.
func encodeReleaseHandlePayload(h handle.Handle, count int64) []byte {
	w := wire.NewWriter()
	w.WriteUint64(uint64(h))
	w.WriteInt64(count)
	return w.Bytes()
}

// decodeReleaseHandlePayload is encodeReleaseHandlePayload's inverse.
func decodeReleaseHandlePayload(payload []byte) (h handle.Handle, count int64, err error) {
	r := wire.NewReader(payload)
	hv, err := r.ReadUint64()
	if err != nil {
		return 0, 0, malformed(err)
	}
	count, err = r.ReadInt64()
	if err != nil {
		return 0, 0, malformed(err)
	}
	return handle.Handle(hv), count, nil
}

func malformed(cause error) *pjerrors.BridgeError {
	return pjerrors.New(pjerrors.CodeProtocolError, "proxybridge: malformed payload: %v", cause)
}
