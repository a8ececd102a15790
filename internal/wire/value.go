package wire

import "fmt"

// ValueKind is the one-byte tag preceding every compound value's body.
type ValueKind byte

const (
	ValueNull ValueKind = iota
	ValueBool
	ValueInt8
	ValueInt16
	ValueInt32
	ValueInt64
	ValueFloat32
	ValueFloat64
	ValueString
	ValueBytes
	ValueHandle        // a remote-object reference
	ValueList          // by-value sequence
	ValueMap           // by-value mapping
	ValueShmArrayRef   // shared-memory-backed homogeneous numeric array
	ValueLambdaHandle  // a local callback handle offered to the peer
	ValueBytesCompressed
)

// MapEntry is one key/value pair of a by-value ValueMap.
type MapEntry struct {
	Key   Value
	Value Value
}

// ShmElementKind identifies the homogeneous element type backing a
// shared-memory array.
type ShmElementKind byte

const (
	ShmBool ShmElementKind = iota
	ShmInt8
	ShmInt16
	ShmInt32
	ShmInt64
	ShmFloat32
	ShmFloat64
)

func (k ShmElementKind) String() string {
	switch k {
	case ShmBool:
		return "boolean"
	case ShmInt8:
		return "int8"
	case ShmInt16:
		return "int16"
	case ShmInt32:
		return "int32"
	case ShmInt64:
		return "int64"
	case ShmFloat32:
		return "float32"
	case ShmFloat64:
		return "float64"
	default:
		return fmt.Sprintf("ShmElementKind(%d)", byte(k))
	}
}

// ElementSize returns the byte size of a single element of this kind.
func (k ShmElementKind) ElementSize() int {
	switch k {
	case ShmBool, ShmInt8:
		return 1
	case ShmInt16:
		return 2
	case ShmInt32, ShmFloat32:
		return 4
	case ShmInt64, ShmFloat64:
		return 8
	default:
		return 0
	}
}

// Value is the wire representation of every argument, return value, and
// field value exchanged between the two runtimes. It is a tagged union
// rather than an interface so decoding never needs reflection on the
// hot path.
type Value struct {
	Kind ValueKind

	Bool  bool
	Int   int64
	Float float64
	Str   string
	Bytes []byte

	// Handle is populated for ValueHandle and ValueLambdaHandle.
	Handle uint64
	// TypeID is the TypeDescriptor id accompanying a ValueHandle.
	TypeID uint64

	List []Value
	Map  []MapEntry

	ShmPath string
	ShmKind ShmElementKind
	ShmLen  int
}

// Null is the canonical null Value.
var Null = Value{Kind: ValueNull}

func Int32Value(v int32) Value   { return Value{Kind: ValueInt32, Int: int64(v)} }
func Int64Value(v int64) Value   { return Value{Kind: ValueInt64, Int: v} }
func BoolValue(v bool) Value     { return Value{Kind: ValueBool, Bool: v} }
func StringValue(v string) Value { return Value{Kind: ValueString, Str: v} }
func HandleValue(handle, typeID uint64) Value {
	return Value{Kind: ValueHandle, Handle: handle, TypeID: typeID}
}

// WriteValue appends v's tag and body to w.
func WriteValue(w *Writer, v Value) {
	w.WriteByte(byte(v.Kind))
	switch v.Kind {
	case ValueNull:
	case ValueBool:
		w.WriteBool(v.Bool)
	case ValueInt8:
		w.WriteInt8(int8(v.Int))
	case ValueInt16:
		w.WriteInt16(int16(v.Int))
	case ValueInt32:
		w.WriteInt32(int32(v.Int))
	case ValueInt64:
		w.WriteInt64(v.Int)
	case ValueFloat32:
		w.WriteFloat32(float32(v.Float))
	case ValueFloat64:
		w.WriteFloat64(v.Float)
	case ValueString:
		w.WriteString(v.Str)
	case ValueBytes:
		w.WriteBytes(v.Bytes)
	case ValueBytesCompressed:
		w.WriteInt32(int32(v.Int)) // uncompressed length
		w.WriteBytes(v.Bytes)      // compressed body
	case ValueHandle, ValueLambdaHandle:
		w.WriteUint64(v.Handle)
		w.WriteUint64(v.TypeID)
	case ValueList:
		w.WriteInt32(int32(len(v.List)))
		for _, elem := range v.List {
			WriteValue(w, elem)
		}
	case ValueMap:
		w.WriteInt32(int32(len(v.Map)))
		for _, entry := range v.Map {
			WriteValue(w, entry.Key)
			WriteValue(w, entry.Value)
		}
	case ValueShmArrayRef:
		w.WriteString(v.ShmPath)
		w.WriteByte(byte(v.ShmKind))
		w.WriteInt32(int32(v.ShmLen))
	default:
		panic(fmt.Sprintf("wire: unknown value kind %d", v.Kind))
	}
}

// ReadValue decodes one tagged Value from r.
func ReadValue(r *Reader) (Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return Value{}, err
	}
	kind := ValueKind(tag)

	switch kind {
	case ValueNull:
		return Value{Kind: kind}, nil
	case ValueBool:
		b, err := r.ReadBool()
		return Value{Kind: kind, Bool: b}, err
	case ValueInt8:
		v, err := r.ReadInt8()
		return Value{Kind: kind, Int: int64(v)}, err
	case ValueInt16:
		v, err := r.ReadInt16()
		return Value{Kind: kind, Int: int64(v)}, err
	case ValueInt32:
		v, err := r.ReadInt32()
		return Value{Kind: kind, Int: int64(v)}, err
	case ValueInt64:
		v, err := r.ReadInt64()
		return Value{Kind: kind, Int: v}, err
	case ValueFloat32:
		v, err := r.ReadFloat32()
		return Value{Kind: kind, Float: float64(v)}, err
	case ValueFloat64:
		v, err := r.ReadFloat64()
		return Value{Kind: kind, Float: v}, err
	case ValueString:
		s, err := r.ReadString()
		return Value{Kind: kind, Str: s}, err
	case ValueBytes:
		b, err := r.ReadBytes()
		return Value{Kind: kind, Bytes: b}, err
	case ValueBytesCompressed:
		origLen, err := r.ReadInt32()
		if err != nil {
			return Value{}, err
		}
		b, err := r.ReadBytes()
		return Value{Kind: kind, Int: int64(origLen), Bytes: b}, err
	case ValueHandle, ValueLambdaHandle:
		h, err := r.ReadUint64()
		if err != nil {
			return Value{}, err
		}
		t, err := r.ReadUint64()
		return Value{Kind: kind, Handle: h, TypeID: t}, err
	case ValueList:
		n, err := r.ReadInt32()
		if err != nil {
			return Value{}, err
		}
		list := make([]Value, 0, n)
		for i := int32(0); i < n; i++ {
			elem, err := ReadValue(r)
			if err != nil {
				return Value{}, err
			}
			list = append(list, elem)
		}
		return Value{Kind: kind, List: list}, nil
	case ValueMap:
		n, err := r.ReadInt32()
		if err != nil {
			return Value{}, err
		}
		entries := make([]MapEntry, 0, n)
		for i := int32(0); i < n; i++ {
			key, err := ReadValue(r)
			if err != nil {
				return Value{}, err
			}
			val, err := ReadValue(r)
			if err != nil {
				return Value{}, err
			}
			entries = append(entries, MapEntry{Key: key, Value: val})
		}
		return Value{Kind: kind, Map: entries}, nil
	case ValueShmArrayRef:
		path, err := r.ReadString()
		if err != nil {
			return Value{}, err
		}
		ekind, err := r.ReadByte()
		if err != nil {
			return Value{}, err
		}
		n, err := r.ReadInt32()
		return Value{Kind: kind, ShmPath: path, ShmKind: ShmElementKind(ekind), ShmLen: int(n)}, err
	default:
		return Value{}, fmt.Errorf("wire: unknown value tag %d", tag)
	}
}
