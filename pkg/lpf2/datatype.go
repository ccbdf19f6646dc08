package lpf2

// DataType is the encoding of a mode data item.
type DataType byte

// Data item types as advertised by INFO FORMAT.
const (
	Int8    DataType = 0
	Int16   DataType = 1
	Int32   DataType = 2
	Float32 DataType = 3
)

// IsValid checks t is a known data type.
func (t DataType) IsValid() bool {
	return t <= Float32
}

// Size returns the encoded size of an item, 0 for unknown types.
func (t DataType) Size() int {
	switch t {
	case Int8:
		return 1
	case Int16:
		return 2
	case Int32, Float32:
		return 4
	}
	return 0
}

func (t DataType) String() string {
	switch t {
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Float32:
		return "float"
	}
	return "unknown"
}

// ParseDataType parses the names returned by DataType.String.
func ParseDataType(s string) (DataType, error) {
	for t := Int8; t <= Float32; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return Int8, ErrDataType
}

// Value reads an item of type t at off.
func (m *Message) Value(off int, t DataType) float64 {
	switch t {
	case Int8:
		return float64(m.Int8(off))
	case Int16:
		return float64(m.Int16(off))
	case Int32:
		return float64(m.Int32(off))
	case Float32:
		return float64(m.Float32(off))
	}
	return 0
}

// PutValue writes v as type t at off. Integer types truncate.
func (m *Message) PutValue(off int, t DataType, v float64) error {
	switch t {
	case Int8:
		return m.PutInt8(off, int8(int64(v)))
	case Int16:
		return m.PutInt16(off, int16(int64(v)))
	case Int32:
		return m.PutInt32(off, int32(int64(v)))
	case Float32:
		return m.PutFloat32(off, float32(v))
	}
	return ErrDataType
}

// PutValues writes consecutive items of type t from off.
func (m *Message) PutValues(off int, t DataType, vals ...float64) error {
	size := t.Size()
	if size == 0 {
		return ErrDataType
	}
	for n, v := range vals {
		if err := m.PutValue(off+n*size, t, v); err != nil {
			return err
		}
	}
	return nil
}
