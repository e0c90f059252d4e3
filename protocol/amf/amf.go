package amf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// AMF0 type markers
const (
	AMF0_NUMBER_MARKER       = 0x00
	AMF0_BOOLEAN_MARKER      = 0x01
	AMF0_STRING_MARKER       = 0x02
	AMF0_OBJECT_MARKER       = 0x03
	AMF0_NULL_MARKER         = 0x05
	AMF0_UNDEFINED_MARKER    = 0x06
	AMF0_ECMA_ARRAY_MARKER   = 0x08
	AMF0_OBJECT_END_MARKER   = 0x09
	AMF0_STRICT_ARRAY_MARKER = 0x0a
	AMF0_DATE_MARKER         = 0x0b
	AMF0_LONG_STRING_MARKER  = 0x0c
)

var (
	ErrUnexpectedType = errors.New("amf: unexpected type marker")
	ErrInvalidData    = errors.New("amf: invalid data")
)

// Object holds the key/value pairs of an AMF0 object or ECMA array.
type Object map[string]interface{}

// ReadValue decodes a single AMF0 value.
func ReadValue(r io.Reader) (interface{}, error) {
	var marker byte
	if err := binary.Read(r, binary.BigEndian, &marker); err != nil {
		return nil, err
	}

	switch marker {
	case AMF0_NUMBER_MARKER:
		return readNumber(r)
	case AMF0_BOOLEAN_MARKER:
		return readBoolean(r)
	case AMF0_STRING_MARKER:
		return readString(r)
	case AMF0_NULL_MARKER, AMF0_UNDEFINED_MARKER:
		return nil, nil
	case AMF0_OBJECT_MARKER:
		return readObject(r)
	case AMF0_ECMA_ARRAY_MARKER:
		return readECMAArray(r)
	case AMF0_STRICT_ARRAY_MARKER:
		return readStrictArray(r)
	case AMF0_DATE_MARKER:
		return readDate(r)
	case AMF0_LONG_STRING_MARKER:
		return readLongString(r)
	default:
		return nil, ErrUnexpectedType
	}
}

// ReadString decodes an AMF0 value and requires it to be a string.
func ReadString(r io.Reader) (string, error) {
	var marker byte
	if err := binary.Read(r, binary.BigEndian, &marker); err != nil {
		return "", err
	}
	if marker != AMF0_STRING_MARKER {
		return "", ErrUnexpectedType
	}
	return readString(r)
}

// MetadataName returns the event name at the head of a script tag payload,
// e.g. "onMetaData".
func MetadataName(payload []byte) (string, error) {
	return ReadString(bytes.NewReader(payload))
}

// Metadata decodes a script tag payload into its event name and the
// metadata object following it. The object may be absent.
func Metadata(payload []byte) (string, Object, error) {
	r := bytes.NewReader(payload)
	name, err := ReadString(r)
	if err != nil {
		return "", nil, err
	}
	v, err := ReadValue(r)
	if err != nil {
		return name, nil, err
	}
	obj, _ := v.(Object)
	return name, obj, nil
}

func readNumber(r io.Reader) (float64, error) {
	var num float64
	err := binary.Read(r, binary.BigEndian, &num)
	return num, err
}

func readBoolean(r io.Reader) (bool, error) {
	var b byte
	if err := binary.Read(r, binary.BigEndian, &b); err != nil {
		return false, err
	}
	return b != 0, nil
}

func readString(r io.Reader) (string, error) {
	var length uint16
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return "", err
	}
	if length == 0 {
		return "", nil
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readLongString(r io.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readObject(r io.Reader) (Object, error) {
	obj := make(Object)
	for {
		key, done, err := readObjectKey(r)
		if err != nil {
			return nil, err
		}
		if done {
			return obj, nil
		}
		value, err := ReadValue(r)
		if err != nil {
			return nil, err
		}
		obj[key] = value
	}
}

func readECMAArray(r io.Reader) (Object, error) {
	// associative count is advisory; the object end marker is authoritative
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	return readObject(r)
}

func readStrictArray(r io.Reader) ([]interface{}, error) {
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	arr := make([]interface{}, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := ReadValue(r)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	return arr, nil
}

func readDate(r io.Reader) (float64, error) {
	ms, err := readNumber(r)
	if err != nil {
		return 0, err
	}
	var tz int16
	if err := binary.Read(r, binary.BigEndian, &tz); err != nil {
		return 0, err
	}
	return ms, nil
}

func readObjectKey(r io.Reader) (string, bool, error) {
	var keyLen uint16
	if err := binary.Read(r, binary.BigEndian, &keyLen); err != nil {
		return "", false, err
	}
	if keyLen == 0 {
		var end byte
		if err := binary.Read(r, binary.BigEndian, &end); err != nil {
			return "", false, err
		}
		if end != AMF0_OBJECT_END_MARKER {
			return "", false, ErrInvalidData
		}
		return "", true, nil
	}
	buf := make([]byte, keyLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", false, err
	}
	return string(buf), false, nil
}
