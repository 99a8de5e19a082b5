package payload

import (
	"encoding/binary"
	"fmt"
)

// putVarInt appends a Bitcoin-style "compact size" encoding of n to dst.
func putVarInt(dst []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(dst, byte(n))
	case n <= 0xffff:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(n))
		return append(append(dst, 0xfd), b...)
	case n <= 0xffffffff:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(n))
		return append(append(dst, 0xfe), b...)
	default:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, n)
		return append(append(dst, 0xff), b...)
	}
}

// readVarInt decodes a compact-size integer from the front of b, returning
// its value and the number of bytes consumed.
func readVarInt(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, fmt.Errorf("payload: empty varint")
	}
	switch b[0] {
	case 0xfd:
		if len(b) < 3 {
			return 0, 0, fmt.Errorf("payload: short varint")
		}
		return uint64(binary.LittleEndian.Uint16(b[1:3])), 3, nil
	case 0xfe:
		if len(b) < 5 {
			return 0, 0, fmt.Errorf("payload: short varint")
		}
		return uint64(binary.LittleEndian.Uint32(b[1:5])), 5, nil
	case 0xff:
		if len(b) < 9 {
			return 0, 0, fmt.Errorf("payload: short varint")
		}
		return binary.LittleEndian.Uint64(b[1:9]), 9, nil
	default:
		return uint64(b[0]), 1, nil
	}
}

func putVarStr(dst []byte, s string) []byte {
	dst = putVarInt(dst, uint64(len(s)))
	return append(dst, s...)
}

func readVarStr(b []byte) (string, int, error) {
	n, consumed, err := readVarInt(b)
	if err != nil {
		return "", 0, err
	}
	if uint64(len(b)-consumed) < n {
		return "", 0, fmt.Errorf("payload: short varstr")
	}
	return string(b[consumed : consumed+int(n)]), consumed + int(n), nil
}
