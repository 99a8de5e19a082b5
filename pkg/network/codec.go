package network

import "encoding/binary"

// EncodeMessage serialises msg's header and payload and writes it to buf's
// write side. It fails only if msg.Command is malformed; a checksum
// mismatch can't occur here since the checksum is computed, not verified.
func EncodeMessage(buf *FrameBuffer, msg *Message) error {
	cmd, err := encodeCommand(msg.Command)
	if err != nil {
		return IO(err)
	}

	var header [headerSize]byte
	binary.LittleEndian.PutUint32(header[0:4], msg.Magic)
	copy(header[4:4+commandSize], cmd[:])
	binary.LittleEndian.PutUint32(header[4+commandSize:8+commandSize], uint32(len(msg.Payload)))
	binary.LittleEndian.PutUint32(header[8+commandSize:12+commandSize], msg.Checksum)

	_, _ = buf.Write(header[:])
	_, _ = buf.Write(msg.Payload)
	return nil
}

// DecodeMessage attempts to decode exactly one framed Message from buf.
//
//   - (msg, nil): a complete, well-formed message was consumed. buf is
//     committed past it.
//   - (nil, nil): not enough bytes are buffered yet to know. buf is rolled
//     back to where it was before the attempt; the caller should retry
//     after more bytes arrive.
//   - (nil, err): the bytes present are not a valid framed message (bad
//     magic check is the caller's responsibility via wantMagic, bad
//     length, or checksum mismatch). Fatal for the peer; buf is rolled
//     back for inspection but must not be decoded from again.
//
// This is the sole mechanism letting the reactor call DecodeMessage
// repeatedly without keeping parse state outside buf.
func DecodeMessage(buf *FrameBuffer, wantMagic uint32) (*Message, error) {
	buf.Checkpoint()

	var header [headerSize]byte
	n, _ := buf.Read(header[:])
	if n < headerSize {
		buf.Rollback()
		return nil, nil
	}

	magic := binary.LittleEndian.Uint32(header[0:4])
	var cmdBytes [commandSize]byte
	copy(cmdBytes[:], header[4:4+commandSize])
	length := binary.LittleEndian.Uint32(header[4+commandSize : 8+commandSize])
	cksum := binary.LittleEndian.Uint32(header[8+commandSize : 12+commandSize])

	if magic != wantMagic {
		buf.Rollback()
		return nil, Misbehaving(100, "bad magic", "")
	}

	if length > maxPayloadSize {
		buf.Rollback()
		return nil, Misbehaving(100, "oversized message length", "")
	}

	payload := make([]byte, length)
	n, _ = buf.Read(payload)
	if uint32(n) < length {
		buf.Rollback()
		return nil, nil
	}

	if got := checksum(payload); got != cksum {
		buf.Rollback()
		return nil, Misbehaving(100, "checksum mismatch", "")
	}

	buf.Commit()
	return &Message{
		Magic:    magic,
		Command:  decodeCommand(cmdBytes),
		Length:   length,
		Checksum: cksum,
		Payload:  payload,
	}, nil
}
