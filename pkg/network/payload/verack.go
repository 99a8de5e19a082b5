package payload

// Verack carries no fields; its presence is the entire message.
type Verack struct{}

// Encode returns the empty verack payload.
func (Verack) Encode() []byte { return nil }

// DecodeVerack validates that a verack payload is empty, as it must be.
func DecodeVerack(b []byte) (*Verack, error) {
	if len(b) != 0 {
		return nil, errShortOrMalformed("verack")
	}
	return &Verack{}, nil
}

func errShortOrMalformed(command string) error {
	return &malformedPayloadError{command: command}
}

type malformedPayloadError struct{ command string }

func (e *malformedPayloadError) Error() string {
	return "payload: malformed " + e.command + " payload"
}
