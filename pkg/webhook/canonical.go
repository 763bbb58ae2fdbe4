package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/gowebpki/jcs"
)

// Canonicalize re-serializes a JSON document per RFC 8785 (JCS): object keys
// sorted by UTF-16 code units at every depth, no insignificant whitespace,
// numbers in ECMAScript form and strings escaped the way JSON.stringify
// escapes them. That is what the provider signs.
func Canonicalize(payload []byte) ([]byte, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, errors.Join(ErrInvalidPayload, errors.New("empty body"))
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	var doc json.RawMessage
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.Join(ErrInvalidPayload, errors.New("trailing data after JSON document"))
	}

	out, err := jcs.Transform(doc)
	if err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}
	return out, nil
}
