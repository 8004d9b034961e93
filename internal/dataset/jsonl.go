package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// WriteJSONL writes one JSON object per record, newline terminated.
func WriteJSONL(w io.Writer, convs []Conversation) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i, c := range convs {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	return nil
}

// MarshalJSONL renders the collection as a JSONL document.
func MarshalJSONL(convs []Conversation) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, convs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
