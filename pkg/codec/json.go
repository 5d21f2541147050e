package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// JSONCodec is a codec that uses JSON for marshaling and unmarshaling.
type JSONCodec[T any, U any] struct {
	// DisallowUnknownFields rejects request bodies with fields T does not declare.
	DisallowUnknownFields bool
}

// NewJSONCodec creates a new JSONCodec instance for the specified types.
// T represents the request type and U represents the response type.
func NewJSONCodec[T any, U any]() *JSONCodec[T, U] {
	return &JSONCodec[T, U]{}
}

// Decode decodes the request body into a value of type T.
func (c *JSONCodec[T, U]) Decode(r *http.Request) (T, error) {
	var data T

	if r.Body == nil || r.Body == http.NoBody {
		return data, ErrEmptyBody
	}
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return data, fmt.Errorf("codec: read body: %w", err)
	}
	if len(body) == 0 {
		return data, ErrEmptyBody
	}

	if c.DisallowUnknownFields {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&data); err != nil {
			return data, fmt.Errorf("codec: decode json: %w", err)
		}
		return data, nil
	}

	if err := json.Unmarshal(body, &data); err != nil {
		return data, fmt.Errorf("codec: decode json: %w", err)
	}
	return data, nil
}

// Encode encodes a value of type U into the response.
func (c *JSONCodec[T, U]) Encode(w http.ResponseWriter, resp U) error {
	return WriteJSON(w, http.StatusOK, resp)
}

// WriteJSON marshals v and writes it with the given status code.
// Nothing is written if marshaling fails.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("codec: encode json: %w", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}
