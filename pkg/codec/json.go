// Package codec provides encoding and decoding functionality for different data formats.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// JSONCodec is a codec that uses JSON for marshaling and unmarshaling.
// It decodes the parent value of a resolution from the request body and encodes
// the resolved value into the response.
type JSONCodec[T any, U any] struct {
	// DisallowUnknownFields rejects request bodies with fields T does not declare.
	DisallowUnknownFields bool
}

// Decode decodes the request body into a value of type T.
// An empty body decodes to the zero value of T.
func (c *JSONCodec[T, U]) Decode(r *http.Request) (T, error) {
	var data T
	if r.Body == nil {
		return data, nil
	}
	defer r.Body.Close()

	// Read the request body
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return data, fmt.Errorf("codec: read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return data, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if c.DisallowUnknownFields {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&data); err != nil {
		return data, fmt.Errorf("codec: decode json: %w", err)
	}

	return data, nil
}

// Encode encodes a value of type U into the response.
// It marshals the value to JSON and writes it to the response with the appropriate content type.
func (c *JSONCodec[T, U]) Encode(w http.ResponseWriter, resp U) error {
	// Marshal the response
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("codec: encode json: %w", err)
	}

	// Set the content type
	w.Header().Set("Content-Type", "application/json")

	// Write the response
	_, err = w.Write(body)
	return err
}

// NewJSONCodec creates a new JSONCodec instance for the specified types.
// T represents the request type and U represents the response type.
func NewJSONCodec[T any, U any]() *JSONCodec[T, U] {
	return &JSONCodec[T, U]{}
}
