package codec

import (
	"fmt"
	"io"
	"net/http"

	"google.golang.org/protobuf/proto"
)

// Seams over the proto package, replaced in tests.
var (
	protoUnmarshal = proto.Unmarshal
	protoMarshal   = proto.Marshal
)

// ProtoCodec is a codec that uses Protocol Buffers for marshaling and unmarshaling.
// T and U are generated message pointer types such as *pb.Page.
type ProtoCodec[T proto.Message, U proto.Message] struct{}

// Decode decodes the request body into a new message of type T.
func (c *ProtoCodec[T, U]) Decode(r *http.Request) (T, error) {
	var zero T

	// Create a new instance of T
	msg, ok := zero.ProtoReflect().New().Interface().(T)
	if !ok {
		return zero, fmt.Errorf("codec: cannot instantiate %T", zero)
	}
	if r.Body == nil {
		return msg, nil
	}
	defer r.Body.Close()

	// Read the request body
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return zero, fmt.Errorf("codec: read body: %w", err)
	}

	// Unmarshal the proto
	if err := protoUnmarshal(body, msg); err != nil {
		return zero, fmt.Errorf("codec: decode proto: %w", err)
	}

	return msg, nil
}

// Encode marshals resp and writes it with the protobuf content type.
func (c *ProtoCodec[T, U]) Encode(w http.ResponseWriter, resp U) error {
	// Marshal the response
	body, err := protoMarshal(resp)
	if err != nil {
		return fmt.Errorf("codec: encode proto: %w", err)
	}

	// Set the content type
	w.Header().Set("Content-Type", "application/x-protobuf")

	// Write the response
	_, err = w.Write(body)
	return err
}

// NewProtoCodec creates a new ProtoCodec instance for the specified types.
func NewProtoCodec[T proto.Message, U proto.Message]() *ProtoCodec[T, U] {
	return &ProtoCodec[T, U]{}
}
