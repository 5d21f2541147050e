package codec

import (
	"fmt"
	"io"
	"net/http"

	"google.golang.org/protobuf/proto"
)

// protoUnmarshal is swapped in tests.
var protoUnmarshal = proto.Unmarshal

// ProtoCodec is a codec that uses Protocol Buffers for marshaling and unmarshaling.
// T and U are generated message pointer types such as *pb.User.
type ProtoCodec[T proto.Message, U proto.Message] struct{}

// NewProtoCodec creates a new ProtoCodec instance for the specified types.
func NewProtoCodec[T proto.Message, U proto.Message]() *ProtoCodec[T, U] {
	return &ProtoCodec[T, U]{}
}

// newMessage allocates a fresh T. Generated types answer ProtoReflect on a nil
// receiver, which is enough to reach the message type.
func newMessage[T proto.Message]() T {
	var zero T
	return zero.ProtoReflect().Type().New().Interface().(T)
}

// Decode decodes the request body into a new message of type T.
func (c *ProtoCodec[T, U]) Decode(r *http.Request) (T, error) {
	msg := newMessage[T]()

	if r.Body == nil || r.Body == http.NoBody {
		return msg, ErrEmptyBody
	}
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return msg, fmt.Errorf("codec: read body: %w", err)
	}

	if err := protoUnmarshal(body, msg); err != nil {
		return msg, fmt.Errorf("codec: decode proto: %w", err)
	}
	return msg, nil
}

// Encode encodes a message of type U into the response.
func (c *ProtoCodec[T, U]) Encode(w http.ResponseWriter, resp U) error {
	body, err := proto.Marshal(resp)
	if err != nil {
		return fmt.Errorf("codec: encode proto: %w", err)
	}

	w.Header().Set("Content-Type", "application/x-protobuf")
	_, err = w.Write(body)
	return err
}
