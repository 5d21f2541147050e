// Package codec provides encoding and decoding functionality for different data formats.
package codec

import (
	"errors"
	"net/http"
)

// ErrEmptyBody is returned when a request carries no body to decode.
var ErrEmptyBody = errors.New("codec: empty request body")

// Decoder extracts and deserializes data from an HTTP request into a value of type T.
type Decoder[T any] interface {
	Decode(r *http.Request) (T, error)
}

// Encoder serializes a value of type U and writes it to the HTTP response,
// setting the appropriate Content-Type.
type Encoder[U any] interface {
	Encode(w http.ResponseWriter, resp U) error
}

// Codec pairs a request decoder with a response encoder.
type Codec[T any, U any] interface {
	Decoder[T]
	Encoder[U]
}
