// Package token provides primitives to turn structs into opaque strings and back.
//
// The library is built around BinaryEncoders: objects turning a byte array
// into another, by, for example, encrypting the data, adding an issue time,
// or converting it to base64. Encoders can be chained:
//
//	encoder := token.NewTypeEncoder(token.NewChainedEncoder(
//	    token.NewTimeEncoder(nil, 30*time.Minute), token.NewBase64UrlEncoder()))
//
//	value, err := encoder.Encode(LoginState{StateID: "..."})
//
// On Decode the transformations are applied in reverse order, failing if
// any of the verifications fail, for example if the data is too old.
package token

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/enfabrica/hubauth/lib/config/marshal"
)

// Used internally to define keys exported via context.
type contextKey string

// BinaryEncoder converts an array of bytes into another.
type BinaryEncoder interface {
	Encode([]byte) ([]byte, error)

	// Decode returns the original array of bytes. The returned context
	// carries metadata extracted while decoding, like the issue time.
	Decode(context.Context, []byte) (context.Context, []byte, error)
}

// ChainedEncoder applies a set of BinaryEncoders in sequence on Encode,
// and in reverse order on Decode.
type ChainedEncoder []BinaryEncoder

func NewChainedEncoder(enc ...BinaryEncoder) *ChainedEncoder {
	return (*ChainedEncoder)(&enc)
}

func (ce *ChainedEncoder) Encode(data []byte) ([]byte, error) {
	for _, enc := range *ce {
		var err error
		data, err = enc.Encode(data)
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

// Decode stops at the first error that leaves no data to decode, but
// otherwise keeps going, returning the first error found. This allows the
// caller to still look at expired data, for example.
func (ce *ChainedEncoder) Decode(ctx context.Context, data []byte) (context.Context, []byte, error) {
	encs := *ce
	var first error
	for ix := len(encs) - 1; ix >= 0; ix-- {
		var err error
		ctx, data, err = encs[ix].Decode(ctx, data)
		if err != nil {
			if first == nil {
				first = err
			}
			if data == nil {
				break
			}
		}
	}
	return ctx, data, first
}

// TypeEncoder marshals golang values before passing them to a BinaryEncoder.
type TypeEncoder struct {
	be BinaryEncoder
	ma marshal.Marshaller
}

type TypeEncoderSetter func(*TypeEncoder)

// WithMarshaller selects the marshaller to use, marshal.Json by default.
func WithMarshaller(ma marshal.Marshaller) TypeEncoderSetter {
	return func(te *TypeEncoder) {
		te.ma = ma
	}
}

func NewTypeEncoder(be BinaryEncoder, setter ...TypeEncoderSetter) *TypeEncoder {
	te := &TypeEncoder{
		be: be,
		ma: marshal.Json,
	}
	for _, set := range setter {
		set(te)
	}
	return te
}

func (t *TypeEncoder) Encode(data interface{}) ([]byte, error) {
	buffer, err := t.ma.Marshal(data)
	if err != nil {
		return nil, err
	}
	return t.be.Encode(buffer)
}

// Decode decodes data into output. If the binary decoding returned an error
// but still some data, output is filled in and the error returned.
func (t *TypeEncoder) Decode(ctx context.Context, data []byte, output interface{}) (context.Context, error) {
	ctx, data, derr := t.be.Decode(ctx, data)
	if data == nil {
		if derr == nil {
			derr = fmt.Errorf("no data to decode")
		}
		return ctx, derr
	}

	if err := t.ma.Unmarshal(data, output); err != nil {
		return ctx, err
	}
	return ctx, derr
}

// Base64Encoder converts data to and from base64, URL safe without padding.
type Base64Encoder struct {
	enc *base64.Encoding
}

func NewBase64UrlEncoder() *Base64Encoder {
	return &Base64Encoder{
		enc: base64.RawURLEncoding,
	}
}

func (e *Base64Encoder) Encode(data []byte) ([]byte, error) {
	dst := make([]byte, e.enc.EncodedLen(len(data)))
	e.enc.Encode(dst, data)
	return dst, nil
}

func (e *Base64Encoder) Decode(ctx context.Context, data []byte) (context.Context, []byte, error) {
	dst := make([]byte, e.enc.DecodedLen(len(data)))
	n, err := e.enc.Decode(dst, data)
	if err != nil {
		return ctx, nil, err
	}
	return ctx, dst[:n], nil
}
