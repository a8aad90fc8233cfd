package api

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"google.golang.org/grpc/encoding"
)

const (
	// CodecCBOR is the content subtype of the CBOR wire codec.
	CodecCBOR = "cbor"
	// CodecJSON is the content subtype of the JSON wire codec.
	CodecJSON = "json"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	// Core deterministic encoding: the same message always produces identical bytes.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("api: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("api: CBOR decoder initialization failed: " + err.Error())
	}

	encoding.RegisterCodec(cborCodec{})
	encoding.RegisterCodec(jsonCodec{})
}

// cborCodec encodes messages as CBOR. Field names follow the json tags.
type cborCodec struct{}

func (cborCodec) Marshal(v any) ([]byte, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cbor: marshal %T: %w", v, err)
	}
	return b, nil
}

func (cborCodec) Unmarshal(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cbor: unmarshal %T: %w", v, err)
	}
	return nil
}

func (cborCodec) Name() string { return CodecCBOR }

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return CodecJSON }

// ValidCodec reports whether name is a registered wire codec.
func ValidCodec(name string) bool {
	return name == CodecCBOR || name == CodecJSON
}
