package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// cborEnc uses Core Deterministic Encoding so equal values give equal bytes.
var cborEnc cbor.EncMode

// cborDec decodes untyped maps as map[string]any to match the JSON codecs.
var cborDec cbor.DecMode

func init() {
	var err error
	encOpts := cbor.CoreDetEncOptions()
	encOpts.TextMarshaler = cbor.TextMarshalerTextString
	cborEnc, err = encOpts.EncMode()
	if err != nil {
		panic("codec: cbor encoder: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("codec: cbor decoder: " + err.Error())
	}
}

// CBOR is a binary codec backed by github.com/fxamacker/cbor/v2.
type CBOR struct{}

// Marshal encodes the value to CBOR.
func (CBOR) Marshal(v any) ([]byte, error) { return cborEnc.Marshal(v) }

// Unmarshal decodes the CBOR data into v.
func (CBOR) Unmarshal(data []byte, v any) error { return cborDec.Unmarshal(data, v) }

// Decode reads one CBOR data item from r.
func (CBOR) Decode(r io.Reader, v any) error { return cborDec.NewDecoder(r).Decode(v) }

// Name returns the unique name of the codec ("cbor").
func (CBOR) Name() string { return "cbor" }
