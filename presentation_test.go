package verifier_test

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/gematik/zero-lab/go/verifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePresentation(t *testing.T) {
	decoders := verifier.DefaultDecoders()

	cborBody, err := cbor.Marshal(map[string]any{"holder": "did:example:cbor", "extra": 1})
	require.NoError(t, err)

	tests := []struct {
		name        string
		contentType string
		body        []byte
		holder      string
		format      verifier.PresentationFormat
	}{
		{"json", "application/json", []byte(`{"holder":"did:example:1"}`), "did:example:1", verifier.FormatJSON},
		{"json with charset", "application/json; charset=utf-8", []byte(`{"holder":"a"}`), "a", verifier.FormatJSON},
		{"json empty holder", "application/json", []byte(`{"holder":""}`), "", verifier.FormatJSON},
		{"json unknown fields", "application/json", []byte(`{"holder":"b","proof":{"type":"x"}}`), "b", verifier.FormatJSON},
		{"cbor", verifier.MIMEApplicationCBOR, cborBody, "did:example:cbor", verifier.FormatCBOR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := decoders.Decode(tt.contentType, tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.holder, p.HolderID())
			assert.Equal(t, tt.format, p.Format())
		})
	}
}

func TestDecodePresentationErrors(t *testing.T) {
	decoders := verifier.DefaultDecoders()

	tests := []struct {
		name        string
		contentType string
		body        []byte
	}{
		{"missing content type", "", []byte(`{"holder":"a"}`)},
		{"broken content type", "application/", []byte(`{"holder":"a"}`)},
		{"unsupported", "application/xml", []byte(`<holder>a</holder>`)},
		{"null", "application/json", []byte(`null`)},
		{"array", "application/json", []byte(`["a"]`)},
		{"cbor garbage", verifier.MIMEApplicationCBOR, []byte{0xff, 0x00}},
		{"cbor without holder", verifier.MIMEApplicationCBOR, []byte{0xa0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decoders.Decode(tt.contentType, tt.body)
			assert.ErrorIs(t, err, verifier.ErrMalformedRequest)
		})
	}
}

func TestCustomDecoder(t *testing.T) {
	decoders := verifier.DefaultDecoders()
	decoders["application/vp+jwt"] = func(body []byte) (verifier.Presentation, error) {
		return &verifier.HolderPresentation{Holder: string(body)}, nil
	}

	p, err := decoders.Decode("application/vp+jwt", []byte("did:example:jwt"))
	require.NoError(t, err)
	assert.Equal(t, "did:example:jwt", p.HolderID())
}

func TestRegisterDecoderMediaTypeCase(t *testing.T) {
	decoders := verifier.DefaultDecoders()
	decoders.Register("Application/VP+JWT", func(body []byte) (verifier.Presentation, error) {
		return &verifier.HolderPresentation{Holder: string(body)}, nil
	})

	p, err := decoders.Decode("application/vp+jwt; charset=utf-8", []byte("did:example:jwt"))
	require.NoError(t, err)
	assert.Equal(t, "did:example:jwt", p.HolderID())
}
