package verifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

var ErrMalformedRequest = errors.New("malformed presentation")

type PresentationFormat string

const (
	FormatJSON PresentationFormat = "json"
	FormatCBOR PresentationFormat = "cbor"

	MIMEApplicationCBOR = "application/cbor"
)

// Presentation is what a holder submits against a nonce. Only the holder is
// inspected today; proof formats plug in as further implementations.
type Presentation interface {
	Format() PresentationFormat
	HolderID() string
}

type HolderPresentation struct {
	Holder string `json:"holder" cbor:"holder"`
	format PresentationFormat
}

func (p *HolderPresentation) Format() PresentationFormat {
	return p.format
}

func (p *HolderPresentation) HolderID() string {
	return p.Holder
}

// PresentationDecoder turns a request body into a Presentation. Decoders
// return errors wrapping ErrMalformedRequest.
type PresentationDecoder func(body []byte) (Presentation, error)

// Decoders maps media types to presentation decoders.
type Decoders map[string]PresentationDecoder

func DefaultDecoders() Decoders {
	return Decoders{
		"application/json":  DecodeJSONPresentation,
		MIMEApplicationCBOR: DecodeCBORPresentation,
	}
}

// Register adds or replaces the decoder for a media type.
func (d Decoders) Register(mediaType string, decoder PresentationDecoder) {
	d[strings.ToLower(mediaType)] = decoder
}

func (d Decoders) Decode(contentType string, body []byte) (Presentation, error) {
	if contentType == "" {
		return nil, fmt.Errorf("%w: missing content type", ErrMalformedRequest)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid content type: %w", ErrMalformedRequest, err)
	}
	decode, ok := d[mediaType]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported content type %s", ErrMalformedRequest, mediaType)
	}
	return decode(body)
}

// holder is a pointer so an absent field can be told apart from an empty one
type presentationBody struct {
	Holder *string `json:"holder" cbor:"holder"`
}

func DecodeJSONPresentation(body []byte) (Presentation, error) {
	var b presentationBody
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	return b.presentation(FormatJSON)
}

func DecodeCBORPresentation(body []byte) (Presentation, error) {
	var b presentationBody
	if err := cbor.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	return b.presentation(FormatCBOR)
}

func (b presentationBody) presentation(format PresentationFormat) (Presentation, error) {
	if b.Holder == nil {
		return nil, fmt.Errorf("%w: missing holder", ErrMalformedRequest)
	}
	return &HolderPresentation{
		Holder: *b.Holder,
		format: format,
	}, nil
}
