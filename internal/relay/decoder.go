package relay

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"relay/internal/constants"
	"relay/pkg/models"
)

// Decoder turns an inbound message body into a Document. It holds no
// mutable state and is safe for concurrent use.
type Decoder struct {
	defaultEncoding string
	schema          *jsonschema.Schema
}

func NewDecoder(defaultEncoding string) (*Decoder, error) {
	defaultEncoding = strings.ToLower(defaultEncoding)
	if defaultEncoding == "" {
		defaultEncoding = constants.EncodingAuto
	}
	if !isKnownEncoding(defaultEncoding) {
		return nil, fmt.Errorf("unknown default encoding %q", defaultEncoding)
	}

	schema, err := compileDocumentSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile document schema: %w", err)
	}

	return &Decoder{defaultEncoding: defaultEncoding, schema: schema}, nil
}

func (d *Decoder) Decode(msg models.InboundMessage) (*Document, error) {
	encoding := d.defaultEncoding
	if msg.Encoding != "" {
		encoding = strings.ToLower(msg.Encoding)
	}
	if !isKnownEncoding(encoding) {
		return nil, &DecodeError{Encoding: encoding, Reason: "unknown encoding"}
	}

	raw, resolved, err := unwrap(msg.Body, encoding)
	if err != nil {
		return nil, err
	}

	return d.parse(raw, resolved)
}

func unwrap(body []byte, encoding string) ([]byte, string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, encoding, &DecodeError{Encoding: encoding, Reason: "empty body"}
	}

	if encoding == constants.EncodingAuto {
		encoding = constants.EncodingBase64
		if trimmed[0] == '{' {
			encoding = constants.EncodingJSON
		}
	}

	if encoding == constants.EncodingJSON {
		return trimmed, encoding, nil
	}

	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(trimmed)))
	n, err := base64.StdEncoding.Decode(decoded, trimmed)
	if err != nil {
		return nil, encoding, &DecodeError{Encoding: encoding, Reason: "invalid base64", Err: err}
	}
	return decoded[:n], encoding, nil
}

func (d *Decoder) parse(raw []byte, encoding string) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, &DecodeError{Encoding: encoding, Reason: "invalid JSON", Err: err}
	}
	if dec.More() {
		return nil, &DecodeError{Encoding: encoding, Reason: "trailing data after JSON document"}
	}

	if err := d.schema.Validate(generic); err != nil {
		return nil, &DecodeError{Encoding: encoding, Reason: "document does not match schema", Err: err}
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &DecodeError{Encoding: encoding, Reason: "invalid document", Err: err}
	}
	return &doc, nil
}

func isKnownEncoding(encoding string) bool {
	switch encoding {
	case constants.EncodingAuto, constants.EncodingJSON, constants.EncodingBase64:
		return true
	}
	return false
}
