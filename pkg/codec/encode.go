// Package codec translates between records and the ELINK XML wire format.
//
// Encoding follows the service's collection convention: every item of a
// sequence field becomes a sibling element named by ItemTag, so
//
//	{"authors": [{"last_name": "Doe"}, {"last_name": "Roe"}]}
//
// is written as
//
//	<author><last_name>Doe</last_name></author><author><last_name>Roe</last_name></author>
//
// Decoding is the generic element-tree conversion the service's responses
// have always been read with; see Decode for its rules.
package codec

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/samvad-hq/elink/pkg/record"
)

// ContentType is the media type of encoded documents.
const ContentType = "application/xml"

// ErrInvalidEnvelope is returned when Encode is not given exactly one record in a sequence.
var ErrInvalidEnvelope = errors.New("envelope must be a sequence holding exactly one record")

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithSequenceWrapper wraps the items of each sequence field in an element
// named after the field, e.g. <authors><author/><author/></authors>.
func WithSequenceWrapper() EncoderOption {
	return func(e *Encoder) { e.wrap = true }
}

// Encoder writes envelopes as XML documents.
type Encoder struct {
	enc  *xml.Encoder
	wrap bool
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer, opts ...EncoderOption) *Encoder {
	e := &Encoder{enc: xml.NewEncoder(w)}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Envelope wraps a single record into the one-element sequence ELINK expects.
func Envelope(rec *record.Record) record.Value {
	return record.Seq(record.Nested(rec))
}

// Marshal encodes envelope under root and returns the document bytes.
func Marshal(root string, envelope record.Value, opts ...EncoderOption) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf, opts...).Encode(root, envelope); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalRecord encodes rec as the single item of a RootTag envelope.
func MarshalRecord(rec *record.Record, opts ...EncoderOption) ([]byte, error) {
	return Marshal(RootTag, Envelope(rec), opts...)
}

// Encode writes the XML declaration followed by root holding one element per
// envelope item, each named ItemTag(root).
func (e *Encoder) Encode(root string, envelope record.Value) error {
	items := envelope.Items()
	if envelope.Kind() != record.KindSequence || len(items) != 1 || items[0].Kind() != record.KindRecord {
		return ErrInvalidEnvelope
	}

	decl := xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="UTF-8"`)}
	if err := e.enc.EncodeToken(decl); err != nil {
		return fmt.Errorf("write declaration: %w", err)
	}

	start, end := e.tags(root)
	if err := e.enc.EncodeToken(start); err != nil {
		return err
	}
	itemTag := ItemTag(root)
	for _, it := range items {
		if err := e.element(itemTag, it); err != nil {
			return err
		}
	}
	if err := e.enc.EncodeToken(end); err != nil {
		return err
	}
	return e.enc.Flush()
}

// field writes one record field. Sequences expand to repeated item elements.
func (e *Encoder) field(name string, v record.Value) error {
	if v.Kind() != record.KindSequence {
		return e.element(name, v)
	}

	itemTag := ItemTag(name)
	if !e.wrap {
		for _, it := range v.Items() {
			if err := e.element(itemTag, it); err != nil {
				return err
			}
		}
		return nil
	}

	start, end := e.tags(name)
	if err := e.enc.EncodeToken(start); err != nil {
		return err
	}
	for _, it := range v.Items() {
		if err := e.element(itemTag, it); err != nil {
			return err
		}
	}
	return e.enc.EncodeToken(end)
}

func (e *Encoder) element(name string, v record.Value) error {
	start, end := e.tags(name)
	if err := e.enc.EncodeToken(start); err != nil {
		return fmt.Errorf("write element %q: %w", name, err)
	}

	switch v.Kind() {
	case record.KindText:
		s, _ := v.Text()
		if err := e.enc.EncodeToken(xml.CharData(s)); err != nil {
			return err
		}
	case record.KindRecord:
		var err error
		v.Record().Range(func(k string, child record.Value) bool {
			err = e.field(k, child)
			return err == nil
		})
		if err != nil {
			return err
		}
	case record.KindSequence:
		itemTag := ItemTag(name)
		for _, it := range v.Items() {
			if err := e.element(itemTag, it); err != nil {
				return err
			}
		}
	}

	return e.enc.EncodeToken(end)
}

func (e *Encoder) tags(name string) (xml.StartElement, xml.EndElement) {
	tag, orig := elementName(name)
	start := xml.StartElement{Name: xml.Name{Local: tag}}
	if orig != "" {
		start.Attr = []xml.Attr{{Name: xml.Name{Local: "name"}, Value: orig}}
	}
	return start, start.End()
}
