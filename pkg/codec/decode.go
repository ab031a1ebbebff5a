package codec

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/samvad-hq/elink/pkg/record"
)

// ErrMalformed wraps every failure to parse a response document.
var ErrMalformed = errors.New("malformed xml document")

// doiTag names the element whose attributes are flattened into its parent.
const doiTag = "doi"

type element struct {
	name     string
	attrs    []xml.Attr
	text     string
	children []*element
}

// Unmarshal decodes an XML document into a record keyed by the root tag.
func Unmarshal(data []byte) (*record.Record, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads one XML document and converts its root element:
//
//   - an element without children or attributes becomes {tag: text}, or
//     {tag: null} when it has no text at all;
//   - children become {tag: {child: value}}, where repeated child tags
//     gather into a sequence and a tag seen once stays a single value;
//   - attributes are added to the element's own mapping as "@name", except
//     on <doi>, whose attributes go to the parent as "doi_name";
//   - non-blank text on an element with children or attributes replaces
//     that element's mapping with the trimmed text.
//
// Only the text before an element's first child counts as its text.
func Decode(r io.Reader) (*record.Record, error) {
	root, err := parse(r)
	if err != nil {
		return nil, err
	}
	return convert(root), nil
}

func parse(r io.Reader) (*element, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var (
		root  *element
		stack []*element
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{name: t.Name.Local, attrs: plainAttrs(t.Attr)}
			if n := len(stack); n > 0 {
				stack[n-1].children = append(stack[n-1].children, el)
			} else if root != nil {
				return nil, fmt.Errorf("%w: multiple root elements", ErrMalformed)
			} else {
				root = el
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if n := len(stack); n > 0 && len(stack[n-1].children) == 0 {
				stack[n-1].text += string(t)
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformed)
	}
	return root, nil
}

// plainAttrs drops namespace declarations and strips prefixes.
func plainAttrs(in []xml.Attr) []xml.Attr {
	if len(in) == 0 {
		return nil
	}
	out := make([]xml.Attr, 0, len(in))
	for _, a := range in {
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			continue
		}
		out = append(out, xml.Attr{Name: xml.Name{Local: a.Name.Local}, Value: a.Value})
	}
	return out
}

func convert(el *element) *record.Record {
	d := record.New()
	hasAttrs := len(el.attrs) > 0
	if hasAttrs {
		d.Set(el.name, record.Nested(record.New()))
	} else {
		d.Set(el.name, record.Null())
	}

	if len(el.children) > 0 {
		var order []string
		groups := make(map[string][]record.Value)
		for _, child := range el.children {
			convert(child).Range(func(k string, v record.Value) bool {
				if _, seen := groups[k]; !seen {
					order = append(order, k)
				}
				groups[k] = append(groups[k], v)
				return true
			})
		}

		inner := record.New()
		for _, k := range order {
			if vs := groups[k]; len(vs) == 1 {
				inner.Set(k, vs[0])
			} else {
				inner.Set(k, record.Seq(vs...))
			}
		}
		d = record.New().Set(el.name, record.Nested(inner))
	}

	if hasAttrs {
		if el.name == doiTag {
			for _, a := range el.attrs {
				d.SetText(doiTag+"_"+a.Name.Local, a.Value)
			}
		} else {
			own := d.Sub(el.name)
			for _, a := range el.attrs {
				own.SetText("@"+a.Name.Local, a.Value)
			}
		}
	}

	if el.text != "" {
		text := strings.TrimSpace(el.text)
		if len(el.children) > 0 || hasAttrs {
			if text != "" {
				d.SetText(el.name, text)
			}
		} else {
			d.SetText(el.name, text)
		}
	}
	return d
}
