package fetcher

import (
	"context"
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// NewXMLDecoder returns a decoder that understands any charset declared in
// the document prolog, not just UTF-8.
func NewXMLDecoder(r io.Reader) *xml.Decoder {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "xml: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}
	return decoder
}

// DecodeXML collects every element whose local name matches, ignoring any
// namespace prefix. The first malformed token aborts the whole decode.
func DecodeXML[T any](ctx context.Context, r io.Reader, localName string) ([]T, error) {
	decoder := NewXMLDecoder(r)

	var out []T
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "xml: context cancelled")
		}

		tok, err := decoder.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "xml: read token")
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != localName {
			continue
		}

		var item T
		if err := decoder.DecodeElement(&item, &se); err != nil {
			return nil, eris.Wrap(err, "xml: decode element")
		}
		out = append(out, item)
	}
}
