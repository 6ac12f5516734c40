package feeds

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"MarketBrief/pkg/util"
)

// Kind is the document shape a feed was recognised as.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindRSS
	KindAtom
)

func (k Kind) String() string {
	switch k {
	case KindRSS:
		return "rss"
	case KindAtom:
		return "atom"
	default:
		return "unrecognized"
	}
}

// Parsed is the tagged result of parsing one feed document.
// Titles is empty for KindUnrecognized.
type Parsed struct {
	Kind   Kind
	Titles []string
}

var errNoRoot = errors.New("document has no root element")

type rssItem struct {
	Title string `xml:"title"`
}

// rssDoc covers RSS 2.0 (rss/channel/item) and RSS 1.0 (rdf:RDF/item).
type rssDoc struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
	Items []rssItem `xml:"item"`
}

type atomText struct {
	Type  string `xml:"type,attr"`
	Text  string `xml:",chardata"`
	Inner string `xml:",innerxml"`
}

type atomDoc struct {
	Entries []struct {
		Title atomText `xml:"title"`
	} `xml:"entry"`
}

// Parse recognises RSS and Atom documents and extracts sanitized, non-empty item titles in document order.
// Anything else, including malformed XML, is KindUnrecognized.
func Parse(data []byte) Parsed {
	dec := newDecoder(bytes.NewReader(data))

	root, err := rootElement(dec)
	if err != nil {
		return Parsed{Kind: KindUnrecognized}
	}

	switch strings.ToLower(root.Name.Local) {
	case "rss", "rdf":
		var doc rssDoc
		if err := dec.DecodeElement(&doc, &root); err != nil {
			return Parsed{Kind: KindUnrecognized}
		}
		items := append(doc.Channel.Items, doc.Items...)
		titles := make([]string, 0, len(items))
		for _, it := range items {
			if t := Sanitize(it.Title); t != "" {
				titles = append(titles, t)
			}
		}
		return Parsed{Kind: KindRSS, Titles: titles}

	case "feed":
		var doc atomDoc
		if err := dec.DecodeElement(&doc, &root); err != nil {
			return Parsed{Kind: KindUnrecognized}
		}
		titles := make([]string, 0, len(doc.Entries))
		for _, e := range doc.Entries {
			raw := e.Title.Text
			if e.Title.Type == "xhtml" {
				raw = e.Title.Inner
			}
			if t := Sanitize(raw); t != "" {
				titles = append(titles, t)
			}
		}
		return Parsed{Kind: KindAtom, Titles: titles}
	}

	return Parsed{Kind: KindUnrecognized}
}

func newDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}

func rootElement(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return xml.StartElement{}, errNoRoot
			}
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

// Sanitize turns a raw title into plain text: literal CDATA wrappers and markup are removed,
// entities decoded and whitespace collapsed.
func Sanitize(raw string) string {
	s := strings.ReplaceAll(raw, "<![CDATA[", "")
	s = strings.ReplaceAll(s, "]]>", "")

	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			doc.Find("script, style").Remove()
			s = doc.Text()
		}
	}

	return util.CollapseSpace(s)
}
