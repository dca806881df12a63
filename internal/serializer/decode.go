package serializer

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/bobbyquantum/inkweld-sub009/internal/core/domain"
	"github.com/bobbyquantum/inkweld-sub009/pkg/ydoc"
)

// syntheticRoot wraps input so it may hold several top-level siblings.
const syntheticRoot = "inkweld-root"

// parsedNode is the engine-independent result of parsing. Input is parsed
// completely into parsedNodes before the document is touched.
type parsedNode struct {
	tag      string // empty for text
	text     string
	attrs    []xml.Attr
	children []*parsedNode
}

// Validate reports whether text is well-formed tree content.
// Malformed input yields domain.ErrMalformedContent.
func Validate(text string) error {
	_, err := parse(text)
	return err
}

func parse(text string) ([]*parsedNode, error) {
	dec := xml.NewDecoder(strings.NewReader("<" + syntheticRoot + ">" + text + "</" + syntheticRoot + ">"))
	dec.Strict = true

	root := &parsedNode{tag: syntheticRoot}
	var stack []*parsedNode
	var pendingText strings.Builder
	closed := false

	flushText := func() {
		if pendingText.Len() == 0 {
			return
		}
		s := pendingText.String()
		pendingText.Reset()
		if strings.TrimSpace(s) == "" && s != " " {
			return
		}
		top := stack[len(stack)-1]
		top.children = append(top.children, &parsedNode{text: s})
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.ErrMalformedContent.WithCause(err)
		}
		if closed {
			return nil, domain.ErrMalformedContent.WithDetails("content after document end")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 {
				stack = append(stack, root)
				continue
			}
			flushText()
			n := &parsedNode{tag: qualifiedName(t.Name)}
			for _, a := range t.Attr {
				n.attrs = append(n.attrs, xml.Attr{Name: xml.Name{Local: qualifiedName(a.Name)}, Value: a.Value})
			}
			top := stack[len(stack)-1]
			top.children = append(top.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			flushText()
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				closed = true
			}
		case xml.CharData:
			pendingText.Write(t)
		}
	}

	if !closed {
		return nil, domain.ErrMalformedContent.WithDetails("unexpected end of content")
	}
	return root.children, nil
}

func qualifiedName(n xml.Name) string {
	if n.Space != "" {
		return n.Space + ":" + n.Local
	}
	return n.Local
}

// DecodeTree parses text and replaces the children of frag with the parsed
// nodes in one transaction. Parse errors are reported before any mutation.
func (s *Serializer) DecodeTree(doc ydoc.Doc, frag ydoc.XMLFragment, text string) error {
	parsed, err := parse(text)
	if err != nil {
		return err
	}

	nodes := make([]ydoc.Node, 0, len(parsed))
	for _, p := range parsed {
		nodes = append(nodes, build(doc, p))
	}

	return doc.Transact(RestoreOrigin, func() error {
		if n := frag.Len(); n > 0 {
			frag.Delete(0, n)
		}
		frag.Insert(0, nodes...)
		return nil
	})
}

func build(doc ydoc.Doc, p *parsedNode) ydoc.Node {
	if p.tag == "" {
		return doc.NewText(p.text)
	}
	el := doc.NewElement(p.tag)
	for _, a := range p.attrs {
		el.SetAttribute(a.Name.Local, decodeAttrValue(a.Value))
	}
	if len(p.children) > 0 {
		children := make([]ydoc.Node, 0, len(p.children))
		for _, c := range p.children {
			children = append(children, build(doc, c))
		}
		el.Insert(0, children...)
	}
	return el
}
