// Package serializer converts replicated documents to and from plain text.
//
// The tree half produces an XML form of an XML fragment: one tag per
// element, attributes inline, text escaped. Applying text back onto a
// document uses forward operations only (delete the old children, insert
// the parsed ones) inside a single transaction, so other replicas merge the
// replacement causally.
//
// The map half converts auxiliary key-value maps to plain JSON objects and
// back, recursing through nested maps and arrays.
package serializer

import (
	"bytes"
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bobbyquantum/inkweld-sub009/pkg/ydoc"
)

// RestoreOrigin is the transaction origin used when applying snapshots.
const RestoreOrigin = "snapshot-restore"

// DefaultExpandedTags are block-level node types that the editor treats as
// significant even when empty. They never use the compact closed form.
var DefaultExpandedTags = []string{
	"paragraph",
	"heading",
	"blockquote",
	"code_block",
	"bullet_list",
	"ordered_list",
	"list_item",
	"table_cell",
	"table_header",
}

// Serializer encodes and decodes document trees.
// The zero value is not usable; call New.
type Serializer struct {
	expanded map[string]struct{}
}

// Option configures a Serializer.
type Option func(*Serializer)

// WithExpandedTags replaces the always-expanded tag set.
func WithExpandedTags(tags ...string) Option {
	return func(s *Serializer) {
		s.expanded = make(map[string]struct{}, len(tags))
		for _, t := range tags {
			s.expanded[t] = struct{}{}
		}
	}
}

// New creates a Serializer using DefaultExpandedTags unless overridden.
func New(opts ...Option) *Serializer {
	s := &Serializer{}
	WithExpandedTags(DefaultExpandedTags...)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EncodeTree walks the container depth-first and returns its XML form.
func (s *Serializer) EncodeTree(c ydoc.Container) string {
	var b strings.Builder
	for _, n := range c.Children() {
		s.encodeNode(&b, n)
	}
	return b.String()
}

func (s *Serializer) encodeNode(b *strings.Builder, n ydoc.Node) {
	switch v := n.(type) {
	case ydoc.XMLElement:
		tag := v.Tag()
		b.WriteByte('<')
		b.WriteString(tag)
		attrs := v.Attributes()
		keys := make([]string, 0, len(attrs))
		for k := range attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			val, ok := encodeAttrValue(attrs[k])
			if !ok {
				continue
			}
			b.WriteByte(' ')
			b.WriteString(k)
			b.WriteString(`="`)
			b.WriteString(escape(val, true))
			b.WriteByte('"')
		}

		children := v.Children()
		if len(children) == 0 {
			if _, keep := s.expanded[tag]; !keep {
				b.WriteString("/>")
				return
			}
		}
		b.WriteByte('>')
		for _, c := range children {
			s.encodeNode(b, c)
		}
		b.WriteString("</")
		b.WriteString(tag)
		b.WriteByte('>')
	case ydoc.XMLText:
		b.WriteString(escape(v.String(), false))
	}
}

// encodeAttrValue stringifies an attribute. Objects and arrays are
// JSON-encoded inline; nil attributes are omitted.
func encodeAttrValue(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return formatNumber(x), true
	case float32:
		return formatNumber(float64(x)), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	default:
		data, err := marshalJSON(x)
		if err != nil {
			return "", false
		}
		return string(data), true
	}
}

var numericLiteral = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

// decodeAttrValue reverses encodeAttrValue. A value is converted only when
// re-encoding it reproduces the same text, which keeps encode/decode stable.
func decodeAttrValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}

	if numericLiteral.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil && formatNumber(f) == s {
			return f
		}
		return s
	}

	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			if data, err := marshalJSON(v); err == nil && string(data) == s {
				return v
			}
		}
	}
	return s
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// marshalJSON encodes without HTML escaping so markup characters stay
// literal and are escaped once by the XML layer.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// escape writes s as XML character data. \r becomes a character reference
// so the decoder does not fold it into \n; in attribute values \t and \n
// are referenced too. Characters XML 1.0 cannot carry are dropped and
// invalid UTF-8 becomes U+FFFD.
func escape(s string, attr bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '&':
			b.WriteString("&amp;")
		case r == '<':
			b.WriteString("&lt;")
		case r == '>':
			b.WriteString("&gt;")
		case r == '"':
			b.WriteString("&quot;")
		case r == '\'':
			b.WriteString("&apos;")
		case r == '\r':
			b.WriteString("&#xD;")
		case attr && r == '\n':
			b.WriteString("&#xA;")
		case attr && r == '\t':
			b.WriteString("&#x9;")
		case isXMLChar(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isXMLChar reports whether r is in the XML 1.0 Char production.
func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}

// PlainText returns the text content of the container with element
// boundaries collapsed to single spaces.
func PlainText(c ydoc.Container) string {
	var b strings.Builder
	writeText(&b, c.Children())
	return strings.Join(strings.Fields(b.String()), " ")
}

func writeText(b *strings.Builder, nodes []ydoc.Node) {
	for _, n := range nodes {
		switch v := n.(type) {
		case ydoc.XMLElement:
			b.WriteByte(' ')
			writeText(b, v.Children())
			b.WriteByte(' ')
		case ydoc.XMLText:
			b.WriteString(v.String())
		}
	}
}

// WordCount counts whitespace-separated words in the container's text.
func WordCount(c ydoc.Container) int {
	return len(strings.Fields(PlainText(c)))
}
