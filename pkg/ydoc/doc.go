// Package ydoc defines the replicated-document primitives consumed by the
// snapshot and sync layers.
//
// The replication engine itself is external. This package fixes the small
// surface the rest of the module depends on:
//
//   - Doc: a document holding named shared types and atomic transactions
//   - XMLFragment / XMLElement / XMLText: the ordered tree (editor content)
//   - Map / Array: auxiliary structured data
//   - Update: the change notification emitted once per committed transaction
//
// MemDoc is an in-process engine implementing these interfaces. It records
// forward operations (insert/delete/set) and is used by tests and embedders
// that do not link a CRDT library.
package ydoc

// Well-known shared type names.
const (
	// FragmentProseMirror is the tree fragment bound to the rich-text editor.
	FragmentProseMirror = "prosemirror"

	// MapWorldbuilding holds structured element data (characters, places).
	MapWorldbuilding = "worldbuilding"
)

// Doc is a replicated document.
type Doc interface {
	// Transact runs fn as one atomic transaction. Observers receive a
	// single Update holding every operation applied inside fn.
	Transact(origin string, fn func() error) error

	// XMLFragment returns the named tree fragment, creating it if needed.
	XMLFragment(name string) XMLFragment

	// Map returns the named top-level map, creating it if needed.
	Map(name string) Map

	// Has reports whether a top-level shared type with the given name
	// has been materialized.
	Has(name string) bool

	// NewElement, NewText, NewMap and NewArray create preliminary types
	// that are integrated into the document once inserted.
	NewElement(tag string) XMLElement
	NewText(text string) XMLText
	NewMap() Map
	NewArray() Array

	// OnUpdate registers fn for committed transactions and returns a
	// function that removes the registration.
	OnUpdate(fn func(Update)) (unsubscribe func())
}

// Node is a child of an XML fragment or element: XMLElement or XMLText.
type Node interface {
	isNode()
}

// Container is an ordered list of tree nodes.
type Container interface {
	Len() int
	Children() []Node
	Insert(index int, nodes ...Node)
	Delete(index, length int)
}

// XMLFragment is the root of a document tree.
type XMLFragment interface {
	Container
}

// XMLElement is a tagged tree node with attributes.
type XMLElement interface {
	Node
	Container
	Tag() string
	Attributes() map[string]any
	SetAttribute(name string, value any)
	RemoveAttribute(name string)
}

// XMLText is a run of text inside the tree.
type XMLText interface {
	Node
	String() string
	InsertText(index int, text string)
	DeleteText(index, length int)
}

// Map is a replicated key-value map. Values are scalars, Map, or Array.
type Map interface {
	Len() int
	Keys() []string
	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)
}

// Array is a replicated ordered list. Values are scalars, Map, or Array.
type Array interface {
	Len() int
	Get(index int) any
	Slice() []any
	Insert(index int, values ...any)
	Push(values ...any)
	Delete(index, length int)
}

// OpKind identifies a forward operation.
type OpKind string

const (
	OpInsert OpKind = "insert"
	OpDelete OpKind = "delete"
	OpSet    OpKind = "set"
	OpRemove OpKind = "remove"
)

// Op is a single forward operation recorded in a transaction.
type Op struct {
	Kind   OpKind
	Target string // shared type or node path the op applies to
	Index  int
	Length int
	Key    string
}

// Update is emitted once per committed transaction.
type Update struct {
	Origin string
	Ops    []Op
}
