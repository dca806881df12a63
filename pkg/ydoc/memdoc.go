package ydoc

import (
	"fmt"
	"sort"
	"sync"
)

// MemDoc is an in-memory Doc.
//
// A MemDoc is owned by one goroutine at a time, like the editor-side
// documents it stands in for. Transact is the unit of atomicity: every
// operation applied inside it is delivered to observers as one Update after
// fn returns. Operations applied outside Transact are wrapped in an implicit
// single-operation transaction. There is no rollback; callers validate
// before mutating.
type MemDoc struct {
	fragments map[string]*memFragment
	maps      map[string]*memMap

	txn *memTxn

	obsMu     sync.Mutex
	observers map[int]func(Update)
	nextObs   int
}

type memTxn struct {
	origin string
	ops    []Op
}

// NewMemDoc creates an empty in-memory document.
func NewMemDoc() *MemDoc {
	return &MemDoc{
		fragments: make(map[string]*memFragment),
		maps:      make(map[string]*memMap),
		observers: make(map[int]func(Update)),
	}
}

var _ Doc = (*MemDoc)(nil)

// Transact implements Doc. Nested calls join the outer transaction.
func (d *MemDoc) Transact(origin string, fn func() error) error {
	if d.txn != nil {
		return fn()
	}
	txn := &memTxn{origin: origin}
	d.txn = txn
	committed := false
	defer func() {
		// A panicking fn leaves no open transaction behind.
		if !committed {
			d.txn = nil
		}
	}()
	err := fn()
	d.txn = nil
	committed = true
	if len(txn.ops) > 0 {
		d.notify(Update{Origin: txn.origin, Ops: txn.ops})
	}
	return err
}

// XMLFragment implements Doc.
func (d *MemDoc) XMLFragment(name string) XMLFragment {
	f, ok := d.fragments[name]
	if !ok {
		f = &memFragment{container: container{doc: d, attached: true, label: name}}
		d.fragments[name] = f
	}
	return f
}

// Map implements Doc.
func (d *MemDoc) Map(name string) Map {
	m, ok := d.maps[name]
	if !ok {
		m = &memMap{doc: d, attached: true, label: name, values: make(map[string]any)}
		d.maps[name] = m
	}
	return m
}

// Has implements Doc.
func (d *MemDoc) Has(name string) bool {
	if _, ok := d.fragments[name]; ok {
		return true
	}
	_, ok := d.maps[name]
	return ok
}

// NewElement implements Doc.
func (d *MemDoc) NewElement(tag string) XMLElement {
	return &memElement{
		container: container{doc: d, label: tag},
		tag:       tag,
		attrs:     make(map[string]any),
	}
}

// NewText implements Doc.
func (d *MemDoc) NewText(text string) XMLText {
	return &memText{doc: d, label: "#text", runes: []rune(text)}
}

// NewMap implements Doc.
func (d *MemDoc) NewMap() Map {
	return &memMap{doc: d, label: "#map", values: make(map[string]any)}
}

// NewArray implements Doc.
func (d *MemDoc) NewArray() Array {
	return &memArray{doc: d, label: "#array"}
}

// OnUpdate implements Doc.
func (d *MemDoc) OnUpdate(fn func(Update)) func() {
	d.obsMu.Lock()
	id := d.nextObs
	d.nextObs++
	d.observers[id] = fn
	d.obsMu.Unlock()

	return func() {
		d.obsMu.Lock()
		delete(d.observers, id)
		d.obsMu.Unlock()
	}
}

func (d *MemDoc) notify(u Update) {
	d.obsMu.Lock()
	ids := make([]int, 0, len(d.observers))
	for id := range d.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Update), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, d.observers[id])
	}
	d.obsMu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}

// record appends op to the open transaction, opening an implicit one when
// called outside Transact.
func (d *MemDoc) record(op Op) {
	if d.txn != nil {
		d.txn.ops = append(d.txn.ops, op)
		return
	}
	_ = d.Transact("", func() error {
		d.txn.ops = append(d.txn.ops, op)
		return nil
	})
}

// attach integrates a preliminary value into the document.
func (d *MemDoc) attach(v any) {
	switch n := v.(type) {
	case *memElement:
		if n.doc != d {
			panic("ydoc: element belongs to another document")
		}
		n.attached = true
		for _, c := range n.children {
			d.attach(c)
		}
	case *memText:
		if n.doc != d {
			panic("ydoc: text belongs to another document")
		}
		n.attached = true
	case *memMap:
		if n.doc != d {
			panic("ydoc: map belongs to another document")
		}
		n.attached = true
		for _, c := range n.values {
			d.attach(c)
		}
	case *memArray:
		if n.doc != d {
			panic("ydoc: array belongs to another document")
		}
		n.attached = true
		for _, c := range n.values {
			d.attach(c)
		}
	}
}

// container holds ordered tree children.
type container struct {
	doc      *MemDoc
	attached bool
	label    string
	children []Node
}

func (c *container) Len() int { return len(c.children) }

func (c *container) Children() []Node {
	out := make([]Node, len(c.children))
	copy(out, c.children)
	return out
}

func (c *container) Insert(index int, nodes ...Node) {
	if len(nodes) == 0 {
		return
	}
	index = clamp(index, len(c.children))
	for _, n := range nodes {
		switch n.(type) {
		case *memElement, *memText:
		default:
			panic(fmt.Sprintf("ydoc: unsupported node type %T", n))
		}
		if c.attached {
			c.doc.attach(n)
		}
	}

	next := make([]Node, 0, len(c.children)+len(nodes))
	next = append(next, c.children[:index]...)
	next = append(next, nodes...)
	next = append(next, c.children[index:]...)
	c.children = next

	if c.attached {
		c.doc.record(Op{Kind: OpInsert, Target: c.label, Index: index, Length: len(nodes)})
	}
}

func (c *container) Delete(index, length int) {
	if length <= 0 || index < 0 || index >= len(c.children) {
		return
	}
	if index+length > len(c.children) {
		length = len(c.children) - index
	}
	c.children = append(c.children[:index:index], c.children[index+length:]...)

	if c.attached {
		c.doc.record(Op{Kind: OpDelete, Target: c.label, Index: index, Length: length})
	}
}

type memFragment struct {
	container
}

type memElement struct {
	container
	tag   string
	attrs map[string]any
}

func (*memElement) isNode() {}

func (e *memElement) Tag() string { return e.tag }

func (e *memElement) Attributes() map[string]any {
	out := make(map[string]any, len(e.attrs))
	for k, v := range e.attrs {
		out[k] = v
	}
	return out
}

func (e *memElement) SetAttribute(name string, value any) {
	e.attrs[name] = value
	if e.attached {
		e.doc.record(Op{Kind: OpSet, Target: e.label, Key: name})
	}
}

func (e *memElement) RemoveAttribute(name string) {
	if _, ok := e.attrs[name]; !ok {
		return
	}
	delete(e.attrs, name)
	if e.attached {
		e.doc.record(Op{Kind: OpRemove, Target: e.label, Key: name})
	}
}

type memText struct {
	doc      *MemDoc
	attached bool
	label    string
	runes    []rune
}

func (*memText) isNode() {}

func (t *memText) String() string { return string(t.runes) }

func (t *memText) InsertText(index int, text string) {
	if text == "" {
		return
	}
	index = clamp(index, len(t.runes))
	ins := []rune(text)
	next := make([]rune, 0, len(t.runes)+len(ins))
	next = append(next, t.runes[:index]...)
	next = append(next, ins...)
	next = append(next, t.runes[index:]...)
	t.runes = next
	if t.attached {
		t.doc.record(Op{Kind: OpInsert, Target: t.label, Index: index, Length: len(ins)})
	}
}

func (t *memText) DeleteText(index, length int) {
	if length <= 0 || index < 0 || index >= len(t.runes) {
		return
	}
	if index+length > len(t.runes) {
		length = len(t.runes) - index
	}
	t.runes = append(t.runes[:index:index], t.runes[index+length:]...)
	if t.attached {
		t.doc.record(Op{Kind: OpDelete, Target: t.label, Index: index, Length: length})
	}
}

type memMap struct {
	doc      *MemDoc
	attached bool
	label    string
	values   map[string]any
}

func (m *memMap) Len() int { return len(m.values) }

func (m *memMap) Keys() []string {
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *memMap) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *memMap) Set(key string, value any) {
	if m.attached {
		m.doc.attach(value)
	}
	m.values[key] = value
	if m.attached {
		m.doc.record(Op{Kind: OpSet, Target: m.label, Key: key})
	}
}

func (m *memMap) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	if m.attached {
		m.doc.record(Op{Kind: OpRemove, Target: m.label, Key: key})
	}
}

type memArray struct {
	doc      *MemDoc
	attached bool
	label    string
	values   []any
}

func (a *memArray) Len() int { return len(a.values) }

func (a *memArray) Get(index int) any {
	if index < 0 || index >= len(a.values) {
		return nil
	}
	return a.values[index]
}

func (a *memArray) Slice() []any {
	out := make([]any, len(a.values))
	copy(out, a.values)
	return out
}

func (a *memArray) Insert(index int, values ...any) {
	if len(values) == 0 {
		return
	}
	index = clamp(index, len(a.values))
	if a.attached {
		for _, v := range values {
			a.doc.attach(v)
		}
	}
	next := make([]any, 0, len(a.values)+len(values))
	next = append(next, a.values[:index]...)
	next = append(next, values...)
	next = append(next, a.values[index:]...)
	a.values = next
	if a.attached {
		a.doc.record(Op{Kind: OpInsert, Target: a.label, Index: index, Length: len(values)})
	}
}

func (a *memArray) Push(values ...any) {
	a.Insert(len(a.values), values...)
}

func (a *memArray) Delete(index, length int) {
	if length <= 0 || index < 0 || index >= len(a.values) {
		return
	}
	if index+length > len(a.values) {
		length = len(a.values) - index
	}
	a.values = append(a.values[:index:index], a.values[index+length:]...)
	if a.attached {
		a.doc.record(Op{Kind: OpDelete, Target: a.label, Index: index, Length: length})
	}
}

func clamp(index, n int) int {
	if index < 0 {
		return 0
	}
	if index > n {
		return n
	}
	return index
}
