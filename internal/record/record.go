// Package record implements the revision-addressed persistence substrate
// for canopy content trees.
//
// A tree is stored as a graph of immutable node records. Each record holds
// the node's properties inline and refers to its children by record id,
// where an id is the blake2b-256 digest of the record's canonical CBOR
// encoding. Identical subtrees therefore collapse to a single record, and
// a revision is simply the id of a committed root record.
package record

import (
	"time"
)

// ID names an immutable node record by the digest of its encoded content.
type ID string

// Revision identifies a committed root state. It carries no ordering beyond
// ancestry; two revisions compare equal iff they name the same root record.
type Revision string

// BlobRef is an opaque reference to a stored binary, resolvable through the
// Store that produced it.
type BlobRef string

// RootJournal is the name of the shared root workspace journal.
const RootJournal = ""

// RootID returns the root record id a revision points at.
func (r Revision) RootID() ID { return ID(r) }

// Node is the wire form of a single tree node.
type Node struct {
	Props    []Property `cbor:"p,omitempty"`
	Children []Child    `cbor:"c,omitempty"`
}

// Child is a named reference to a child node record.
type Child struct {
	Name string `cbor:"n"`
	ID   ID     `cbor:"i"`
}

// Property is the wire form of a node property. Kind mirrors the property
// kinds of the public API; records do not interpret it beyond round-tripping.
type Property struct {
	Name   string  `cbor:"n"`
	Kind   uint8   `cbor:"k"`
	Array  bool    `cbor:"a,omitempty"`
	Values []Value `cbor:"v"`
}

// Value is one typed scalar slot. Exactly one pointer field is set,
// according to the owning property's kind. Decimals travel as their exact
// rational string form, binaries as blob references.
type Value struct {
	Bool  *bool      `cbor:"b,omitempty"`
	Int   *int64     `cbor:"i,omitempty"`
	Float *float64   `cbor:"f,omitempty"`
	Str   *string    `cbor:"s,omitempty"`
	Time  *time.Time `cbor:"t,omitempty"`
	Blob  *BlobRef   `cbor:"r,omitempty"`
}

// Lookup returns the child reference with the given name, if present.
func (n *Node) Lookup(name string) (Child, bool) {
	for _, c := range n.Children {
		if c.Name == name {
			return c, true
		}
	}
	return Child{}, false
}

// Prop returns the property with the given name, if present.
func (n *Node) Prop(name string) (Property, bool) {
	for _, p := range n.Props {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

const (
	nodeOverhead  = 64
	childOverhead = 16
	valueOverhead = 24
)

// ApproxSize estimates the in-memory footprint of a materialized node,
// used as the eviction weight in the revision cache.
func (n *Node) ApproxSize() int64 {
	size := int64(nodeOverhead)
	for _, c := range n.Children {
		size += int64(len(c.Name)+len(c.ID)) + childOverhead
	}
	for _, p := range n.Props {
		size += int64(len(p.Name)) + valueOverhead
		for _, v := range p.Values {
			size += valueOverhead
			if v.Str != nil {
				size += int64(len(*v.Str))
			}
			if v.Blob != nil {
				size += int64(len(*v.Blob))
			}
		}
	}
	return size
}
