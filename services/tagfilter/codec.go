// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tagfilter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// MaxDepth bounds the nesting accepted by Unmarshal.
const MaxDepth = 256

const (
	codecMagic   = "TGF"
	codecVersion = 1
)

// Marshal serializes the subtree rooted at n.
//
// Description:
//
//	The format is the magic "TGF", a version byte, then one pre-order record
//	per node: the kind byte, followed for a leaf by a uvarint length and the
//	UTF-8 tag, and for OR, AND and NOT by a uvarint child count and the
//	children's records.
//
// Outputs:
//
//	[]byte - The encoded tree.
//	error - Non-nil if n does not satisfy the tree invariants.
func Marshal(n *Node) ([]byte, error) {
	if n == nil {
		return nil, fmt.Errorf("marshal: %w: nil node", ErrInvalidIndex)
	}
	if err := n.Validate(); err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(codecMagic)
	buf.WriteByte(codecVersion)
	encodeNode(&buf, n)
	return buf.Bytes(), nil
}

func encodeNode(buf *bytes.Buffer, n *Node) {
	var scratch [binary.MaxVarintLen64]byte
	buf.WriteByte(byte(n.kind))
	if n.kind == KindLeaf {
		buf.Write(scratch[:binary.PutUvarint(scratch[:], uint64(len(n.tag)))])
		buf.WriteString(n.tag)
		return
	}
	buf.Write(scratch[:binary.PutUvarint(scratch[:], uint64(len(n.children)))])
	for _, c := range n.children {
		encodeNode(buf, c)
	}
}

// Unmarshal decodes a tree produced by Marshal.
//
// Every structural invariant is checked while decoding; malformed input is
// reported as a *DecodeError carrying the byte offset of the problem.
func Unmarshal(data []byte) (*Node, error) {
	d := &decoder{data: data}
	if err := d.header(codecMagic, codecVersion); err != nil {
		return nil, err
	}
	n, err := d.node(0)
	if err != nil {
		return nil, err
	}
	if d.off != len(d.data) {
		return nil, d.fail("%d trailing bytes", len(d.data)-d.off)
	}
	return n, nil
}

// decoder reads the binary framing shared by the tree codec and the drag
// payload.
type decoder struct {
	data []byte
	off  int
}

func (d *decoder) fail(format string, args ...any) *DecodeError {
	return &DecodeError{Offset: d.off, Reason: fmt.Sprintf(format, args...)}
}

func (d *decoder) header(magic string, version byte) error {
	if len(d.data) < len(magic)+1 || string(d.data[:len(magic)]) != magic {
		return d.fail("bad magic, want %q", magic)
	}
	d.off = len(magic)
	if v := d.data[d.off]; v != version {
		return d.fail("unsupported version %d", v)
	}
	d.off++
	return nil
}

func (d *decoder) readByte() (byte, error) {
	if d.off >= len(d.data) {
		return 0, d.fail("unexpected end of input")
	}
	b := d.data[d.off]
	d.off++
	return b, nil
}

func (d *decoder) uvarint() (uint64, error) {
	v, n := binary.Uvarint(d.data[d.off:])
	if n <= 0 {
		return 0, d.fail("bad uvarint")
	}
	d.off += n
	return v, nil
}

// count reads a uvarint element count. Every element takes at least
// minSize bytes, so a count that cannot fit in the rest of the input is
// rejected before anything is allocated for it.
func (d *decoder) count(minSize int) (int, error) {
	start := d.off
	v, err := d.uvarint()
	if err != nil {
		return 0, err
	}
	if v > uint64(len(d.data)-d.off)/uint64(minSize) {
		d.off = start
		return 0, d.fail("count %d exceeds remaining input", v)
	}
	return int(v), nil
}

func (d *decoder) node(depth int) (*Node, error) {
	if depth > MaxDepth {
		return nil, d.fail("nesting deeper than %d", MaxDepth)
	}
	start := d.off
	b, err := d.readByte()
	if err != nil {
		return nil, err
	}
	kind := Kind(b)
	if !kind.valid() {
		d.off = start
		return nil, d.fail("unknown node kind %d", b)
	}

	if kind == KindLeaf {
		return d.leaf()
	}

	countAt := d.off
	count, err := d.count(2)
	if err != nil {
		return nil, err
	}
	if kind == KindNot && count != 1 {
		d.off = countAt
		return nil, d.fail("NOT must have exactly one child, got %d", count)
	}

	children := make([]*Node, 0, count)
	tags := make(map[string]struct{})
	for i := 0; i < count; i++ {
		childAt := d.off
		c, err := d.node(depth + 1)
		if err != nil {
			return nil, err
		}
		if c.kind == KindLeaf {
			if _, dup := tags[c.tag]; dup {
				d.off = childAt
				return nil, d.fail("duplicate sibling tag %q", c.tag)
			}
			tags[c.tag] = struct{}{}
		}
		children = append(children, c)
	}
	return newSequence(kind, children), nil
}

func (d *decoder) leaf() (*Node, error) {
	lenAt := d.off
	size, err := d.count(1)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		d.off = lenAt
		return nil, d.fail("empty tag")
	}
	raw := d.data[d.off : d.off+size]
	if !utf8.Valid(raw) {
		return nil, d.fail("tag is not valid UTF-8")
	}
	d.off += size
	return NewLeaf(string(raw)), nil
}
