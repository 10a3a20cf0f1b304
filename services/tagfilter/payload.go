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
	"math"
	"strings"
)

// MIME types understood by Tree.Drop.
const (
	// MIMEPaths carries a path payload: a move inside one tree.
	MIMEPaths = "application/x-tagfilter-paths"

	// MIMEText carries one tag per line: new leaves.
	MIMEText = "text/plain"
)

const (
	payloadMagic   = "TGP"
	payloadVersion = 1
)

// MimeTypes lists the drop formats a Tree accepts, preferred first.
func MimeTypes() []string {
	return []string{MIMEPaths, MIMEText}
}

// EncodePayload serializes a list of paths: magic "TGP", a version byte, a
// uvarint path count, then per path a uvarint depth and the uvarint indices.
func EncodePayload(paths []Path) []byte {
	var buf bytes.Buffer
	var scratch [binary.MaxVarintLen64]byte
	put := func(v uint64) {
		buf.Write(scratch[:binary.PutUvarint(scratch[:], v)])
	}
	buf.WriteString(payloadMagic)
	buf.WriteByte(payloadVersion)
	put(uint64(len(paths)))
	for _, p := range paths {
		put(uint64(len(p)))
		for _, idx := range p {
			put(uint64(idx))
		}
	}
	return buf.Bytes()
}

// DecodePayload parses the output of EncodePayload. Malformed input is a
// *DecodeError.
func DecodePayload(data []byte) ([]Path, error) {
	d := &decoder{data: data}
	if err := d.header(payloadMagic, payloadVersion); err != nil {
		return nil, err
	}
	n, err := d.count(1)
	if err != nil {
		return nil, err
	}
	paths := make([]Path, 0, n)
	for i := 0; i < n; i++ {
		depth, err := d.count(1)
		if err != nil {
			return nil, err
		}
		if depth > MaxDepth {
			return nil, d.fail("path deeper than %d", MaxDepth)
		}
		p := make(Path, depth)
		for j := range p {
			idx, err := d.uvarint()
			if err != nil {
				return nil, err
			}
			if idx > math.MaxInt32 {
				return nil, d.fail("index %d out of range", idx)
			}
			p[j] = int(idx)
		}
		paths = append(paths, p)
	}
	if d.off != len(d.data) {
		return nil, d.fail("%d trailing bytes", len(d.data)-d.off)
	}
	return paths, nil
}

// ParseTextPayload splits plain text into tags, one per line. Lines may end
// in "\n" or "\r\n"; surrounding whitespace is trimmed and blank lines are
// ignored.
func ParseTextPayload(text string) []string {
	var tags []string
	for _, line := range strings.Split(text, "\n") {
		if tag := strings.TrimSpace(line); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// FormatTextPayload joins tags into the plain-text drag form.
func FormatTextPayload(tags []string) string {
	return strings.Join(tags, "\n")
}
