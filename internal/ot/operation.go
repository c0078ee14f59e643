// Package ot implements the operation algebra used to synchronize
// concurrent text edits. An OperationSeq is an ordered run of
// retain/insert/delete primitives spanning the full length of the text
// it applies to. Compose, Transform, and Apply are pure functions; all
// lengths are counted in Unicode code points.
package ot

import (
	"errors"
	"unicode/utf8"
)

var (
	ErrLengthMismatch      = errors.New("operation base length does not match text length")
	ErrIncompatibleLengths = errors.New("operations have incompatible lengths")
	ErrMalformedOp         = errors.New("malformed operation")
)

type primKind int

const (
	primRetain primKind = iota
	primInsert
	primDelete
)

type prim struct {
	kind primKind
	n    int    // retain or delete count
	s    string // insert payload
}

// OperationSeq is a compound edit operation. The zero value is the
// empty operation over the empty text.
type OperationSeq struct {
	prims     []prim
	baseLen   int
	targetLen int
}

// BaseLen is the length of text the operation applies to.
func (o *OperationSeq) BaseLen() int { return o.baseLen }

// TargetLen is the length of text the operation produces.
func (o *OperationSeq) TargetLen() int { return o.targetLen }

// IsNoop reports whether applying the operation leaves any text unchanged.
func (o *OperationSeq) IsNoop() bool {
	if len(o.prims) == 0 {
		return true
	}
	return len(o.prims) == 1 && o.prims[0].kind == primRetain
}

// Retain appends a retain primitive, merging with a trailing retain.
func (o *OperationSeq) Retain(n int) {
	if n <= 0 {
		return
	}
	o.baseLen += n
	o.targetLen += n
	if last := o.lastPrim(); last != nil && last.kind == primRetain {
		last.n += n
		return
	}
	o.prims = append(o.prims, prim{kind: primRetain, n: n})
}

// Delete appends a delete primitive, merging with a trailing delete.
func (o *OperationSeq) Delete(n int) {
	if n <= 0 {
		return
	}
	o.baseLen += n
	if last := o.lastPrim(); last != nil && last.kind == primDelete {
		last.n += n
		return
	}
	o.prims = append(o.prims, prim{kind: primDelete, n: n})
}

// Insert appends an insert primitive. Adjacent inserts merge, and an
// insert always sorts before an immediately preceding delete so that
// equivalent operations have one canonical form.
func (o *OperationSeq) Insert(s string) {
	if s == "" {
		return
	}
	o.targetLen += utf8.RuneCountInString(s)
	last := o.lastPrim()
	switch {
	case last != nil && last.kind == primInsert:
		last.s += s
	case last != nil && last.kind == primDelete:
		if prev := o.primAt(len(o.prims) - 2); prev != nil && prev.kind == primInsert {
			prev.s += s
			return
		}
		o.prims = append(o.prims, prim{})
		o.prims[len(o.prims)-1] = o.prims[len(o.prims)-2]
		o.prims[len(o.prims)-2] = prim{kind: primInsert, s: s}
	default:
		o.prims = append(o.prims, prim{kind: primInsert, s: s})
	}
}

func (o *OperationSeq) lastPrim() *prim {
	return o.primAt(len(o.prims) - 1)
}

func (o *OperationSeq) primAt(i int) *prim {
	if i < 0 || i >= len(o.prims) {
		return nil
	}
	return &o.prims[i]
}

// Apply runs the operation against text, producing the edited text.
func (o *OperationSeq) Apply(text string) (string, error) {
	runes := []rune(text)
	if len(runes) != o.baseLen {
		return "", ErrLengthMismatch
	}
	out := make([]rune, 0, o.targetLen)
	pos := 0
	for _, p := range o.prims {
		switch p.kind {
		case primRetain:
			out = append(out, runes[pos:pos+p.n]...)
			pos += p.n
		case primInsert:
			out = append(out, []rune(p.s)...)
		case primDelete:
			pos += p.n
		}
	}
	return string(out), nil
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Clone returns an independent copy of the operation.
func (o *OperationSeq) Clone() *OperationSeq {
	clone := &OperationSeq{
		prims:     append([]prim(nil), o.prims...),
		baseLen:   o.baseLen,
		targetLen: o.targetLen,
	}
	return clone
}
