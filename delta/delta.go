// Package delta implements the rich-text edit representation exchanged with
// editor clients: a list of insert, retain and delete operations that can be
// composed onto each other.
package delta

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned when a payload cannot be parsed into a Delta.
var ErrMalformed = errors.New("malformed delta")

// Delta is an ordered list of operations. A document is a Delta made only of
// inserts.
//
// Deltas are treated as immutable values: Compose never modifies its inputs,
// so a *Delta can be shared with readers once published.
type Delta struct {
	Ops []Op `json:"ops"`
}

// New returns a Delta with the given operations.
func New(ops ...Op) *Delta {
	return &Delta{Ops: ops}
}

// Empty returns a Delta with no operations.
func Empty() *Delta {
	return &Delta{Ops: []Op{}}
}

// Parse decodes either {"ops": [...]} or a bare [...] array of ops.
func Parse(raw []byte) (*Delta, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}

	if trimmed[0] == '[' {
		var ops []Op
		if err := json.Unmarshal([]byte(trimmed), &ops); err != nil {
			return nil, wrapMalformed(err)
		}
		return &Delta{Ops: nonNil(ops)}, nil
	}

	var d struct {
		Ops *[]Op `json:"ops"`
	}
	if err := json.Unmarshal([]byte(trimmed), &d); err != nil {
		return nil, wrapMalformed(err)
	}
	if d.Ops == nil {
		return nil, fmt.Errorf("%w: missing ops", ErrMalformed)
	}
	return &Delta{Ops: nonNil(*d.Ops)}, nil
}

// ParseValue parses an already decoded JSON value, as delivered by the
// transport for event payloads.
func ParseValue(v any) (*Delta, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrMalformed)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, wrapMalformed(err)
	}
	return Parse(raw)
}

func wrapMalformed(err error) error {
	if errors.Is(err, ErrMalformed) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}

func nonNil(ops []Op) []Op {
	if ops == nil {
		return []Op{}
	}
	return ops
}

func (d *Delta) MarshalJSON() ([]byte, error) {
	ops := []Op{}
	if d != nil && d.Ops != nil {
		ops = d.Ops
	}
	return json.Marshal(struct {
		Ops []Op `json:"ops"`
	}{ops})
}

func (d *Delta) ops() []Op {
	if d == nil {
		return nil
	}
	return d.Ops
}

// Length is the total length of all operations.
func (d *Delta) Length() int {
	n := 0
	for _, op := range d.ops() {
		n += op.Len()
	}
	return n
}

// Text returns the concatenated string inserts, skipping embeds.
func (d *Delta) Text() string {
	var b strings.Builder
	for _, op := range d.ops() {
		if s, ok := op.Insert.(string); ok {
			b.WriteString(s)
		}
	}
	return b.String()
}

// push appends op, merging it into the previous op where possible and keeping
// inserts ahead of an adjacent delete.
func (d *Delta) push(op Op) {
	n := len(d.Ops)
	if n == 0 {
		d.Ops = append(d.Ops, op)
		return
	}

	index := n
	last := &d.Ops[n-1]
	if op.Kind() == KindDelete && last.Kind() == KindDelete {
		last.Delete += op.Delete
		return
	}
	if last.Kind() == KindDelete && op.Kind() == KindInsert {
		index--
		if index == 0 {
			d.Ops = append([]Op{op}, d.Ops...)
			return
		}
		last = &d.Ops[index-1]
	}
	if attributesEqual(op.Attributes, last.Attributes) {
		ls, lok := last.Insert.(string)
		os, ook := op.Insert.(string)
		if lok && ook {
			last.Insert = ls + os
			return
		}
		if last.Kind() == KindRetain && op.Kind() == KindRetain {
			last.Retain += op.Retain
			return
		}
	}

	if index == n {
		d.Ops = append(d.Ops, op)
		return
	}
	d.Ops = append(d.Ops, Op{})
	copy(d.Ops[index+1:], d.Ops[index:])
	d.Ops[index] = op
}

func (d *Delta) concat(ops []Op) {
	if len(ops) == 0 {
		return
	}
	d.push(ops[0])
	d.Ops = append(d.Ops, ops[1:]...)
}

// chop drops a trailing plain retain, which is a no-op.
func (d *Delta) chop() *Delta {
	if n := len(d.Ops); n > 0 {
		last := d.Ops[n-1]
		if last.Kind() == KindRetain && len(last.Attributes) == 0 {
			d.Ops = d.Ops[:n-1]
		}
	}
	return d
}

// Compose returns the Delta equivalent to applying d and then other.
// Composition is associative.
func (d *Delta) Compose(other *Delta) *Delta {
	thisIter := newIterator(d.ops())
	otherIter := newIterator(other.ops())
	out := &Delta{Ops: make([]Op, 0, len(d.ops()))}

	if ops := other.ops(); len(ops) > 0 {
		first := ops[0]
		if first.Kind() == KindRetain && len(first.Attributes) == 0 {
			firstLeft := first.Retain
			for thisIter.peekKind() == KindInsert && thisIter.peekLength() <= firstLeft {
				firstLeft -= thisIter.peekLength()
				out.Ops = append(out.Ops, thisIter.next(0))
			}
			if first.Retain-firstLeft > 0 {
				otherIter.next(first.Retain - firstLeft)
			}
		}
	}

	for thisIter.hasNext() || otherIter.hasNext() {
		if otherIter.peekKind() == KindInsert {
			out.push(otherIter.next(0))
			continue
		}
		if thisIter.peekKind() == KindDelete {
			out.push(thisIter.next(0))
			continue
		}

		length := min(thisIter.peekLength(), otherIter.peekLength())
		thisOp := thisIter.next(length)
		otherOp := otherIter.next(length)

		switch {
		case otherOp.Kind() == KindRetain:
			var newOp Op
			if thisOp.Kind() == KindRetain {
				newOp.Retain = length
			} else {
				newOp.Insert = thisOp.Insert
			}
			newOp.Attributes = composeAttributes(thisOp.Attributes, otherOp.Attributes, thisOp.Kind() == KindRetain)
			out.push(newOp)

			// Nothing left to change: copy the remainder of d verbatim.
			if !otherIter.hasNext() && opsEqual(out.Ops[len(out.Ops)-1], newOp) {
				out.concat(thisIter.rest())
				return out.chop()
			}
		case otherOp.Kind() == KindDelete && thisOp.Kind() == KindRetain:
			out.push(otherOp)
		}
		// A delete over an insert cancels both.
	}

	return out.chop()
}
