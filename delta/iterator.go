package delta

import "math"

const infinity = math.MaxInt

type iterator struct {
	ops    []Op
	index  int
	offset int
}

func newIterator(ops []Op) *iterator {
	return &iterator{ops: ops}
}

func (it *iterator) hasNext() bool {
	return it.peekLength() < infinity
}

func (it *iterator) peekLength() int {
	if it.index < len(it.ops) {
		return it.ops[it.index].Len() - it.offset
	}
	return infinity
}

func (it *iterator) peekKind() Kind {
	if it.index < len(it.ops) {
		return it.ops[it.index].Kind()
	}
	return KindRetain
}

// next consumes up to length positions of the current op. A length of zero
// consumes the rest of it. Past the end it yields an unbounded retain.
func (it *iterator) next(length int) Op {
	if length <= 0 {
		length = infinity
	}
	if it.index >= len(it.ops) {
		return Op{Retain: infinity}
	}

	op := it.ops[it.index]
	offset := it.offset
	opLen := op.Len()
	if length >= opLen-offset {
		length = opLen - offset
		it.index++
		it.offset = 0
	} else {
		it.offset += length
	}

	switch op.Kind() {
	case KindDelete:
		return Op{Delete: length}
	case KindRetain:
		return Op{Retain: length, Attributes: op.Attributes}
	default:
		if s, ok := op.Insert.(string); ok {
			return Op{Insert: sliceText(s, offset, length), Attributes: op.Attributes}
		}
		return Op{Insert: op.Insert, Attributes: op.Attributes}
	}
}

// rest returns the unconsumed ops without advancing the iterator.
func (it *iterator) rest() []Op {
	if !it.hasNext() {
		return nil
	}
	if it.offset == 0 {
		return it.ops[it.index:]
	}

	index, offset := it.index, it.offset
	first := it.next(0)
	rest := append([]Op{first}, it.ops[it.index:]...)
	it.index, it.offset = index, offset
	return rest
}
