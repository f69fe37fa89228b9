package delta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"unicode/utf16"
)

// Kind is the type of an operation.
type Kind int

const (
	KindRetain Kind = iota
	KindInsert
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindDelete:
		return "delete"
	default:
		return "retain"
	}
}

// Op is a single insert, retain or delete. Insert holds either a string or an
// embed object such as {"image": "https://..."}.
//
// Lengths are measured in UTF-16 code units so they agree with browser
// clients.
type Op struct {
	Insert     any
	Retain     int
	Delete     int
	Attributes map[string]any
}

// Kind reports which of the three operation types op is.
func (op Op) Kind() Kind {
	switch {
	case op.Insert != nil:
		return KindInsert
	case op.Delete > 0:
		return KindDelete
	default:
		return KindRetain
	}
}

// Len is the number of positions the op covers.
func (op Op) Len() int {
	switch op.Kind() {
	case KindDelete:
		return op.Delete
	case KindInsert:
		if s, ok := op.Insert.(string); ok {
			return textLen(s)
		}
		return 1
	default:
		return op.Retain
	}
}

func (op Op) MarshalJSON() ([]byte, error) {
	out := struct {
		Insert     any            `json:"insert,omitempty"`
		Delete     int            `json:"delete,omitempty"`
		Retain     int            `json:"retain,omitempty"`
		Attributes map[string]any `json:"attributes,omitempty"`
	}{
		Insert:     op.Insert,
		Delete:     op.Delete,
		Retain:     op.Retain,
		Attributes: op.Attributes,
	}
	return json.Marshal(out)
}

func (op *Op) UnmarshalJSON(data []byte) error {
	var in struct {
		Insert     json.RawMessage `json:"insert"`
		Delete     *int            `json:"delete"`
		Retain     *int            `json:"retain"`
		Attributes map[string]any  `json:"attributes"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	set := 0
	var parsed Op
	if len(in.Insert) > 0 && !bytes.Equal(in.Insert, []byte("null")) {
		set++
		insert, err := decodeInsert(in.Insert)
		if err != nil {
			return err
		}
		parsed.Insert = insert
	}
	if in.Delete != nil {
		set++
		if *in.Delete <= 0 {
			return fmt.Errorf("%w: delete length must be positive", ErrMalformed)
		}
		parsed.Delete = *in.Delete
	}
	if in.Retain != nil {
		set++
		if *in.Retain <= 0 {
			return fmt.Errorf("%w: retain length must be positive", ErrMalformed)
		}
		parsed.Retain = *in.Retain
	}
	if set != 1 {
		return fmt.Errorf("%w: op must have exactly one of insert, retain, delete", ErrMalformed)
	}
	if parsed.Kind() == KindDelete && len(in.Attributes) > 0 {
		return fmt.Errorf("%w: delete cannot carry attributes", ErrMalformed)
	}
	if len(in.Attributes) > 0 {
		parsed.Attributes = in.Attributes
	}

	*op = parsed
	return nil
}

func decodeInsert(raw json.RawMessage) (any, error) {
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if s == "" {
			return nil, fmt.Errorf("%w: empty insert", ErrMalformed)
		}
		return s, nil
	case '{':
		var embed map[string]any
		if err := json.Unmarshal(raw, &embed); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if len(embed) == 0 {
			return nil, fmt.Errorf("%w: empty embed", ErrMalformed)
		}
		return embed, nil
	default:
		return nil, fmt.Errorf("%w: insert must be a string or an object", ErrMalformed)
	}
}

func textLen(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// sliceText returns length UTF-16 units of s starting at offset.
func sliceText(s string, offset, length int) string {
	if offset == 0 && length >= textLen(s) {
		return s
	}
	units := utf16.Encode([]rune(s))
	if offset > len(units) {
		offset = len(units)
	}
	end := offset + length
	if end > len(units) || end < offset {
		end = len(units)
	}
	return string(utf16.Decode(units[offset:end]))
}

func attributesEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func opsEqual(a, b Op) bool {
	return a.Retain == b.Retain &&
		a.Delete == b.Delete &&
		reflect.DeepEqual(a.Insert, b.Insert) &&
		attributesEqual(a.Attributes, b.Attributes)
}

// composeAttributes merges b over a. Null values in b remove the attribute
// unless keepNull is set, which is the case when composing onto a retain.
func composeAttributes(a, b map[string]any, keepNull bool) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range b {
		if v == nil && !keepNull {
			continue
		}
		out[k] = v
	}
	for k, v := range a {
		if _, ok := b[k]; !ok {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
