package ot

import (
	"encoding/json"
	"fmt"
)

// The wire form of an operation is a JSON array whose elements are a
// positive integer (retain), a negative integer (delete), or a string
// (insert), e.g. [3, "hi", -1].

func (o *OperationSeq) MarshalJSON() ([]byte, error) {
	elems := make([]any, 0, len(o.prims))
	for _, p := range o.prims {
		switch p.kind {
		case primRetain:
			elems = append(elems, p.n)
		case primDelete:
			elems = append(elems, -p.n)
		case primInsert:
			elems = append(elems, p.s)
		}
	}
	return json.Marshal(elems)
}

func (o *OperationSeq) UnmarshalJSON(data []byte) error {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOp, err)
	}
	decoded := OperationSeq{}
	for _, raw := range elems {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s == "" {
				return fmt.Errorf("%w: empty insert", ErrMalformedOp)
			}
			decoded.Insert(s)
			continue
		}
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("%w: element %s", ErrMalformedOp, raw)
		}
		switch {
		case n > 0:
			decoded.Retain(int(n))
		case n < 0:
			decoded.Delete(int(-n))
		default:
			return fmt.Errorf("%w: zero-length element", ErrMalformedOp)
		}
	}
	*o = decoded
	return nil
}
