package ot

// Compose merges two consecutive operations into one. Applying the
// result is equivalent to applying a and then b. The target length of a
// must match the base length of b.
func Compose(a, b *OperationSeq) (*OperationSeq, error) {
	if a.targetLen != b.baseLen {
		return nil, ErrIncompatibleLengths
	}
	out := &OperationSeq{}
	var pa, pb prim
	var haveA, haveB bool
	i, j := 0, 0
	for {
		if !haveA && i < len(a.prims) {
			pa = a.prims[i]
			i++
			haveA = true
		}
		if !haveB && j < len(b.prims) {
			pb = b.prims[j]
			j++
			haveB = true
		}
		if !haveA && !haveB {
			break
		}
		if haveA && pa.kind == primDelete {
			out.Delete(pa.n)
			haveA = false
			continue
		}
		if haveB && pb.kind == primInsert {
			out.Insert(pb.s)
			haveB = false
			continue
		}
		if !haveA || !haveB {
			return nil, ErrMalformedOp
		}
		switch {
		case pa.kind == primRetain && pb.kind == primRetain:
			n := min(pa.n, pb.n)
			out.Retain(n)
			pa.n -= n
			pb.n -= n
			haveA = pa.n > 0
			haveB = pb.n > 0
		case pa.kind == primRetain && pb.kind == primDelete:
			n := min(pa.n, pb.n)
			out.Delete(n)
			pa.n -= n
			pb.n -= n
			haveA = pa.n > 0
			haveB = pb.n > 0
		case pa.kind == primInsert && pb.kind == primRetain:
			runes := []rune(pa.s)
			n := min(len(runes), pb.n)
			out.Insert(string(runes[:n]))
			pa.s = string(runes[n:])
			pb.n -= n
			haveA = pa.s != ""
			haveB = pb.n > 0
		case pa.kind == primInsert && pb.kind == primDelete:
			runes := []rune(pa.s)
			n := min(len(runes), pb.n)
			pa.s = string(runes[n:])
			pb.n -= n
			haveA = pa.s != ""
			haveB = pb.n > 0
		default:
			return nil, ErrMalformedOp
		}
	}
	return out, nil
}
