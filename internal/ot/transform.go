package ot

// Transform resolves two operations that were produced against the same
// base text. It returns (a', b') such that applying a then b' yields the
// same text as applying b then a'. When both sides insert at the same
// boundary, a's insert lands first; callers that replay history pass the
// already-accepted operation as the receiver so that server arrival
// order decides ties.
func Transform(a, b *OperationSeq) (*OperationSeq, *OperationSeq, error) {
	if a.baseLen != b.baseLen {
		return nil, nil, ErrIncompatibleLengths
	}
	aPrime := &OperationSeq{}
	bPrime := &OperationSeq{}
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
		if haveA && pa.kind == primInsert {
			n := runeLen(pa.s)
			aPrime.Insert(pa.s)
			bPrime.Retain(n)
			haveA = false
			continue
		}
		if haveB && pb.kind == primInsert {
			n := runeLen(pb.s)
			aPrime.Retain(n)
			bPrime.Insert(pb.s)
			haveB = false
			continue
		}
		if !haveA && !haveB {
			break
		}
		if !haveA || !haveB {
			return nil, nil, ErrMalformedOp
		}
		n := min(pa.n, pb.n)
		switch {
		case pa.kind == primRetain && pb.kind == primRetain:
			aPrime.Retain(n)
			bPrime.Retain(n)
		case pa.kind == primDelete && pb.kind == primDelete:
			// Both sides removed the same text; nothing survives.
		case pa.kind == primDelete && pb.kind == primRetain:
			aPrime.Delete(n)
		case pa.kind == primRetain && pb.kind == primDelete:
			bPrime.Delete(n)
		default:
			return nil, nil, ErrMalformedOp
		}
		pa.n -= n
		pb.n -= n
		haveA = pa.n > 0
		haveB = pb.n > 0
	}
	return aPrime, bPrime, nil
}
