package syncpad

import (
	"errors"
	"testing"

	"github.com/agentworkforce/syncpad/internal/ot"
)

func insertOp(base int, text, tail string) *ot.OperationSeq {
	op := &ot.OperationSeq{}
	op.Retain(base)
	op.Insert(text)
	op.Retain(len([]rune(tail)))
	return op
}

func TestSubmitEditAppliesAndAdvancesRevision(t *testing.T) {
	doc := NewDocument(PersistedDocument{})

	op := &ot.OperationSeq{}
	op.Insert("hello")
	rev, canonical, err := doc.SubmitEdit(0, op)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if rev != 1 {
		t.Fatalf("expected revision 1, got %d", rev)
	}
	if canonical == nil {
		t.Fatalf("expected canonical operation")
	}
	if doc.Text() != "hello" {
		t.Fatalf("unexpected text %q", doc.Text())
	}
}

func TestRevisionMonotonicity(t *testing.T) {
	doc := NewDocument(PersistedDocument{})
	text := ""
	for i := 0; i < 10; i++ {
		op := &ot.OperationSeq{}
		op.Retain(len([]rune(text)))
		op.Insert("x")
		rev, _, err := doc.SubmitEdit(i, op)
		if err != nil {
			t.Fatalf("submit %d failed: %v", i, err)
		}
		if rev != i+1 {
			t.Fatalf("expected revision %d, got %d", i+1, rev)
		}
		text += "x"
	}
	if doc.Revision() != 10 || len(doc.history) != 10 {
		t.Fatalf("expected 10 history entries, got revision=%d history=%d", doc.Revision(), len(doc.history))
	}
}

func TestSubmitEditRejectsFutureRevision(t *testing.T) {
	doc := NewDocument(PersistedDocument{Text: "abc"})
	op := &ot.OperationSeq{}
	op.Retain(3)
	if _, _, err := doc.SubmitEdit(5, op); !errors.Is(err, ErrRevisionOutOfRange) {
		t.Fatalf("expected revision out of range, got %v", err)
	}
	if _, _, err := doc.SubmitEdit(-1, op); !errors.Is(err, ErrRevisionOutOfRange) {
		t.Fatalf("expected revision out of range for negative base, got %v", err)
	}
}

func TestRejectionLeavesStateUntouched(t *testing.T) {
	doc := NewDocument(PersistedDocument{Text: "abc"})
	good := &ot.OperationSeq{}
	good.Retain(3)
	good.Insert("!")
	if _, _, err := doc.SubmitEdit(0, good); err != nil {
		t.Fatalf("seed edit failed: %v", err)
	}

	before := doc.Text()
	beforeRev := doc.Revision()

	short := &ot.OperationSeq{}
	short.Retain(2)
	if _, _, err := doc.SubmitEdit(1, short); !errors.Is(err, ErrMalformedOperation) {
		t.Fatalf("expected malformed operation, got %v", err)
	}
	if doc.Text() != before || doc.Revision() != beforeRev {
		t.Fatalf("rejected edit mutated state: text=%q revision=%d", doc.Text(), doc.Revision())
	}
}

func TestConcurrentEditsConvergeInArrivalOrder(t *testing.T) {
	// Two clients edit the same empty document at revision 0. The one
	// the server accepted first keeps position priority.
	ordered := NewDocument(PersistedDocument{})
	a := &ot.OperationSeq{}
	a.Insert("a")
	b := &ot.OperationSeq{}
	b.Insert("b")
	if _, _, err := ordered.SubmitEdit(0, a); err != nil {
		t.Fatalf("first edit failed: %v", err)
	}
	if _, _, err := ordered.SubmitEdit(0, b); err != nil {
		t.Fatalf("second edit failed: %v", err)
	}
	if ordered.Text() != "ab" {
		t.Fatalf("expected \"ab\", got %q", ordered.Text())
	}

	reversed := NewDocument(PersistedDocument{})
	a2 := &ot.OperationSeq{}
	a2.Insert("a")
	b2 := &ot.OperationSeq{}
	b2.Insert("b")
	if _, _, err := reversed.SubmitEdit(0, b2); err != nil {
		t.Fatalf("first edit failed: %v", err)
	}
	if _, _, err := reversed.SubmitEdit(0, a2); err != nil {
		t.Fatalf("second edit failed: %v", err)
	}
	if reversed.Text() != "ba" {
		t.Fatalf("expected \"ba\", got %q", reversed.Text())
	}
}

func TestStaleEditTransformsAgainstHistory(t *testing.T) {
	doc := NewDocument(PersistedDocument{})
	if _, _, err := doc.SubmitEdit(0, insertOp(0, "hello world", "")); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	// Applied against revision 1: capitalize-ish edit at the front.
	if _, _, err := doc.SubmitEdit(1, insertOp(0, ">> ", "hello world")); err != nil {
		t.Fatalf("second edit failed: %v", err)
	}
	// Stale edit still based on revision 1 appends at what was the end.
	stale := &ot.OperationSeq{}
	stale.Retain(11)
	stale.Insert("!")
	rev, canonical, err := doc.SubmitEdit(1, stale)
	if err != nil {
		t.Fatalf("stale edit failed: %v", err)
	}
	if rev != 3 {
		t.Fatalf("expected revision 3, got %d", rev)
	}
	if canonical.BaseLen() != 14 {
		t.Fatalf("canonical operation not rebased: base length %d", canonical.BaseLen())
	}
	if doc.Text() != ">> hello world!" {
		t.Fatalf("unexpected text %q", doc.Text())
	}
}

func TestSnapshotCarriesLanguage(t *testing.T) {
	doc := NewDocument(PersistedDocument{Text: "print(1)", Language: "python"})
	if doc.Language() != "python" {
		t.Fatalf("expected seeded language, got %q", doc.Language())
	}
	doc.SetLanguage("ruby")
	snapshot := doc.Snapshot()
	if snapshot.Text != "print(1)" || snapshot.Language != "ruby" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}
