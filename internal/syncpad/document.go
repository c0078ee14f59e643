package syncpad

import (
	"fmt"

	"github.com/agentworkforce/syncpad/internal/ot"
)

// Document is the in-memory state machine for one pad: the live text,
// the revision counter, and the ordered history of applied operations.
// It is not safe for concurrent use; the registry serializes access.
type Document struct {
	text     string
	language string
	history  []*ot.OperationSeq
}

// NewDocument seeds a document from a snapshot. The snapshot text is
// the history-less baseline at revision 0.
func NewDocument(snapshot PersistedDocument) *Document {
	return &Document{text: snapshot.Text, language: snapshot.Language}
}

func (d *Document) Text() string { return d.text }

// Revision is the number of operations applied since the baseline.
// The operation at history index i transforms revision i into i+1.
func (d *Document) Revision() int { return len(d.history) }

func (d *Document) Language() string { return d.language }

func (d *Document) SetLanguage(language string) { d.language = language }

// Snapshot returns the durable form of the document.
func (d *Document) Snapshot() PersistedDocument {
	return PersistedDocument{Text: d.text, Language: d.language}
}

// SubmitEdit accepts an operation produced against baseRevision,
// transforms it over every later history entry, applies it, and returns
// the new revision together with the canonical operation that was
// actually applied. On error the document is unchanged.
func (d *Document) SubmitEdit(baseRevision int, operation *ot.OperationSeq) (int, *ot.OperationSeq, error) {
	if baseRevision < 0 || baseRevision > d.Revision() {
		return 0, nil, fmt.Errorf("%w: base %d, current %d", ErrRevisionOutOfRange, baseRevision, d.Revision())
	}
	canonical := operation
	for _, applied := range d.history[baseRevision:] {
		_, transformed, err := ot.Transform(applied, canonical)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrMalformedOperation, err)
		}
		canonical = transformed
	}
	text, err := canonical.Apply(d.text)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrMalformedOperation, err)
	}
	d.text = text
	d.history = append(d.history, canonical)
	return d.Revision(), canonical, nil
}
