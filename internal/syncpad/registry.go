package syncpad

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/agentworkforce/syncpad/internal/ot"
)

const (
	defaultExpiry         = 24 * time.Hour
	defaultDebounceWindow = time.Second
	defaultSweepInterval  = time.Minute
	persistTimeout        = 10 * time.Second
)

type RegistryOptions struct {
	// Database is the durable store written through on edits. Nil
	// disables persistence; the server then runs purely in memory.
	Database Database
	// Expiry is how long a fully-disconnected document may stay
	// resident after its last activity before the sweep evicts it.
	Expiry time.Duration
	// DebounceWindow bounds the lag between an edit and its persist;
	// edits within one window coalesce into a single store call.
	DebounceWindow time.Duration
	// SweepInterval is the cadence of the eviction sweep.
	SweepInterval time.Duration
}

// Registry owns every resident document and the sessions attached to
// it. All mutation of a given document goes through its entry lock, so
// edits on one document are totally ordered while documents stay fully
// independent of each other.
type Registry struct {
	db             Database
	expiry         time.Duration
	debounceWindow time.Duration
	sweepInterval  time.Duration

	mu   sync.RWMutex
	docs map[string]*resident

	startTime time.Time
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// resident is one document's registry entry. Its mutex serializes the
// document state machine, the session set, and the persistence flags.
// storeMu serializes database stores for this id: every snapshot-and-
// store runs under it, so writes for one document never overlap and a
// later snapshot is never overtaken by an older in-flight one. Lock
// order is storeMu before mu; mu is never held while taking storeMu.
type resident struct {
	mu           sync.Mutex
	storeMu      sync.Mutex
	loaded       bool
	doc          *Document
	sessions     map[uint64]*Session
	info         map[uint64]UserInfo
	nextIdentity uint64
	lastActivity time.Time
	dirty        bool
	persistArmed bool
	evicted      bool
}

type Stats struct {
	NumDocuments  int   `json:"numDocuments"`
	UptimeSeconds int64 `json:"uptimeSeconds"`
}

func NewRegistry(opts RegistryOptions) *Registry {
	expiry := opts.Expiry
	if expiry <= 0 {
		expiry = defaultExpiry
	}
	debounceWindow := opts.DebounceWindow
	if debounceWindow <= 0 {
		debounceWindow = defaultDebounceWindow
	}
	sweepInterval := opts.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	r := &Registry{
		db:             opts.Database,
		expiry:         expiry,
		debounceWindow: debounceWindow,
		sweepInterval:  sweepInterval,
		docs:           map[string]*resident{},
		startTime:      time.Now(),
		closed:         make(chan struct{}),
	}
	r.wg.Add(1)
	go r.sweeper()
	return r
}

// Connect attaches a new session to the document, materializing it from
// the database on first access. The session's mailbox already contains
// Identity, Snapshot, and the presence roster when Connect returns, in
// that order, ahead of any broadcast that can follow.
func (r *Registry) Connect(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}
	var entry *resident
	for {
		entry = r.entry(id)
		entry.mu.Lock()
		if !entry.evicted {
			break
		}
		// Lost a race with the sweep; the map has a fresh entry now.
		entry.mu.Unlock()
	}
	defer entry.mu.Unlock()
	if !entry.loaded {
		snapshot := PersistedDocument{}
		if r.db != nil {
			stored, err := r.db.Load(ctx, id)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("load document %s: %w", id, err)
			}
			if err == nil {
				snapshot = stored
			}
		}
		entry.doc = NewDocument(snapshot)
		entry.loaded = true
	}
	sess := newSession(entry.nextIdentity, id, len(entry.info))
	entry.nextIdentity++
	entry.sessions[sess.identity] = sess
	entry.lastActivity = time.Now()

	sess.Send(identityMsg(sess.identity))
	sess.Send(ServerMsg{Snapshot: &SnapshotMsg{
		Text:     entry.doc.Text(),
		Revision: entry.doc.Revision(),
		Language: entry.doc.Language(),
	}})
	for identity, info := range entry.info {
		info := info
		sess.Send(ServerMsg{UserInfo: &UserInfoMsg{ID: identity, Info: &info}})
	}
	return sess, nil
}

// Edit submits an operation on behalf of a session. On success the
// canonical operation is broadcast to every connected session, the
// author included, and a debounced persist is scheduled. On failure the
// error goes only to the caller and the document is untouched.
func (r *Registry) Edit(ctx context.Context, id string, sess *Session, revision int, operation *ot.OperationSeq) error {
	if sess == nil {
		return ErrInvalidInput
	}
	if operation == nil {
		return ErrMalformedOperation
	}
	entry, ok := r.lookup(id)
	if !ok {
		return ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if !entry.loaded {
		return ErrNotFound
	}
	newRevision, canonical, err := entry.doc.SubmitEdit(revision, operation)
	if err != nil {
		return err
	}
	entry.lastActivity = time.Now()
	r.broadcastLocked(entry, ServerMsg{History: &HistoryMsg{
		Revision:  newRevision,
		Operation: canonical,
		Author:    sess.Identity(),
	}})
	r.markDirtyLocked(id, entry)
	return nil
}

// SetLanguage updates the document's language tag and broadcasts it.
// The tag is part of the persisted snapshot.
func (r *Registry) SetLanguage(id string, sess *Session, language string) error {
	if sess == nil {
		return ErrInvalidInput
	}
	entry, ok := r.lookup(id)
	if !ok {
		return ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if !entry.loaded {
		return ErrNotFound
	}
	entry.doc.SetLanguage(language)
	entry.lastActivity = time.Now()
	r.broadcastLocked(entry, ServerMsg{Language: &language})
	r.markDirtyLocked(id, entry)
	return nil
}

// UpdateInfo records a session's presence metadata and broadcasts it.
func (r *Registry) UpdateInfo(id string, sess *Session, info UserInfo) error {
	if sess == nil {
		return ErrInvalidInput
	}
	entry, ok := r.lookup(id)
	if !ok {
		return ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.info[sess.identity] = info
	entry.lastActivity = time.Now()
	r.broadcastLocked(entry, ServerMsg{UserInfo: &UserInfoMsg{ID: sess.identity, Info: &info}})
	return nil
}

// UpdateCursor relays a session's cursor state to the other sessions.
// Cursor state is ephemeral and never persisted.
func (r *Registry) UpdateCursor(id string, sess *Session, data CursorData) error {
	if sess == nil {
		return ErrInvalidInput
	}
	entry, ok := r.lookup(id)
	if !ok {
		return ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	r.broadcastLocked(entry, ServerMsg{UserCursor: &UserCursorMsg{ID: sess.identity, Data: &data}})
	return nil
}

// Disconnect detaches a session. The document and the remaining
// sessions are unaffected; an edit already accepted still reaches them.
func (r *Registry) Disconnect(id string, sess *Session) {
	if sess == nil {
		return
	}
	entry, ok := r.lookup(id)
	if !ok {
		return
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if _, attached := entry.sessions[sess.identity]; !attached {
		return
	}
	delete(entry.sessions, sess.identity)
	delete(entry.info, sess.identity)
	sess.close()
	entry.lastActivity = time.Now()
	r.broadcastLocked(entry, ServerMsg{UserInfo: &UserInfoMsg{ID: sess.identity}})
}

// Text serves the current content of a document without materializing
// it: resident text when loaded, otherwise the persisted snapshot, and
// empty text for documents that exist nowhere.
func (r *Registry) Text(ctx context.Context, id string) (string, error) {
	if entry, ok := r.lookup(id); ok {
		entry.mu.Lock()
		if entry.loaded {
			text := entry.doc.Text()
			entry.mu.Unlock()
			return text, nil
		}
		entry.mu.Unlock()
	}
	if r.db == nil {
		return "", nil
	}
	stored, err := r.db.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return stored.Text, nil
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	numDocs := len(r.docs)
	r.mu.RUnlock()
	return Stats{
		NumDocuments:  numDocs,
		UptimeSeconds: int64(time.Since(r.startTime).Seconds()),
	}
}

// Close stops the sweeper, flushes every dirty document, and closes all
// remaining sessions.
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		close(r.closed)
	})
	r.wg.Wait()

	r.mu.RLock()
	ids := make([]string, 0, len(r.docs))
	for id := range r.docs {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	var firstErr error
	for _, id := range ids {
		entry, ok := r.lookup(id)
		if !ok {
			continue
		}
		if err := r.flush(id, entry); err != nil && firstErr == nil {
			firstErr = err
		}
		entry.mu.Lock()
		for identity, sess := range entry.sessions {
			delete(entry.sessions, identity)
			sess.close()
		}
		entry.mu.Unlock()
	}
	return firstErr
}

func (r *Registry) entry(id string) *resident {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.docs[id]; ok {
		return existing
	}
	created := &resident{
		sessions:     map[uint64]*Session{},
		info:         map[uint64]UserInfo{},
		lastActivity: time.Now(),
	}
	r.docs[id] = created
	return created
}

func (r *Registry) lookup(id string) (*resident, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.docs[id]
	return entry, ok
}

// broadcastLocked fans a message out to every attached session. A
// session that cannot keep up is kicked so it never stalls the
// document; its departure is announced to the survivors.
func (r *Registry) broadcastLocked(entry *resident, msg ServerMsg) {
	var kicked []uint64
	for identity, sess := range entry.sessions {
		if !sess.Send(msg) {
			kicked = append(kicked, identity)
		}
	}
	for _, identity := range kicked {
		sess := entry.sessions[identity]
		delete(entry.sessions, identity)
		delete(entry.info, identity)
		sess.close()
		log.Printf("syncpad: kicked slow session %d from document %s", identity, sess.docID)
	}
	for _, identity := range kicked {
		departure := ServerMsg{UserInfo: &UserInfoMsg{ID: identity}}
		for _, sess := range entry.sessions {
			sess.Send(departure)
		}
	}
}

// markDirtyLocked arms the debounce timer on a clean-to-dirty
// transition. The timer is never re-armed by further edits while
// pending, so persists happen at most once per window.
func (r *Registry) markDirtyLocked(id string, entry *resident) {
	if r.db == nil {
		return
	}
	entry.dirty = true
	if entry.persistArmed {
		return
	}
	entry.persistArmed = true
	time.AfterFunc(r.debounceWindow, func() {
		select {
		case <-r.closed:
			return
		default:
		}
		r.persist(id)
	})
}

// persist writes the latest snapshot for id when the debounce timer
// fires. The snapshot is taken and the write issued under the entry's
// store lock, shared with flush, so a timer that fires while an earlier
// store is still in flight waits for it and then persists the newer
// text. A failed store re-marks the document dirty and re-arms the
// timer for the next cycle.
func (r *Registry) persist(id string) {
	entry, ok := r.lookup(id)
	if !ok {
		return
	}
	entry.storeMu.Lock()
	defer entry.storeMu.Unlock()

	entry.mu.Lock()
	entry.persistArmed = false
	if !entry.dirty || !entry.loaded {
		entry.mu.Unlock()
		return
	}
	snapshot := entry.doc.Snapshot()
	entry.dirty = false
	entry.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := r.db.Store(ctx, id, snapshot); err != nil {
		log.Printf("syncpad: failed to persist document %s: %v", id, err)
		entry.mu.Lock()
		r.markDirtyLocked(id, entry)
		entry.mu.Unlock()
	}
}

// flush forces a synchronous persist of a dirty document. It shares the
// store lock with the debounce path, so it waits out any in-flight
// store and re-checks dirtiness before writing. Callers must not hold
// entry.mu. On failure the document stays dirty.
func (r *Registry) flush(id string, entry *resident) error {
	if r.db == nil {
		return nil
	}
	entry.storeMu.Lock()
	defer entry.storeMu.Unlock()

	entry.mu.Lock()
	if !entry.dirty || !entry.loaded {
		entry.mu.Unlock()
		return nil
	}
	snapshot := entry.doc.Snapshot()
	entry.dirty = false
	entry.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := r.db.Store(ctx, id, snapshot); err != nil {
		entry.mu.Lock()
		entry.dirty = true
		entry.mu.Unlock()
		return err
	}
	return nil
}

func (r *Registry) sweeper() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.closed:
			return
		case <-ticker.C:
			r.sweepOnce()
		}
	}
}

// sweepOnce evicts documents that have no sessions, no unpersisted
// state, and no activity inside the expiry window. Dirty documents are
// flushed first; a failed flush keeps the document resident.
func (r *Registry) sweepOnce() {
	r.mu.RLock()
	candidates := make(map[string]*resident, len(r.docs))
	for id, entry := range r.docs {
		candidates[id] = entry
	}
	r.mu.RUnlock()

	now := time.Now()
	for id, entry := range candidates {
		entry.mu.Lock()
		evictable := r.evictableLocked(entry, now)
		dirty := entry.dirty
		entry.mu.Unlock()
		if !evictable {
			continue
		}
		if dirty {
			if err := r.flush(id, entry); err != nil {
				log.Printf("syncpad: eviction flush failed for document %s: %v", id, err)
				continue
			}
		}

		// Re-check under both locks; a connect may have raced the flush.
		r.mu.Lock()
		entry.mu.Lock()
		if r.docs[id] == entry && r.evictableLocked(entry, now) && !entry.dirty {
			delete(r.docs, id)
			entry.evicted = true
		}
		entry.mu.Unlock()
		r.mu.Unlock()
	}
}

func (r *Registry) evictableLocked(entry *resident, now time.Time) bool {
	if len(entry.sessions) > 0 {
		return false
	}
	return now.Sub(entry.lastActivity) > r.expiry
}
