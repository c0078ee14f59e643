package syncpad

import "github.com/agentworkforce/syncpad/internal/ot"

// Messages are externally tagged: exactly one field of ClientMsg or
// ServerMsg is non-nil, and the JSON object has a single key naming it,
// e.g. {"Identity": 0} or {"Edit": {"revision": 1, "operation": ["a"]}}.

// ClientMsg is a frame received from a client session.
type ClientMsg struct {
	Edit        *EditMsg    `json:"Edit,omitempty"`
	SetLanguage *string     `json:"SetLanguage,omitempty"`
	ClientInfo  *UserInfo   `json:"ClientInfo,omitempty"`
	CursorData  *CursorData `json:"CursorData,omitempty"`
}

type EditMsg struct {
	Revision  int              `json:"revision"`
	Operation *ot.OperationSeq `json:"operation"`
}

// ServerMsg is a frame pushed to a client session.
type ServerMsg struct {
	Identity   *uint64        `json:"Identity,omitempty"`
	Snapshot   *SnapshotMsg   `json:"Snapshot,omitempty"`
	History    *HistoryMsg    `json:"History,omitempty"`
	Language   *string        `json:"Language,omitempty"`
	UserInfo   *UserInfoMsg   `json:"UserInfo,omitempty"`
	UserCursor *UserCursorMsg `json:"UserCursor,omitempty"`
	Error      *string        `json:"Error,omitempty"`
}

// SnapshotMsg carries the initial document state, sent once right after
// Identity.
type SnapshotMsg struct {
	Text     string `json:"text"`
	Revision int    `json:"revision"`
	Language string `json:"language,omitempty"`
}

// HistoryMsg broadcasts a canonical, already-applied operation. It is
// delivered to every connected session, the author included; the author
// uses the revision to re-base its next edit.
type HistoryMsg struct {
	Revision  int              `json:"revision"`
	Operation *ot.OperationSeq `json:"operation"`
	Author    uint64           `json:"author"`
}

// UserInfo is presence metadata a client announces about itself.
type UserInfo struct {
	Name string `json:"name"`
	Hue  int    `json:"hue"`
}

type UserInfoMsg struct {
	ID   uint64    `json:"id"`
	Info *UserInfo `json:"info"` // nil announces departure
}

// CursorData mirrors the client's cursor and selection state; the
// server relays it without interpretation.
type CursorData struct {
	Cursors    []int    `json:"cursors"`
	Selections [][2]int `json:"selections"`
}

type UserCursorMsg struct {
	ID   uint64      `json:"id"`
	Data *CursorData `json:"data"`
}

func identityMsg(id uint64) ServerMsg {
	return ServerMsg{Identity: &id}
}

func errorMsg(err error) ServerMsg {
	text := err.Error()
	return ServerMsg{Error: &text}
}
