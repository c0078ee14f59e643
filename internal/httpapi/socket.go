package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/agentworkforce/syncpad/internal/syncpad"
)

// handleSocket upgrades the request and bridges the websocket to a
// registry session: a write pump drains the session mailbox onto the
// socket while the handler goroutine reads, validates, and dispatches
// client frames. Protocol errors are answered with an Error frame; the
// connection stays open.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request, id string) {
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing document id")
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "connection torn down")
	conn.SetReadLimit(s.cfg.MaxMessageBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess, err := s.registry.Connect(ctx, id)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "failed to open document")
		return
	}
	defer s.registry.Disconnect(id, sess)

	go func() {
		for msg := range sess.Outbound() {
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				cancel()
				return
			}
		}
		// Mailbox closed: the registry disconnected or kicked us.
		cancel()
	}()

	s.readLoop(ctx, conn, id, sess)
	conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, id string, sess *syncpad.Session) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if err := s.schema.Validate(data); err != nil {
			sendError(sess, "invalid message: "+err.Error())
			continue
		}
		var msg syncpad.ClientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			sendError(sess, "invalid message: "+err.Error())
			continue
		}
		s.dispatch(ctx, id, sess, msg)
	}
}

func (s *Server) dispatch(ctx context.Context, id string, sess *syncpad.Session, msg syncpad.ClientMsg) {
	var err error
	switch {
	case msg.Edit != nil:
		err = s.registry.Edit(ctx, id, sess, msg.Edit.Revision, msg.Edit.Operation)
	case msg.SetLanguage != nil:
		err = s.registry.SetLanguage(id, sess, *msg.SetLanguage)
	case msg.ClientInfo != nil:
		err = s.registry.UpdateInfo(id, sess, *msg.ClientInfo)
	case msg.CursorData != nil:
		err = s.registry.UpdateCursor(id, sess, *msg.CursorData)
	}
	if err != nil {
		sendError(sess, err.Error())
	}
}

func sendError(sess *syncpad.Session, text string) {
	sess.Send(syncpad.ServerMsg{Error: &text})
}
