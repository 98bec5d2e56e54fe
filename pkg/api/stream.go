package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mpapenbr/pitwall-go/log"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// stream sends the current state and every following state of a race as
// JSON websocket messages. The stream ends with the race or the client.
func (s *Server) stream(w http.ResponseWriter, req *http.Request, e *Entry) {
	c, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		s.l.Debug("websocket upgrade failed", log.ErrorField(err))
		return
	}
	defer c.Close()
	l := s.l.With(log.String("race", e.Session.ID()))

	updates := e.Updates.Subscribe()
	defer e.Updates.CancelSubscription(updates)

	// reader detects client close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.NextReader(); err != nil {
				return
			}
		}
	}()

	write := func(v any) bool {
		if err := c.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return false
		}
		if err := c.WriteJSON(v); err != nil {
			l.Debug("websocket write failed", log.ErrorField(err))
			return false
		}
		return true
	}
	closeNormal := func(reason string) {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
			time.Now().Add(writeWait))
	}
	cfg := e.Session.Config()
	snap := e.Session.Snapshot()
	if !write(snap.State) {
		return
	}
	if snap.Finished {
		closeNormal("race finished")
		return
	}
	for {
		select {
		case <-req.Context().Done():
			return
		case <-closed:
			l.Debug("websocket closed by client")
			return
		case state, ok := <-updates:
			if !ok {
				closeNormal("race closed")
				return
			}
			if !write(state) {
				return
			}
			if state.Finished(&cfg) {
				closeNormal("race finished")
				return
			}
		}
	}
}
