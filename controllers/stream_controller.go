package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/cppla/branch/middleware"
	"github.com/cppla/branch/session"
	"github.com/cppla/branch/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	// CORS is enforced by the router; tokens travel in the query string.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamMessage is one frame pushed to the client.
type StreamMessage struct {
	Type  string         `json:"type"`
	State *session.State `json:"state,omitempty"`
}

// StreamController pushes a fresh session state every time the pod snapshot
// changes.
type StreamController struct {
	registry *session.Registry
}

func NewStreamController(registry *session.Registry) *StreamController {
	return &StreamController{registry: registry}
}

// Stream upgrades to a websocket and relays snapshots until the client goes
// away or the session closes.
func (s *StreamController) Stream(ctx *gin.Context) {
	ctrl, ok := controllerFor(ctx, s.registry)
	if !ok {
		return
	}
	ws, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		utils.Sugar.Warnw("websocket upgrade failed", "session", middleware.SessionID(ctx), "error", err)
		return
	}
	defer ws.Close()

	updates, stop := ctrl.Watch()
	defer stop()

	// The read pump only handles pongs and notices the client leaving.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		defer func() {
			if r := recover(); r != nil {
				utils.Sugar.Errorw("websocket read pump panic", "recover", r)
			}
		}()
		ws.SetReadLimit(512)
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	reqCtx := ctx.Request.Context()

	for {
		select {
		case <-updates:
			st := ctrl.State(reqCtx)
			if err := send(ws, StreamMessage{Type: "snapshot", State: &st}); err != nil {
				return
			}
		case <-ping.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctrl.Done():
			_ = send(ws, StreamMessage{Type: "closed"})
			return
		case <-gone:
			return
		case <-reqCtx.Done():
			return
		}
	}
}

func send(ws *websocket.Conn, msg StreamMessage) error {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(msg); err != nil {
		utils.Sugar.Debugw("websocket write failed", "error", err)
		return err
	}
	return nil
}
