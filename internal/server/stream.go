package server

import (
	"errors"
	"io"
	"time"

	"golang-pool-streamer/internal/hub"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var errQueueFull = errors.New("subscriber queue full")

const wsWriteWait = 10 * time.Second

// queueSubscriber buffers events for one connection. Send never blocks: when
// the queue is full the event is dropped for this subscriber only.
type queueSubscriber struct {
	id     string
	events chan hub.Event
}

func newQueueSubscriber(size int) *queueSubscriber {
	return &queueSubscriber{
		id:     uuid.NewString(),
		events: make(chan hub.Event, size),
	}
}

func (q *queueSubscriber) ID() string { return q.id }

func (q *queueSubscriber) Send(ev hub.Event) error {
	select {
	case q.events <- ev:
		return nil
	default:
		return errQueueFull
	}
}

// sseStream replays history and then streams trades as server-sent events.
// Keep-alives are comment lines. The stream ends only on client disconnect.
func (s *Server) sseStream(c *gin.Context) {
	sub := newQueueSubscriber(s.buffer)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	s.hub.Subscribe(sub)
	defer s.hub.Unsubscribe(sub.ID())

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev := <-sub.events:
			if ev.Name == hub.EventPing {
				_, err := io.WriteString(w, ": ping\n\n")
				return err == nil
			}
			c.SSEvent(ev.Name, ev.Data)
			return true
		}
	})
}

// wsFrame is the websocket message envelope.
type wsFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// wsStream serves the same hub over a websocket. Keep-alives are ping
// control frames; the read loop only detects disconnects.
func (s *Server) wsStream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("⚠️ Websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := newQueueSubscriber(s.buffer)
	s.hub.Subscribe(sub)
	defer s.hub.Unsubscribe(sub.ID())

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case ev := <-sub.events:
			if err := writeFrame(conn, ev); err != nil {
				logrus.WithFields(logrus.Fields{
					"subscriber": sub.ID(),
					"error":      err.Error(),
				}).Debug("Websocket write failed")
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, ev hub.Event) error {
	deadline := time.Now().Add(wsWriteWait)
	if ev.Name == hub.EventPing {
		return conn.WriteControl(websocket.PingMessage, nil, deadline)
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return conn.WriteJSON(wsFrame{Event: ev.Name, Data: ev.Data})
}
