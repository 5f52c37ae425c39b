package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"

	"dailyboard/api/payload"
	"dailyboard/core"
	"dailyboard/realtime"
)

// Service is the part of the leaderboard service reachable from a socket.
type Service interface {
	UpdateScore(ctx context.Context, u core.ScoreUpdate) (core.UpdateResult, error)
	GetLeaderboard(ctx context.Context, q core.Query) (core.LeaderboardView, error)
}

// Options tunes socket connections. Zero values select the defaults.
type Options struct {
	Buffer       int
	WriteTimeout time.Duration
	PingInterval time.Duration
	ReadLimit    int64
	Logger       *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Buffer <= 0 {
		o.Buffer = 256
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Handler returns an http.Handler that upgrades to WebSocket, streams
// leaderboard changes from the hub and answers score:update and
// leaderboard:get frames with an ack carrying the request id. A nil svc makes
// the socket push-only.
func Handler(svc Service, hub *realtime.Hub, opts Options) http.Handler {
	opts = opts.withDefaults()
	upgrader := gorillaws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := &client{
			id:      uuid.NewString(),
			conn:    conn,
			svc:     svc,
			opts:    opts,
			out:     make(chan []byte, opts.Buffer),
			done:    make(chan struct{}),
			stopped: make(chan struct{}),
		}
		c.log = opts.Logger.With("component", "websocket", "conn", c.id)
		c.serve(r.Context(), hub)
	})
}

type client struct {
	id      string
	conn    *gorillaws.Conn
	svc     Service
	opts    Options
	log     *slog.Logger
	out     chan []byte
	done    chan struct{} // reader exited
	stopped chan struct{} // writer exited
}

func (c *client) serve(ctx context.Context, hub *realtime.Hub) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.conn.Close()

	subID, events := hub.Subscribe(c.opts.Buffer)
	defer hub.Unsubscribe(subID)

	go func() {
		defer close(c.stopped)
		c.writeLoop(events)
	}()

	c.readLoop(ctx)
	close(c.done)
	<-c.stopped
}

// writeLoop is the only goroutine writing to the connection.
func (c *client) writeLoop(events <-chan core.Event) {
	ping := time.NewTicker(c.opts.PingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Origin == c.id {
				continue
			}
			if err := c.write(gorillaws.TextMessage, realtime.MarshalJSON(ev)); err != nil {
				c.closeOnError(err)
				return
			}
		case msg := <-c.out:
			if err := c.write(gorillaws.TextMessage, msg); err != nil {
				c.closeOnError(err)
				return
			}
		case <-ping.C:
			if err := c.write(gorillaws.PingMessage, nil); err != nil {
				c.closeOnError(err)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) write(kind int, msg []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return c.conn.WriteMessage(kind, msg)
}

// closeOnError unblocks the reader once writes have failed.
func (c *client) closeOnError(err error) {
	c.log.Debug("socket write failed", "error", err)
	_ = c.conn.Close()
}

func (c *client) readLoop(ctx context.Context) {
	c.conn.SetReadLimit(c.opts.ReadLimit)
	pongWait := 2 * c.opts.PingInterval
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if !gorillaws.IsCloseError(err, gorillaws.CloseNormalClosure, gorillaws.CloseGoingAway) &&
				!errors.Is(err, context.Canceled) {
				c.log.Debug("socket read ended", "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame realtime.Frame
		if err := json.Unmarshal(msg, &frame); err != nil {
			c.send(realtime.Frame{Event: realtime.EventError}, payload.ErrorResponse{Error: "frame must be a JSON object"})
			continue
		}
		c.handle(ctx, frame)
	}
}

func (c *client) handle(ctx context.Context, frame realtime.Frame) {
	ack := realtime.Frame{Event: realtime.EventAck, ID: frame.ID}
	if c.svc == nil {
		c.send(ack, payload.ErrorResponse{Error: "socket is read-only"})
		return
	}

	switch frame.Event {
	case realtime.EventScoreUpdate:
		u, err := payload.DecodeUpdate(frame.Data)
		if err == nil {
			var res core.UpdateResult
			res, err = c.svc.UpdateScore(core.WithOrigin(ctx, c.id), u)
			if err == nil {
				c.send(ack, payload.Updated(res))
				return
			}
		}
		c.fail(frame.Event, ack, err, payload.MsgUpdateFailed)

	case realtime.EventLeaderboardGet:
		q, err := payload.DecodeQuery(frame.Data)
		if err == nil {
			var view core.LeaderboardView
			view, err = c.svc.GetLeaderboard(ctx, q)
			if err == nil {
				c.send(ack, payload.Top(view))
				return
			}
		}
		c.fail(frame.Event, ack, err, payload.MsgLeaderboardFailed)

	default:
		c.send(ack, payload.ErrorResponse{Error: "unknown event " + frame.Event})
	}
}

func (c *client) fail(event string, ack realtime.Frame, err error, fallback string) {
	if !errors.Is(err, core.ErrValidation) {
		c.log.Error("socket request failed", "event", event, "error", err)
	}
	_, body := payload.Failure(err, fallback)
	c.send(ack, body)
}

func (c *client) send(frame realtime.Frame, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		c.log.Error("encode ack", "error", err)
		return
	}
	frame.Data = data
	msg, err := json.Marshal(frame)
	if err != nil {
		c.log.Error("encode frame", "error", err)
		return
	}
	select {
	case c.out <- msg:
	case <-c.stopped:
	}
}
