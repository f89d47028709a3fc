package feedsim

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server speaks the vendor's websocket protocol and streams generated events for every
// subscribed channel. One generator is shared by all sessions so sequence numbers stay
// unique per channel.
type Server struct {
	APIKey   string        // empty accepts any key
	Interval time.Duration // time between event batches
	Wildcard []string      // symbols streamed for "X.*" subscriptions

	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu  sync.Mutex
	gen *Generator
}

// NewServer creates a server streaming every interval
func NewServer(apiKey string, interval time.Duration, seed int64, dupPct int, logger *zap.Logger) *Server {
	return &Server{
		APIKey:   apiKey,
		Interval: interval,
		Wildcard: []string{"AAPL", "MSFT", "SPY"},
		logger:   logger,
		gen:      NewGenerator(seed, dupPct),
	}
}

type command struct {
	Action string `json:"action"`
	Params string `json:"params"`
}

type session struct {
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	authed   bool
	channels []string
}

func (s *session) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func statusFrame(status, message string) []byte {
	obj := map[string]string{"ev": "status", "status": status, "message": message}
	data, _ := json.Marshal([]map[string]string{obj})
	return data
}

func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sess := &session{conn: conn, logger: srv.logger.With(zap.String("remote", r.RemoteAddr))}
	if err := sess.write(statusFrame("connected", "Connected Successfully")); err != nil {
		return
	}

	done := make(chan struct{})
	go srv.stream(sess, done)
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			sess.logger.Debug("session closed", zap.Error(err))
			return
		}
		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			sess.logger.Warn("bad command", zap.ByteString("data", data))
			continue
		}
		if err := srv.handle(sess, cmd); err != nil {
			return
		}
	}
}

func (srv *Server) handle(sess *session, cmd command) error {
	switch cmd.Action {
	case "auth":
		if srv.APIKey != "" && cmd.Params != srv.APIKey {
			return sess.write(statusFrame("auth_failed", "authentication failed"))
		}
		sess.mu.Lock()
		sess.authed = true
		sess.mu.Unlock()
		return sess.write(statusFrame("auth_success", "authenticated"))
	case "subscribe", "unsubscribe":
		sess.mu.Lock()
		authed := sess.authed
		sess.mu.Unlock()
		if !authed {
			return sess.write(statusFrame("error", "not authorized"))
		}
		for _, ch := range strings.Split(cmd.Params, ",") {
			ch = strings.TrimSpace(ch)
			if ch == "" {
				continue
			}
			sess.mu.Lock()
			if cmd.Action == "subscribe" {
				if !slices.Contains(sess.channels, ch) {
					sess.channels = append(sess.channels, ch)
				}
			} else {
				sess.channels = slices.DeleteFunc(sess.channels, func(c string) bool { return c == ch })
			}
			sess.mu.Unlock()

			if err := sess.write(statusFrame("success", cmd.Action+"d to: "+ch)); err != nil {
				return err
			}
		}
		return nil
	default:
		return sess.write(statusFrame("error", "unknown action"))
	}
}

func (srv *Server) stream(sess *session, done <-chan struct{}) {
	ticker := time.NewTicker(srv.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			sess.mu.Lock()
			channels := slices.Clone(sess.channels)
			sess.mu.Unlock()

			frame := srv.batch(channels, now)
			if frame == nil {
				continue
			}
			if err := sess.write(frame); err != nil {
				return
			}
		}
	}
}

// batch builds one frame holding an object per channel, or nil when nothing is subscribed
func (srv *Server) batch(channels []string, now time.Time) []byte {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	var objs [][]byte
	for _, ch := range channels {
		prefix, sym, _ := strings.Cut(ch, ".")
		syms := []string{sym}
		if sym == "*" {
			syms = srv.Wildcard
		}
		for _, s := range syms {
			if obj := srv.gen.Next(prefix+"."+s, now); obj != nil {
				objs = append(objs, obj)
			}
		}
	}
	if len(objs) == 0 {
		return nil
	}

	frame := []byte{'['}
	for i, obj := range objs {
		if i > 0 {
			frame = append(frame, ',')
		}
		frame = append(frame, obj...)
	}
	return append(frame, ']')
}

// Duplicates returns how many repeated objects the generator has sent
func (srv *Server) Duplicates() int {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.gen.Duplicates()
}
