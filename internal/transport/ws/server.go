// Package ws syncs recipes over websocket. A client sends HELLO, the server
// answers WELCOME, streams one binary frame per wire-encoded recipe and
// finishes with DONE.
package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"alloyforge.ai/internal/protocol"
	"alloyforge.ai/internal/recipe"
	"alloyforge.ai/internal/recipe/wirecodec"
)

// Snapshot is the recipe set one session streams.
type Snapshot struct {
	Digest   string
	Catalogs protocol.CatalogDigests
	Recipes  []recipe.Recipe
}

// Source supplies the current snapshot. It is called once per session.
type Source interface {
	Snapshot() Snapshot
}

// StaticSource serves a fixed snapshot.
type StaticSource Snapshot

func (s StaticSource) Snapshot() Snapshot { return Snapshot(s) }

// SessionRecord describes one finished sync session.
type SessionRecord struct {
	At        time.Time `json:"at"`
	SessionID string    `json:"session_id"`
	Client    string    `json:"client"`
	Remote    string    `json:"remote,omitempty"`
	Digest    string    `json:"digest"`
	Recipes   int       `json:"recipes"`
	UpToDate  bool      `json:"up_to_date,omitempty"`
	Truncated bool      `json:"truncated,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Recorder receives a SessionRecord after every session that got past
// HELLO.
type Recorder interface {
	RecordSession(SessionRecord) error
}

type Options struct {
	WriteTimeout time.Duration
	// MaxRecipes caps a session's stream. Zero means no cap.
	MaxRecipes int
	Recorder   Recorder
}

type Server struct {
	src  Source
	log  *log.Logger
	opts Options

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(src Source, logger *log.Logger, opts Options) *Server {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	s := &Server{
		src:  src,
		log:  logger,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		hello, ok := s.handshake(conn)
		if !ok {
			return
		}

		sessionID := fmt.Sprintf("S%d", s.nextID.Add(1))
		snap := s.src.Snapshot()
		recs := snap.Recipes
		truncated := s.opts.MaxRecipes > 0 && len(recs) > s.opts.MaxRecipes
		if truncated {
			recs = recs[:s.opts.MaxRecipes]
		}
		// A capped session never holds the full set, so it is never up to date.
		upToDate := !truncated && hello.KnownDigest != "" && hello.KnownDigest == snap.Digest

		welcome := protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			SessionID:       sessionID,
			WireVersion:     int(wirecodec.Version),
			Catalogs:        snap.Catalogs,
			Digest:          snap.Digest,
			RecipeCount:     len(recs),
			UpToDate:        upToDate,
			Truncated:       truncated,
		}
		if upToDate {
			welcome.RecipeCount = 0
			recs = nil
		}
		rec := SessionRecord{
			SessionID: sessionID,
			Client:    hello.ClientName,
			Remote:    r.RemoteAddr,
			Digest:    snap.Digest,
			UpToDate:  upToDate,
			Truncated: truncated,
		}
		if err := s.stream(conn, welcome, recs); err != nil {
			rec.Error = err.Error()
			s.logf("session=%s: %v", sessionID, err)
		} else {
			rec.Recipes = len(recs)
			s.logf("session=%s client=%q recipes=%d up_to_date=%v", sessionID, hello.ClientName, len(recs), upToDate)
		}
		s.record(rec)
	}
}

func (s *Server) stream(conn *websocket.Conn, welcome protocol.WelcomeMsg, recs []recipe.Recipe) error {
	if err := s.writeJSON(conn, welcome); err != nil {
		return fmt.Errorf("write WELCOME: %w", err)
	}

	var buf []byte
	for _, rec := range recs {
		buf = wirecodec.Append(buf[:0], rec)
		_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
		if err := conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
			return fmt.Errorf("write %s: %w", rec.ID(), err)
		}
	}

	done := protocol.DoneMsg{Type: protocol.TypeDone, ProtocolVersion: protocol.Version, Count: len(recs)}
	if err := s.writeJSON(conn, done); err != nil {
		return fmt.Errorf("write DONE: %w", err)
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"), time.Now().Add(time.Second))
	return nil
}

func (s *Server) record(rec SessionRecord) {
	if s.opts.Recorder == nil {
		return
	}
	rec.At = time.Now().UTC()
	if err := s.opts.Recorder.RecordSession(rec); err != nil {
		s.logf("session=%s: record: %v", rec.SessionID, err)
	}
}

func (s *Server) handshake(conn *websocket.Conn) (protocol.HelloMsg, bool) {
	var hello protocol.HelloMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return hello, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		s.reject(conn, protocol.ErrProtoBadRequest, "expected HELLO")
		return hello, false
	}
	if err := json.Unmarshal(msg, &hello); err != nil {
		s.reject(conn, protocol.ErrProtoBadRequest, "bad HELLO")
		return hello, false
	}
	if hello.ProtocolVersion != protocol.Version {
		s.reject(conn, protocol.ErrProtoVersion, "bad protocol_version")
		return hello, false
	}
	if hello.WireVersion != int(wirecodec.Version) {
		s.reject(conn, protocol.ErrWireVersion, fmt.Sprintf("server speaks wire_version %d", wirecodec.Version))
		return hello, false
	}
	if hello.ClientName == "" {
		hello.ClientName = "client"
	}
	return hello, true
}

func (s *Server) reject(conn *websocket.Conn, code, msg string) {
	_ = s.writeJSON(conn, protocol.NewError(code, msg))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg), time.Now().Add(time.Second))
}

func (s *Server) writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		if !errors.Is(err, websocket.ErrCloseSent) {
			s.logf("write: %v", err)
		}
		return err
	}
	return nil
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}
