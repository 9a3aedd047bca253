package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/evalkit/internal/consts"
	"github.com/codefionn/evalkit/internal/eval"
	"github.com/codefionn/evalkit/internal/fs"
	"github.com/codefionn/evalkit/internal/logger"
	"github.com/codefionn/evalkit/internal/results"
	"github.com/codefionn/evalkit/internal/tools"
)

// watchDepth covers <root>/<session>/<task>.
const watchDepth = 2

// artifactTypes lists the files served below a task, with content types.
var artifactTypes = map[string]string{
	consts.DevPromptFile:    "text/plain; charset=utf-8",
	consts.ReviewPromptFile: "text/plain; charset=utf-8",
	consts.ChecklistFile:    "text/markdown; charset=utf-8",
	consts.ResultFile:       "application/json",
}

// Server is the read-only HTTP view over materialized sessions.
type Server struct {
	addr       string
	svc        *eval.Service
	registry   *tools.Registry
	counter    results.Counter
	hub        *Hub
	router     *httprouter.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader
	log        *logger.Logger
}

// NewServer creates a server for svc listening on addr.
func NewServer(svc *eval.Service, registry *tools.Registry, counter results.Counter, addr string) *Server {
	s := &Server{
		addr:     addr,
		svc:      svc,
		registry: registry,
		counter:  counter,
		hub:      NewHub(),
		router:   httprouter.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  consts.BufferSize1KB,
			WriteBufferSize: consts.BufferSize1KB,
			CheckOrigin:     sameHostOrigin,
		},
		log: logger.Global().WithPrefix("http"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/sessions", s.handleSessions)
	s.router.GET("/sessions/:session", s.handleSession)
	s.router.GET("/sessions/:session/tasks/:task", s.handleTask)
	s.router.GET("/sessions/:session/tasks/:task/files/:file", s.handleFile)
	s.router.GET("/tools", s.handleTools)
	s.router.POST("/tools/:tool", s.handleTool)
	s.router.GET("/ws", s.handleWebSocket)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done. It also runs the websocket hub and
// the result.json watcher.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	root := s.svc.Config().OutputRoot
	if err := s.svc.FS().MkdirAll(ctx, root, consts.DirPerm); err != nil {
		ln.Close()
		return fmt.Errorf("failed to create %s: %w", root, err)
	}

	watcher, err := fs.NewWatcher(root, consts.ResultFile, watchDepth, consts.WatchDebounce)
	if err != nil {
		ln.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.hub.Run()
	defer s.hub.Stop()

	go func() {
		if err := watcher.Run(ctx, s.notifyResultChanged); err != nil {
			s.log.Error("watcher stopped: %v", err)
		}
	}()

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: consts.Timeout10Seconds,
		ErrorLog:          logger.NewStdLogger(s.log, slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening on %s", ln.Addr())
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), consts.Timeout5Seconds)
	defer shutdownCancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// notifyResultChanged broadcasts a written result.json to every client.
func (s *Server) notifyResultChanged(ev fs.ChangeEvent) {
	msg, ok := resultChangedMessage(s.svc.Config().OutputRoot, ev.Path, ev.Time)
	if !ok {
		return
	}

	record, err := results.Read(context.Background(), s.svc.FS(), filepath.Dir(ev.Path))
	if err != nil {
		msg.Content = err.Error()
	} else {
		msg.Status = string(record.Status)
	}

	s.log.Debug("result changed: %s/%s %s", msg.Session, msg.TaskID, msg.Status)
	s.hub.Broadcast(msg)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sessions, err := s.svc.Sessions(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []*eval.SessionRecord{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	session, err := s.svc.Session(r.Context(), ps.ByName("session"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	report, err := results.Report(r.Context(), s.svc.FS(), session.Dir, s.counter, s.svc.Digests(session))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	taskID := ps.ByName("task")
	dir, err := s.svc.TaskDir(r.Context(), ps.ByName("session"), taskID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	session, err := s.svc.Session(r.Context(), ps.ByName("session"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	report := results.ReportTask(r.Context(), s.svc.FS(), dir, taskID, s.counter, s.svc.Digests(session)[taskID])
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("file")
	contentType, ok := artifactTypes[name]
	if !ok {
		http.NotFound(w, r)
		return
	}

	dir, err := s.svc.TaskDir(r.Context(), ps.ByName("session"), ps.ByName("task"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	data, err := s.svc.FS().ReadFile(r.Context(), filepath.Join(dir, name))
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleTools lists the registered tools in function-calling format.
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.registry.ToJSONSchema())
}

func (s *Server) handleTool(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("tool")
	if _, ok := s.registry.GetExecutor(name); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "tool not found: " + name})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, consts.BufferSize1MB))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	call, err := tools.ParseCall(name, body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	call.ID = r.Header.Get("X-Request-ID")

	result := s.registry.Execute(r.Context(), call)
	status := http.StatusOK
	if result.Error != "" {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}

// handleWebSocket subscribes to result changes. ?session=<id> limits the
// feed to one session; "latest" resolves to the newest one.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var session string
	if q := r.URL.Query().Get("session"); q != "" {
		record, err := s.svc.Session(r.Context(), q)
		if err != nil {
			s.writeError(w, err)
			return
		}
		session = record.ID
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("failed to upgrade websocket: %v", err)
		return
	}

	client := NewClient(s.hub, conn, session)
	client.send <- &WebMessage{
		Type:      MessageTypeHello,
		Session:   session,
		Content:   s.svc.Config().OutputRoot,
		Timestamp: time.Now(),
	}
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var ve *eval.ValidationError
	switch {
	case errors.Is(err, eval.ErrNotFound), errors.Is(err, os.ErrNotExist):
		status = http.StatusNotFound
	case errors.Is(err, eval.ErrInvalidSessionID), errors.As(err, &ve):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// sameHostOrigin accepts requests without an Origin header and those whose
// origin host matches the request host.
func sameHostOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}
