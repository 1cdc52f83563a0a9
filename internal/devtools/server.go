// Package devtools serves a small remote-debugging endpoint: target
// discovery over HTTP and a websocket per target carrying navigation,
// console and evaluation messages.
package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ProtocolVersion is reported by /json/version.
const ProtocolVersion = "1.3"

// maxMessageBytes bounds one inbound websocket message.
const maxMessageBytes = 1 << 20

// evaluateTimeout bounds a Runtime.evaluate round trip.
const evaluateTimeout = 10 * time.Second

// Target is one debuggable page.
type Target interface {
	TargetID() string
	URL() string
	Title() string
	// Evaluate runs expression in the page and returns its string form.
	Evaluate(ctx context.Context, expression string) (string, error)
	Navigate(url string)
	Reload()
}

// Registry lists the live targets.
type Registry interface {
	Targets() []Target
}

// Server is the remote-debugging HTTP server.
type Server struct {
	log      *zap.Logger
	registry Registry
	gatherer prometheus.Gatherer
	hub      *Hub
	product  string

	srv  *http.Server
	addr string
}

// New creates a Server. gatherer may be nil, in which case /metrics is not
// served.
func New(registry Registry, gatherer prometheus.Gatherer, product string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		log:      log.Named("devtools"),
		registry: registry,
		gatherer: gatherer,
		hub:      NewHub(),
		product:  product,
	}
}

// Hub returns the event fan-out.
func (s *Server) Hub() *Hub { return s.hub }

// Publish pushes an event to clients attached to targetID.
func (s *Server) Publish(targetID, method string, params any) {
	s.hub.Publish(targetID, method, params)
}

// Handler returns the routes without starting a listener.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/json/version", s.handleVersion)
	r.Get("/json", s.handleList)
	r.Get("/json/list", s.handleList)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/devtools/page/{targetID}", s.handleSocket)
	return r
}

// Start listens on 127.0.0.1:port. Port 0 picks a free port; Addr reports
// the one chosen.
func (s *Server) Start(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("devtools listen: %w", err)
	}
	s.addr = ln.Addr().String()
	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("devtools server stopped", zap.Error(err))
		}
	}()
	s.log.Info("remote debugging listening", zap.String("addr", s.addr))
	return nil
}

// Addr is the listening address once started.
func (s *Server) Addr() string { return s.addr }

// Close stops the listener and disconnects clients.
func (s *Server) Close() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.srv.Shutdown(ctx)
	if err != nil {
		_ = s.srv.Close()
	}
	return err
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"Browser":          s.product,
		"Protocol-Version": ProtocolVersion,
		"User-Agent":       s.product,
	})
}

type targetInfo struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	targets := s.registry.Targets()
	out := make([]targetInfo, 0, len(targets))
	for _, t := range targets {
		out = append(out, targetInfo{
			ID:                   t.TargetID(),
			Type:                 "page",
			Title:                t.Title(),
			URL:                  t.URL(),
			WebSocketDebuggerURL: fmt.Sprintf("ws://%s/devtools/page/%s", r.Host, t.TargetID()),
		})
	}
	writeJSON(w, out)
}

func (s *Server) lookup(id string) Target {
	for _, t := range s.registry.Targets() {
		if t.TargetID() == id {
			return t
		}
	}
	return nil
}

// request is an inbound protocol command.
type request struct {
	ID     int             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type response struct {
	ID     int        `json:"id"`
	Result any        `json:"result,omitempty"`
	Error  *errorBody `json:"error,omitempty"`
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	target := s.lookup(chi.URLParam(r, "targetID"))
	if target == nil {
		http.Error(w, "no such target", http.StatusNotFound)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"localhost:*", "127.0.0.1:*"}})
	if err != nil {
		s.log.Debug("websocket accept failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxMessageBytes)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := s.hub.subscribe(target.TargetID())
	defer s.hub.unsubscribe(sub)
	replies := make(chan []byte, subscriberBuffer)

	go func() {
		for {
			var msg []byte
			select {
			case <-ctx.Done():
				return
			case m, ok := <-sub.ch:
				if !ok {
					return
				}
				msg = m
			case m := <-replies:
				msg = m
			}
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				cancel()
				return
			}
		}
	}()

	defer conn.Close(websocket.StatusNormalClosure, "")
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var req request
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		resp := s.dispatch(ctx, target, req)
		out, err := json.Marshal(resp)
		if err != nil {
			continue
		}
		select {
		case replies <- out:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, target Target, req request) response {
	resp := response{ID: req.ID}
	switch req.Method {
	case "Runtime.evaluate":
		var params struct {
			Expression string `json:"expression"`
		}
		_ = json.Unmarshal(req.Params, &params)
		evalCtx, cancel := context.WithTimeout(ctx, evaluateTimeout)
		defer cancel()
		value, err := target.Evaluate(evalCtx, params.Expression)
		if err != nil {
			resp.Result = map[string]any{
				"result":           map[string]any{"type": "undefined"},
				"exceptionDetails": map[string]any{"text": err.Error()},
			}
			return resp
		}
		resp.Result = map[string]any{"result": map[string]any{"type": "string", "value": value}}
	case "Page.navigate":
		var params struct {
			URL string `json:"url"`
		}
		_ = json.Unmarshal(req.Params, &params)
		if params.URL == "" {
			resp.Error = &errorBody{Code: -32602, Message: "url is required"}
			return resp
		}
		target.Navigate(params.URL)
		resp.Result = map[string]any{"frameId": target.TargetID()}
	case "Page.reload":
		target.Reload()
		resp.Result = struct{}{}
	case "Page.enable", "Runtime.enable":
		resp.Result = struct{}{}
	default:
		resp.Error = &errorBody{Code: -32601, Message: fmt.Sprintf("'%s' wasn't found", req.Method)}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	_ = json.NewEncoder(w).Encode(v)
}
