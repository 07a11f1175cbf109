// Package server exposes the live screencast and the interaction relay over
// HTTP, WebSocket and WebRTC data channels.
package server

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"weblinuxremote/internal/clients"
	"weblinuxremote/internal/input"
)

//go:embed index.html
var indexPage []byte

const (
	PathScreencast  = "/api/remote/screencast"
	PathInteraction = "/api/remote/interaction"
	PathWebRTC      = "/api/remote/webrtc"
	PathHealth      = "/healthz"
)

// Backend is the remote-control context the handlers serve. Subscribe and
// Injector fail while no session is available.
type Backend interface {
	Subscribe() (*clients.Subscription, error)
	Injector() (*input.Injector, error)
	// SourceSize is the capture source size in pixels.
	SourceSize() (width, height int, ok bool)
}

type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

type Options struct {
	ICEServers []ICEServer
	Logger     *slog.Logger
}

type Server struct {
	backend  Backend
	relay    *Relay
	upgrader websocket.Upgrader
	rtc      webrtc.Configuration
	logger   *slog.Logger

	mu    sync.Mutex
	http  *http.Server
	peers map[*webrtc.PeerConnection]struct{}
}

func New(backend Backend, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	var ice []webrtc.ICEServer
	for _, s := range opts.ICEServers {
		ice = append(ice, webrtc.ICEServer{URLs: s.URLs, Username: s.Username, Credential: s.Credential})
	}

	return &Server{
		backend: backend,
		relay:   NewRelay(backend, logger),
		// No auth layer; viewers are on a trusted network.
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		rtc:      webrtc.Configuration{ICEServers: ice},
		logger:   logger,
		peers:    make(map[*webrtc.PeerConnection]struct{}),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", serveIndex)
	mux.HandleFunc("GET "+PathScreencast, s.handleScreencast)
	mux.HandleFunc("GET "+PathInteraction, s.handleInteraction)
	mux.HandleFunc("POST "+PathWebRTC, s.handleWebRTC)
	mux.HandleFunc(PathHealth, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexPage)
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	s.logger.Info("http server started", "addr", l.Addr().String())
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and serves until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Shutdown stops the HTTP server and closes every peer connection.
// Screencast responses end when the backend's hub closes.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	peers := make([]*webrtc.PeerConnection, 0, len(s.peers))
	for pc := range s.peers {
		peers = append(peers, pc)
	}
	s.mu.Unlock()

	for _, pc := range peers {
		if err := pc.Close(); err != nil {
			s.logger.Warn("closing peer connection", "error", err)
		}
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
