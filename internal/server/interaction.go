package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"weblinuxremote/internal/input"
	"weblinuxremote/internal/types"
)

const (
	readLimit    = 1 << 20
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 5 * time.Second
)

// Relay applies viewer interactions to the session's input injector.
type Relay struct {
	backend Backend
	logger  *slog.Logger
}

func NewRelay(backend Backend, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{backend: backend, logger: logger}
}

// Apply injects ia. For position interactions it returns the relative
// position the pointer was moved to, for the viewer's cursor overlay.
func (r *Relay) Apply(ctx context.Context, inj *input.Injector, ia types.Interaction) (*types.RelativePosition, error) {
	if err := ia.Validate(); err != nil {
		return nil, err
	}
	switch ia.Type {
	case types.InteractionPosition:
		pos := types.PositionOf(ia)
		w, h, ok := r.backend.SourceSize()
		if !ok {
			return &pos, errors.New("capture source size unknown")
		}
		x, y := pos.Absolute(w, h)
		if err := inj.MovePointerAbsolute(ctx, x, y); err != nil {
			return &pos, err
		}
		return &pos, nil
	case types.InteractionMouseDown:
		return nil, inj.PressButton(ctx, button(ia))
	case types.InteractionMouseUp:
		return nil, inj.ReleaseButton(ctx, button(ia))
	case types.InteractionScroll:
		return nil, inj.Scroll(ctx, ia.Delta)
	case types.InteractionText:
		return nil, inj.TypeText(ctx, ia.Text)
	case types.InteractionKey:
		return nil, inj.PressWithModifiers(ctx, ia.Key, ia.Modifiers...)
	}
	return nil, fmt.Errorf("unhandled interaction %q", ia.Type)
}

func button(ia types.Interaction) input.Button {
	if ia.Button == "" {
		return input.ButtonLeft
	}
	return ia.Button
}

// handleMessage decodes and applies one interaction message, returning the
// encoded position echo if there is one. Failures are logged.
func (r *Relay) handleMessage(ctx context.Context, inj *input.Injector, msg []byte, logger *slog.Logger) []byte {
	var ia types.Interaction
	if err := json.Unmarshal(msg, &ia); err != nil {
		logger.Warn("invalid interaction", "error", err)
		return nil
	}
	pos, err := r.Apply(ctx, inj, ia)
	if err != nil {
		logger.Warn("interaction failed", "type", string(ia.Type), "error", err)
	}
	if pos == nil {
		return nil
	}
	b, err := json.Marshal(pos)
	if err != nil {
		logger.Error("encoding position", "error", err)
		return nil
	}
	return b
}

func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	inj, err := s.backend.Injector()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	logger := s.logger.With("remote", r.RemoteAddr)
	logger.Info("interaction socket connected")
	defer logger.Info("interaction socket disconnected")

	ws.SetReadLimit(readLimit)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go keepAlive(ctx, ws)

	for {
		kind, msg, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("interaction read failed", "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		echo := s.relay.handleMessage(ctx, inj, msg, logger)
		if echo == nil {
			continue
		}
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteMessage(websocket.TextMessage, echo); err != nil {
			logger.Warn("sending position", "error", err)
		}
	}
}

func keepAlive(ctx context.Context, ws *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
