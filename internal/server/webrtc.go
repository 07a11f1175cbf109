package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"weblinuxremote/internal/input"
)

// maxMessageSize keeps data channel messages under the SCTP size every
// browser accepts.
const maxMessageSize = 16 << 10

// splitFrame splits an encoded frame into data channel messages. The first
// byte of each message is 1 on the last piece of a frame and 0 otherwise.
func splitFrame(b []byte) [][]byte {
	const payload = maxMessageSize - 1
	var out [][]byte
	for {
		n := min(len(b), payload)
		last := n == len(b)
		msg := make([]byte, 1, n+1)
		if last {
			msg[0] = 1
		}
		msg = append(msg, b[:n]...)
		out = append(out, msg)
		if last {
			return out
		}
		b = b[n:]
	}
}

func (s *Server) handleWebRTC(w http.ResponseWriter, r *http.Request) {
	var offer webrtc.SessionDescription
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, readLimit)).Decode(&offer); err != nil {
		http.Error(w, "invalid offer: "+err.Error(), http.StatusBadRequest)
		return
	}
	if offer.Type != webrtc.SDPTypeOffer {
		http.Error(w, "expected an offer", http.StatusBadRequest)
		return
	}
	inj, err := s.backend.Injector()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	answer, err := s.answer(r.Context(), offer, inj)
	if err != nil {
		s.logger.Warn("webrtc negotiation failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(answer)
}

func (s *Server) answer(ctx context.Context, offer webrtc.SessionDescription, inj *input.Injector) (*webrtc.SessionDescription, error) {
	pc, err := webrtc.NewPeerConnection(s.rtc)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.peers[pc] = struct{}{}
	s.mu.Unlock()

	logger := s.logger.With("peer", uuid.NewString())
	peerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	drop := func() {
		cancel()
		s.mu.Lock()
		delete(s.peers, pc)
		s.mu.Unlock()
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Info("peer connection state changed", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed:
			drop()
			go pc.Close()
		case webrtc.PeerConnectionStateClosed:
			drop()
		}
	})
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		logger.Info("data channel opened", "label", dc.Label())
		switch dc.Label() {
		case "frames":
			dc.OnOpen(func() { go s.sendFrames(peerCtx, dc) })
		case "input":
			dc.OnMessage(func(msg webrtc.DataChannelMessage) {
				if !msg.IsString {
					return
				}
				if echo := s.relay.handleMessage(peerCtx, inj, msg.Data, logger); echo != nil {
					if err := dc.SendText(string(echo)); err != nil {
						logger.Warn("sending position", "error", err)
					}
				}
			})
		}
	})

	fail := func(err error) (*webrtc.SessionDescription, error) {
		drop()
		_ = pc.Close()
		return nil, err
	}
	if err := pc.SetRemoteDescription(offer); err != nil {
		return fail(err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fail(err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return fail(err)
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return fail(ctx.Err())
	}
	return pc.LocalDescription(), nil
}

// sendFrames streams hub frames over dc until the peer goes away.
func (s *Server) sendFrames(ctx context.Context, dc *webrtc.DataChannel) {
	sub, err := s.backend.Subscribe()
	if err != nil {
		s.logger.Warn("frames channel without a session", "error", err)
		_ = dc.Close()
		return
	}
	defer sub.Close()
	dc.OnClose(sub.Close)

	for {
		f, err := sub.Recv(ctx)
		if err != nil {
			return
		}
		for _, msg := range splitFrame(f.Bytes()) {
			if err := dc.Send(msg); err != nil {
				s.logger.Debug("frames channel send failed", "error", err)
				return
			}
		}
	}
}
