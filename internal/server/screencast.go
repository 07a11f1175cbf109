package server

import (
	"net/http"
	"strconv"
)

// Boundary separates JPEG parts of the screencast response.
const Boundary = "EMPC_FRAME_BOUNDARY"

const ContentTypeScreencast = "multipart/x-mixed-replace;boundary=" + Boundary

// Chunk frames one JPEG as a multipart part. The part has no trailing
// CRLF; the next boundary follows the image bytes directly.
func Chunk(jpeg []byte) []byte {
	n := strconv.Itoa(len(jpeg))
	b := make([]byte, 0, len(Boundary)+len(n)+64+len(jpeg))
	b = append(b, "--"+Boundary+"\r\n"...)
	b = append(b, "Content-Type: image/jpeg\r\n"...)
	b = append(b, "Content-Length: "...)
	b = append(b, n...)
	b = append(b, "\r\n\r\n"...)
	return append(b, jpeg...)
}

func (s *Server) handleScreencast(w http.ResponseWriter, r *http.Request) {
	sub, err := s.backend.Subscribe()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	logger := s.logger.With("subscriber", sub.ID(), "remote", r.RemoteAddr)
	logger.Info("screencast viewer connected")
	defer logger.Info("screencast viewer disconnected")

	w.Header().Set("Content-Type", ContentTypeScreencast)
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		logger.Warn("response cannot be flushed", "error", err)
		return
	}

	for {
		f, err := sub.Recv(r.Context())
		if err != nil {
			return
		}
		if _, err := w.Write(Chunk(f.Bytes())); err != nil {
			logger.Debug("screencast write failed", "error", err)
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
