package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/IqDevHose/grandm-qrcode/internal/platform/httpx"
	"github.com/IqDevHose/grandm-qrcode/internal/platform/observability"
	"github.com/IqDevHose/grandm-qrcode/internal/platform/requestctx"
)

const sseRetryMillis = 2000

// stream pushes a "snapshot" server-sent event after every change of the session. Slow clients only
// receive the latest snapshot.
func (h *SessionHandlers) stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("streaming_unsupported", "streaming is not supported", http.StatusInternalServerError))
		return
	}

	sessionID := requestctx.SessionID(ctx)
	snapshots, unsubscribe, err := h.sessions.Subscribe(ctx, sessionID)
	if err != nil {
		writeSessionError(ctx, w, err)
		return
	}
	defer unsubscribe()

	logger := observability.SessionLogger(ctx, sessionID)
	logger.Info("snapshot stream opened")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, ": connected\n\n")
	fmt.Fprintf(w, "retry: %d\n\n", sseRetryMillis)
	flusher.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("snapshot stream closed by client")
			return
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		case snap, ok := <-snapshots:
			if !ok {
				fmt.Fprintf(w, "event: closed\ndata: {}\n\n")
				flusher.Flush()
				logger.Info("snapshot stream ended with session")
				return
			}
			payload, err := json.Marshal(h.views.snapshot(sessionID, snap))
			if err != nil {
				logger.Error("encode snapshot failed", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: snapshot\ndata: %s\n\n", strconv.FormatUint(snap.Version, 10), payload)
			flusher.Flush()
		}
	}
}
