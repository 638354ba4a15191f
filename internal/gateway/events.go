// ABOUTME: Server-sent event stream of batch progress
// ABOUTME: Relays progress.Broadcaster events to HTTP clients with go-sse

package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/tmaxmax/go-sse"

	"github.com/2389/quarkdown-mcp/internal/auth"
)

// eventReady is sent once the subscription is in place.
const eventReady = "ready"

// handleEvents streams batch events until the client disconnects. The
// optional batch_id query parameter narrows the stream to one batch.
func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	batchID := r.URL.Query().Get("batch_id")
	events, subID := g.broadcaster.Subscribe(r.Context(), batchID)

	sess, err := sse.Upgrade(w, r)
	if err != nil {
		g.broadcaster.Unsubscribe(batchID, subID)
		g.logger.Error("failed to upgrade event stream", "error", err)
		http.Error(w, "failed to open event stream", http.StatusInternalServerError)
		return
	}

	logger := g.logger.With("sub_id", subID, "batch_id", batchID, "subject", auth.SubjectFromContext(r.Context()))
	logger.Debug("event stream opened")
	defer logger.Debug("event stream closed")

	hello, _ := json.Marshal(map[string]string{"batch_id": batchID})
	ready := sse.Message{Type: sse.Type(eventReady)}
	ready.AppendData(string(hello))
	if err := send(sess, &ready); err != nil {
		logger.Debug("event stream write failed", "error", err)
		return
	}

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			logger.Warn("failed to encode event", "error", err)
			continue
		}
		msg := sse.Message{Type: sse.Type(string(ev.Kind))}
		msg.AppendData(string(data))
		if err := send(sess, &msg); err != nil {
			logger.Debug("event stream write failed", "error", err)
			return
		}
	}
}

func send(sess *sse.Session, msg *sse.Message) error {
	if err := sess.Send(msg); err != nil {
		return err
	}
	return sess.Flush()
}
