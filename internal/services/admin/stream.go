package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/net/websocket"

	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/platform/events"
	"github.com/louisbranch/storefront/internal/services/access"
)

// streamFrame is the JSON frame pushed for each recorded activity.
type streamFrame struct {
	ActivityID    string    `json:"activity_id"`
	SystemKeyword string    `json:"system_keyword"`
	CustomerID    string    `json:"customer_id,omitempty"`
	Comment       string    `json:"comment,omitempty"`
	EntityName    string    `json:"entity_name,omitempty"`
	EntityID      string    `json:"entity_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// handleStream upgrades to a websocket and pushes activities as they are
// recorded, one JSON object per frame.
func (h *ActivityHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	requirePermission(h.authz, access.PermissionReadActivity, func(w http.ResponseWriter, r *http.Request) {
		if h.hub == nil {
			writeError(w, r, apperrors.New(apperrors.CodeUnknown, "activity stream is not configured"))
			return
		}
		websocket.Handler(h.streamConn).ServeHTTP(w, r)
	})(w, r)
}

func (h *ActivityHandler) streamConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	entries, cancel := h.hub.Subscribe()
	defer cancel()

	// Drain client frames so a closed peer is noticed. Inbound content is
	// ignored; the stream is one-way.
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 512)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()

	var ctxDone <-chan struct{}
	if request := conn.Request(); request != nil {
		ctxDone = request.Context().Done()
	}

	encoder := json.NewEncoder(conn)
	for {
		select {
		case <-ctxDone:
			return
		case <-done:
			return
		case entry, ok := <-entries:
			if !ok {
				return
			}
			if err := encoder.Encode(toStreamFrame(entry)); err != nil {
				return
			}
		}
	}
}

func toStreamFrame(entry events.ActivityLoggedEvent) streamFrame {
	return streamFrame{
		ActivityID:    entry.ActivityID,
		SystemKeyword: entry.SystemKeyword,
		CustomerID:    entry.CustomerID,
		Comment:       entry.Comment,
		EntityName:    entry.EntityName,
		EntityID:      entry.EntityID,
		CreatedAt:     entry.CreatedAt,
	}
}
