package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/wiimote-bridge/internal/bridges/wiimote"
	"github.com/nerrad567/wiimote-bridge/internal/history"
)

// handleLatestFrame returns the most recent emitted frame.
func (s *Server) handleLatestFrame(w http.ResponseWriter, _ *http.Request) {
	frame := s.bridge.LatestFrame()
	if frame == nil {
		writeNotFound(w, "no frame emitted yet")
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

// handleDescriptor returns the device descriptor.
func (s *Server) handleDescriptor(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, wiimote.BuildDescriptor())
}

// handleListSlots returns the status of every slot as of the last tick.
func (s *Server) handleListSlots(w http.ResponseWriter, _ *http.Request) {
	slots := s.bridge.SlotStatuses()
	writeJSON(w, http.StatusOK, map[string]any{
		"slots": slots[:],
	})
}

// handleSlotEvents returns the connection history of one slot.
//
// Query parameters: kind, limit (default 50, max 200), offset.
func (s *Server) handleSlotEvents(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeServiceUnavailable(w, "slot history not configured")
		return
	}

	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil || slot < 0 || slot >= wiimote.SlotCount {
		writeBadRequest(w, "slot must be 0-3")
		return
	}

	filter := history.Filter{Slot: &slot}
	q := r.URL.Query()

	if kind := q.Get("kind"); kind != "" {
		switch k := wiimote.SlotEventKind(kind); k {
		case wiimote.SlotConnected, wiimote.SlotDisconnected, wiimote.SlotExtensionChanged:
			filter.Kind = k
		default:
			writeBadRequest(w, "unknown event kind")
			return
		}
	}
	if filter.Limit, err = parseNonNegative(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, err = parseNonNegative(q.Get("offset")); err != nil {
		writeBadRequest(w, "offset must be a non-negative integer")
		return
	}

	result, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing slot events failed", "slot", slot, "error", err)
		writeInternalError(w, "failed to list slot events")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

var errNegative = errors.New("negative value")

// parseNonNegative parses an optional query integer. Empty means zero.
func parseNonNegative(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, errNegative
	}
	return v, nil
}
