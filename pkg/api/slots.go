package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/cuemby/slotsync/pkg/log"
	"github.com/cuemby/slotsync/pkg/storage"
	"github.com/cuemby/slotsync/pkg/types"
)

// SlotBody is the request body of PUT /v1/slots/{date}/{slot}
type SlotBody struct {
	Person    *string `json:"person"`
	Completed bool    `json:"completed"`
}

// CompletionBody is the request body of PATCH /v1/slots/{date}/{slot}
type CompletionBody struct {
	Completed *bool `json:"completed"`
}

// ErrorResponse is returned with every non-2xx status
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListResponse is returned by GET /v1/slots
type ListResponse struct {
	Records []types.Record `json:"records"`
}

func (s *Server) listSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	records, err := s.table.FetchAll(r.Context())
	if err != nil {
		writeTableError(w, err)
		return
	}
	if records == nil {
		records = []types.Record{}
	}
	writeJSON(w, http.StatusOK, ListResponse{Records: records})
}

func (s *Server) slot(w http.ResponseWriter, r *http.Request) {
	key, err := slotKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, err := s.table.Get(r.Context(), key)
		if err != nil {
			writeTableError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)

	case http.MethodPut:
		var body SlotBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
			return
		}
		if body.Completed && body.Person == nil {
			writeError(w, http.StatusBadRequest, errors.New("completed slot requires a person"))
			return
		}
		rec := types.Record{Date: key.Date, TimeSlot: key.TimeSlot, Person: body.Person, Completed: body.Completed}
		if err := s.table.Upsert(r.Context(), rec); err != nil {
			writeTableError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)

	case http.MethodPatch:
		var body CompletionBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
			return
		}
		if body.Completed == nil {
			writeError(w, http.StatusBadRequest, errors.New("completed is required"))
			return
		}
		if err := s.table.Update(r.Context(), key, *body.Completed); err != nil {
			writeTableError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		if err := s.table.Remove(r.Context(), key); err != nil {
			writeTableError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

func slotKey(r *http.Request) (types.SlotKey, error) {
	date, err := types.ParseDate(r.PathValue("date"))
	if err != nil {
		return types.SlotKey{}, err
	}
	ts, err := types.ParseTimeSlot(r.PathValue("slot"))
	if err != nil {
		return types.SlotKey{}, err
	}
	return types.SlotKey{Date: date, TimeSlot: ts}, nil
}

func writeTableError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	log.Logger.Error().Err(err).Msg("table request failed")
	writeError(w, http.StatusInternalServerError, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
