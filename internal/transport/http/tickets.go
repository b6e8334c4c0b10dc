package http

import (
	"context"
	"net/http"
)

// TicketLedger is the minimal interface needed by the ticket endpoints.
type TicketLedger interface {
	AddIfUserExists(ctx context.Context, userID, eventID int64, quantity int) (bool, error)
	Transfer(ctx context.Context, fromUserID, toUserID, eventID int64, quantity int) (bool, error)
}

// HandleAddTickets returns an HTTP handler for POST /users/{id}/tickets/add.
func HandleAddTickets(svc TicketLedger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		userID, ok := pathID(w, r)
		if !ok {
			return
		}

		var req addTicketsRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if _, err := svc.AddIfUserExists(r.Context(), userID, req.EventID, req.Tickets); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, okResponse{OK: "Event tickets added"})
	}
}

// HandleTransferTickets returns an HTTP handler for
// POST /users/{id}/tickets/transfer.
func HandleTransferTickets(svc TicketLedger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		userID, ok := pathID(w, r)
		if !ok {
			return
		}

		var req transferTicketsRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if _, err := svc.Transfer(r.Context(), userID, req.TargetUser, req.EventID, req.Tickets); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, okResponse{OK: "Tickets transferred"})
	}
}

type addTicketsRequest struct {
	EventID int64 `json:"eventid"`
	Tickets int   `json:"tickets"`
}

type transferTicketsRequest struct {
	EventID    int64 `json:"eventid"`
	Tickets    int   `json:"tickets"`
	TargetUser int64 `json:"targetuser"`
}

type okResponse struct {
	OK string `json:"ok"`
}
