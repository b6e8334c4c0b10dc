package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cimillas/ticket-ledger/internal/domain"
)

// UserCreator is the minimal interface needed to register a user.
type UserCreator interface {
	CreateUser(ctx context.Context, name string) (domain.User, error)
}

// UserReader is the minimal interface needed by the user read endpoints.
type UserReader interface {
	GetUser(ctx context.Context, userID int64) (domain.UserDetail, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
}

// HandleCreateUser returns an HTTP handler for POST /users.
func HandleCreateUser(svc UserCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createUserRequest
		if !decodeBody(w, r, &req) {
			return
		}

		user, err := svc.CreateUser(r.Context(), req.Username)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, createUserResponse{UserID: user.ID})
	}
}

// HandleGetUser returns an HTTP handler for GET /users/{id}.
func HandleGetUser(svc UserReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		userID, ok := pathID(w, r)
		if !ok {
			return
		}

		detail, err := svc.GetUser(r.Context(), userID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		resp := userResponse{
			UserID:   detail.ID,
			Username: detail.Name,
			Tickets:  make([]ticketResponse, 0, len(detail.Tickets)),
		}
		for _, t := range detail.Tickets {
			resp.Tickets = append(resp.Tickets, ticketResponse{EventID: t.EventID, Quantity: t.Quantity})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleUserExists returns an HTTP handler for GET /users/{id}/exists.
func HandleUserExists(svc UserReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		userID, ok := pathID(w, r)
		if !ok {
			return
		}

		exists, err := svc.UserExists(r.Context(), userID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, existsResponse{Exists: exists})
	}
}

type createUserRequest struct {
	Username string `json:"username"`
}

type createUserResponse struct {
	UserID int64 `json:"userid"`
}

type userResponse struct {
	UserID   int64            `json:"userid"`
	Username string           `json:"username"`
	Tickets  []ticketResponse `json:"tickets"`
}

type ticketResponse struct {
	EventID  int64 `json:"eventid"`
	Quantity int   `json:"quantity"`
}

type existsResponse struct {
	Exists bool `json:"exists"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	return true
}

// pathID parses the {id} path segment. Malformed ids are answered with 400.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, codeInvalidID, domain.ErrInvalidID.Error())
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
