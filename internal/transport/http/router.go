package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/cimillas/ticket-ledger/internal/app"
)

// RouterDeps are the collaborators the routes are served from.
type RouterDeps struct {
	Users       app.Users
	Ledger      app.Ledger
	Logger      *zap.Logger
	DB          Pinger
	CORSOrigins []string
}

// NewRouter registers every route and wraps them in the middleware chain.
func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HandleHealth(deps.DB))
	mux.HandleFunc("/users", HandleCreateUser(deps.Users))
	mux.HandleFunc("/users/{id}", HandleGetUser(deps.Users))
	mux.HandleFunc("/users/{id}/exists", HandleUserExists(deps.Users))
	mux.HandleFunc("/users/{id}/tickets/add", HandleAddTickets(deps.Ledger))
	mux.HandleFunc("/users/{id}/tickets/transfer", HandleTransferTickets(deps.Ledger))
	mux.Handle("/", NotFoundHandler())

	var handler http.Handler = mux
	handler = CORS(deps.CORSOrigins, handler)
	handler = RequestLogger(handler, deps.Logger)
	handler = RequestID(handler)
	return handler
}
