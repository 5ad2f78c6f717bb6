// notely/routes/notes.go
package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"notely/notely/config"
	"notely/notely/controllers"
	"notely/notely/middlewares"
	"notely/notely/types"
	"notely/notely/utils/logging"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const requestTimeout = 60 * time.Second

// handleJSON writes handler's result as JSON, or its error as an ErrorResponse.
func handleJSON(handler func(r *http.Request) (any, int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, status, err := handler(r)
		if err != nil {
			if status >= http.StatusInternalServerError {
				logging.ErrorLogger.Error("request failed",
					zap.String("trace_id", logging.TraceID(r.Context())),
					zap.String("path", r.URL.Path), zap.Error(err))
			}
			writeJSON(w, status, types.ErrorResponse{Error: err.Error()})
			return
		}
		if status == http.StatusNoContent {
			w.WriteHeader(status)
			return
		}
		writeJSON(w, status, res)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// statusFor maps controller errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, controllers.ErrInvalidNote):
		return http.StatusBadRequest
	case errors.Is(err, controllers.ErrNoteNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func noteID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid note id")
	}
	return id, nil
}

func NotesRoutes(ctrl *controllers.NotesController, hub *controllers.EventHub, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(cfg))
		api := gr.With(middleware.Timeout(requestTimeout))

		// List the caller's notes, newest first
		api.Get("/", handleJSON(func(r *http.Request) (any, int, error) {
			userID, _ := middlewares.UserID(r.Context())
			notes, err := ctrl.ListNotes(r.Context(), userID)
			if err != nil {
				return nil, http.StatusInternalServerError, err
			}
			return notes, http.StatusOK, nil
		}))

		// Create note
		api.Post("/", handleJSON(func(r *http.Request) (any, int, error) {
			userID, _ := middlewares.UserID(r.Context())
			var req types.CreateNoteRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return nil, http.StatusBadRequest, err
			}
			note, err := ctrl.CreateNote(r.Context(), userID, req)
			if err != nil {
				return nil, statusFor(err), err
			}
			return note, http.StatusCreated, nil
		}))

		// Update title, content or summary
		api.Patch("/{id}", handleJSON(func(r *http.Request) (any, int, error) {
			userID, _ := middlewares.UserID(r.Context())
			id, err := noteID(r)
			if err != nil {
				return nil, http.StatusBadRequest, err
			}
			var patch types.NotePatch
			if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
				return nil, http.StatusBadRequest, err
			}
			note, err := ctrl.UpdateNote(r.Context(), userID, id, patch)
			if err != nil {
				return nil, statusFor(err), err
			}
			return note, http.StatusOK, nil
		}))

		// Delete note
		api.Delete("/{id}", handleJSON(func(r *http.Request) (any, int, error) {
			userID, _ := middlewares.UserID(r.Context())
			id, err := noteID(r)
			if err != nil {
				return nil, http.StatusBadRequest, err
			}
			if err := ctrl.DeleteNote(r.Context(), userID, id); err != nil {
				return nil, statusFor(err), err
			}
			return nil, http.StatusNoContent, nil
		}))

		// Change feed of the caller's notes
		gr.Get("/events", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := middlewares.UserID(r.Context())
			conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
			if err != nil {
				return
			}
			hub.ServeEvents(r.Context(), conn, userID)
		})
	})
	return r
}
