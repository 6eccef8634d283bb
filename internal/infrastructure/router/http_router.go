package router

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"flightwatch-service/internal/domain/apperror"
	"flightwatch-service/internal/domain/entity"
	"flightwatch-service/internal/usecase"
	"flightwatch-service/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SubscriptionCommands is the write side used by the HTTP API
type SubscriptionCommands interface {
	Subscribe(ctx context.Context, req usecase.SubscribeRequest) (*entity.FlightSubscription, error)
	Unsubscribe(ctx context.Context, connectionID, reason string) error
}

// FlightQueries is the read side used by the HTTP API
type FlightQueries interface {
	FetchAll(ctx context.Context) ([]entity.Flight, error)
	FetchByArea(ctx context.Context, area entity.BoundingBox) ([]entity.Flight, error)
	FetchByCountry(ctx context.Context, country string) ([]entity.Flight, error)
}

// Stream is the notification gateway mounted at /api/stream
type Stream interface {
	http.Handler
	Connected(connectionID string) bool
}

// HTTPHandlers groups the dependencies of the HTTP API
type HTTPHandlers struct {
	Subscriptions SubscriptionCommands
	Flights       FlightQueries
	Stream        Stream
	Metrics       http.Handler
	Logger        logger.Logger
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewHTTPRouter builds the chi router for the service
func NewHTTPRouter(h HTTPHandlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.Logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Healthy"))
	})
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/stream", h.stream)

		r.Post("/subscriptions", h.subscribe)
		r.Delete("/subscriptions/{connectionID}", h.unsubscribe)

		r.Get("/flights", h.allFlights)
		r.Get("/flights/area", h.flightsByArea)
		r.Get("/flights/country/{country}", h.flightsByCountry)
	})

	return r
}

// stream lifts the server write deadline; SSE responses stay open
func (h HTTPHandlers) stream(w http.ResponseWriter, r *http.Request) {
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	h.Stream.ServeHTTP(w, r)
}

func (h HTTPHandlers) subscribe(w http.ResponseWriter, r *http.Request) {
	var req usecase.SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.Validation("INVALID_REQUEST", "Request body must be a JSON subscription"))
		return
	}
	if req.ConnectionID != "" && !h.Stream.Connected(req.ConnectionID) {
		writeError(w, apperror.NotFound("CONNECTION_NOT_FOUND", "Connection is not open"))
		return
	}

	sub, err := h.Subscriptions.Subscribe(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	// a disconnect between the check above and the insert would leave the
	// subscription behind with no one to remove it
	if !h.Stream.Connected(sub.ConnectionID) {
		if err := h.Subscriptions.Unsubscribe(r.Context(), sub.ConnectionID, usecase.ReasonDisconnect); err != nil {
			h.Logger.Error("Failed to remove subscription of closed connection", "connectionId", sub.ConnectionID, "error", err)
		}
		writeError(w, apperror.NotFound("CONNECTION_NOT_FOUND", "Connection closed while subscribing"))
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h HTTPHandlers) unsubscribe(w http.ResponseWriter, r *http.Request) {
	connectionID := chi.URLParam(r, "connectionID")
	if err := h.Subscriptions.Unsubscribe(r.Context(), connectionID, usecase.ReasonUnsubscribe); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h HTTPHandlers) allFlights(w http.ResponseWriter, r *http.Request) {
	flights, err := h.Flights.FetchAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flights)
}

func (h HTTPHandlers) flightsByArea(w http.ResponseWriter, r *http.Request) {
	area, err := parseArea(r)
	if err != nil {
		writeError(w, err)
		return
	}
	flights, err := h.Flights.FetchByArea(r.Context(), area)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flights)
}

func (h HTTPHandlers) flightsByCountry(w http.ResponseWriter, r *http.Request) {
	flights, err := h.Flights.FetchByCountry(r.Context(), chi.URLParam(r, "country"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flights)
}

func parseArea(r *http.Request) (entity.BoundingBox, error) {
	q := r.URL.Query()
	var bounds [4]float64
	for i, key := range []string{"lamin", "lamax", "lomin", "lomax"} {
		v, err := strconv.ParseFloat(q.Get(key), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return entity.BoundingBox{}, apperror.Validation("INVALID_AREA", "Query parameters lamin, lamax, lomin and lomax must be numbers")
		}
		bounds[i] = v
	}
	return entity.BoundingBox{
		MinLatitude:  bounds[0],
		MaxLatitude:  bounds[1],
		MinLongitude: bounds[2],
		MaxLongitude: bounds[3],
	}, nil
}

func statusFor(err error) int {
	switch apperror.KindOf(err) {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Code: "INTERNAL_ERROR", Message: "Internal server error"}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		resp = errorResponse{Code: appErr.Code, Message: appErr.Message}
	}
	writeJSON(w, statusFor(err), resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"durationMs", time.Since(start).Milliseconds(),
				"requestId", middleware.GetReqID(r.Context()))
		})
	}
}
