package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/centerrank/internal/geo"
	"github.com/sells-group/centerrank/internal/model"
	"github.com/sells-group/centerrank/internal/recommend"
	"github.com/sells-group/centerrank/internal/status"
	"github.com/sells-group/centerrank/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recommendation HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initService(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env.Service, promhttp.HandlerFor(env.Registry, promhttp.HandlerOpts{}), cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// recommendationService is the part of recommend.Service the HTTP handlers use.
type recommendationService interface {
	Recommend(ctx context.Context, q recommend.Query) ([]model.RecommendationResult, error)
	CenterStatus(ctx context.Context, id string) (*model.Center, status.Result, error)
}

type recommendRequest struct {
	Latitude     *float64           `json:"latitude"`
	Longitude    *float64           `json:"longitude"`
	RadiusMeters int                `json:"radius_meters"`
	Limit        int                `json:"limit"`
	Severity     string             `json:"severity"`
	SessionID    string             `json:"session_id"`
	Profile      *model.UserProfile `json:"profile"`
}

type recommendResponse struct {
	Count   int                          `json:"count"`
	Results []model.RecommendationResult `json:"results"`
}

type statusResponse struct {
	CenterID   string                `json:"center_id"`
	CenterName string                `json:"center_name"`
	Score      int                   `json:"score"`
	Status     model.OperatingStatus `json:"status"`
	Message    string                `json:"message"`
	NextOpen   *model.NextOpen       `json:"next_open,omitempty"`
}

// newRouter builds the chi router for the HTTP API.
func newRouter(svc recommendationService, metricsHandler http.Handler, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/recommendations", handleRecommend(svc))
		r.Get("/centers/{id}/status", handleStatus(svc))
	})

	return r
}

func handleRecommend(svc recommendationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recommendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Latitude == nil || req.Longitude == nil {
			writeError(w, http.StatusBadRequest, "latitude and longitude are required")
			return
		}
		severity, err := model.ParseSeverity(req.Severity)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		results, err := svc.Recommend(r.Context(), recommend.Query{
			Location:     model.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude},
			Profile:      req.Profile,
			Severity:     severity,
			RadiusMeters: req.RadiusMeters,
			Limit:        req.Limit,
			SessionID:    req.SessionID,
		})
		if err != nil {
			if isInputError(err) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			zap.L().Error("recommend request failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "recommendation failed")
			return
		}
		if results == nil {
			results = []model.RecommendationResult{}
		}
		writeJSON(w, http.StatusOK, recommendResponse{Count: len(results), Results: results})
	}
}

func handleStatus(svc recommendationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, res, err := svc.CenterStatus(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "center not found")
				return
			}
			zap.L().Error("status request failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "status lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{
			CenterID:   c.ID,
			CenterName: c.Name,
			Score:      res.Score,
			Status:     res.Detail.Status,
			Message:    res.Detail.Message,
			NextOpen:   res.Detail.NextOpen,
		})
	}
}

func isInputError(err error) bool {
	return errors.Is(err, geo.ErrInvalidCoordinate) ||
		errors.Is(err, recommend.ErrInvalidRadius) ||
		errors.Is(err, recommend.ErrInvalidLimit)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
