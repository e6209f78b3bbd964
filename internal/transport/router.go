package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	handler "github.com/yuankeMiao/Marmotshop-backend/internal/handler/http"
	"github.com/yuankeMiao/Marmotshop-backend/internal/metrics"
	"github.com/yuankeMiao/Marmotshop-backend/internal/order"
	"github.com/yuankeMiao/Marmotshop-backend/internal/review"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Orders   order.Service
	Reviews  review.Service
	Users    handler.UserLookup
	DB       Pinger
	Metrics  *metrics.ServerMetrics
	Gatherer prometheus.Gatherer
}

func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.DB.Ping(ctx); err != nil {
				log.Warn().Err(err).Msg("Health check failed")
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = w.Write([]byte("OK"))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	auth := handler.NewAuthenticator(deps.Users)
	handler.NewOrderHandler(deps.Orders, auth).RegisterRoutes(r)
	handler.NewReviewHandler(deps.Reviews, auth).RegisterRoutes(r)

	return r
}
