package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Domenick1991/busbooking/internal/service/reservation"
	"github.com/Domenick1991/busbooking/internal/service/trips"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"
)

// HealthCheck probes one dependency for GET /health.
type HealthCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

type RouterConfig struct {
	CORSOrigins  []string
	Reservations reservation.ReservationUseCase
	Trips        trips.TripUseCase
	Checks       []HealthCheck
	Logger       log.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.DefaultLogger
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log.NewHelper(log.With(logger, "module", "http"))))

	corsCfg := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	}
	router.Use(cors.New(corsCfg))

	router.GET("/health", health(cfg.Checks))

	v1 := router.Group("/api/v1")
	holds := NewHoldHandler(cfg.Reservations)
	holds.Register(v1.Group("/holds"))
	NewTicketHandler(cfg.Reservations).Register(v1.Group("/tickets"))

	tripsGroup := v1.Group("/trips")
	if cfg.Trips != nil {
		NewTripHandler(cfg.Trips).Register(tripsGroup)
	}
	holds.RegisterSeat(tripsGroup)

	return router
}

func health(checks []HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := gin.H{}
		for _, check := range checks {
			if err := check.Probe(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[check.Name] = err.Error()
				continue
			}
			results[check.Name] = "ok"
		}
		if status == http.StatusOK {
			c.JSON(status, gin.H{"status": "ok", "checks": results})
			return
		}
		c.JSON(status, gin.H{"status": "degraded", "checks": results})
	}
}

func requestLogger(logger *log.Helper) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		keyvals := []interface{}{
			"msg", "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		}
		if len(c.Errors) > 0 {
			logger.Errorw(append(keyvals, "error", c.Errors.String())...)
			return
		}
		logger.Infow(keyvals...)
	}
}
