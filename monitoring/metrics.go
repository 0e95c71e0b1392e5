package monitoring

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ResponseTimeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	CommissionPaidTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commission_paid_units_total",
			Help: "Currency units credited by commission distributions",
		},
		[]string{"kind", "role"},
	)

	CommissionPayoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commission_payouts_total",
			Help: "Number of ledger entries written by commission distributions",
		},
		[]string{"kind", "role"},
	)

	DistributionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commission_distributions_total",
			Help: "Commission distributions by outcome",
		},
		[]string{"outcome"},
	)

	ChainStopsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_chain_stops_total",
			Help: "Referral chain walks by stop reason",
		},
		[]string{"reason"},
	)

	ActivationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "user_activations_total",
			Help: "User activations by outcome",
		},
		[]string{"outcome"},
	)

	UpgradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "role_upgrades_total",
			Help: "Role upgrades by target role and outcome",
		},
		[]string{"role", "outcome"},
	)
)

// Middleware records request counts and latency per route.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method
			HttpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Response().Status)).Inc()
			ResponseTimeHistogram.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
