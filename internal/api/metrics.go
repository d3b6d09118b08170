package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anchorctl_gateway_requests_total",
		Help: "Requests issued through the gateway, by method and status code (0 = transport failure).",
	}, []string{"method", "code"})

	renewalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anchorctl_gateway_token_renewals_total",
		Help: "Coalesced access-token renewal attempts triggered by 401 responses.",
	})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anchorctl_gateway_request_retries_total",
		Help: "Requests retried after a successful token renewal.",
	})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anchorctl_gateway_upload_bytes_total",
		Help: "Raw file bytes uploaded through the gateway.",
	})
)
