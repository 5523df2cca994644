// internal/webhook/metrics.go

package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var inboundMessagesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gratitude_inbound_messages_total",
		Help: "Inbound SMS webhook calls by outcome",
	},
	[]string{"outcome"},
)
