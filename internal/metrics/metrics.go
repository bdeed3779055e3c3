// Package metrics exposes the Prometheus instrumentation for the workflow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TransitionsTotal counts workflow transitions by name and outcome.
var TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "amutrack_workflow_transitions_total",
	Help: "Feed administration workflow transitions by transition and outcome.",
}, []string{"transition", "outcome"})

// OutboxDeliveriesTotal counts outbox side-effect deliveries by kind and outcome.
var OutboxDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "amutrack_outbox_deliveries_total",
	Help: "Outbox event deliveries by kind and outcome.",
}, []string{"kind", "outcome"})

// StockRestoredTotal counts ledger restore operations by trigger.
var StockRestoredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "amutrack_stock_restored_total",
	Help: "Feed batch stock restorations by trigger (reject, delete, compensation).",
}, []string{"trigger"})
