package tasks

import "github.com/prometheus/client_golang/prometheus"

var operationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "task_operations_total",
		Help: "Task service operations by result (success, invalid, not_found, error)",
	},
	[]string{"operation", "result"},
)

func init() {
	prometheus.MustRegister(operationsTotal)
}
