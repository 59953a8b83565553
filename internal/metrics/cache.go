package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas del token cache y del agregador. Viven en un paquete standalone
// para evitar ciclos de import entre cache, store y los paquetes HTTP.

var (
	CacheOpErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "token_cache_op_errors_total",
		Help: "Errores de operaciones contra el cache, por scope y tipo",
	}, []string{"scope", "kind"})

	CacheOpTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "token_cache_op_timeouts_total",
		Help: "Operaciones de cache que excedieron el timeout por-operación",
	}, []string{"scope"})

	CacheAdmissionRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "token_cache_admission_rejected_total",
		Help: "Requests rechazados por el tope de pendientes en vuelo",
	})

	CacheStateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "token_cache_state_transitions_total",
		Help: "Transiciones del circuito del cache (connecting/ready/degraded/disabled)",
	}, []string{"from", "to"})

	CachePrunedEntries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "token_cache_pruned_entries_total",
		Help: "Entradas huérfanas eliminadas del cache durante reads",
	}, []string{"scope"})

	AggregationLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "attached_clients_list_latency_ms",
		Help:    "Latencia de List de attached clients en milisegundos",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	RevocationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attached_clients_revocations_total",
		Help: "Revocaciones de clientes por tipo de selector y resultado",
	}, []string{"selector", "outcome"})
)

// Register registra las métricas en el registry dado (o el default si es nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		CacheOpErrors,
		CacheOpTimeouts,
		CacheAdmissionRejected,
		CacheStateTransitions,
		CachePrunedEntries,
		AggregationLatency,
		RevocationsTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
