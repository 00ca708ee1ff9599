package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	statementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledgerkeep",
		Subsystem: "import",
		Name:      "statements_total",
		Help:      "Statement uploads by source and outcome.",
	}, []string{"source", "outcome"})

	rowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledgerkeep",
		Subsystem: "import",
		Name:      "rows_total",
		Help:      "Statement rows by source and outcome.",
	}, []string{"source", "outcome"})
)

func observeCommit(source string, imported, duplicates, failed int) {
	statementsTotal.WithLabelValues(source, "imported").Inc()
	rowsTotal.WithLabelValues(source, "imported").Add(float64(imported))
	rowsTotal.WithLabelValues(source, "duplicate").Add(float64(duplicates))
	rowsTotal.WithLabelValues(source, "error").Add(float64(failed))
}
