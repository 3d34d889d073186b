package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iota-uz/orgflow/modules/orgchart/domain/hierarchy"
	"github.com/iota-uz/orgflow/modules/orgchart/domain/record"
)

var (
	orgchartBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orgchart",
		Subsystem: "build",
		Name:      "total",
		Help:      "Total number of forest builds broken down by result.",
	}, []string{"result"})

	orgchartBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "orgchart",
		Subsystem: "build",
		Name:      "duration_seconds",
		Help:      "Wall time of successful forest builds.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	orgchartDroppedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orgchart",
		Subsystem: "normalize",
		Name:      "dropped_records_total",
		Help:      "Total number of raw rows rejected during normalization broken down by reason.",
	}, []string{"reason"})

	orgchartDataIssues = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orgchart",
		Subsystem: "build",
		Name:      "data_issues_total",
		Help:      "Total number of data-quality conditions met while building broken down by kind.",
	}, []string{"kind"})

	orgchartCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orgchart",
		Subsystem: "cache",
		Name:      "requests_total",
		Help:      "Total number of forest cache lookups broken down by cache and hit/miss.",
	}, []string{"cache", "result"})

	orgchartCacheInvalidate = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orgchart",
		Subsystem: "cache",
		Name:      "invalidate_total",
		Help:      "Total number of forest cache invalidations broken down by reason.",
	}, []string{"reason"})
)

func recordBuild(result string) {
	orgchartBuilds.WithLabelValues(result).Inc()
}

func recordNormalizeStats(stats record.NormalizeStats) {
	if stats.MissingRequired > 0 {
		orgchartDroppedRecords.WithLabelValues("missing_required").Add(float64(stats.MissingRequired))
	}
	if stats.UnsupportedKind > 0 {
		orgchartDroppedRecords.WithLabelValues("unsupported_kind").Add(float64(stats.UnsupportedKind))
	}
}

func recordReport(r hierarchy.Report) {
	for kind, n := range map[string]int{
		"duplicate_organization": r.DuplicateOrganizations,
		"duplicate_position":     r.DuplicatePositions,
		"dangling_parent":        r.DanglingParents,
		"circular":               r.CircularRejections,
		"unresolved":             r.UnresolvedOrganizations,
		"dropped_position":       r.DroppedPositions,
	} {
		if n > 0 {
			orgchartDataIssues.WithLabelValues(kind).Add(float64(n))
		}
	}
}

func recordCacheRequest(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	orgchartCacheRequests.WithLabelValues(cache, result).Inc()
}

func recordCacheInvalidate(reason string) {
	if reason == "" {
		reason = "manual"
	}
	orgchartCacheInvalidate.WithLabelValues(reason).Inc()
}
