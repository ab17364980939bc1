package attachment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commitOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attachment_commits_total",
			Help: "Attachment commits by outcome",
		},
		[]string{"outcome"},
	)

	uploadedObjects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attachment_uploaded_objects_total",
			Help: "Objects uploaded and recorded as attachments",
		},
	)

	orphanedObjects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attachment_orphaned_objects_total",
			Help: "Storage objects left behind after their metadata was removed",
		},
		[]string{"reason"},
	)

	livePreviews = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "attachment_pending_previews",
			Help: "Pending previews currently held across all drafts",
		},
	)
)
