package flags

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var flagsCreatedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "flags_created",
	Help: "Number of flags created",
}, []string{"type"})

var flagsUpdatedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "flags_updated",
	Help: "Number of flag updates applied (after no-op pruning)",
})

var flagNotificationsPushed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "flags_notifications_pushed",
	Help: "Number of flag notifications handed to the delivery transport",
}, []string{"type"})

var flagNotificationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "flags_notification_errors",
	Help: "Number of flag notification pushes which failed",
}, []string{"type"})

var flagListDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "flags_list_duration_sec",
	Help: "Duration of flag list queries, including hydration",
})
