package metrics

import (
	"expvar"
	"time"
)

var (
	// Uptime stores the timestamp of the engine boot
	Uptime = expvar.NewInt("uptime")

	// AdsTracked counts ad records created since boot
	AdsTracked = expvar.NewInt("ads_tracked")

	// NoticesSent counts control notices posted through webhooks
	NoticesSent = expvar.NewInt("notices_sent")

	// ReindexRuns counts completed reindex passes
	ReindexRuns = expvar.NewInt("reindex_runs")
)

// Init starts metrics collection
func Init() {
	Uptime.Set(time.Now().Unix())
}
