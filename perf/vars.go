package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	RunLatency           = metric.NewHistogram("1m1s")
	AdvertisementsPerRun = metric.NewHistogram("1m1s")
	Runs                 = metric.NewCounter("1m1s")
	StepsPerSecond       = metric.NewCounter("10s1s")
	DispatchLatency      = metric.NewHistogram("1m1s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("bgpsim:RunLatency (µs)", RunLatency)
	expvar.Publish("bgpsim:AdvertisementsPerRun", AdvertisementsPerRun)
	expvar.Publish("bgpsim:Runs", Runs)
	expvar.Publish("bgpsim:Steps/s", StepsPerSecond)
	expvar.Publish("bgpsim:DispatchLatency (µs)", DispatchLatency)
}
