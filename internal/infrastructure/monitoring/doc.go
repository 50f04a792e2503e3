/*
Package monitoring provides Prometheus metrics for the browser service.

# Overview

Metrics cover HTTP requests, browser launches and recoveries, forwarded
screencast frames, dispatched actions and connected viewers. Every
recording method is safe to call on a nil *Metrics.

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	router.Use(monitoring.Middleware(metrics))

	timer := monitoring.NewTimer(metrics, "navigate")
	// ... dispatch ...
	timer.Stop(monitoring.OutcomeOK)

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
*/
package monitoring
