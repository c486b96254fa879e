// Package health reports whether the query stats pipeline is keeping up.
//
// A Checker reports one component as Healthy, Degraded or Unhealthy. The
// package ships checkers for the query stats store and the recording
// breaker, an Aggregator that runs several checkers under one deadline, and
// HTTP handlers for liveness, readiness and a detailed JSON report.
//
//	agg := health.NewAggregator()
//	agg.Register(health.NewStoreChecker(st, health.StoreCheckerConfig{}))
//	agg.Register(health.NewBreakerChecker(br))
//	health.RegisterHandlers(mux, agg)
package health
