// Package httpserver provides the REST gateway for the aggregator with SSE
// tail support and JSON endpoints covering publish, recent-event queries,
// stats, health, and Prometheus metrics.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Config: config.Default()})
//	svc := ingestsvc.New(rt)
//	_ = svc.Start(context.Background())
//	s := httpserver.New(rt, svc, nil)
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
