// Package health tracks component health for the bridge and serves it over HTTP.
//
// A Status is one of healthy, degraded or unhealthy. Components register a
// Check with a Monitor, which polls every check on each read:
//
//	monitor := health.NewMonitor()
//	monitor.Register("rosbridge", conn.Health)
//	http.Handle("/health", health.Handler(monitor, "rosbridge-relay"))
//
// Aggregate rules: any unhealthy component makes the system unhealthy; with
// none unhealthy, any degraded component makes it degraded. Handler answers
// 503 for unhealthy and 200 otherwise.
//
// Error messages passed through FromError are sanitized: URLs, file paths,
// IP addresses, ports and credential-looking pairs are replaced with
// placeholders.
package health
