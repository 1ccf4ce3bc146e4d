/*
Package observability provides tools for monitoring the Tendril driver.

It includes Prometheus metrics and structured logging, both delivered as
domain.LifecycleHooks so they can be merged and plugged into any pass runner.
*/
package observability
