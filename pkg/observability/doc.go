/*
Package observability turns engine lifecycle hooks into monitoring output.

Metrics exposes render passes, evaluation failures, component loads and
navigations as Prometheus collectors. LogHooks writes the same events to a
structured logger. Both return domain.LifecycleHooks and can be combined with
domain.Combine.
*/
package observability
