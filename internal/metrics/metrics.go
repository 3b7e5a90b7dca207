package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector aggregates the registry's authentication counters. A nil
// *Collector is valid and records nothing, so wiring metrics stays
// optional.
type Collector struct {
	authOutcomes     *prometheus.CounterVec
	accountsCreated  prometheus.Counter
	accountsMigrated prometheus.Counter
	cacheLookups     *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parcel_auth_total",
			Help: "Authentication attempts by outcome.",
		}, []string{"outcome"}),
		accountsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parcel_account_created_total",
			Help: "Accounts created on first login.",
		}),
		accountsMigrated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parcel_account_migrated_total",
			Help: "Legacy accounts bound to an OAuth subject.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parcel_email_cache_total",
			Help: "Email cache lookups by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.authOutcomes,
		c.accountsCreated,
		c.accountsMigrated,
		c.cacheLookups,
	)

	return c
}

func (c *Collector) RecordAuthOutcome(outcome string) {
	if c == nil {
		return
	}

	c.authOutcomes.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordAccountCreated() {
	if c == nil {
		return
	}

	c.accountsCreated.Inc()
}

func (c *Collector) RecordAccountMigrated() {
	if c == nil {
		return
	}

	c.accountsMigrated.Inc()
}

func (c *Collector) RecordCacheLookup(result string) {
	if c == nil {
		return
	}

	c.cacheLookups.WithLabelValues(result).Inc()
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
