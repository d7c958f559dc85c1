package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Counter metrics
var (
	// Tenant resolution outcomes
	TenantResolutionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_resolutions_total",
			Help: "Total number of tenant resolutions by outcome",
		},
		[]string{"outcome"}, // outcome can be "resolved", "bypassed", "tenant_not_found", etc.
	)

	// Membership guard denials
	MembershipDenialCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_membership_denials_total",
			Help: "Total number of requests rejected by the membership guard",
		},
		[]string{"reason"},
	)

	// Tenant lifecycle operations
	TenantOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_tenant_operations_total",
			Help: "Total number of tenant lifecycle operations",
		},
		[]string{"operation", "result"}, // operation can be "provision", "renew", "enable", "disable", "delete"
	)

	// Sweep runs
	SweepRunCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_sweep_runs_total",
			Help: "Total number of lifecycle sweep runs",
		},
		[]string{"sweep", "result"},
	)

	// Tenants disabled by the expiry sweep
	TenantsExpiredCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenancy_tenants_expired_total",
			Help: "Total number of tenants disabled by the expiry sweep",
		},
	)

	// Notifications by kind and result
	NotificationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_notifications_total",
			Help: "Total number of lifecycle notifications by kind and result",
		},
		[]string{"kind", "result"},
	)
)

// Histogram metrics
var (
	// Sweep duration
	SweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenancy_sweep_duration_seconds",
			Help:    "Duration of lifecycle sweeps in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sweep"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenancy_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// Gauge metrics
var (
	// Active tenants
	ActiveTenantsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenancy_active_tenants",
			Help: "Number of tenants with active=true after the last sweep",
		},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tenancy_info",
			Help: "Information about the tenancy service",
		},
		[]string{"version"},
	)
)

func init() {
	prometheus.MustRegister(TenantResolutionCounter)
	prometheus.MustRegister(MembershipDenialCounter)
	prometheus.MustRegister(TenantOperationCounter)
	prometheus.MustRegister(SweepRunCounter)
	prometheus.MustRegister(TenantsExpiredCounter)
	prometheus.MustRegister(NotificationCounter)

	prometheus.MustRegister(SweepDuration)
	prometheus.MustRegister(DBOperationDuration)

	prometheus.MustRegister(ActiveTenantsGauge)
	prometheus.MustRegister(InfoGauge)
}

// SetServiceInfo publishes the running build version
func SetServiceInfo(version string) {
	InfoGauge.Reset()
	InfoGauge.With(prometheus.Labels{"version": version}).Set(1)
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(time.Since(startTime).Seconds())
	}
}

// TrackSweep measures a sweep run
func TrackSweep(sweep string) func() {
	startTime := time.Now()
	return func() {
		SweepDuration.With(prometheus.Labels{"sweep": sweep}).Observe(time.Since(startTime).Seconds())
	}
}

// RecordResolution records a tenant resolution outcome
func RecordResolution(outcome string) {
	TenantResolutionCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// RecordMembershipDenial records a guard rejection
func RecordMembershipDenial(reason string) {
	MembershipDenialCounter.With(prometheus.Labels{"reason": reason}).Inc()
}

// RecordTenantOperation records a tenant lifecycle operation
func RecordTenantOperation(operation, result string) {
	TenantOperationCounter.With(prometheus.Labels{"operation": operation, "result": result}).Inc()
}

// RecordSweepRun records a sweep run result ("ok", "partial", "failed", "skipped")
func RecordSweepRun(sweep, result string) {
	SweepRunCounter.With(prometheus.Labels{"sweep": sweep, "result": result}).Inc()
}

// RecordTenantsExpired adds to the expired tenants counter
func RecordTenantsExpired(n int) {
	TenantsExpiredCounter.Add(float64(n))
}

// RecordNotification records a notification attempt
func RecordNotification(kind, result string) {
	NotificationCounter.With(prometheus.Labels{"kind": kind, "result": result}).Inc()
}

// UpdateActiveTenants updates the active tenants gauge
func UpdateActiveTenants(count int64) {
	ActiveTenantsGauge.Set(float64(count))
}
