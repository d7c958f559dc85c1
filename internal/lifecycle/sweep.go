package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Mounkaila144/produit-sub000/internal/notify"
	"github.com/Mounkaila144/produit-sub000/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Sweep names
const (
	SweepExpire = "expire"
	SweepWarn   = "warn"
)

// WarningLeadDays are the staged warning lead times, in days before expiry
var WarningLeadDays = []int{7, 3, 1}

// warningClaimTTL outlives the calendar day a warning key is bucketed on
const warningClaimTTL = 48 * time.Hour

// ErrUnknownSweep is returned by RunSweep for names other than expire and warn
var ErrUnknownSweep = errors.New("unknown sweep")

// SweepReport summarizes one sweep run
type SweepReport struct {
	Sweep        string    `json:"sweep"`
	RanAt        time.Time `json:"ran_at"`
	Selected     int       `json:"selected"`
	Changed      int       `json:"changed"`
	Skipped      int       `json:"skipped"`
	Notified     int       `json:"notified"`
	NotifyFailed int       `json:"notify_failed"`
	// LockHeld is set when another run held the sweep lock and nothing was done
	LockHeld bool  `json:"lock_held,omitempty"`
	Err      error `json:"-"`
}

// Errors returns the per-tenant failures collected during the run
func (r *SweepReport) Errors() []error {
	return multierr.Errors(r.Err)
}

func (r *SweepReport) result() string {
	switch {
	case r.LockHeld:
		return "skipped"
	case r.Err != nil:
		return "partial"
	}
	return "ok"
}

// RunSweep runs the named sweep under the cross-replica lock. Once started the
// sweep ignores cancellation of ctx and finishes its selected set.
func (s *Service) RunSweep(ctx context.Context, sweep string) (*SweepReport, error) {
	if sweep != SweepExpire && sweep != SweepWarn {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSweep, sweep)
	}
	ctx = context.WithoutCancel(ctx)

	lockKey := "lock:sweep:" + sweep
	claimed, err := s.coord.Claim(ctx, lockKey, s.opts.LockTTL)
	if err != nil {
		// the conditional writes keep a concurrent sweep safe, so run anyway
		s.log.Warn("Sweep lock unavailable, running without it", zap.String("sweep", sweep), zap.Error(err))
		claimed = true
	}
	if !claimed {
		s.log.Info("Sweep already running elsewhere, skipped", zap.String("sweep", sweep))
		prometheus.RecordSweepRun(sweep, "skipped")
		return &SweepReport{Sweep: sweep, RanAt: s.clock.Now(), LockHeld: true}, nil
	}
	defer func() {
		if err := s.coord.Release(ctx, lockKey); err != nil {
			s.log.Warn("Failed to release sweep lock", zap.String("sweep", sweep), zap.Error(err))
		}
	}()

	if sweep == SweepExpire {
		return s.ExpireOverdue(ctx)
	}
	return s.SendExpiryWarnings(ctx)
}

// ExpireOverdue disables every active tenant whose expiry has passed and
// notifies each one after its write commits. One tenant's failure never stops
// the others; failures end up in the report.
func (s *Service) ExpireOverdue(ctx context.Context) (*SweepReport, error) {
	defer prometheus.TrackSweep(SweepExpire)()

	now := s.clock.Now()
	report := &SweepReport{Sweep: SweepExpire, RanAt: now}
	log := s.log.With(zap.String("sweep", SweepExpire))

	tenants, err := s.store.ListOverdue(ctx, now)
	if err != nil {
		prometheus.RecordSweepRun(SweepExpire, "failed")
		log.Error("Failed to select overdue tenants", zap.Error(err))
		return nil, fmt.Errorf("select overdue tenants: %w", err)
	}
	report.Selected = len(tenants)

	for _, t := range tenants {
		tlog := log.With(zap.String("tenant_id", t.ID.String()))

		changed, err := s.store.ExpireTenant(ctx, t.ID, now)
		if err != nil {
			tlog.Error("Failed to expire tenant", zap.Error(err))
			report.Err = multierr.Append(report.Err, err)
			continue
		}
		if !changed {
			// renewed or disabled between selection and write
			tlog.Info("Tenant no longer overdue, left untouched")
			report.Skipped++
			continue
		}
		report.Changed++
		tlog.Info("Tenant expired", zap.Timep("expires_at", t.ExpiresAt))

		if err := s.notify(ctx, notify.KindExpired, t, expiredMessage(t)); err != nil {
			report.NotifyFailed++
			continue
		}
		report.Notified++
	}

	prometheus.RecordTenantsExpired(report.Changed)
	s.refreshActiveGauge(ctx)
	prometheus.RecordSweepRun(SweepExpire, report.result())
	log.Info("Expiry sweep finished",
		zap.Int("selected", report.Selected),
		zap.Int("expired", report.Changed),
		zap.Int("skipped", report.Skipped),
		zap.Int("notify_failed", report.NotifyFailed),
		zap.Int("errors", len(report.Errors())))
	return report, nil
}

// SendExpiryWarnings sends one warning to every active tenant whose expiry
// falls on the calendar day 7, 3 or 1 days from now. Each (tenant, lead,
// day) is claimed in the coordinator so re-runs on the same day stay quiet.
func (s *Service) SendExpiryWarnings(ctx context.Context) (*SweepReport, error) {
	defer prometheus.TrackSweep(SweepWarn)()

	now := s.clock.Now().In(s.opts.Location)
	report := &SweepReport{Sweep: SweepWarn, RanAt: now}
	log := s.log.With(zap.String("sweep", SweepWarn))

	for _, lead := range WarningLeadDays {
		from := startOfDay(now.AddDate(0, 0, lead))
		to := from.AddDate(0, 0, 1)

		tenants, err := s.store.ListExpiringBetween(ctx, from, to)
		if err != nil {
			log.Error("Failed to select expiring tenants", zap.Int("lead_days", lead), zap.Error(err))
			report.Err = multierr.Append(report.Err, fmt.Errorf("select tenants expiring in %d days: %w", lead, err))
			continue
		}
		report.Selected += len(tenants)

		for _, t := range tenants {
			tlog := log.With(zap.String("tenant_id", t.ID.String()), zap.Int("lead_days", lead))

			key := fmt.Sprintf("warn:%s:%d:%s", t.ID, lead, from.Format("2006-01-02"))
			claimed, err := s.coord.Claim(ctx, key, warningClaimTTL)
			if err != nil {
				tlog.Warn("Warning dedupe unavailable, sending anyway", zap.Error(err))
				claimed = true
			}
			if !claimed {
				report.Skipped++
				continue
			}

			if err := s.notify(ctx, notify.KindWarning, t, warningMessage(t, lead, s.opts.Location)); err != nil {
				report.NotifyFailed++
				// let a later run retry this tenant
				if rerr := s.coord.Release(ctx, key); rerr != nil {
					tlog.Warn("Failed to release warning claim", zap.Error(rerr))
				}
				continue
			}
			report.Changed++
			report.Notified++
		}
	}

	prometheus.RecordSweepRun(SweepWarn, report.result())
	log.Info("Warning sweep finished",
		zap.Int("selected", report.Selected),
		zap.Int("warned", report.Notified),
		zap.Int("skipped", report.Skipped),
		zap.Int("notify_failed", report.NotifyFailed))
	return report, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
