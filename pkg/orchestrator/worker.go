package orchestrator

import (
	"context"
	"time"

	"github.com/Combine-Capital/cqo/pkg/errors"
	"github.com/Combine-Capital/cqo/pkg/logging"
	"github.com/Combine-Capital/cqo/pkg/retry"
	"github.com/Combine-Capital/cqo/pkg/service"
	"github.com/Combine-Capital/cqo/pkg/tracing"
	"go.opentelemetry.io/otel/trace"
)

// runService is the per-service worker: optional start delay, launch rate
// limit, launch, then health polling. Every outcome is reported to the
// coordinator over results; the worker never mutates orchestrator state
// itself.
func (o *Orchestrator) runService(ctx context.Context, spec service.Spec, results chan<- transition) {
	id := spec.ID
	log := o.logger.WithService(id)

	sctx, span := tracing.StartSpan(ctx, "orchestrator.service",
		trace.WithAttributes(tracing.ServiceAttributes(id, StateStarting.String())...))
	defer span.End()

	report := func(state State, err error, handle service.Handle) {
		if err != nil {
			tracing.SetSpanError(sctx, err)
		}
		results <- transition{service: id, state: state, err: err, handle: handle}
	}

	if spec.StartDelay > 0 {
		log.Debug().Dur(logging.Duration, spec.StartDelay).Msg("Delaying launch")
		select {
		case <-time.After(spec.StartDelay):
		case <-sctx.Done():
			report(StateCancelled, errors.NewCancelled(id, context.Cause(sctx)), nil)
			return
		}
	}

	if o.limiter != nil {
		if err := o.limiter.Wait(sctx); err != nil {
			report(StateCancelled, errors.NewCancelled(id, err), nil)
			return
		}
	}

	// StartTimeout bounds the whole progression from launch to healthy.
	phaseCtx, cancel := context.WithTimeout(sctx, o.config.StartTimeout)
	defer cancel()

	launchStart := time.Now()
	handle, err := spec.Launch.Launch(phaseCtx)
	o.collectors.RecordLaunch(id, time.Since(launchStart), err)
	if err != nil {
		if sctx.Err() != nil {
			report(StateCancelled, errors.NewCancelled(id, context.Cause(sctx)), handle)
			return
		}
		report(StateFailed, errors.NewLaunch(id, err), handle)
		return
	}

	report(StateStarted, nil, handle)

	// Services without a checker are healthy as soon as they start.
	if spec.Check == nil {
		report(StateHealthy, nil, nil)
		return
	}

	if err := o.pollHealth(phaseCtx, spec, log); err != nil {
		if sctx.Err() != nil {
			report(StateCancelled, errors.NewCancelled(id, context.Cause(sctx)), nil)
			return
		}
		report(StateFailed, err, nil)
		return
	}

	report(StateHealthy, nil, nil)
}

// resolvedPolicy is a spec's health policy merged with run config
// defaults.
type resolvedPolicy struct {
	interval    time.Duration
	timeout     time.Duration
	retries     uint
	startPeriod time.Duration
	multiplier  float64
}

func (o *Orchestrator) resolvePolicy(spec service.Spec) resolvedPolicy {
	p := resolvedPolicy{
		interval:   o.config.HealthCheckInterval,
		timeout:    o.config.HealthCheckTimeout,
		retries:    uint(o.config.MaxRetries),
		multiplier: o.config.BackoffMultiplier,
	}
	if hp := spec.Policy; hp != nil {
		if hp.Interval > 0 {
			p.interval = hp.Interval
		}
		if hp.Timeout > 0 {
			p.timeout = hp.Timeout
		}
		if hp.Retries > 0 {
			p.retries = hp.Retries
		}
		if hp.StartPeriod > 0 {
			p.startPeriod = hp.StartPeriod
		}
		if hp.Multiplier > 0 {
			p.multiplier = hp.Multiplier
		}
	}
	if p.multiplier < 1 {
		p.multiplier = 1
	}
	return p
}

// maxInterval caps exponential spacing at ten base intervals; with
// multiplier 1.0 the spacing never grows.
func (p resolvedPolicy) maxInterval() time.Duration {
	if p.multiplier <= 1 {
		return p.interval
	}
	return 10 * p.interval
}

// graceAttempts bounds the probes that can fit in the start period; the
// window deadline is the real cutoff.
func graceAttempts(p resolvedPolicy) uint {
	return uint(p.startPeriod/p.interval) + 2
}

// pollHealth polls the service's checker until it passes, fails
// permanently, exhausts the retry budget, or ctx expires. The first probe
// runs immediately; failed probes inside the start period do not count
// against the budget. Returns nil on success, otherwise a
// HealthCheckTimeoutError carrying the last attempt error as cause.
func (o *Orchestrator) pollHealth(ctx context.Context, spec service.Spec, log *logging.Logger) error {
	id := spec.ID
	policy := o.resolvePolicy(spec)

	start := time.Now()
	attempts := 0
	var lastErr error

	probe := func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, policy.timeout)
		checkStart := time.Now()
		err := spec.Check.Check(attemptCtx)
		cancel()
		o.collectors.RecordHealthCheck(id, time.Since(checkStart), err)
		tracing.AddSpanEvent(ctx, "healthcheck",
			tracing.HealthCheckAttributes(id, attempts, err == nil)...)

		if err == nil {
			return nil
		}
		lastErr = err

		o.events.Publish(Event{
			Type:    EventServiceUnhealthy,
			Service: id,
			State:   StateStarted,
			Attempt: attempts,
			Err:     err.Error(),
		})
		log.Debug().Int(logging.Attempt, attempts).Err(err).Msg("Health check attempt failed")

		if errors.IsPermanent(err) {
			return err
		}
		return errors.NewHealthCheckTransient(id, attempts, err)
	}

	notify := func(err error, attempt uint, next time.Duration) {
		log.Debug().Dur("next", next).Msg("Waiting before next health check attempt")
	}

	// Inside the start period failures are observed but not counted; the
	// budget only applies once the window has elapsed.
	if policy.startPeriod > 0 {
		graceCtx, cancel := context.WithTimeout(ctx, policy.startPeriod)
		err := retry.Do(graceCtx, retry.Config{
			MaxAttempts:  graceAttempts(policy),
			InitialDelay: policy.interval,
			MaxDelay:     policy.maxInterval(),
			Multiplier:   policy.multiplier,
			Jitter:       -1,
			Policy:       retry.PolicyTransient,
			Notify:       notify,
		}, probe)
		cancel()
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return healthCheckFailure(id, attempts, start, lastErr, ctx.Err())
		case errors.IsPermanent(err):
			return healthCheckFailure(id, attempts, start, lastErr, err)
		}
	}

	err := retry.Do(ctx, retry.Config{
		MaxAttempts:  policy.retries,
		InitialDelay: policy.interval,
		MaxDelay:     policy.maxInterval(),
		Multiplier:   policy.multiplier,
		Jitter:       -1,
		Policy:       retry.PolicyTransient,
		Notify:       notify,
	}, probe)
	if err == nil {
		return nil
	}
	return healthCheckFailure(id, attempts, start, lastErr, err)
}

// healthCheckFailure builds the terminal error for a polling run.
func healthCheckFailure(id string, attempts int, start time.Time, lastErr, fallback error) error {
	cause := lastErr
	if cause == nil {
		cause = fallback
	}
	return errors.NewHealthCheckTimeout(id, attempts, time.Since(start), cause)
}
