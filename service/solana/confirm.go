package solana

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ConfirmPolicy bounds the wait for a signature to reach the target commitment.
//
// A zero Timeout means no deadline and a zero MaxAttempts means no attempt
// cap; with both zero the wait only ends on confirmation, a ledger error or
// context cancellation.
type ConfirmPolicy struct {
	Timeout         time.Duration
	MaxAttempts     uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConfirmPolicy waits up to a minute, backing off from 250ms to 2s.
func DefaultConfirmPolicy() ConfirmPolicy {
	return ConfirmPolicy{
		Timeout:         60 * time.Second,
		MaxAttempts:     0,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// errNotConfirmed marks a status that has not yet reached the target commitment.
var errNotConfirmed = errors.New("signature not yet confirmed")

func (p ConfirmPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	exp.MaxElapsedTime = 0 // the deadline lives on ctx
	exp.Reset()

	var b backoff.BackOff = exp
	if p.MaxAttempts > 0 {
		// WithMaxRetries counts retries after the first attempt.
		b = backoff.WithMaxRetries(b, p.MaxAttempts-1)
	}
	return backoff.WithContext(b, ctx)
}

// WaitForConfirmation polls the signature status until it reaches the
// client's commitment. A status query error or an on-ledger execution error
// ends the wait immediately.
func (c *Client) WaitForConfirmation(ctx context.Context, sig solanago.Signature) error {
	policy := c.opts.Confirm
	waitCtx := ctx
	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	start := time.Now()
	attempts := 0

	operation := func() error {
		if err := waitCtx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempts++

		callStart := time.Now()
		out, err := c.rpc.GetSignatureStatuses(waitCtx, true, sig)
		c.recordRPC("GetSignatureStatuses", callStart, err)
		if err != nil {
			if ctxErr := waitCtx.Err(); ctxErr != nil {
				return backoff.Permanent(ctxErr)
			}
			return backoff.Permanent(fmt.Errorf("get signature status: %w", err))
		}

		if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
			return errNotConfirmed
		}

		status := out.Value[0]
		if status.Err != nil {
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrTransactionFailed, status.Err))
		}
		if !reachesCommitment(status.ConfirmationStatus, c.opts.Commitment) {
			return errNotConfirmed
		}
		return nil
	}

	notify := func(err error, next time.Duration) {
		c.logger.DebugContext(ctx, "signature not confirmed yet",
			"signature", sig.String(),
			"attempt", attempts,
			"next_poll_in", next.String(),
		)
	}

	err := backoff.RetryNotify(operation, policy.backOff(waitCtx), notify)

	outcome := "confirmed"
	switch {
	case err == nil:
	case errors.Is(err, ErrTransactionFailed):
		outcome = "failed"
	case errors.Is(err, errNotConfirmed):
		outcome = "timeout"
		err = fmt.Errorf("%w: %d status queries without confirmation", ErrConfirmationTimeout, attempts)
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		// Our own deadline fired, not the caller's.
		outcome = "timeout"
		err = fmt.Errorf("%w: gave up after %s", ErrConfirmationTimeout, policy.Timeout)
	case ctx.Err() != nil:
		outcome = "cancelled"
	default:
		outcome = "error"
	}

	if c.metrics != nil {
		c.metrics.RecordConfirmationPoll(outcome, attempts, time.Since(start).Seconds())
	}

	if err != nil {
		c.logger.WarnContext(ctx, "confirmation wait ended without confirmation",
			"signature", sig.String(),
			"outcome", outcome,
			"attempts", attempts,
			"error", err,
		)
		return err
	}

	c.logger.DebugContext(ctx, "signature confirmed",
		"signature", sig.String(),
		"attempts", attempts,
		"commitment", string(c.opts.Commitment),
	)
	return nil
}

// reachesCommitment reports whether a status is at least as final as the target.
func reachesCommitment(status rpc.ConfirmationStatusType, target rpc.CommitmentType) bool {
	rank := map[rpc.ConfirmationStatusType]int{
		rpc.ConfirmationStatusProcessed: 1,
		rpc.ConfirmationStatusConfirmed: 2,
		rpc.ConfirmationStatusFinalized: 3,
	}
	want := 2
	switch target {
	case rpc.CommitmentProcessed:
		want = 1
	case rpc.CommitmentFinalized:
		want = 3
	}
	return rank[status] >= want
}
