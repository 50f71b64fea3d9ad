package flow

import (
	"context"
	"time"

	"github.com/brojonat/splflow/service/db"
	"github.com/brojonat/splflow/service/metrics"
	natspkg "github.com/brojonat/splflow/service/nats"
	solanago "github.com/gagliardetto/solana-go"
)

// stepOutcome is what a step reports to the store and publisher.
type stepOutcome struct {
	signature string
	account   string
	amount    uint64
	detail    string
}

// track runs one step, then records its duration and outcome. Store and
// publisher failures are logged and never fail the step.
func (r *Runner) track(ctx context.Context, runID, step string, fn func() (stepOutcome, error)) error {
	start := time.Now()
	out, err := fn()
	duration := time.Since(start)

	status := natspkg.StatusSucceeded
	if err != nil {
		status = natspkg.StatusFailed
		out.detail = err.Error()
	}

	if r.metrics != nil {
		r.metrics.RecordFlowStep(step, metrics.StatusFromError(err), duration.Seconds())
	}

	if err != nil {
		r.logger.ErrorContext(ctx, "flow step failed",
			"run_id", runID,
			"step", step,
			"duration", duration.String(),
			"error", err,
		)
	} else {
		r.logger.InfoContext(ctx, "flow step succeeded",
			"run_id", runID,
			"step", step,
			"signature", out.signature,
			"account", out.account,
			"duration", duration.String(),
		)
	}

	r.publishStep(ctx, runID, step, status, out)
	r.recordStep(ctx, runID, step, status, out, duration)
	return err
}

func (r *Runner) publishStep(ctx context.Context, runID, step, status string, out stepOutcome) {
	if r.publisher == nil {
		return
	}
	event := &natspkg.StepEvent{
		RunID:      runID,
		Step:       step,
		Status:     status,
		Signature:  out.signature,
		Account:    out.account,
		Amount:     out.amount,
		Detail:     out.detail,
		OccurredAt: time.Now().UTC(),
	}
	if err := r.publisher.PublishStep(ctx, event); err != nil {
		r.logger.WarnContext(ctx, "failed to publish step event",
			"run_id", runID,
			"step", step,
			"error", err,
		)
	}
}

func (r *Runner) recordStep(ctx context.Context, runID, step, status string, out stepOutcome, duration time.Duration) {
	if r.store == nil {
		return
	}
	params := db.RecordStepParams{
		RunID:     runID,
		Step:      step,
		Status:    status,
		Signature: optional(out.signature),
		Account:   optional(out.account),
		Detail:    optional(out.detail),
		Duration:  duration,
	}
	if out.amount > 0 {
		params.Amount = &out.amount
	}
	if _, err := r.store.RecordStep(ctx, params); err != nil {
		r.logger.WarnContext(ctx, "failed to record step",
			"run_id", runID,
			"step", step,
			"error", err,
		)
	}
}

// Begin records the start of a run.
func (r *Runner) Begin(ctx context.Context, runID string, w Wallets) {
	r.BeginKeys(ctx, runID, w.Signer.PublicKey(), w.Receiver.PublicKey(), w.Mint.PublicKey())
}

// BeginKeys records the start of a run from its public keys.
func (r *Runner) BeginKeys(ctx context.Context, runID string, signer, receiver, mint solanago.PublicKey) {
	if r.store == nil {
		return
	}
	_, err := r.store.CreateRun(ctx, db.CreateRunParams{
		ID:       runID,
		RPCURL:   r.rpcURL,
		Signer:   signer.String(),
		Receiver: receiver.String(),
		Mint:     mint.String(),
		Decimals: r.cfg.Decimals,
		Supply:   r.cfg.Supply,
	})
	if err != nil {
		r.logger.WarnContext(ctx, "failed to record run start", "run_id", runID, "error", err)
	}
}

// Finish records the final state of a run. runErr is the error that ended
// the run, or nil.
func (r *Runner) Finish(ctx context.Context, runID string, report *Report, runErr error) {
	status := db.RunStatusSucceeded
	if runErr != nil {
		status = db.RunStatusFailed
	}
	if r.metrics != nil {
		r.metrics.RecordFlowRun(status)
	}
	if r.store == nil {
		return
	}

	params := db.CompleteRunParams{
		ID:     runID,
		Status: status,
	}
	if runErr != nil {
		msg := runErr.Error()
		params.Error = &msg
	}
	if report != nil {
		params.SignerATA = optional(report.SignerATA)
		params.ReceiverATA = optional(report.ReceiverATA)
		if report.TransferSignature != "" {
			created := report.ReceiverATACreated
			params.ReceiverATACreated = &created
		}
		if report.SignerBalance != nil {
			params.SignerBalance = &report.SignerBalance.Amount
		}
		if report.ReceiverBalance != nil {
			params.ReceiverBalance = &report.ReceiverBalance.Amount
		}
	}

	if _, err := r.store.CompleteRun(ctx, params); err != nil {
		r.logger.WarnContext(ctx, "failed to record run completion", "run_id", runID, "error", err)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
