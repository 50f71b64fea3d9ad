package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/splflow/service/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Store provides run history operations backed by Postgres.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// If m is nil, no metrics will be recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{
		pool:    pool,
		metrics: m,
	}
}

// Run is one execution of the token flow.
type Run struct {
	ID                 string     `json:"id"`
	Status             string     `json:"status"`
	RPCURL             string     `json:"rpc_url"`
	Signer             string     `json:"signer"`
	Receiver           string     `json:"receiver"`
	Mint               string     `json:"mint"`
	Decimals           uint8      `json:"decimals"`
	Supply             uint64     `json:"supply"`
	SignerATA          *string    `json:"signer_ata,omitempty"`
	ReceiverATA        *string    `json:"receiver_ata,omitempty"`
	ReceiverATACreated *bool      `json:"receiver_ata_created,omitempty"`
	SignerBalance      *uint64    `json:"signer_balance,omitempty"`
	ReceiverBalance    *uint64    `json:"receiver_balance,omitempty"`
	Error              *string    `json:"error,omitempty"`
	StartedAt          time.Time  `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// Step is one recorded flow step of a run.
type Step struct {
	ID         int64         `json:"id"`
	RunID      string        `json:"run_id"`
	Step       string        `json:"step"`
	Status     string        `json:"status"`
	Signature  *string       `json:"signature,omitempty"`
	Account    *string       `json:"account,omitempty"`
	Amount     *uint64       `json:"amount,omitempty"`
	Detail     *string       `json:"detail,omitempty"`
	Duration   time.Duration `json:"duration"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// CreateRunParams contains the parameters for starting a run record.
type CreateRunParams struct {
	ID       string
	RPCURL   string
	Signer   string
	Receiver string
	Mint     string
	Decimals uint8
	Supply   uint64
}

// RecordStepParams contains the parameters for recording a step.
type RecordStepParams struct {
	RunID     string
	Step      string
	Status    string
	Signature *string
	Account   *string
	Amount    *uint64
	Detail    *string
	Duration  time.Duration
}

// CompleteRunParams contains the final state of a run.
type CompleteRunParams struct {
	ID                 string
	Status             string
	SignerATA          *string
	ReceiverATA        *string
	ReceiverATACreated *bool
	SignerBalance      *uint64
	ReceiverBalance    *uint64
	Error              *string
}

const runColumns = `id, status, rpc_url, signer, receiver, mint, decimals, supply,
	signer_ata, receiver_ata, receiver_ata_created, signer_balance, receiver_balance,
	error, started_at, completed_at`

const stepColumns = `id, run_id, step, status, signature, account, amount, detail,
	duration_ms, occurred_at`

func (s *Store) record(operation, table string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordDBQuery(operation, table, time.Since(start).Seconds(), err)
}

// CreateRun inserts a run in the running state.
func (s *Store) CreateRun(ctx context.Context, params CreateRunParams) (*Run, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO splflow_runs (id, status, rpc_url, signer, receiver, mint, decimals, supply)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+runColumns,
		params.ID,
		RunStatusRunning,
		params.RPCURL,
		params.Signer,
		params.Receiver,
		params.Mint,
		int16(params.Decimals),
		int64(params.Supply),
	)
	run, err := scanRun(row)
	s.record("create_run", "splflow_runs", start, err)
	if err != nil {
		return nil, fmt.Errorf("insert run %s: %w", params.ID, err)
	}
	return run, nil
}

// RecordStep appends a step record to a run.
func (s *Store) RecordStep(ctx context.Context, params RecordStepParams) (*Step, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO splflow_steps (run_id, step, status, signature, account, amount, detail, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+stepColumns,
		params.RunID,
		params.Step,
		params.Status,
		pgtextFromStringPtr(params.Signature),
		pgtextFromStringPtr(params.Account),
		pgint8FromUint64Ptr(params.Amount),
		pgtextFromStringPtr(params.Detail),
		params.Duration.Milliseconds(),
	)
	step, err := scanStep(row)
	s.record("record_step", "splflow_steps", start, err)
	if err != nil {
		return nil, fmt.Errorf("insert step %s for run %s: %w", params.Step, params.RunID, err)
	}
	return step, nil
}

// CompleteRun stores the final status and results of a run.
func (s *Store) CompleteRun(ctx context.Context, params CompleteRunParams) (*Run, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, `
		UPDATE splflow_runs SET
			status = $2,
			signer_ata = $3,
			receiver_ata = $4,
			receiver_ata_created = $5,
			signer_balance = $6,
			receiver_balance = $7,
			error = $8,
			completed_at = now()
		WHERE id = $1
		RETURNING `+runColumns,
		params.ID,
		params.Status,
		pgtextFromStringPtr(params.SignerATA),
		pgtextFromStringPtr(params.ReceiverATA),
		pgboolFromPtr(params.ReceiverATACreated),
		pgint8FromUint64Ptr(params.SignerBalance),
		pgint8FromUint64Ptr(params.ReceiverBalance),
		pgtextFromStringPtr(params.Error),
	)
	run, err := scanRun(row)
	s.record("complete_run", "splflow_runs", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("complete run %s: %w", params.ID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("complete run %s: %w", params.ID, err)
	}
	return run, nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM splflow_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	s.record("get_run", "splflow_runs", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns runs ordered by most recent first.
func (s *Store) ListRuns(ctx context.Context, limit, offset int32) ([]*Run, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, `
		SELECT `+runColumns+` FROM splflow_runs
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		s.record("list_runs", "splflow_runs", start, err)
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			s.record("list_runs", "splflow_runs", start, err)
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	err = rows.Err()
	s.record("list_runs", "splflow_runs", start, err)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ListSteps returns the steps of a run in the order they were recorded.
func (s *Store) ListSteps(ctx context.Context, runID string) ([]*Step, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, `
		SELECT `+stepColumns+` FROM splflow_steps
		WHERE run_id = $1
		ORDER BY id`, runID)
	if err != nil {
		s.record("list_steps", "splflow_steps", start, err)
		return nil, fmt.Errorf("list steps for run %s: %w", runID, err)
	}
	defer rows.Close()

	steps := make([]*Step, 0)
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			s.record("list_steps", "splflow_steps", start, err)
			return nil, fmt.Errorf("scan step: %w", err)
		}
		steps = append(steps, step)
	}
	err = rows.Err()
	s.record("list_steps", "splflow_steps", start, err)
	if err != nil {
		return nil, fmt.Errorf("list steps for run %s: %w", runID, err)
	}
	return steps, nil
}

func scanRun(row pgx.Row) (*Run, error) {
	var (
		r               Run
		decimals        int16
		supply          int64
		signerATA       pgtype.Text
		receiverATA     pgtype.Text
		ataCreated      pgtype.Bool
		signerBalance   pgtype.Int8
		receiverBalance pgtype.Int8
		errText         pgtype.Text
		startedAt       pgtype.Timestamptz
		completedAt     pgtype.Timestamptz
	)
	err := row.Scan(
		&r.ID, &r.Status, &r.RPCURL, &r.Signer, &r.Receiver, &r.Mint, &decimals, &supply,
		&signerATA, &receiverATA, &ataCreated, &signerBalance, &receiverBalance,
		&errText, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Decimals = uint8(decimals)
	r.Supply = uint64(supply)
	r.SignerATA = stringPtrFromPgtext(signerATA)
	r.ReceiverATA = stringPtrFromPgtext(receiverATA)
	r.ReceiverATACreated = boolPtrFromPgbool(ataCreated)
	r.SignerBalance = uint64PtrFromPgint8(signerBalance)
	r.ReceiverBalance = uint64PtrFromPgint8(receiverBalance)
	r.Error = stringPtrFromPgtext(errText)
	r.StartedAt = startedAt.Time
	r.CompletedAt = timePtrFromPgTimestamptz(completedAt)
	return &r, nil
}

func scanStep(row pgx.Row) (*Step, error) {
	var (
		st         Step
		signature  pgtype.Text
		account    pgtype.Text
		amount     pgtype.Int8
		detail     pgtype.Text
		durationMS int64
		occurredAt pgtype.Timestamptz
	)
	err := row.Scan(
		&st.ID, &st.RunID, &st.Step, &st.Status, &signature, &account, &amount, &detail,
		&durationMS, &occurredAt,
	)
	if err != nil {
		return nil, err
	}
	st.Signature = stringPtrFromPgtext(signature)
	st.Account = stringPtrFromPgtext(account)
	st.Amount = uint64PtrFromPgint8(amount)
	st.Detail = stringPtrFromPgtext(detail)
	st.Duration = time.Duration(durationMS) * time.Millisecond
	st.OccurredAt = occurredAt.Time
	return &st, nil
}

func pgtextFromStringPtr(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func stringPtrFromPgtext(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func pgint8FromUint64Ptr(v *uint64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: int64(*v), Valid: true}
}

func uint64PtrFromPgint8(i pgtype.Int8) *uint64 {
	if !i.Valid {
		return nil
	}
	v := uint64(i.Int64)
	return &v
}

func pgboolFromPtr(b *bool) pgtype.Bool {
	if b == nil {
		return pgtype.Bool{Valid: false}
	}
	return pgtype.Bool{Bool: *b, Valid: true}
}

func boolPtrFromPgbool(b pgtype.Bool) *bool {
	if !b.Valid {
		return nil
	}
	return &b.Bool
}

func timePtrFromPgTimestamptz(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
