package temporal

import (
	"time"

	"github.com/brojonat/splflow/service/flow"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// SPLFlowInput contains the input parameters for SPLFlowWorkflow.
type SPLFlowInput struct {
	RunID string `json:"run_id"`
	// TransferAmount in base units; zero transfers the worker's configured amount.
	TransferAmount uint64 `json:"transfer_amount,omitempty"`
}

// readActivityOptions apply to activities that do not change ledger state.
func readActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
}

// ledgerActivityOptions apply to activities that submit transactions. They run
// once: a retry after an unconfirmed submission could airdrop twice, recreate
// an account or move tokens twice.
func ledgerActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporalsdk.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
}

// SPLFlowWorkflow runs the token flow as a sequence of activities:
// 1. GenerateWallets
// 2. Fund (airdrop and confirm)
// 3. CreateMint
// 4. Issue (signer account + mint supply)
// 5. Transfer (creating the receiver account if missing)
// 6. Verify balances
//
// FinishRun records the outcome whether or not a step failed.
func SPLFlowWorkflow(ctx workflow.Context, input SPLFlowInput) (*flow.Report, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("SPLFlowWorkflow started", "run_id", input.RunID)

	report := &flow.Report{
		RunID:     input.RunID,
		StartedAt: workflow.Now(ctx),
	}

	readCtx := workflow.WithActivityOptions(ctx, readActivityOptions())
	ledgerCtx := workflow.WithActivityOptions(ctx, ledgerActivityOptions())

	runErr := runSteps(readCtx, ledgerCtx, input, report)
	report.CompletedAt = workflow.Now(ctx)

	finish := FinishRunInput{RunID: input.RunID, Report: report}
	if runErr != nil {
		finish.Error = runErr.Error()
	}
	if err := workflow.ExecuteActivity(readCtx, a.FinishRun, finish).Get(ctx, nil); err != nil {
		logger.Warn("failed to record run outcome", "run_id", input.RunID, "error", err)
	}

	if runErr != nil {
		logger.Error("SPLFlowWorkflow failed", "run_id", input.RunID, "error", runErr)
		return report, runErr
	}

	logger.Info("SPLFlowWorkflow completed",
		"run_id", input.RunID,
		"signer_balance", report.SignerBalance.Amount,
		"receiver_balance", report.ReceiverBalance.Amount,
	)
	return report, nil
}

func runSteps(readCtx, ledgerCtx workflow.Context, input SPLFlowInput, report *flow.Report) error {
	var wallets *GenerateWalletsResult
	if err := workflow.ExecuteActivity(readCtx, a.GenerateWallets, GenerateWalletsInput{RunID: input.RunID, TransferAmount: input.TransferAmount}).Get(readCtx, &wallets); err != nil {
		return err
	}
	report.Signer = wallets.Signer
	report.Receiver = wallets.Receiver
	keys := KeysInput{RunID: input.RunID, Keys: wallets.Keys}

	var fund *flow.FundResult
	if err := workflow.ExecuteActivity(ledgerCtx, a.Fund, FundInput{RunID: input.RunID, Signer: wallets.Signer}).Get(ledgerCtx, &fund); err != nil {
		return err
	}
	report.FundSignature = fund.Signature

	var mint *flow.MintResult
	if err := workflow.ExecuteActivity(ledgerCtx, a.CreateMint, keys).Get(ledgerCtx, &mint); err != nil {
		return err
	}
	report.MintSignature = mint.Signature
	report.Mint = mint.Mint

	var issue *flow.IssueResult
	if err := workflow.ExecuteActivity(ledgerCtx, a.Issue, keys).Get(ledgerCtx, &issue); err != nil {
		return err
	}
	report.IssueSignature = issue.Signature
	report.SignerATA = issue.SignerATA
	report.Issued = issue.Amount

	var transfer *flow.TransferResult
	transferInput := TransferInput{RunID: input.RunID, Keys: wallets.Keys, Amount: input.TransferAmount}
	if err := workflow.ExecuteActivity(ledgerCtx, a.Transfer, transferInput).Get(ledgerCtx, &transfer); err != nil {
		return err
	}
	report.TransferSignature = transfer.Signature
	report.ReceiverATA = transfer.ReceiverATA
	report.ReceiverATACreated = transfer.CreatedReceiverATA
	report.Transferred = transfer.Amount

	var verify *flow.VerifyResult
	verifyInput := VerifyInput{
		RunID:    input.RunID,
		Signer:   wallets.Signer,
		Receiver: wallets.Receiver,
		Mint:     wallets.Mint,
	}
	if err := workflow.ExecuteActivity(readCtx, a.Verify, verifyInput).Get(readCtx, &verify); err != nil {
		return err
	}
	report.SignerBalance = verify.Signer
	report.ReceiverBalance = verify.Receiver
	return nil
}

// WorkflowID returns the workflow ID used for a run.
func WorkflowID(runID string) string {
	return "splflow-" + runID
}
