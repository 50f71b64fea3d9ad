package main

import (
	"context"
	"fmt"
	"io"

	"github.com/brojonat/splflow/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
)

func airdropCommand() *cli.Command {
	return &cli.Command{
		Name:      "airdrop",
		Usage:     "Airdrop SOL to an address and wait for confirmation",
		ArgsUsage: "<address>",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:  "lamports",
				Usage: "Lamports to request",
				Value: solana.DefaultAirdropLamports,
			},
			&cli.BoolFlag{
				Name:  "no-confirm",
				Usage: "Return the signature without waiting for confirmation",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: address")
			}
			recipient, err := parsePublicKey("address", c.Args().First())
			if err != nil {
				return err
			}

			ledger, err := getLedger(c, getLogger(c))
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			lamports := c.Uint64("lamports")
			var sig solanago.Signature
			if c.Bool("no-confirm") {
				sig, err = ledger.RequestAirdrop(ctx, recipient, lamports)
			} else {
				sig, err = ledger.AirdropAndConfirm(ctx, recipient, lamports)
			}
			if err != nil {
				return err
			}

			result := map[string]interface{}{
				"signature": sig.String(),
				"recipient": recipient.String(),
				"lamports":  lamports,
				"confirmed": !c.Bool("no-confirm"),
			}
			return output(c, result, func(w io.Writer) {
				if c.Bool("no-confirm") {
					fmt.Fprintf(w, "Airdrop requested: %s\n", sig)
					return
				}
				fmt.Fprintf(w, "✓ Airdrop of %d lamports to %s confirmed\n", lamports, recipient)
				fmt.Fprintf(w, "  Signature: %s\n", sig)
			})
		},
	}
}

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Show the balance of a token account",
		ArgsUsage: "<token-account>",
		Description: `Pass a token account address, or an owner with --mint to look up the
owner's associated token account.

Example:
  splflow balance 7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU
  splflow balance --mint <mint> <owner>`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mint",
				Usage: "Treat the argument as an owner and derive its associated token account for this mint",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: token account")
			}
			account, err := parsePublicKey("account", c.Args().First())
			if err != nil {
				return err
			}
			if mintArg := c.String("mint"); mintArg != "" {
				mint, err := parsePublicKey("mint", mintArg)
				if err != nil {
					return err
				}
				if account, err = solana.AssociatedTokenAddress(account, mint); err != nil {
					return err
				}
			}

			ledger, err := getLedger(c, getLogger(c))
			if err != nil {
				return err
			}

			balance, err := ledger.TokenBalance(context.Background(), account)
			if err != nil {
				return err
			}
			return output(c, balance, func(w io.Writer) {
				fmt.Fprintf(w, "%s: %s (%d base units, %d decimals)\n",
					balance.Account, balance.UIAmount, balance.Amount, balance.Decimals)
			})
		},
	}
}

func solBalanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "sol-balance",
		Usage:     "Show the SOL balance of an address",
		ArgsUsage: "<address>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: address")
			}
			account, err := parsePublicKey("address", c.Args().First())
			if err != nil {
				return err
			}

			ledger, err := getLedger(c, getLogger(c))
			if err != nil {
				return err
			}

			lamports, err := ledger.SOLBalance(context.Background(), account)
			if err != nil {
				return err
			}

			result := map[string]interface{}{
				"address":  account.String(),
				"lamports": lamports,
			}
			return output(c, result, func(w io.Writer) {
				fmt.Fprintf(w, "%s: %s SOL (%d lamports)\n", account, formatSOL(lamports), lamports)
			})
		},
	}
}

func ataCommand() *cli.Command {
	return &cli.Command{
		Name:      "ata",
		Usage:     "Derive the associated token account of an owner for a mint",
		ArgsUsage: "<owner> <mint>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "check",
				Usage: "Also query the ledger for whether the account exists",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("requires exactly two arguments: owner and mint")
			}
			owner, err := parsePublicKey("owner", c.Args().Get(0))
			if err != nil {
				return err
			}
			mint, err := parsePublicKey("mint", c.Args().Get(1))
			if err != nil {
				return err
			}

			ata, err := solana.AssociatedTokenAddress(owner, mint)
			if err != nil {
				return err
			}

			result := map[string]interface{}{
				"owner":   owner.String(),
				"mint":    mint.String(),
				"account": ata.String(),
			}

			if c.Bool("check") {
				ledger, err := getLedger(c, getLogger(c))
				if err != nil {
					return err
				}
				state, err := ledger.CheckTokenAccount(context.Background(), ata)
				if err != nil {
					return err
				}
				result["state"] = state.String()
			}

			return output(c, result, func(w io.Writer) {
				fmt.Fprintln(w, ata.String())
				if state, ok := result["state"]; ok {
					fmt.Fprintf(w, "  State: %s\n", state)
				}
			})
		},
	}
}

func mintCommand() *cli.Command {
	return &cli.Command{
		Name:      "mint",
		Usage:     "Show a token mint's decimals, supply and authorities",
		ArgsUsage: "<mint>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: mint")
			}
			address, err := parsePublicKey("mint", c.Args().First())
			if err != nil {
				return err
			}

			ledger, err := getLedger(c, getLogger(c))
			if err != nil {
				return err
			}

			info, err := ledger.GetMint(context.Background(), address)
			if err != nil {
				return err
			}
			return output(c, info, func(w io.Writer) {
				fmt.Fprintf(w, "Mint:             %s\n", info.Address)
				fmt.Fprintf(w, "Decimals:         %d\n", info.Decimals)
				fmt.Fprintf(w, "Supply:           %d\n", info.Supply)
				fmt.Fprintf(w, "Mint authority:   %s\n", formatOptionalAddress(info.MintAuthority))
				fmt.Fprintf(w, "Freeze authority: %s\n", formatOptionalAddress(info.FreezeAuthority))
				fmt.Fprintf(w, "Initialized:      %t\n", info.IsInitialized)
			})
		},
	}
}

// formatSOL renders lamports as SOL with nine decimals.
func formatSOL(lamports uint64) string {
	return fmt.Sprintf("%d.%09d", lamports/solanago.LAMPORTS_PER_SOL, lamports%solanago.LAMPORTS_PER_SOL)
}

func formatOptionalAddress(addr *string) string {
	if addr != nil && *addr != "" {
		return *addr
	}
	return "(none)"
}
