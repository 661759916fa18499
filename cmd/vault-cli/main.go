package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"devquestvault/config"
)

const (
	configEnv     = "VAULT_CLI_CONFIG"
	passphraseEnv = "VAULT_KEYSTORE_PASSPHRASE"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type commandFunc func(env *cliEnv, args []string, stdout, stderr io.Writer) int

var commands = map[string]commandFunc{
	"keygen":       runKeygen,
	"address":      runAddress,
	"token":        runToken,
	"init":         runInit,
	"deposit":      runDeposit,
	"withdraw":     runWithdraw,
	"add-payee":    runAddPayee,
	"remove-payee": runRemovePayee,
	"set-limit":    runSetLimit,
	"schedule":     runSchedule,
	"cancel":       runCancel,
	"claim":        runClaim,
	"close":        runClose,
	"show":         runShow,
	"balance":      runBalance,
	"allowance":    runAllowance,
	"due":          runDue,
	"admin":        runAdmin,
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("vault-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath(), "path to the CLI configuration")
	fs.Usage = func() { fmt.Fprintln(stderr, usage()) }
	if err := fs.Parse(args); err != nil {
		return 1
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n", rest[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: load config: %v\n", err)
		return 1
	}
	return cmd(newCLIEnv(cfg), rest[1:], stdout, stderr)
}

func defaultConfigPath() string {
	if path := strings.TrimSpace(os.Getenv(configEnv)); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "vault-cli.toml"
	}
	return filepath.Join(home, ".vault-cli", "config.toml")
}

func usage() string {
	return strings.TrimSpace(`Usage:
  vault-cli [--config path] <command> [flags]

Keys:
  keygen        Generate a keystore for a new identity
  address       Print the identity held in the keystore
  token         Mint a bearer token for the keystore identity

Vault operations (caller is the keystore identity):
  init          Initialize the vault administered by the caller
  deposit       Deposit into a vault's custody
  withdraw      Withdraw from a vault's custody
  add-payee     Authorize a payee
  remove-payee  Revoke a payee
  set-limit     Configure a payee's epoch spending limit
  schedule      Schedule a recurring payout
  cancel        Cancel the first active payout schedule
  claim         Claim the due payout
  close         Close the vault and sweep custody to the admin

Queries:
  show          Show a vault
  balance       Show a vault custody or account balance
  allowance     Show a payee's remaining allowance
  due           Show the payout the next claim would select

Operator:
  admin         pause | resume | status | credit | verify | export
`)
}
