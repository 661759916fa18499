package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const operatorScopeDefault = "vault:operator"

func runAdmin(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, adminUsage())
		return 1
	}
	fs := flag.NewFlagSet("admin "+args[0], flag.ContinueOnError)
	scope := fs.String("scope", operatorScopeDefault, "operator scope required by vaultd")
	var method, path string
	var body interface{}
	switch args[0] {
	case "pause":
		method, path = http.MethodPost, "/admin/pause"
	case "resume":
		method, path = http.MethodPost, "/admin/resume"
	case "status":
		method, path = http.MethodGet, "/admin/status"
	case "verify":
		method, path = http.MethodGet, "/admin/audit/verify"
	case "export":
		method, path = http.MethodPost, "/admin/audit/export"
	case "credit":
		account := fs.String("account", "", "account identity to credit")
		amount := fs.Uint64("amount", 0, "amount to mint")
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		acct, ok := identityFlag(stderr, "account", *account, true)
		if !ok {
			return 1
		}
		if *amount == 0 {
			fmt.Fprintln(stderr, "Error: --amount is required")
			return 1
		}
		return adminCall(env, stdout, stderr, *scope, http.MethodPost, "/admin/credit",
			map[string]interface{}{"account": acct, "amount": *amount})
	default:
		fmt.Fprintf(stderr, "Unknown admin subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, adminUsage())
		return 1
	}
	if !parseFlags(fs, args[1:], stderr) {
		return 1
	}
	return adminCall(env, stdout, stderr, *scope, method, path, body)
}

func adminCall(env *cliEnv, stdout, stderr io.Writer, scope, method, path string, body interface{}) int {
	client, err := env.client(strings.Fields(scope)...)
	if err != nil {
		return fail(stderr, err)
	}
	data, err := client.call(method, path, body)
	if err != nil {
		return fail(stderr, err)
	}
	writeResult(stdout, data)
	return 0
}

func adminUsage() string {
	return strings.TrimSpace(`Usage:
  vault-cli admin <command> [flags]

Commands:
  pause    Reject every vault mutation until resumed
  resume   Lift the pause
  status   Show pause and stream status
  verify   Verify the audit hash chain
  export   Export the audit trail to parquet on the server
  credit   Mint balance into an account (development ledgers)
`)
}
