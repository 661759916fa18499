package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"

	"devquestvault/crypto"
)

// identityFlag validates a bech32 identity flag value.
func identityFlag(stderr io.Writer, name, value string, required bool) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		if required {
			fmt.Fprintf(stderr, "Error: --%s is required\n", name)
		}
		return "", !required
	}
	id, err := crypto.ParseIdentity(trimmed)
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid --%s: %v\n", name, err)
		return "", false
	}
	return crypto.FromIdentity(id).String(), true
}

// vaultPath resolves --vault, defaulting to the keystore identity.
func vaultPath(env *cliEnv, stderr io.Writer, value string) (string, bool) {
	vault, ok := identityFlag(stderr, "vault", value, false)
	if !ok {
		return "", false
	}
	if vault == "" {
		id, err := env.identity()
		if err != nil {
			fail(stderr, err)
			return "", false
		}
		vault = crypto.FromIdentity(id).String()
	}
	return "/v1/vaults/" + vault, true
}

// mutate sends an authenticated request and prints the response.
func mutate(env *cliEnv, stdout, stderr io.Writer, method, path string, body interface{}) int {
	client, err := env.client()
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

func query(env *cliEnv, stdout, stderr io.Writer, path string) int {
	data, err := env.anonymousClient().call(http.MethodGet, path, nil)
	if err != nil {
		return fail(stderr, err)
	}
	writeResult(stdout, data)
	return 0
}

func runInit(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	return mutate(env, stdout, stderr, http.MethodPost, "/v1/vaults", nil)
}

func runAmountCommand(name, suffix string, env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	vault := fs.String("vault", "", "vault admin identity (defaults to the caller)")
	amount := fs.Uint64("amount", 0, "amount in base units")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if *amount == 0 {
		fmt.Fprintln(stderr, "Error: --amount is required")
		return 1
	}
	path, ok := vaultPath(env, stderr, *vault)
	if !ok {
		return 1
	}
	return mutate(env, stdout, stderr, http.MethodPost, path+suffix, map[string]uint64{"amount": *amount})
}

func runDeposit(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	return runAmountCommand("deposit", "/deposit", env, args, stdout, stderr)
}

func runWithdraw(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	return runAmountCommand("withdraw", "/withdraw", env, args, stdout, stderr)
}

func runAddPayee(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("add-payee", flag.ContinueOnError)
	vault := fs.String("vault", "", "vault admin identity (defaults to the caller)")
	payee := fs.String("payee", "", "payee identity")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	p, ok := identityFlag(stderr, "payee", *payee, true)
	if !ok {
		return 1
	}
	path, ok := vaultPath(env, stderr, *vault)
	if !ok {
		return 1
	}
	return mutate(env, stdout, stderr, http.MethodPost, path+"/payees", map[string]string{"payee": p})
}

func runRemovePayee(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("remove-payee", flag.ContinueOnError)
	vault := fs.String("vault", "", "vault admin identity (defaults to the caller)")
	payee := fs.String("payee", "", "payee identity")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	p, ok := identityFlag(stderr, "payee", *payee, true)
	if !ok {
		return 1
	}
	path, ok := vaultPath(env, stderr, *vault)
	if !ok {
		return 1
	}
	return mutate(env, stdout, stderr, http.MethodDelete, path+"/payees/"+p, nil)
}

func runSetLimit(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("set-limit", flag.ContinueOnError)
	vault := fs.String("vault", "", "vault admin identity (defaults to the caller)")
	payee := fs.String("payee", "", "payee identity")
	limit := fs.Uint64("limit", 0, "maximum spend per epoch")
	duration := fs.Int64("duration", 0, "epoch length in seconds")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	p, ok := identityFlag(stderr, "payee", *payee, true)
	if !ok {
		return 1
	}
	path, ok := vaultPath(env, stderr, *vault)
	if !ok {
		return 1
	}
	body := map[string]interface{}{"limit": *limit, "duration": *duration}
	return mutate(env, stdout, stderr, http.MethodPut, path+"/limits/"+p, body)
}

func runSchedule(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	vault := fs.String("vault", "", "vault admin identity (defaults to the caller)")
	payee := fs.String("payee", "", "payee identity")
	amount := fs.Uint64("amount", 0, "payout amount")
	start := fs.Int64("start", 0, "first payout time (unix seconds)")
	interval := fs.Int64("interval", 0, "seconds between payouts")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	p, ok := identityFlag(stderr, "payee", *payee, true)
	if !ok {
		return 1
	}
	path, ok := vaultPath(env, stderr, *vault)
	if !ok {
		return 1
	}
	body := map[string]interface{}{"payee": p, "amount": *amount, "start_time": *start, "interval": *interval}
	return mutate(env, stdout, stderr, http.MethodPost, path+"/schedules", body)
}

func runCancel(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cancel", flag.ContinueOnError)
	vault := fs.String("vault", "", "vault admin identity (defaults to the caller)")
	payee := fs.String("payee", "", "payee identity")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	p, ok := identityFlag(stderr, "payee", *payee, true)
	if !ok {
		return 1
	}
	path, ok := vaultPath(env, stderr, *vault)
	if !ok {
		return 1
	}
	return mutate(env, stdout, stderr, http.MethodPost, path+"/schedules/cancel", map[string]string{"payee": p})
}

func runClaim(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("claim", flag.ContinueOnError)
	vault := fs.String("vault", "", "vault admin identity")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	v, ok := identityFlag(stderr, "vault", *vault, true)
	if !ok {
		return 1
	}
	return mutate(env, stdout, stderr, http.MethodPost, "/v1/vaults/"+v+"/claim", nil)
}

func runClose(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("close", flag.ContinueOnError)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	path, ok := vaultPath(env, stderr, "")
	if !ok {
		return 1
	}
	return mutate(env, stdout, stderr, http.MethodDelete, path, nil)
}

func runShow(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	vault := fs.String("vault", "", "vault admin identity (defaults to the caller)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	path, ok := vaultPath(env, stderr, *vault)
	if !ok {
		return 1
	}
	return query(env, stdout, stderr, path)
}

func runBalance(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("balance", flag.ContinueOnError)
	vault := fs.String("vault", "", "vault admin identity")
	account := fs.String("account", "", "account identity")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if strings.TrimSpace(*vault) != "" && strings.TrimSpace(*account) != "" {
		fmt.Fprintln(stderr, "Error: pass either --vault or --account")
		return 1
	}
	if acct, ok := identityFlag(stderr, "account", *account, false); !ok {
		return 1
	} else if acct != "" {
		return query(env, stdout, stderr, "/v1/accounts/"+acct+"/balance")
	}
	path, ok := vaultPath(env, stderr, *vault)
	if !ok {
		return 1
	}
	return query(env, stdout, stderr, path+"/balance")
}

func runAllowance(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("allowance", flag.ContinueOnError)
	vault := fs.String("vault", "", "vault admin identity")
	payee := fs.String("payee", "", "payee identity (defaults to the caller)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	v, ok := identityFlag(stderr, "vault", *vault, true)
	if !ok {
		return 1
	}
	p, ok := identityFlag(stderr, "payee", *payee, false)
	if !ok {
		return 1
	}
	if p == "" {
		id, err := env.identity()
		if err != nil {
			return fail(stderr, err)
		}
		p = crypto.FromIdentity(id).String()
	}
	return query(env, stdout, stderr, "/v1/vaults/"+v+"/allowance/"+p)
}

func runDue(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("due", flag.ContinueOnError)
	vault := fs.String("vault", "", "vault admin identity")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	v, ok := identityFlag(stderr, "vault", *vault, true)
	if !ok {
		return 1
	}
	return query(env, stdout, stderr, "/v1/vaults/"+v+"/due")
}
