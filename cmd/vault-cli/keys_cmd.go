package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"devquestvault/cmd/internal/passphrase"
	"devquestvault/crypto"
)

func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) bool {
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return false
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return false
	}
	return true
}

func runKeygen(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	out := fs.String("out", "", "keystore path (defaults to the configured KeystorePath)")
	force := fs.Bool("force", false, "overwrite an existing keystore")
	light := fs.Bool("light", false, "use light scrypt parameters (development only)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	path := strings.TrimSpace(*out)
	if path == "" {
		path = env.cfg.KeystorePath
	}
	if _, err := os.Stat(path); err == nil && !*force {
		fmt.Fprintf(stderr, "Error: keystore %s already exists; pass --force to replace it\n", path)
		return 1
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fail(stderr, err)
	}
	pass, err := passphrase.NewSource(passphraseEnv, "new vault keystore", passphrase.WithConfirmation()).Get()
	if err != nil {
		return fail(stderr, err)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return fail(stderr, err)
	}
	strength := crypto.StandardStrength
	if *light {
		strength = crypto.LightStrength
	}
	if err := crypto.SaveToKeystore(path, key, pass, strength); err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintf(stdout, "identity: %s\nkeystore: %s\n", key.PubKey().Address().String(), path)
	return 0
}

func runAddress(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	id, err := env.identity()
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintln(stdout, crypto.FromIdentity(id).String())
	return 0
}

func runToken(env *cliEnv, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	scopes := fs.String("scope", "", "space separated scopes to grant")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	token, err := env.mintToken(strings.Fields(*scopes))
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintln(stdout, token)
	return 0
}
