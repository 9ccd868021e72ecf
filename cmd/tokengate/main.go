package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MrEthical07/tokengate/password"
	"github.com/fatih/color"
)

// version is set at build time.
var version = "dev"

const banner = `
  _        _                          _
 | |_ ___ | | _____ _ __   __ _  __ _| |_ ___
 | __/ _ \| |/ / _ \ '_ \ / _' |/ _' | __/ _ \
 | || (_) |   <  __/ | | | (_| | (_| | ||  __/
  \__\___/|_|\_\___|_| |_|\__, |\__,_|\__\___|
                          |___/
`

func usage() {
	fmt.Println("Usage: tokengate <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve  -config PATH     Start the HTTP and gRPC servers")
	fmt.Println("  hash   [PASSWORD]       Print an Argon2id hash (reads stdin when omitted)")
	fmt.Println("  version                 Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "hash":
		err = runHash(os.Args[2:], os.Stdin, os.Stdout)
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

// configPath resolves -config, then TOKENGATE_CONFIG, then ./tokengate.yaml.
func configPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("TOKENGATE_CONFIG"); env != "" {
		return env
	}
	return "tokengate.yaml"
}

func runHash(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	secret := fs.Arg(0)
	if secret == "" {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading password: %w", err)
		}
		secret = strings.TrimRight(line, "\r\n")
	}

	h, err := password.NewArgon2(password.DefaultParams())
	if err != nil {
		return err
	}
	hash, err := h.Hash(secret)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, hash)
	return err
}
