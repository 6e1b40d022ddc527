package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "serve":
		runServe(args)
	case "start":
		runStart(args)
	case "stop":
		runStop(args)
	case "status":
		runStatus(args)
	case "config":
		runConfig(args)
	case "list":
		runList(args)
	case "remove":
		runRemove(args)
	case "test":
		runTest(args)
	case "backup":
		runBackup(args)
	case "rotate-key":
		runRotateKey(args)
	case "version", "--version", "-v":
		printVersion()
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`binance-mcp - multi-account Binance MCP server

Usage:
  binance-mcp <command> [flags]

Server:
  serve        Run the MCP server on stdio (foreground)
  start        Start the server, optionally as a background daemon
  stop         Stop a running background server
  status       Show whether a background server is running

Accounts:
  config       Add or update an account (prompts for missing values)
  list         List configured accounts (no credentials shown)
  remove       Remove an account
  test         Probe exchange connectivity for an account

Maintenance:
  backup       Back up the config store now
  rotate-key   Generate a new encryption key and re-encrypt all accounts
  version      Print the version

Use "binance-mcp <command> -h" for command flags.
`)
}
