package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/quantive/binance-mcp/internal/account"
	"github.com/quantive/binance-mcp/pkg/schema"
)

// runConfig adds a new account or updates an existing one. Values omitted on
// the command line are prompted for; existing accounts keep fields that are
// neither flagged nor entered.
func runConfig(args []string) {
	cfg := loadCLIConfig()
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	fs.StringVar(&cfg.ConfigRoot, "config-root", cfg.ConfigRoot, "config directory")
	id := fs.String("id", "", "account id")
	apiKey := fs.String("api-key", "", "API key")
	apiSecret := fs.String("api-secret", "", "API secret")
	market := fs.String("market", "", "market type: spot, usd_m_futures, coin_m_futures, options")
	sandbox := fs.Bool("sandbox", false, "use testnet endpoints")
	description := fs.String("description", "", "free-form description")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	flagged := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { flagged[f.Name] = true })

	ctx := context.Background()
	comps, err := buildComponents(ctx, cfg, true)
	if err != nil {
		fail(err)
	}
	defer comps.Close()

	in := bufio.NewReader(os.Stdin)
	if *id == "" {
		*id = prompt(in, "Account id: ")
	}

	_, getErr := comps.registry.Get(ctx, *id)
	exists := getErr == nil

	if exists {
		upd := account.Update{}
		if flagged["api-key"] {
			upd.APIKey = apiKey
		}
		if flagged["api-secret"] {
			upd.APISecret = apiSecret
		}
		if flagged["market"] {
			mt := account.MarketType(*market)
			upd.MarketType = &mt
		}
		if flagged["sandbox"] {
			upd.Sandbox = sandbox
		}
		if flagged["description"] {
			upd.Description = description
		}
		if err := comps.vault.UpdateAccount(ctx, *id, upd); err != nil {
			fail(err)
		}
		fmt.Printf("Account %q updated\n", *id)
		return
	}

	if *apiKey == "" {
		*apiKey = prompt(in, "API key: ")
	}
	if *apiSecret == "" {
		*apiSecret = promptSecret(in, "API secret: ")
	}
	if *market == "" {
		*market = prompt(in, "Market type (spot, usd_m_futures, coin_m_futures, options) [spot]: ")
		if *market == "" {
			*market = string(account.MarketTypeSpot)
		}
	}

	err = comps.vault.AddAccount(ctx, account.Account{
		ID:          *id,
		APIKey:      *apiKey,
		APISecret:   *apiSecret,
		MarketType:  account.MarketType(*market),
		Sandbox:     *sandbox,
		Description: *description,
	})
	if err != nil {
		fail(err)
	}
	fmt.Printf("Account %q added\n", *id)

	if strings.EqualFold(prompt(in, "Test connectivity now? [y/N]: "), "y") {
		probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		client, err := comps.vault.Resolve(probeCtx, *id)
		if err != nil {
			fail(err)
		}
		if _, err := client.Ping(probeCtx); err != nil {
			fail(err)
		}
		fmt.Println("Credentials OK")
	}
}

// runList prints configured accounts. Credentials never appear in the output.
func runList(args []string) {
	cfg := loadCLIConfig()
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	fs.StringVar(&cfg.ConfigRoot, "config-root", cfg.ConfigRoot, "config directory")
	asJSON := fs.Bool("json", false, "output JSON")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx := context.Background()
	comps, err := buildComponents(ctx, cfg, false)
	if err != nil {
		fail(err)
	}
	defer comps.Close()

	accounts, err := comps.vault.ListAccounts(ctx)
	if err != nil {
		fail(err)
	}

	if *asJSON {
		data, err := json.MarshalIndent(accounts, "", "  ")
		if err != nil {
			fail(err)
		}
		fmt.Println(string(data))
		return
	}

	if len(accounts) == 0 {
		fmt.Println("No accounts configured. Add one with `binance-mcp config`.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMARKET\tSANDBOX\tDESCRIPTION")
	for _, a := range accounts {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", a.ID, a.MarketType, a.Sandbox, a.Description)
	}
	w.Flush()
}

// runRemove deletes an account.
func runRemove(args []string) {
	cfg := loadCLIConfig()
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	fs.StringVar(&cfg.ConfigRoot, "config-root", cfg.ConfigRoot, "config directory")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fatalf("usage: binance-mcp remove <account-id>")
	}
	id := fs.Arg(0)

	ctx := context.Background()
	comps, err := buildComponents(ctx, cfg, true)
	if err != nil {
		fail(err)
	}
	defer comps.Close()

	if err := comps.vault.RemoveAccount(ctx, id); err != nil {
		fail(err)
	}
	fmt.Printf("Account %q removed\n", id)
}

// runTest resolves an account and probes exchange connectivity with its
// credentials.
func runTest(args []string) {
	cfg := loadCLIConfig()
	fs := flag.NewFlagSet("test", flag.ExitOnError)
	fs.StringVar(&cfg.ConfigRoot, "config-root", cfg.ConfigRoot, "config directory")
	timeout := fs.Duration("timeout", 15*time.Second, "probe timeout")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fatalf("usage: binance-mcp test <account-id>")
	}
	id := fs.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	comps, err := buildComponents(ctx, cfg, false)
	if err != nil {
		fail(err)
	}
	defer comps.Close()

	client, err := comps.vault.Resolve(ctx, id)
	if err != nil {
		fail(err)
	}

	fmt.Printf("Probing %s (%s%s)...\n", id, client.MarketType(), sandboxSuffix(client.Sandbox()))
	res, err := client.Ping(ctx)
	if err != nil {
		if res != nil && !res.ServerTime.IsZero() {
			fmt.Printf("Exchange reachable (server time %s) but authentication failed\n",
				res.ServerTime.UTC().Format(time.RFC3339))
		}
		fail(err)
	}

	if !res.ServerTime.IsZero() {
		fmt.Printf("Exchange reachable, server time %s\n", res.ServerTime.UTC().Format(time.RFC3339))
	}
	fmt.Println("Credentials OK")
}

func sandboxSuffix(sandbox bool) string {
	if sandbox {
		return ", testnet"
	}
	return ""
}

func prompt(in *bufio.Reader, label string) string {
	fmt.Print(label)
	line, err := in.ReadString('\n')
	if err != nil {
		fatalf("read input: %v", err)
	}
	return strings.TrimSpace(line)
}

// promptSecret reads a line without echoing it when stdin is a terminal.
// Outside a terminal (pipes, tests) it falls back to plain line reading.
func promptSecret(in *bufio.Reader, label string) string {
	fmt.Print(label)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		data, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			fatalf("read input: %v", err)
		}
		return strings.TrimSpace(string(data))
	}
	line, err := in.ReadString('\n')
	if err != nil {
		fatalf("read input: %v", err)
	}
	return strings.TrimSpace(line)
}

// exitCodeFor keeps CLI failures distinguishable in scripts: validation
// problems exit differently from missing accounts.
func exitCodeFor(err error) int {
	switch schema.CodeOf(err) {
	case schema.ErrCodeValidation:
		return 2
	case schema.ErrCodeAccountNotFound:
		return 3
	default:
		return 1
	}
}
