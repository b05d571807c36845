// Command etchctl is the operator CLI for a running runeidx indexer: it
// issues plain HTTP requests against the query/etching API, the same
// surface internal/api serves, for scripting and manual operation without
// needing curl one-liners memorized.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "rune":
		err = cmdRune(os.Args[2:])
	case "rune-by-id":
		err = cmdRuneByID(os.Args[2:])
	case "balances":
		err = cmdBalances(os.Args[2:])
	case "etching":
		err = cmdGetEtching(os.Args[2:])
	case "etch":
		err = cmdPostEtching(os.Args[2:])
	case "fee-rate":
		err = cmdSetFeeRate(os.Args[2:])
	case "health":
		err = cmdHealth(os.Args[2:])
	case "version":
		fmt.Printf("etchctl %s\n", version)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Usage: etchctl <command> [flags]

Commands:
  rune          Look up a rune by spaced name
  rune-by-id    Look up a rune by block:tx id
  balances      Look up rune balances for a set of outpoints
  etching       Look up an etching request by commit txid
  etch          Submit a new etching request
  fee-rate      Set the orchestrator's sat/vB fee rate
  health        Check indexer health
  version       Print version information
`)
}

func baseFlags(fs *flag.FlagSet) *string {
	return fs.String("addr", "http://127.0.0.1:8080", "indexer base URL")
}

// client wraps http.Client with the double-submit CSRF pairing the
// server's middleware requires on mutating requests, and the response
// envelope every handler writes.
type client struct {
	addr string
	http *http.Client
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *client) do(method, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequest(method, c.addr+path, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if method != http.MethodGet {
		// The CLI is a trusted operator client, not a browser, so the
		// CSRF double-submit pairing only needs to be internally
		// consistent, not secret.
		const token = "etchctl-cli-0000000000000000000000000000000000000000"
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: token})
		req.Header.Set("X-CSRF-Token", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response (status %d): %s", resp.StatusCode, raw)
	}
	if env.Error != nil {
		return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func newClient(addr string) *client {
	return &client{addr: addr, http: &http.Client{Timeout: 30 * time.Second}}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func cmdRune(args []string) error {
	fs := flag.NewFlagSet("rune", flag.ExitOnError)
	addr := baseFlags(fs)
	name := fs.String("name", "", "spaced rune name, e.g. UNCOMMON.GOODS")
	fs.Parse(args)
	if *name == "" {
		return fmt.Errorf("-name is required")
	}

	var out any
	if err := newClient(*addr).do(http.MethodGet, "/api/runes/"+*name, nil, &out); err != nil {
		return err
	}
	return printJSON(out)
}

func cmdRuneByID(args []string) error {
	fs := flag.NewFlagSet("rune-by-id", flag.ExitOnError)
	addr := baseFlags(fs)
	block := fs.Uint64("block", 0, "rune id block height")
	tx := fs.Uint("tx", 0, "rune id tx index")
	fs.Parse(args)

	path := fmt.Sprintf("/api/runes/by-id/%d/%d", *block, *tx)
	var out any
	if err := newClient(*addr).do(http.MethodGet, path, nil, &out); err != nil {
		return err
	}
	return printJSON(out)
}

func cmdBalances(args []string) error {
	fs := flag.NewFlagSet("balances", flag.ExitOnError)
	addr := baseFlags(fs)
	outpoints := fs.String("outpoints", "", "comma-separated list of txid:vout")
	fs.Parse(args)
	if *outpoints == "" {
		return fmt.Errorf("-outpoints is required")
	}

	body := map[string]any{"outpoints": splitCSV(*outpoints)}
	var out any
	if err := newClient(*addr).do(http.MethodPost, "/api/balances", body, &out); err != nil {
		return err
	}
	return printJSON(out)
}

func cmdGetEtching(args []string) error {
	fs := flag.NewFlagSet("etching", flag.ExitOnError)
	addr := baseFlags(fs)
	txid := fs.String("txid", "", "commit txid")
	fs.Parse(args)
	if *txid == "" {
		return fmt.Errorf("-txid is required")
	}

	var out any
	if err := newClient(*addr).do(http.MethodGet, "/api/etching/"+*txid, nil, &out); err != nil {
		return err
	}
	return printJSON(out)
}

func cmdPostEtching(args []string) error {
	fs := flag.NewFlagSet("etch", flag.ExitOnError)
	addr := baseFlags(fs)
	name := fs.String("name", "", "spaced rune name")
	principal := fs.String("principal", "", "paying principal id")
	premine := fs.String("premine", "", "premine amount, decimal string")
	premineReceiver := fs.String("premine-receiver", "", "bitcoin address receiving the premine")
	divisibility := fs.Uint("divisibility", 0, "divisibility")
	turbo := fs.Bool("turbo", false, "enable turbo opt-in flags")
	fs.Parse(args)
	if *name == "" || *principal == "" {
		return fmt.Errorf("-name and -principal are required")
	}

	div := uint8(*divisibility)
	body := map[string]any{
		"RuneName":        *name,
		"Principal":       *principal,
		"Divisibility":    &div,
		"Premine":         *premine,
		"PremineReceiver": *premineReceiver,
		"Turbo":           *turbo,
	}

	var out struct {
		CommitTxid string `json:"commit_txid"`
	}
	if err := newClient(*addr).do(http.MethodPost, "/api/etching", body, &out); err != nil {
		return err
	}
	fmt.Println(out.CommitTxid)
	return nil
}

func cmdSetFeeRate(args []string) error {
	fs := flag.NewFlagSet("fee-rate", flag.ExitOnError)
	addr := baseFlags(fs)
	rate := fs.Int64("sat-per-vbyte", 0, "fee rate in sat/vB")
	fs.Parse(args)
	if *rate <= 0 {
		return fmt.Errorf("-sat-per-vbyte must be positive")
	}

	body := map[string]any{"sat_per_vbyte": *rate}
	return newClient(*addr).do(http.MethodPut, "/api/fee-rate", body, nil)
}

func cmdHealth(args []string) error {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := baseFlags(fs)
	fs.Parse(args)

	var out any
	if err := newClient(*addr).do(http.MethodGet, "/api/health", nil, &out); err != nil {
		return err
	}
	return printJSON(out)
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
