// addrindex-cli is a command-line client for the address methods of an
// addrindexd daemon.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/Klingon-tech/klingnet-addrindex/internal/addrquery"
	"github.com/Klingon-tech/klingnet-addrindex/internal/rpc"
	"github.com/Klingon-tech/klingnet-addrindex/internal/rpcclient"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/crypto"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/types"
)

// satoshisPerCoin is used only for human-readable amounts.
const satoshisPerCoin = 100_000_000

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	rpcURL := "http://127.0.0.1:8545"
	network := "mainnet"
	timeout := 30 * time.Second
	forceJSON := false

	// Global flags appear before the subcommand.
	args := os.Args[1:]
globals:
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = args[0][len("--rpc="):]
			args = args[1:]
		case strings.HasPrefix(args[0], "--timeout="):
			d, err := time.ParseDuration(args[0][len("--timeout="):])
			if err != nil {
				fatal("invalid --timeout: %v", err)
			}
			timeout = d
			args = args[1:]
		case args[0] == "--network" && len(args) > 1:
			network = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--network="):
			network = args[0][len("--network="):]
			args = args[1:]
		case args[0] == "--testnet":
			network = "testnet"
			args = args[1:]
		case args[0] == "--json":
			forceJSON = true
			args = args[1:]
		default:
			break globals
		}
	}

	if network == "testnet" {
		types.SetAddressHRP(types.TestnetHRP)
	} else {
		types.SetAddressHRP(types.MainnetHRP)
	}

	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	client := rpcclient.NewWithTimeout(rpcURL, timeout)
	out := newPrinter(forceJSON)
	ctx := context.Background()
	cmd, cmdArgs := args[0], args[1:]

	switch cmd {
	case "txids":
		q := parseQuery("txids", cmdArgs, true)
		ids, err := client.TxIDs(ctx, q)
		check("getaddresstxids", err)
		out.txids(ids)
	case "deltas":
		q := parseQuery("deltas", cmdArgs, true)
		deltas, err := client.Deltas(ctx, q)
		check("getaddressdeltas", err)
		out.deltas(deltas)
	case "balance":
		q := parseQuery("balance", cmdArgs, false)
		bal, err := client.Balance(ctx, q)
		check("getaddressbalance", err)
		out.balance(bal)
	case "utxos":
		q := parseQuery("utxos", cmdArgs, false)
		utxos, err := client.Utxos(ctx, q)
		check("getaddressutxos", err)
		out.utxos(utxos)
	case "mempool":
		q := parseQuery("mempool", cmdArgs, false)
		deltas, err := client.Mempool(ctx, q)
		check("getaddressmempool", err)
		out.mempool(deltas)
	case "status":
		var idx rpc.IndexInfoResult
		check("index_getInfo", client.CallContext(ctx, "index_getInfo", nil, &idx))
		var mp rpc.MempoolInfoResult
		check("mempool_getInfo", client.CallContext(ctx, "mempool_getInfo", nil, &mp))
		out.status(idx, mp)
	case "usage":
		method := ""
		if len(cmdArgs) > 0 {
			method = cmdArgs[0]
		}
		text, err := client.Help(ctx, method)
		check("help", err)
		fmt.Println(text)
	case "address":
		cmdAddress(cmdArgs)
	case "keygen":
		cmdKeygen()
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: addrindex-cli [global flags] <command> [flags] <address>...

Global flags:
  --rpc <url>         RPC endpoint (default: http://127.0.0.1:8545)
  --timeout=<dur>     HTTP timeout (default: 30s)
  --network <net>     mainnet (default) or testnet; selects the address prefix
  --testnet           Shorthand for --network=testnet
  --json              Always print raw JSON

Commands:
  txids [--start N] [--end N] <addr>...   Transaction ids touching the addresses
  deltas [--start N] [--end N] <addr>...  Per-input/output balance changes
  balance <addr>...                       Confirmed balance and total received
  utxos <addr>...                         Outputs paying the addresses
  mempool <addr>...                       Unconfirmed balance changes
  status                                  Index tip and mempool size
  usage [method]                          Server-side call signatures
  address <keyfile>                       Public key and address of a hex private key file
  keygen                                  Generate a private key and print its address

Output is a table when stdout is a terminal and compact JSON otherwise.
`)
}

// parseQuery reads [--start N] [--end N] followed by one or more addresses.
func parseQuery(cmd string, args []string, ranged bool) rpcclient.Query {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	var start, end int64
	if ranged {
		fs.Int64Var(&start, "start", 0, "First height (inclusive)")
		fs.Int64Var(&end, "end", 0, "Last height (inclusive)")
	}
	fs.Parse(args)

	q := rpcclient.Query{Addresses: fs.Args()}
	if len(q.Addresses) == 0 {
		fatal("Usage: addrindex-cli %s <address>...", cmd)
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "start":
			q.Start = &start
		case "end":
			q.End = &end
		}
	})
	return q
}

// cmdAddress prints the public key and address for a hex-encoded private
// key file.
func cmdAddress(args []string) {
	if len(args) < 1 {
		fatal("Usage: addrindex-cli address <keyfile>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fatal("read key file: %v", err)
	}
	keyBytes, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		fatal("decode hex: %v", err)
	}
	key, err := crypto.PrivateKeyFromBytes(keyBytes)
	if err != nil {
		fatal("parse key: %v", err)
	}
	fmt.Printf("Pubkey:  %s\n", hex.EncodeToString(key.PublicKey()))
	fmt.Printf("Address: %s\n", key.Address())
}

func cmdKeygen() {
	key, err := crypto.GenerateKey()
	if err != nil {
		fatal("generate key: %v", err)
	}
	fmt.Printf("Private: %s\n", hex.EncodeToString(key.Serialize()))
	fmt.Printf("Address: %s\n", key.Address())
}

func check(method string, err error) {
	if err != nil {
		fatal("%s: %v", method, err)
	}
}

// ── output ──────────────────────────────────────────────────────────────

type printer struct {
	pretty bool
}

// newPrinter prints tables on a terminal and compact JSON when piped.
func newPrinter(forceJSON bool) *printer {
	return &printer{pretty: !forceJSON && term.IsTerminal(int(os.Stdout.Fd()))}
}

func (p *printer) json(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(v); err != nil {
		fatal("encode: %v", err)
	}
}

func (p *printer) table(header string, rows func(w *tabwriter.Writer)) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, header)
	rows(w)
	w.Flush()
}

func (p *printer) txids(ids []string) {
	if !p.pretty {
		p.json(ids)
		return
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	fmt.Printf("(%d transactions)\n", len(ids))
}

func (p *printer) deltas(deltas []addrquery.Delta) {
	if !p.pretty {
		p.json(deltas)
		return
	}
	p.table("HEIGHT\tTXID\tINDEX\tADDRESS\tAMOUNT", func(w *tabwriter.Writer) {
		for _, d := range deltas {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", d.Height, d.TxID, d.Index, d.Address, formatAmount(d.Satoshis))
		}
	})
}

func (p *printer) balance(b addrquery.Balance) {
	if !p.pretty {
		p.json(b)
		return
	}
	fmt.Printf("Balance:  %s\n", formatAmount(b.Balance))
	fmt.Printf("Received: %s\n", formatAmount(b.Received))
}

func (p *printer) utxos(utxos []addrquery.Utxo) {
	if !p.pretty {
		p.json(utxos)
		return
	}
	p.table("HEIGHT\tOUTPOINT\tADDRESS\tAMOUNT", func(w *tabwriter.Writer) {
		for _, u := range utxos {
			fmt.Fprintf(w, "%d\t%s:%d\t%s\t%s\n", u.Height, u.TxID, u.OutputIndex, u.Address, formatAmount(u.Satoshis))
		}
	})
}

func (p *printer) mempool(deltas []addrquery.MempoolDelta) {
	if !p.pretty {
		p.json(deltas)
		return
	}
	p.table("TIME\tTXID\tINDEX\tADDRESS\tAMOUNT\tSPENDS", func(w *tabwriter.Writer) {
		for _, d := range deltas {
			spends := "-"
			if d.PrevTxID != nil && d.PrevOut != nil {
				spends = fmt.Sprintf("%s:%d", *d.PrevTxID, *d.PrevOut)
			}
			ts := time.Unix(d.Timestamp, 0).UTC().Format(time.RFC3339)
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", ts, d.TxID, d.Index, d.Address, formatAmount(d.Satoshis), spends)
		}
	})
}

func (p *printer) status(idx rpc.IndexInfoResult, mp rpc.MempoolInfoResult) {
	if !p.pretty {
		p.json(map[string]interface{}{"index": idx, "mempool": mp})
		return
	}
	fmt.Printf("Height:    %d\n", idx.Height)
	fmt.Printf("Tip:       %s\n", idx.TipHash)
	fmt.Printf("TxIndex:   %v\n", idx.TxIndex)
	fmt.Printf("AddrIndex: %v\n", idx.AddrIndex)
	if idx.ReducedMode {
		fmt.Println("Mode:      reduced (address queries disabled)")
	}
	fmt.Printf("Mempool:   %d\n", mp.Count)
}

// formatAmount renders satoshis as a signed decimal coin amount.
func formatAmount(sats int64) string {
	sign := ""
	if sats < 0 {
		sign = "-"
		sats = -sats
	}
	return fmt.Sprintf("%s%d.%08d", sign, sats/satoshisPerCoin, sats%satoshisPerCoin)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
