package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	blockchain "github.com/janko-sokolovic/falcoin/src"
	"github.com/prometheus/common/log"
	"github.com/pterm/pterm"
	"gopkg.in/alecthomas/kingpin.v2"
)

// sample wallet used by the demo when no key is given
const demoKey = "7c4c45907dec40c91bab3480c39032e90049f1a44f3e18c3e07c23e3273995cf"

var (
	app = kingpin.New("falcoin", "A minimal single-node proof-of-work ledger.")

	difficulty  = app.Flag("difficulty", "Leading hex zeros required in a block hash.").Default(strconv.Itoa(blockchain.DefaultDifficulty)).Int()
	reward      = app.Flag("reward", "Amount credited to the miner of each block.").Default(strconv.Itoa(blockchain.DefaultMiningReward)).Float64()
	maxAttempts = app.Flag("max-attempts", "Give up mining a block after this many hashes, 0 for no limit.").Default("0").Uint64()
	keyHex      = app.Flag("key", "Hex private key of the node wallet.").Envar("FALCOIN_KEY").String()

	demoCmd = app.Command("demo", "Mine a few blocks with sample transfers and print the ledger.").Default()

	serveCmd = app.Command("serve", "Serve the ledger over HTTP.")
	listen   = serveCmd.Flag("listen", "Address to listen on.").Default(":8000").String()
)

func main() {
	log.AddFlags(app)
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg := blockchain.DefaultConfig()
	cfg.Difficulty = *difficulty
	cfg.MiningReward = *reward
	cfg.MaxMiningAttempts = *maxAttempts

	var err error
	switch cmd {
	case demoCmd.FullCommand():
		err = runDemo(cfg)
	case serveCmd.FullCommand():
		err = runServe(cfg)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func loadWallet(fallback string) (*blockchain.Wallet, error) {
	key := *keyHex
	if key == "" {
		key = fallback
	}
	if key == "" {
		return blockchain.NewWallet()
	}
	return blockchain.WalletFromHex(key)
}

func runServe(cfg blockchain.Config) error {
	wallet, err := loadWallet("")
	if err != nil {
		return err
	}
	log.Info(fmt.Sprintf("Mining rewards go to %s", wallet.Address()))

	return blockchain.Run(blockchain.NewBlockChain(cfg), wallet.Address(), *listen)
}

func runDemo(cfg blockchain.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	wallet, err := loadWallet(demoKey)
	if err != nil {
		return err
	}
	falcoin := blockchain.NewBlockChain(cfg)

	transfers := []struct {
		to     string
		amount float64
	}{
		{"address2", 100},
		{"address1", 50},
	}

	if _, err := falcoin.MinePendingTransactions(ctx, wallet.Address()); err != nil {
		return err
	}
	for _, t := range transfers {
		tx, err := wallet.Transfer(t.to, t.amount)
		if err != nil {
			return err
		}
		if err := falcoin.AddTransaction(tx); err != nil {
			return err
		}
		if _, err := falcoin.MinePendingTransactions(ctx, wallet.Address()); err != nil {
			return err
		}
	}

	printLedger(falcoin, wallet.Address(), "address1", "address2")
	return nil
}

func printLedger(falcoin *blockchain.BlockChain, addresses ...string) {
	pterm.DefaultHeader.WithFullWidth().Println("falcoin")

	blocks := pterm.TableData{{"#", "Hash", "Previous", "Nonce", "Txs"}}
	for i, block := range falcoin.Blocks() {
		blocks = append(blocks, []string{
			strconv.Itoa(i),
			abbreviate(block.Hash()),
			abbreviate(block.PreviousHash()),
			strconv.Itoa(block.Nonce()),
			strconv.Itoa(len(block.Transactions())),
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(blocks).Render()

	balances := pterm.TableData{{"Address", "Balance", "Transactions"}}
	for _, address := range addresses {
		balances = append(balances, []string{
			abbreviate(address),
			strconv.FormatFloat(falcoin.BalanceOf(address), 'f', -1, 64),
			strconv.Itoa(len(falcoin.TransactionsFor(address))),
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(balances).Render()

	if err := falcoin.Verify(); err != nil {
		pterm.Error.Printfln("Chain is invalid: %s", err)
		return
	}
	pterm.Success.Println("Chain is valid")
}

func abbreviate(s string) string {
	if len(s) > 20 {
		return s[:8] + "…" + s[len(s)-8:]
	}
	return s
}
