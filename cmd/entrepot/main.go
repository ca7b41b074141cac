package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/entrepot-erp/entrepot-erp/internal/app"
	"github.com/entrepot-erp/entrepot-erp/internal/catalog"
	"github.com/entrepot-erp/entrepot-erp/internal/creditnotes"
	"github.com/entrepot-erp/entrepot-erp/internal/ledger"
	"github.com/entrepot-erp/entrepot-erp/internal/money"
	"github.com/entrepot-erp/entrepot-erp/internal/party"
	"github.com/entrepot-erp/entrepot-erp/internal/platform/db"
)

const usage = `usage: entrepot <command> [flags]

commands:
  balance    -party <id>                       print a party's outstanding balance
  statement  -party <id> [-from d] [-to d] [-kind k,...]
                                               print a party's account statement
  remaining  -order <id>                       print remaining returnable quantities
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "entrepot:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("missing command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.QueryTimeout)
	defer cancel()

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	partyRepo := party.NewRepository(pool)
	noteRepo := creditnotes.NewRepository(pool)
	catalogRepo := catalog.NewRepository(pool)

	ledgerSvc := ledger.NewService(ledger.NewHistorySource(pool), partyRepo, logger)
	noteSvc := creditnotes.NewService(noteRepo, catalogRepo, partyRepo)

	printer := message.NewPrinter(language.English)

	switch os.Args[1] {
	case "balance":
		return runBalance(ctx, os.Args[2:], ledgerSvc, partyRepo, printer)
	case "statement":
		return runStatement(ctx, os.Args[2:], ledgerSvc, printer)
	case "remaining":
		return runRemaining(ctx, os.Args[2:], noteSvc, printer)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", os.Args[1])
	}
}

func runBalance(ctx context.Context, args []string, svc *ledger.Service, parties party.Repository, p *message.Printer) error {
	fs := flag.NewFlagSet("balance", flag.ContinueOnError)
	partyID := fs.Int64("party", 0, "party id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *partyID == 0 {
		return fmt.Errorf("balance: -party is required")
	}

	var (
		owner   *party.Party
		balance decimal.Decimal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		owner, err = parties.Get(gctx, *partyID)
		return err
	})
	g.Go(func() error {
		var err error
		balance, err = svc.Balance(gctx, *partyID)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	p.Printf("%s (%s): %.2f\n", owner.Name, owner.Kind, money.Round2(balance).InexactFloat64())
	return nil
}

func runStatement(ctx context.Context, args []string, svc *ledger.Service, p *message.Printer) error {
	fs := flag.NewFlagSet("statement", flag.ContinueOnError)
	partyID := fs.Int64("party", 0, "party id")
	from := fs.String("from", "", "start date (2006-01-02)")
	to := fs.String("to", "", "end date (2006-01-02)")
	kinds := fs.String("kind", "", "comma-separated kinds (ORDER,PURCHASE,PAYMENT,CREDIT_NOTE)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *partyID == 0 {
		return fmt.Errorf("statement: -party is required")
	}

	var filter ledger.StatementFilter
	if *from != "" {
		parsed, err := time.Parse("2006-01-02", *from)
		if err != nil {
			return fmt.Errorf("statement: bad -from: %w", err)
		}
		filter.From = parsed
	}
	if *to != "" {
		parsed, err := time.Parse("2006-01-02", *to)
		if err != nil {
			return fmt.Errorf("statement: bad -to: %w", err)
		}
		filter.To = parsed
	}
	for _, k := range strings.Split(*kinds, ",") {
		if k = strings.TrimSpace(k); k != "" {
			filter.Kinds = append(filter.Kinds, ledger.EntryKind(k))
		}
	}

	seq, err := svc.Statement(ctx, *partyID, filter)
	if err != nil {
		return err
	}
	for line := range seq {
		p.Printf("%s  %-12s %-24s %12.2f\n",
			line.Date.Format("2006-01-02"), line.Kind, line.Reference,
			money.Round2(line.Amount).InexactFloat64())
	}
	return nil
}

func runRemaining(ctx context.Context, args []string, svc *creditnotes.Service, p *message.Printer) error {
	fs := flag.NewFlagSet("remaining", flag.ContinueOnError)
	orderID := fs.Int64("order", 0, "order id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *orderID == 0 {
		return fmt.Errorf("remaining: -order is required")
	}

	remaining, err := svc.RemainingReturnable(ctx, *orderID)
	if err != nil {
		return err
	}
	for productID, qty := range remaining {
		p.Printf("product %d: %v\n", productID, qty)
	}
	return nil
}
