// This program performs administrative tasks over a node's stored ledger.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/utxochain/app/tooling/admin/commands"
	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/storage"
	"github.com/ardanlabs/utxochain/foundation/logger"
	"github.com/ardanlabs/utxochain/foundation/nameservice"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		if !errors.Is(err, commands.ErrHelp) {
			log.Errorw("startup", "ERROR", err)
		}
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	cfg := struct {
		conf.Version
		Args    conf.Args
		Storage struct {
			Kind string `conf:"default:disk"`
			Path string `conf:"default:zblock/genesis/"`
		}
		NameService struct {
			Folder string `conf:"default:zblock/accounts/"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	const prefix = "ADMIN"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	store, err := storage.Open(cfg.Storage.Kind, cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	ns, err := nameservice.New(cfg.NameService.Folder)
	if err != nil {
		return fmt.Errorf("unable to load account name service: %w", err)
	}

	ev := func(v string, args ...any) {
		log.Debugw(fmt.Sprintf(v, args...))
	}

	return processCommands(cfg.Args, store, ns, ev)
}

// processCommands handles the execution of the commands specified on
// the command line.
func processCommands(args conf.Args, store database.Storage, ns *nameservice.NameService, ev database.EventHandler) error {
	switch args.Num(0) {
	case "bals":
		ledger, err := database.Load(store, ev)
		if err != nil {
			return fmt.Errorf("loading ledger: %w", err)
		}
		if err := commands.Balances(args.Num(1), ledger, ns); err != nil {
			return fmt.Errorf("getting balances: %w", err)
		}

	case "trans":
		ledger, err := database.Load(store, ev)
		if err != nil {
			return fmt.Errorf("loading ledger: %w", err)
		}
		if err := commands.Transactions(args.Num(1), ledger, ns); err != nil {
			return fmt.Errorf("getting transactions: %w", err)
		}

	case "validate":
		if err := commands.Validate(store, ev); err != nil {
			return fmt.Errorf("validating ledger: %w", err)
		}

	default:
		fmt.Println("bals [identity]:  show the balance of every identity or the one specified")
		fmt.Println("trans [identity]: show the transactions, optionally for one identity")
		fmt.Println("validate:         replay and validate every stored block")
		fmt.Println("provide a command to get more help.")
		return commands.ErrHelp
	}

	return nil
}
