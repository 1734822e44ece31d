package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/tujenge/kazipro/core"
	"github.com/tujenge/kazipro/storage/database"
	sqlxrepos "github.com/tujenge/kazipro/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	// set up DB
	db, err := database.Open(core.Conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()

	sdb := sqlx.NewDb(db, core.Conf.Database.Engine)

	// start CLI
	cli := commandLine{
		db:      db,
		usrRepo: sqlxrepos.NewUserRepository(sdb),
		resRepo: sqlxrepos.NewReservationRepository(sdb),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
