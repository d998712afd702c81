package main

import (
	"context"
	"fmt"
	"os"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/invite"
	"github.com/trezcool/escola/core/school"
	"github.com/trezcool/escola/core/user"
	emailsvc "github.com/trezcool/escola/services/email"
	logsvc "github.com/trezcool/escola/services/logger"
	"github.com/trezcool/escola/storage/database"
	sqlxrepos "github.com/trezcool/escola/storage/database/sqlx"
)

func main() {
	os.Exit(start())
}

func start() int {
	conf := core.NewConfig()

	logger, flush, err := logsvc.New(conf)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer flush()

	// set up DB
	db, err := database.Open(conf.Database)
	if err != nil {
		logger.Error("opening database", err)
		return 1
	}
	defer db.Close()
	if err = database.Ping(context.Background(), db); err != nil {
		logger.Error("reaching database", err)
		return 1
	}
	store := sqlxrepos.NewStore(db, conf.Database.QueryTimeout)

	// set up services
	usrRepo := sqlxrepos.NewUserRepository(store)
	schoolSvc := school.NewService(sqlxrepos.NewSchoolRepository(store), store)
	inviteSvc := invite.NewService(
		sqlxrepos.NewInviteRepository(store), usrRepo, emailsvc.NewConsoleService(conf, logger), conf.InviteTTL, logger,
	)

	// start CLI
	cli := commandLine{
		db:     db.DB,
		users:  user.NewService(usrRepo, schoolSvc, inviteSvc, store),
		school: schoolSvc,
		logger: logger,
	}
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		return 1
	}
	return 0
}
