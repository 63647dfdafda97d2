package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	httpadp "microloan-backend/internal/adapter/http"
	"microloan-backend/internal/adapter/middleware"
	"microloan-backend/internal/adapter/repository/mysql"
	"microloan-backend/internal/config"
	"microloan-backend/internal/infrastructure/cache"
	"microloan-backend/internal/infrastructure/db"
	borrowerUC "microloan-backend/internal/usecase/borrower"
	loanUC "microloan-backend/internal/usecase/loan"
	penaltyUC "microloan-backend/internal/usecase/penalty"
	repaymentUC "microloan-backend/internal/usecase/repayment"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	gdb, err := db.OpenGorm(cfg.MySQLDSN())
	if err != nil {
		log.Fatal(err)
	}
	rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		log.Fatal(err)
	}

	loans := mysql.NewLoanRepository(gdb)
	borrowers := mysql.NewBorrowerRepository(gdb)
	tx := mysql.NewGormUoW(gdb)
	policy := cfg.Policy()

	loanH := httpadp.NewLoanHandler(loanUC.NewUsecase(loans, borrowers, tx, policy))
	borrowerH := httpadp.NewBorrowerHandler(borrowerUC.NewUsecase(borrowers))
	repayments := repaymentUC.NewUsecase(tx)
	repaymentH := httpadp.NewRepaymentHandler(repayments)
	stkH := httpadp.NewStkHandler(repayments)
	penaltyH := httpadp.NewPenaltyHandler(penaltyUC.NewUsecase(tx))
	h := httpadp.NewHandler()

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(echomw.Logger(), echomw.Recover())

	// routes
	e.GET("/health", h.Health)
	e.GET("/borrowers/:borrower_id", borrowerH.Get)
	e.GET("/loans/:loan_id", loanH.Get)
	e.GET("/loans/:loan_id/balance", loanH.Balance)

	// Mutating routes sit behind the Redis idempotency guard; the ledger's
	// own payment-reference check remains authoritative underneath.
	idem := middleware.Idempotency(rdb, time.Duration(cfg.IdempTTLSecs)*time.Second)
	m := e.Group("", idem)
	m.POST("/borrowers", borrowerH.Register)
	m.POST("/loans", loanH.Apply)
	m.POST("/loans/:loan_id/issue", loanH.Issue)
	m.POST("/loans/:loan_id/reject", loanH.Reject)
	m.POST("/loans/:loan_id/payments", repaymentH.ApplyPayment)
	m.POST("/loans/:loan_id/penalties", penaltyH.Post)
	m.POST("/loans/:loan_id/penalties/:penalty_id/waive", penaltyH.Waive)

	// The gateway signs no Ax-* headers; replay safety comes from the
	// receipt-number reference.
	e.POST("/loans/:loan_id/payments/stk/callback", stkH.Callback)

	addr := ":" + cfg.AppPort
	log.Printf("listening on %s", addr)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
