package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"microloan-backend/internal/ledger"
)

type Config struct {
	AppPort string

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	RedisAddr string
	RedisDB   int

	IdempTTLSecs int

	// Loan product policy. Defaults: flat 10% over 30 days, 5000 minimum.
	LoanMinPrincipal decimal.Decimal
	LoanInterestRate decimal.Decimal
	LoanPeriodDays   int
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func Load() *Config {
	c := &Config{
		AppPort:   getenv("APP_PORT", "8080"),
		MySQLHost: getenv("MYSQL_HOST", "mysql"),
		MySQLPort: getenv("MYSQL_PORT", "3306"),
		MySQLDB:   getenv("MYSQL_DB", "microloan"),
		MySQLUser: getenv("MYSQL_USER", "microloan"),
		MySQLPass: getenv("MYSQL_PASS", "microloan"),

		RedisAddr:    getenv("REDIS_ADDR", "redis:6379"),
		IdempTTLSecs: 300,

		LoanMinPrincipal: decimal.NewFromInt(5000),
		LoanInterestRate: decimal.NewFromFloat(0.10),
		LoanPeriodDays:   30,
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RedisDB = n
		}
	}
	if v := os.Getenv("IDEMPOTENCY_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.IdempTTLSecs = n
		}
	}
	if v := os.Getenv("LOAN_MIN_PRINCIPAL"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			c.LoanMinPrincipal = d
		}
	}
	if v := os.Getenv("LOAN_INTEREST_RATE"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			c.LoanInterestRate = d
		}
	}
	if v := os.Getenv("LOAN_PERIOD_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LoanPeriodDays = n
		}
	}
	return c
}

func (c *Config) Validate() error {
	if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
		return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
	}
	if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
		return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
	}
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	if c.LoanMinPrincipal.IsNegative() || !c.LoanInterestRate.IsPositive() || c.LoanPeriodDays <= 0 {
		return errors.New("invalid loan policy (LOAN_MIN_PRINCIPAL/LOAN_INTEREST_RATE/LOAN_PERIOD_DAYS)")
	}
	return nil
}

func (c *Config) Policy() ledger.Policy {
	return ledger.Policy{
		MinPrincipal: c.LoanMinPrincipal,
		InterestRate: c.LoanInterestRate,
		PeriodDays:   c.LoanPeriodDays,
	}
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// multiStatements=true is handy for migrations; parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?multiStatements=true&parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}
