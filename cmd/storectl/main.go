package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"vipra-store/internal/config"
	"vipra-store/internal/db"
	"vipra-store/internal/logger"
	"vipra-store/internal/order"
	"vipra-store/internal/product"
)

func main() {
	logger.Init(os.Getenv("APP_ENV"), false)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{open: openDB}
	defer a.close()

	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDB() (*sql.DB, error) {
	d, err := config.LoadDatabase()
	if err != nil {
		return nil, err
	}
	return db.Open(d)
}

// app holds the services a command needs. They are built on first use so
// that --help never touches the database.
type app struct {
	open func() (*sql.DB, error)

	db       *sql.DB
	products product.Service
	orders   order.Repository
}

func (a *app) connect() error {
	if a.products != nil && a.orders != nil {
		return nil
	}

	database, err := a.open()
	if err != nil {
		return err
	}
	a.db = database
	a.products = product.NewService(product.NewRepository(database))
	a.orders = order.NewRepository(database)
	return nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}
