package main

import (
	"log"

	"github.com/tiendita/pedidos/internal/auth"
	"github.com/tiendita/pedidos/internal/config"
	"github.com/tiendita/pedidos/internal/handler"
	"github.com/tiendita/pedidos/internal/logger"
	"github.com/tiendita/pedidos/internal/service"
	"github.com/tiendita/pedidos/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := config.GetConfig()

	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}

	var st store.Store
	if cfg.Store.DBDsn != "" {
		st, err = store.NewStore(cfg.Store)
		if err != nil {
			return err
		}
	} else {
		st = store.NewMemStore()
	}

	auth := auth.NewAuth(cfg.Handler.AuthSecret)
	service := service.NewService(cfg.Service, st)

	return handler.Serve(cfg.Handler, auth, service, zaplog)
}
