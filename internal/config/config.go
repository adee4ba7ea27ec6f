package config

import (
	"flag"
	"os"

	handlerConfig "github.com/tiendita/pedidos/internal/handler/config"
	loggerConfig "github.com/tiendita/pedidos/internal/logger/config"
	serviceConfig "github.com/tiendita/pedidos/internal/service/config"
	storeConfig "github.com/tiendita/pedidos/internal/store/config"
)

type Config struct {
	Handler handlerConfig.Config
	Service serviceConfig.Config
	Store   storeConfig.Config
	Logger  loggerConfig.Config
}

func GetConfig() Config {
	var cfg Config

	flag.StringVar(&cfg.Handler.ServerAddr, "a", ":8080", "server address")
	flag.StringVar(&cfg.Handler.AuthSecret, "s", "", "session token secret")
	flag.StringVar(&cfg.Store.DBDsn, "d", "", "database dsn (empty runs the in-memory store)")
	flag.StringVar(&cfg.Service.CustomersAddr, "c", "", "customer directory address")
	flag.StringVar(&cfg.Logger.LogLevel, "l", "info", "log level")
	flag.Parse()

	if v, ok := os.LookupEnv("RUN_ADDRESS"); ok {
		cfg.Handler.ServerAddr = v
	}
	if v, ok := os.LookupEnv("AUTH_SECRET"); ok {
		cfg.Handler.AuthSecret = v
	}
	if v, ok := os.LookupEnv("DATABASE_URI"); ok {
		cfg.Store.DBDsn = v
	}
	if v, ok := os.LookupEnv("CUSTOMERS_ADDRESS"); ok {
		cfg.Service.CustomersAddr = v
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		cfg.Logger.LogLevel = v
	}

	return cfg
}
