package config

type Config struct {
	CustomersAddr string
}
