package config

type Config struct {
	ServerAddr string
	AuthSecret string
}
