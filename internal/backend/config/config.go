package config

type Config struct {
	BaseURL string `yaml:"base_url"`
}
