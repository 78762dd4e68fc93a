package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	APIToken    string `env:"API_TOKEN"`

	Database Database `envPrefix:"DATABASE_"`
	Pricing  Pricing  `envPrefix:"PRICING_"`
	Gateway  Gateway  `envPrefix:"GATEWAY_"`
}

type Database struct {
	Driver string `env:"DRIVER" envDefault:"sqlite"`
	URL    string `env:"URL" envDefault:"storefront.db"`
}

// Pricing keeps the exchange rate as raw text; the calculator falls back to a
// fixed rate when it is empty or not a positive number.
type Pricing struct {
	BaseCurrency  string `env:"BASE_CURRENCY" envDefault:"USD"`
	LocalCurrency string `env:"LOCAL_CURRENCY" envDefault:"BDT"`
	LocalSymbol   string `env:"LOCAL_SYMBOL" envDefault:"৳"`
	ExchangeRate  string `env:"EXCHANGE_RATE"`
}

type Gateway struct {
	BaseURL    string        `env:"BASE_URL"`
	APIKey     string        `env:"API_KEY"`
	MerchantID string        `env:"MERCHANT_ID"`
	WebhookKey string        `env:"WEBHOOK_KEY"`
	Sandbox    bool          `env:"SANDBOX" envDefault:"false"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
