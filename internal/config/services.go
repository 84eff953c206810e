package config

import (
	"time"

	"github.com/joao-fontenele/storefront-checkout/internal/payment"
)

// Common is shared by every service binary.
type Common struct {
	Port         string
	LogLevel     string
	OTLPEndpoint string
}

type Database struct {
	URL    string
	Schema string
}

type Kafka struct {
	Brokers []string
	Topic   string
}

type Orders struct {
	Common
	Database
	Kafka

	Gateway         payment.Config
	GatewayCurrency string
	GatewayTimeout  time.Duration

	AdminAPIKey     string
	VerifyRateLimit float64
	VerifyRateBurst int
}

type Inventory struct {
	Common
	Database
}

type Worker struct {
	Common
	Kafka

	GroupID         string
	EmailServiceURL string
}

type Email struct {
	Common

	SMTPAddr     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
}

type Gateway struct {
	Common

	OrdersServiceURL    string
	InventoryServiceURL string
}

func loadCommon(defaultPort string) Common {
	return Common{
		Port:         EnvDefault("PORT", defaultPort),
		LogLevel:     EnvDefault("LOG_LEVEL", "info"),
		OTLPEndpoint: EnvDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}
}

func loadDatabase() (Database, error) {
	if err := Require("POSTGRES_URL"); err != nil {
		return Database{}, err
	}
	return Database{
		URL:    EnvDefault("POSTGRES_URL", ""),
		Schema: EnvDefault("DB_SCHEMA", "storefront"),
	}, nil
}

func loadKafka() (Kafka, error) {
	if err := Require("KAFKA_BROKERS"); err != nil {
		return Kafka{}, err
	}
	return Kafka{
		Brokers: CSV(EnvDefault("KAFKA_BROKERS", "")),
		Topic:   EnvDefault("ORDER_EVENTS_TOPIC", "order.events"),
	}, nil
}

func LoadOrders() (Orders, error) {
	db, err := loadDatabase()
	if err != nil {
		return Orders{}, err
	}
	k, err := loadKafka()
	if err != nil {
		return Orders{}, err
	}
	return Orders{
		Common:   loadCommon("8080"),
		Database: db,
		Kafka:    k,
		Gateway: payment.Config{
			KeyID:     EnvDefault("GATEWAY_KEY_ID", ""),
			KeySecret: EnvDefault("GATEWAY_KEY_SECRET", ""),
			BaseURL:   EnvDefault("GATEWAY_BASE_URL", payment.DefaultBaseURL),
		},
		GatewayCurrency: EnvDefault("GATEWAY_CURRENCY", "INR"),
		GatewayTimeout:  EnvDurationDefault("GATEWAY_TIMEOUT", 10*time.Second),
		AdminAPIKey:     EnvDefault("ADMIN_API_KEY", ""),
		VerifyRateLimit: EnvFloatDefault("VERIFY_RATE_LIMIT", 5),
		VerifyRateBurst: EnvIntDefault("VERIFY_RATE_BURST", 10),
	}, nil
}

func LoadInventory() (Inventory, error) {
	db, err := loadDatabase()
	if err != nil {
		return Inventory{}, err
	}
	return Inventory{Common: loadCommon("8081"), Database: db}, nil
}

func LoadWorker() (Worker, error) {
	k, err := loadKafka()
	if err != nil {
		return Worker{}, err
	}
	if err := Require("EMAIL_SERVICE_URL"); err != nil {
		return Worker{}, err
	}
	return Worker{
		Common:          loadCommon("8083"),
		Kafka:           k,
		GroupID:         EnvDefault("WORKER_GROUP_ID", "notification-worker"),
		EmailServiceURL: EnvDefault("EMAIL_SERVICE_URL", ""),
	}, nil
}

func LoadEmail() Email {
	return Email{
		Common:       loadCommon("8082"),
		SMTPAddr:     EnvDefault("SMTP_ADDR", ""),
		SMTPFrom:     EnvDefault("SMTP_FROM", "orders@storefront.local"),
		SMTPUsername: EnvDefault("SMTP_USERNAME", ""),
		SMTPPassword: EnvDefault("SMTP_PASSWORD", ""),
	}
}

func LoadGateway() (Gateway, error) {
	if err := Require("ORDERS_SERVICE_URL", "INVENTORY_SERVICE_URL"); err != nil {
		return Gateway{}, err
	}
	return Gateway{
		Common:              loadCommon("8000"),
		OrdersServiceURL:    EnvDefault("ORDERS_SERVICE_URL", ""),
		InventoryServiceURL: EnvDefault("INVENTORY_SERVICE_URL", ""),
	}, nil
}
