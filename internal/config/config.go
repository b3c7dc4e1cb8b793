package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Vendor configures one vendor process.
type Vendor struct {
	Port          string
	Profile       string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Settlement configures the settlement process.
type Settlement struct {
	Port              string
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	SettleDelaySecs   int
	SettleSuccessRate float64
}

// Agent configures the caller process.
type Agent struct {
	VendorURLs      []string
	SettlementURL   string
	PayerRef        string
	SigningSeedHex  string
	PreferencesPath string
	AuditPath       string
	KafkaBrokers    []string
	KafkaTopic      string
	PollIntervalSec int
	WaitTimeoutSec  int
}

func LoadVendor() Vendor {
	return Vendor{
		Port:          getEnv("PORT", "8081"),
		Profile:       getEnv("VENDOR_PROFILE", "standard"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
	}
}

func LoadSettlement() Settlement {
	rate, err := strconv.ParseFloat(getEnv("SETTLE_SUCCESS_RATE", "0.9"), 64)
	if err != nil || rate < 0 || rate > 1 {
		rate = 0.9
	}
	return Settlement{
		Port:              getEnv("PORT", "8082"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		SettleDelaySecs:   getEnvInt("SETTLE_DELAY_SECONDS", 2),
		SettleSuccessRate: rate,
	}
}

func LoadAgent() Agent {
	return Agent{
		VendorURLs:      splitList(getEnv("VENDOR_URLS", "http://localhost:8081")),
		SettlementURL:   getEnv("SETTLEMENT_URL", "http://localhost:8082"),
		PayerRef:        getEnv("PAYER_REF", "team-snacks"),
		SigningSeedHex:  strings.TrimSpace(os.Getenv("SIGNING_SEED_HEX")),
		PreferencesPath: os.Getenv("PREFERENCES_PATH"),
		AuditPath:       getEnv("AUDIT_PATH", "audit.log"),
		KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "snackpay-events"),
		PollIntervalSec: getEnvInt("POLL_INTERVAL_SECONDS", 2),
		WaitTimeoutSec:  getEnvInt("WAIT_TIMEOUT_SECONDS", 30),
	}
}

func (v Vendor) Address() string     { return fmt.Sprintf(":%s", v.Port) }
func (s Settlement) Address() string { return fmt.Sprintf(":%s", s.Port) }

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int) int {
	val, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return val
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
