package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	DBFile      string
	Addr        string
	BaseURL     string
	UploadsPath string
	TokenExpiry time.Duration

	// RoomIdleTTL is how long an empty ad-hoc room keeps its membership
	// record before the sweeper drops it.
	RoomIdleTTL time.Duration

	// Web Push is optional; bell notifications are disabled when the VAPID
	// key pair is empty.
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	PushContact     string
}

func Load() (*Config, error) {
	tokenExpiry, err := time.ParseDuration(getEnv("TOKEN_EXPIRY", "24h"))
	if err != nil {
		return nil, err
	}

	roomIdleTTL, err := time.ParseDuration(getEnv("ROOM_IDLE_TTL", "1h"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DBFile:          getEnv("WALKIE_DB", "walkie.db"),
		Addr:            getEnv("ADDR", ":3000"),
		BaseURL:         getEnv("BASE_URL", "http://localhost:3000"),
		UploadsPath:     getEnv("UPLOADS_PATH", "uploads"),
		TokenExpiry:     tokenExpiry,
		RoomIdleTTL:     roomIdleTTL,
		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		PushContact:     getEnv("PUSH_CONTACT", "mailto:admin@localhost"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.TokenExpiry <= 0 {
		return fmt.Errorf("TOKEN_EXPIRY must be greater than 0")
	}

	if c.RoomIdleTTL <= 0 {
		return fmt.Errorf("ROOM_IDLE_TTL must be greater than 0")
	}

	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		return fmt.Errorf("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must be set together")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
