package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Cloudinary CloudinaryConfig
	Booking    BookingConfig
	Mpesa      MpesaConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

type BookingConfig struct {
	// CommissionPercent is the platform cut retained from each booking.
	CommissionPercent int64
	// PaymentSLA is how long to wait for the STK callback before manual
	// reconciliation is allowed.
	PaymentSLA time.Duration
}

// M-Pesa Daraja environments. The sandbox amount override is only honored
// for EnvSandbox; see MpesaConfig.EffectiveAmount.
const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"
)

// MpesaConfig holds Safaricom Daraja credentials. Passed into the client
// constructor; nothing reads the process environment after Load().
type MpesaConfig struct {
	Environment        string
	ConsumerKey        string
	ConsumerSecret     string
	Passkey            string
	ShortCode          string
	TillNumber         string
	InitiatorName      string
	SecurityCredential string
	CallbackBaseURL    string // public base, e.g. https://jikonnect.co.ke
	// SandboxAmountKES, when > 0, replaces the real charge amount so sandbox
	// runs do not prompt for full booking prices. Ignored in production.
	SandboxAmountKES int64
}

// BaseURL returns the Daraja API host for the configured environment.
func (m *MpesaConfig) BaseURL() string {
	if m.Environment == EnvProduction {
		return "https://api.safaricom.co.ke"
	}
	return "https://sandbox.safaricom.co.ke"
}

// EffectiveAmount applies the sandbox test-amount override. Any non-sandbox
// environment always gets the real amount.
func (m *MpesaConfig) EffectiveAmount(amountKES int64) int64 {
	if m.Environment == EnvSandbox && m.SandboxAmountKES > 0 {
		return m.SandboxAmountKES
	}
	return amountKES
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getenv("PORT", "8080"),
			Env:          getenv("APP_ENV", "development"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             getenv("DATABASE_DSN", "jikonnect:jikonnect@tcp(localhost:3306)/jikonnect?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret:  getenv("JWT_ACCESS_SECRET", "change-me-in-production"),
			RefreshSecret: getenv("JWT_REFRESH_SECRET", "change-me-refresh"),
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 168 * time.Hour,
			Issuer:        "jikonnect",
		},
		Cloudinary: CloudinaryConfig{
			CloudName: getenv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    getenv("CLOUDINARY_API_KEY", ""),
			APISecret: getenv("CLOUDINARY_API_SECRET", ""),
		},
		Booking: BookingConfig{
			CommissionPercent: getenvInt("BOOKING_COMMISSION_PERCENT", 10),
			PaymentSLA:        2 * time.Minute,
		},
		Mpesa: MpesaConfig{
			Environment:        getenv("MPESA_ENV", EnvSandbox),
			ConsumerKey:        getenv("MPESA_CONSUMER_KEY", ""),
			ConsumerSecret:     getenv("MPESA_CONSUMER_SECRET", ""),
			Passkey:            getenv("MPESA_PASSKEY", ""),
			ShortCode:          getenv("MPESA_SHORTCODE", "174379"),
			TillNumber:         getenv("MPESA_TILL_NUMBER", getenv("MPESA_SHORTCODE", "174379")),
			InitiatorName:      getenv("MPESA_INITIATOR_NAME", ""),
			SecurityCredential: getenv("MPESA_SECURITY_CREDENTIAL", ""),
			CallbackBaseURL:    getenv("MPESA_CALLBACK_BASE_URL", ""),
			SandboxAmountKES:   getenvInt("MPESA_SANDBOX_AMOUNT_KES", 0),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
