package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type FilesConfig struct {
	RootDir string `yaml:"root_dir"`
}

type MpesaConfig struct {
	BaseURL     string `yaml:"base_url"`
	ConsumerKey string `yaml:"consumer_key"`
	Secret      string `yaml:"consumer_secret"`
	ShortCode   string `yaml:"short_code"`
	Passkey     string `yaml:"passkey"`
	CallbackURL string `yaml:"callback_url"`
	DryRun      bool   `yaml:"dry_run"`
}

type TelegramConfig struct {
	BotToken    string `yaml:"bot_token"`
	AdminChatID int64  `yaml:"admin_chat_id"`
}

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`
	JWT struct {
		Secret string `yaml:"secret"`
	} `yaml:"jwt"`
	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUser     string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
	} `yaml:"email"`
	Files    FilesConfig    `yaml:"files"`
	Mpesa    MpesaConfig    `yaml:"mpesa"`
	Telegram TelegramConfig `yaml:"telegram"`
}

func LoadConfig() *Config {
	// .env is optional; real deployments set the variables directly
	_ = godotenv.Load()

	var cfg Config
	if f, err := os.Open("config/config.yaml"); err == nil {
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			panic("Failed to parse config.yaml: " + err.Error())
		}
	}

	// env overrides for everything secret-ish
	overrideString(&cfg.Database.DSN, "DATABASE_URL")
	overrideString(&cfg.JWT.Secret, "JWT_SECRET")
	overrideString(&cfg.Email.SMTPHost, "SMTP_HOST")
	overrideString(&cfg.Email.SMTPUser, "SMTP_USER")
	overrideString(&cfg.Email.SMTPPassword, "SMTP_PASSWORD")
	overrideString(&cfg.Email.FromEmail, "SMTP_FROM")
	overrideInt(&cfg.Email.SMTPPort, "SMTP_PORT")
	overrideString(&cfg.Mpesa.ConsumerKey, "MPESA_CONSUMER_KEY")
	overrideString(&cfg.Mpesa.Secret, "MPESA_CONSUMER_SECRET")
	overrideString(&cfg.Mpesa.ShortCode, "MPESA_SHORT_CODE")
	overrideString(&cfg.Mpesa.Passkey, "MPESA_PASSKEY")
	overrideString(&cfg.Mpesa.CallbackURL, "MPESA_CALLBACK_URL")
	overrideString(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Files.RootDir == "" {
		cfg.Files.RootDir = "./files"
	}
	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = "dev-secret-change-me"
	}
	// no Daraja credentials -> simulated gateway
	if cfg.Mpesa.ConsumerKey == "" {
		cfg.Mpesa.DryRun = true
	}
	if cfg.Mpesa.BaseURL == "" {
		cfg.Mpesa.BaseURL = "https://sandbox.safaricom.co.ke"
	}
	return &cfg
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
