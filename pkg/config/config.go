package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port               string
	DatabaseURL        string
	AppEnv             string
	BaseURL            string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	GoogleUserInfoURL  string
	JWTSecret          string
	FrontendURL        string
	AllowedEmails      []string
	AdminEmails        []string

	LLMProvider   string
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	LLMTimeout    time.Duration

	AskAIMaxTables          int
	AskAIMaxColumnsPerTable int
	AskAIContextMaxChars    int
}

var defaults = map[string]any{
	"PORT":                         "8080",
	"DATABASE_URL":                 "file:db.sqlite",
	"APP_ENV":                      "local",
	"BASE_URL":                     "http://localhost:8080",
	"GOOGLE_CLIENT_ID":             "",
	"GOOGLE_CLIENT_SECRET":         "",
	"GOOGLE_REDIRECT_URL":          "http://localhost:8080/oauth/callback/google",
	"GOOGLE_USERINFO_URL":          "https://www.googleapis.com/oauth2/v2/userinfo",
	"JWT_SECRET":                   "secret",
	"FRONTEND_URL":                 "http://localhost:8080/",
	"ALLOWED_EMAILS":               "",
	"ADMIN_EMAILS":                 "",
	"LLM_PROVIDER":                 "gemini",
	"GEMINI_API_KEY":               "",
	"GEMINI_MODEL":                 "gemini-2.5-flash",
	"GEMINI_BASE_URL":              "https://generativelanguage.googleapis.com/v1beta",
	"LLM_TIMEOUT":                  "60s",
	"ASK_AI_MAX_TABLES":            8,
	"ASK_AI_MAX_COLUMNS_PER_TABLE": 25,
	"ASK_AI_CONTEXT_MAX_CHARS":     15000,
}

// Load reads .env when present, then resolves every key from the environment
// with the defaults above.
func Load() *Config {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Port:               v.GetString("PORT"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		AppEnv:             v.GetString("APP_ENV"),
		BaseURL:            v.GetString("BASE_URL"),
		GoogleClientID:     v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  v.GetString("GOOGLE_REDIRECT_URL"),
		GoogleUserInfoURL:  v.GetString("GOOGLE_USERINFO_URL"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		FrontendURL:        v.GetString("FRONTEND_URL"),
		AllowedEmails:      splitList(v.GetString("ALLOWED_EMAILS")),
		AdminEmails:        splitList(v.GetString("ADMIN_EMAILS")),

		LLMProvider:   strings.ToLower(v.GetString("LLM_PROVIDER")),
		GeminiAPIKey:  v.GetString("GEMINI_API_KEY"),
		GeminiModel:   v.GetString("GEMINI_MODEL"),
		GeminiBaseURL: v.GetString("GEMINI_BASE_URL"),
		LLMTimeout:    v.GetDuration("LLM_TIMEOUT"),

		AskAIMaxTables:          v.GetInt("ASK_AI_MAX_TABLES"),
		AskAIMaxColumnsPerTable: v.GetInt("ASK_AI_MAX_COLUMNS_PER_TABLE"),
		AskAIContextMaxChars:    v.GetInt("ASK_AI_CONTEXT_MAX_CHARS"),
	}
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// IsAdminEmail reports whether email is listed in ADMIN_EMAILS.
func (c *Config) IsAdminEmail(email string) bool {
	return contains(c.AdminEmails, email)
}

// IsAllowedEmail reports whether email may log in. An empty allow-list admits everyone.
func (c *Config) IsAllowedEmail(email string) bool {
	return len(c.AllowedEmails) == 0 || contains(c.AllowedEmails, email)
}

func contains(list []string, email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range list {
		if e == email {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
