package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Summary total day policies.
const (
	PolicyPlaceholder = "placeholder"
	PolicyScheduled   = "scheduled"
)

// Config captures environment driven configuration values for the attendance service.
type Config struct {
	StorageBackend string
	SQLitePath     string
	Location       *time.Location
	TokenSecret    string
	SummaryPolicy  string
	TermStart      *time.Time
	LogLevel       string
	LogFormat      string
	MetricsFile    string
	SeedSampleData bool
}

// LoadFile applies the dotenv file at path and then calls Load. Variables
// already present in the environment take precedence over the file.
func LoadFile(path string) (Config, error) {
	if err := godotenv.Load(path); err != nil {
		return Config{}, fmt.Errorf("設定ファイルを読み込めません: %s: %w", path, err)
	}
	return Load()
}

// Load parses configuration values from the current process environment.
//
// The loader applies defaults for optional fields while validating required
// values and reporting localized error messages for missing entries.
func Load() (Config, error) {
	cfg := Config{
		StorageBackend: BackendSQLite,
		SQLitePath:     "attendance.db",
		Location:       time.UTC,
		SummaryPolicy:  PolicyPlaceholder,
		LogLevel:       "info",
		LogFormat:      "json",
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 4)

	if backend := strings.ToLower(strings.TrimSpace(os.Getenv("ATTENDANCE_STORAGE_BACKEND"))); backend != "" {
		switch backend {
		case BackendSQLite, BackendMemory:
			cfg.StorageBackend = backend
		default:
			invalid = append(invalid, "ATTENDANCE_STORAGE_BACKEND")
		}
	}

	if path := strings.TrimSpace(os.Getenv("ATTENDANCE_SQLITE_PATH")); path != "" {
		cfg.SQLitePath = path
	}

	if zone := strings.TrimSpace(os.Getenv("ATTENDANCE_TIMEZONE")); zone != "" {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			invalid = append(invalid, "ATTENDANCE_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}

	if secret := strings.TrimSpace(os.Getenv("ATTENDANCE_TOKEN_SECRET")); secret == "" {
		missing = append(missing, "ATTENDANCE_TOKEN_SECRET")
	} else {
		cfg.TokenSecret = secret
	}

	if policy := strings.ToLower(strings.TrimSpace(os.Getenv("ATTENDANCE_SUMMARY_POLICY"))); policy != "" {
		switch policy {
		case PolicyPlaceholder, PolicyScheduled:
			cfg.SummaryPolicy = policy
		default:
			invalid = append(invalid, "ATTENDANCE_SUMMARY_POLICY")
		}
	}

	if termStart := strings.TrimSpace(os.Getenv("ATTENDANCE_TERM_START")); termStart != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, termStart, cfg.Location)
		if err != nil {
			invalid = append(invalid, "ATTENDANCE_TERM_START")
		} else {
			cfg.TermStart = &parsed
		}
	}

	if level := strings.ToLower(strings.TrimSpace(os.Getenv("ATTENDANCE_LOG_LEVEL"))); level != "" {
		switch level {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = level
		default:
			invalid = append(invalid, "ATTENDANCE_LOG_LEVEL")
		}
	}

	if format := strings.ToLower(strings.TrimSpace(os.Getenv("ATTENDANCE_LOG_FORMAT"))); format != "" {
		switch format {
		case "json", "text":
			cfg.LogFormat = format
		default:
			invalid = append(invalid, "ATTENDANCE_LOG_FORMAT")
		}
	}

	cfg.MetricsFile = strings.TrimSpace(os.Getenv("ATTENDANCE_METRICS_FILE"))

	if seedValue := strings.TrimSpace(os.Getenv("ATTENDANCE_SEED_SAMPLE_DATA")); seedValue != "" {
		seed, err := strconv.ParseBool(seedValue)
		if err != nil {
			invalid = append(invalid, "ATTENDANCE_SEED_SAMPLE_DATA")
		} else {
			cfg.SeedSampleData = seed
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
