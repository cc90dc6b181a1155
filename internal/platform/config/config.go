package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

const defaultCandidates = "Candidate A,Candidate B,Candidate C"

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string
	AutoMigrate  bool

	Candidates            []string
	MinimumVotingAge      int
	FaceMatchThreshold    float64
	FaceCascadeDir        string
	SessionTTL            time.Duration
	ResetRequiresReenroll bool

	OutboxPollInterval     time.Duration
	OutboxBatchSize        int
	EnableVoteCastNotifier bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "ballotbooth"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	rawCandidates := os.Getenv("CANDIDATES")
	if strings.TrimSpace(rawCandidates) == "" {
		rawCandidates = defaultCandidates
	}
	candidates := ParseCandidates(rawCandidates)
	if len(candidates) == 0 {
		return Config{}, fmt.Errorf("CANDIDATES must list at least one candidate")
	}

	threshold, err := envFloat("FACE_MATCH_THRESHOLD", 0.4)
	if err != nil {
		return Config{}, err
	}
	if !(threshold > 0) || math.IsInf(threshold, 0) {
		return Config{}, fmt.Errorf("FACE_MATCH_THRESHOLD must be a positive finite number, got %v", threshold)
	}
	cascadeDir := strings.TrimSpace(os.Getenv("FACE_CASCADE_DIR"))
	if cascadeDir == "" {
		cascadeDir = "cascade"
	}
	minimumAge, err := envInt("MINIMUM_VOTING_AGE", 18)
	if err != nil {
		return Config{}, err
	}
	sessionTTL, err := envDuration("SESSION_TTL", 15*time.Minute)
	if err != nil {
		return Config{}, err
	}
	pollInterval, err := envDuration("OUTBOX_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		return Config{}, err
	}
	batchSize, err := envInt("OUTBOX_BATCH_SIZE", 100)
	if err != nil {
		return Config{}, err
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,
		AutoMigrate:  envBool("AUTO_MIGRATE", true),

		Candidates:            candidates,
		MinimumVotingAge:      minimumAge,
		FaceMatchThreshold:    threshold,
		FaceCascadeDir:        cascadeDir,
		SessionTTL:            sessionTTL,
		ResetRequiresReenroll: envBool("RESET_REQUIRES_REENROLL", false),

		OutboxPollInterval:     pollInterval,
		OutboxBatchSize:        batchSize,
		EnableVoteCastNotifier: envBool("ENABLE_VOTE_CAST_NOTIFIER", true),
	}, nil
}

// ParseCandidates splits a comma list into NFC-normalized labels, dropping
// blanks and later duplicates.
func ParseCandidates(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, value := range strings.Split(raw, ",") {
		value = norm.NFC.String(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return value, nil
}

func envFloat(name string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return value, nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return value, nil
}
