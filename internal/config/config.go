package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port             string
	ConsulAddress    string
	ServiceName      string
	ServiceID        string
	ServiceAddress   string
	RabbitMQUSer     string
	RabbitMQPassword string
	RabbitMQPort     string
	JWTSecret        string
	JWTExpired       int64

	CacheTTLSeconds     int64
	AuditRetentionDays  int64
	CleanupIntervalMins int64
	ResetWindowSeconds  int64

	BotOwners []int64
	BotAdmins []int64

	OwnerScoreThreshold     float64
	NameConfidenceThreshold float64
}

func init() {
	ServiceConfig = New()
}

var ServiceConfig *Config

func New() *Config {
	jwt_expired_str := getEnv("TOKEN_EXPIRY_TIME", "24")
	jwt_expired, _ := strconv.Atoi(jwt_expired_str)

	return &Config{
		Port:             getEnv("PORT", "9200"),
		RabbitMQUSer:     getEnv("RABBITMQ_USER", ""),
		RabbitMQPassword: getEnv("RABBITMQ_PASSWORD", ""),
		RabbitMQPort:     getEnv("RABBITMQ_PORT", ""),
		ConsulAddress:    "consul-server:" + getEnv("CONSUL_PORT", "8500"),
		ServiceName:      getEnv("PERMISSION_SERVICE_NAME", "permission-service"),
		ServiceID:        getEnv("PERMISSION_SERVICE_NAME", "permission-service") + "-" + getEnv("PERMISSION_HOSTNAME", "1"),
		ServiceAddress:   getEnv("PERMISSION_SERVICE_ADDRESS", "permission-service"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTExpired:       int64(jwt_expired),

		CacheTTLSeconds:     getEnvInt("PERMISSION_CACHE_TTL", 300),
		AuditRetentionDays:  getEnvInt("AUDIT_RETENTION_DAYS", 30),
		CleanupIntervalMins: getEnvInt("CLEANUP_INTERVAL_MINUTES", 60),
		ResetWindowSeconds:  getEnvInt("RESET_CONFIRM_WINDOW", 30),

		BotOwners: getEnvIDList("BOT_OWNER_IDS"),
		BotAdmins: getEnvIDList("BOT_ADMIN_IDS"),

		OwnerScoreThreshold:     getEnvFloat("OWNER_SCORE_THRESHOLD", 0.6),
		NameConfidenceThreshold: getEnvFloat("NAME_CONFIDENCE_THRESHOLD", 0.7),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Error Retriving ENV: %s not exist", key)
	return fallback
}

func getEnvInt(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
		log.Printf("Error parsing ENV %s, using %d", key, fallback)
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
		log.Printf("Error parsing ENV %s, using %f", key, fallback)
	}
	return fallback
}

// getEnvIDList parses a comma-separated id list; malformed entries are
// skipped with a log line.
func getEnvIDList(key string) []int64 {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			log.Printf("Error parsing ENV %s entry %q: %v", key, part, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
