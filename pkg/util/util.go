package util

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateShortUUID 生成一个不带中划线的短 UUID
func GenerateShortUUID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// ClientID 生成带角色和随机后缀的 Kafka client id，例如 marketflow-consumer-1a2b3c4d
func ClientID(base, role string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "marketflow"
	}
	parts := []string{base}
	if role = strings.TrimSpace(role); role != "" {
		parts = append(parts, role)
	}
	parts = append(parts, GenerateShortUUID()[:8])
	return strings.Join(parts, "-")
}
