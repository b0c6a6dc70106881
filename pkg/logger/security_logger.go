package logger

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
)

var (
	urlPattern    = regexp.MustCompile(`(https?|postgres(ql)?)://[^\s]+`)
	secretPattern = regexp.MustCompile(`(?i)(key|token|secret|password)[=:]\s*[^\s&]+`)
)

// SecurityLogger masks endpoints, DSNs and credentials before they reach the log.
type SecurityLogger struct {
	*Logger
}

func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{Logger: GetLogger()}
}

// MaskURL keeps the host and replaces the rest with a short hash.
func (sl *SecurityLogger) MaskURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "url#" + sl.GenerateHash(rawURL)
	}
	return fmt.Sprintf("%s#%s", parsed.Hostname(), sl.GenerateHash(rawURL))
}

// MaskDSN hides user, password and query parameters of a database DSN.
func (sl *SecurityLogger) MaskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	parsed, err := url.Parse(dsn)
	if err != nil || parsed.Host == "" {
		return "dsn#" + sl.GenerateHash(dsn)
	}
	return fmt.Sprintf("%s://%s%s", parsed.Scheme, parsed.Host, parsed.Path)
}

// MaskSecret reports only whether a secret is set.
func (sl *SecurityLogger) MaskSecret(secret string) string {
	if secret == "" {
		return "<unset>"
	}
	return "***"
}

// MaskSensitiveData returns a copy of data with recognised sensitive keys masked.
func (sl *SecurityLogger) MaskSensitiveData(data map[string]interface{}) map[string]interface{} {
	masked := make(map[string]interface{}, len(data))
	for key, value := range data {
		lower := strings.ToLower(key)
		str, isString := value.(string)
		switch {
		case !isString:
			masked[key] = value
		case strings.Contains(lower, "dsn") || strings.Contains(lower, "database_url"):
			masked[key] = sl.MaskDSN(str)
		case strings.Contains(lower, "key") || strings.Contains(lower, "secret") || strings.Contains(lower, "password"):
			masked[key] = sl.MaskSecret(str)
		case strings.Contains(lower, "url") || strings.Contains(lower, "endpoint"):
			masked[key] = sl.MaskURL(str)
		default:
			masked[key] = value
		}
	}
	return masked
}

// MaskLogMessage rewrites URLs and inline credentials found in free text.
func (sl *SecurityLogger) MaskLogMessage(message string) string {
	masked := urlPattern.ReplaceAllStringFunc(message, sl.MaskURL)
	return secretPattern.ReplaceAllString(masked, "${1}=***")
}

func (sl *SecurityLogger) SafeInfo(msg string, fields map[string]interface{}) {
	sl.Logger.WithFields(sl.MaskSensitiveData(fields)).Info(sl.MaskLogMessage(msg))
}

func (sl *SecurityLogger) SafeWarn(msg string, fields map[string]interface{}) {
	sl.Logger.WithFields(sl.MaskSensitiveData(fields)).Warn(sl.MaskLogMessage(msg))
}

func (sl *SecurityLogger) SafeError(msg string, err error, fields map[string]interface{}) {
	masked := sl.MaskSensitiveData(fields)
	if err != nil {
		masked["error"] = sl.MaskLogMessage(err.Error())
	}
	sl.Logger.WithFields(masked).Error(sl.MaskLogMessage(msg))
}

// GenerateHash returns the first 8 bytes of the SHA-256 of data, hex encoded.
func (sl *SecurityLogger) GenerateHash(data string) string {
	sum := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", sum[:8])
}

var (
	securityOnce     sync.Once
	securityInstance *SecurityLogger
)

func GetSecurityLogger() *SecurityLogger {
	securityOnce.Do(func() {
		securityInstance = NewSecurityLogger()
	})
	return securityInstance
}
