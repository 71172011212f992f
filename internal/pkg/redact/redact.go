// redact — помощники для безопасного логирования чувствительных значений.
// Пароли и токены в логи не попадают никогда, email — в усечённом виде.
package redact

import "strings"

// Email маскирует локальную часть адреса, сохраняя домен.
func Email(s string) string {
	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return "***"
	}

	local, domain := parts[0], parts[1]
	if len(local) > 2 {
		local = local[:2] + "***"
	} else {
		local = "***"
	}

	return local + "@" + domain
}

func Token() string    { return "[REDACTED_TOKEN]" }
func Password() string { return "[REDACTED_PASSWORD]" }
