package cache

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// NamespaceKey turns a namespace into a key that is safe to use as a
// filename, a Redis key, or a SQL primary key.
func NamespaceKey(namespace string) string {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = DefaultNamespace
	}

	// For very long keys, use hash to avoid filesystem limits
	if len(namespace) > 200 {
		hash := md5.Sum([]byte(namespace))
		return fmt.Sprintf("hash_%x", hash)
	}

	unsafe := []string{"/", "\\", ":", "?", "&", "=", "#", "<", ">", "|", "*", "\"", " "}
	result := namespace
	for _, char := range unsafe {
		result = strings.ReplaceAll(result, char, "_")
	}

	return result
}
