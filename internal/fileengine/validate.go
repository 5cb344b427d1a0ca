package fileengine

import (
	"path/filepath"
	"strings"

	"github.com/melosso/portway/internal/gwerr"
)

// defaultBlockedExtensions ships even when an endpoint declares no
// explicit deny-list, per §4.7's "includes executables by default".
var defaultBlockedExtensions = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".bat": true,
	".cmd": true, ".sh": true, ".ps1": true, ".msi": true,
}

// ValidateUpload checks size and extension before any bytes are written.
func ValidateUpload(fileName string, size, maxSize int64, allowedExtensions, blockedExtensions []string) error {
	if maxSize > 0 && size > maxSize {
		return gwerr.New(gwerr.CodeFileTooLarge, "fileengine.validate", fileName, nil)
	}
	ext := strings.ToLower(filepath.Ext(fileName))

	blocked := map[string]bool{}
	for k := range defaultBlockedExtensions {
		blocked[k] = true
	}
	for _, e := range blockedExtensions {
		blocked[strings.ToLower(strings.TrimSpace(e))] = true
	}
	if blocked[ext] {
		return gwerr.New(gwerr.CodeExtensionDenied, "fileengine.validate", fileName, nil)
	}

	if len(allowedExtensions) > 0 {
		ok := false
		for _, e := range allowedExtensions {
			if strings.ToLower(strings.TrimSpace(e)) == ext {
				ok = true
				break
			}
		}
		if !ok {
			return gwerr.New(gwerr.CodeExtensionDenied, "fileengine.validate", fileName, nil).
				WithDetail("extension not in the endpoint's allow-list")
		}
	}
	return nil
}
