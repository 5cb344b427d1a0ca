// Package fileengine implements the File endpoint execution strategy:
// upload/download/delete/list against a per-environment directory, with a
// hybrid memory+disk store and a periodically reconciled listing index.
package fileengine

import (
	"encoding/base64"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/melosso/portway/internal/gwerr"
)

// absPrefix marks a fileId minted from the absolute-path upload variant.
const absPrefix = "ABS:"

// invalidPathChars is stripped from an uploaded file name before it's used
// as a relative path component.
var invalidPathChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFileName strips directory components and replaces characters
// outside a safe allow-list, so an uploaded name can never escape the
// environment's file root.
func SanitizeFileName(name string) string {
	name = path.Base(strings.TrimSpace(name))
	name = invalidPathChars.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		name = "file"
	}
	return name
}

// EncodeFileID builds the public fileId for a relative path under
// environment: base64url("{env}:{sanitizedRelativePath}").
func EncodeFileID(environment, relativePath string) string {
	raw := environment + ":" + relativePath
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(raw))
}

// EncodeAbsoluteFileID builds the fileId for the absolute-path upload
// variant: the ABS: prefix followed by the same base64url encoding.
func EncodeAbsoluteFileID(environment, relativePath string) string {
	return absPrefix + EncodeFileID(environment, relativePath)
}

// DecodedFileID is a parsed fileId: Environment and RelativePath, plus
// whether it was minted via the absolute-path variant.
type DecodedFileID struct {
	Environment  string
	RelativePath string
	Absolute     bool
}

// DecodeFileID reverses EncodeFileID/EncodeAbsoluteFileID and rejects any
// decoded path that tries to escape the environment root (invariant:
// PathEscape), whether via ".." segments or an absolute path sneaking into
// the non-absolute variant.
func DecodeFileID(fileID string) (DecodedFileID, error) {
	var out DecodedFileID
	raw := fileID
	if strings.HasPrefix(raw, absPrefix) {
		out.Absolute = true
		raw = strings.TrimPrefix(raw, absPrefix)
	}
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(raw)
	if err != nil {
		return DecodedFileID{}, gwerr.New(gwerr.CodeFileNotFound, "fileengine.decode", fileID, err)
	}
	env, relPath, found := strings.Cut(string(decoded), ":")
	if !found {
		return DecodedFileID{}, gwerr.New(gwerr.CodeFileNotFound, "fileengine.decode", fileID, fmt.Errorf("malformed fileId"))
	}
	out.Environment = env
	out.RelativePath = relPath
	if err := guardPathEscape(relPath); err != nil {
		return DecodedFileID{}, err
	}
	if !out.Absolute && path.IsAbs(relPath) {
		return DecodedFileID{}, gwerr.New(gwerr.CodePathEscape, "fileengine.decode", relPath, nil)
	}
	return out, nil
}

func guardPathEscape(relPath string) error {
	cleaned := path.Clean("/" + relPath)
	if cleaned == "/" || strings.Contains(relPath, "..") {
		return gwerr.New(gwerr.CodePathEscape, "fileengine.decode", relPath, nil)
	}
	return nil
}
