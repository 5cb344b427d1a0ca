// Package envreg resolves per-environment backend settings: connection
// string, server name, and headers, with transparent decryption of
// encrypted settings files and a global environment allow-list.
package envreg

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/melosso/portway/internal/gwerr"
)

// Environment is the resolved, read-only view of one environment.
type Environment struct {
	Name       string
	ServerName string
	Conn       Secret
	Headers    map[string]string
}

// SecretStore is the optional remote secret backend (KeyVault-style). The
// real implementation is an external collaborator per spec §1/§6; we only
// pin its key-naming contract and ship a disabled no-op default.
type SecretStore interface {
	// Lookup returns the value for key, or ("", false) if absent.
	Lookup(key string) (string, bool)
}

type noopSecretStore struct{}

func (noopSecretStore) Lookup(string) (string, bool) { return "", false }

// rawSettings mirrors the on-disk settings.json shape.
type rawSettings struct {
	ConnectionString string            `json:"ConnectionString"`
	ServerName       string            `json:"ServerName"`
	Headers          map[string]string `json:"Headers"`
}

// Registry resolves and caches Environment values, supporting copy-on-
// reload: Reload() swaps in a brand new map, never mutating a snapshot a
// request already holds.
type Registry struct {
	root        string
	allowList   map[string]bool // lower-cased names
	secrets     SecretStore
	decryptor   *Decryptor

	mu   sync.RWMutex
	envs map[string]*Environment // lower-cased name -> snapshot
}

// NewRegistry builds a Registry rooted at dir (environments/), requiring
// dir/settings.json to declare the global allow-list as {"Environments":
// ["prod", "test", ...]}.
func NewRegistry(dir string, secrets SecretStore, decryptor *Decryptor) (*Registry, error) {
	if secrets == nil {
		secrets = noopSecretStore{}
	}
	r := &Registry{
		root:      dir,
		secrets:   secrets,
		decryptor: decryptor,
		envs:      map[string]*Environment{},
	}
	allowList, err := loadAllowList(filepath.Join(dir, "settings.json"))
	if err != nil {
		return nil, err
	}
	r.allowList = allowList
	return r, nil
}

func loadAllowList(path string) (map[string]bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, gwerr.New(gwerr.CodeConfigInvalid, "envreg.allowlist", path, err).WithDetail("missing global environment allow-list")
	}
	var parsed struct {
		Environments []string `json:"Environments"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, gwerr.New(gwerr.CodeConfigInvalid, "envreg.allowlist", path, err)
	}
	out := map[string]bool{}
	for _, name := range parsed.Environments {
		out[strings.ToLower(strings.TrimSpace(name))] = true
	}
	return out, nil
}

// IsAllowed reports whether name is in the global allow-list, case-insensitive.
func (r *Registry) IsAllowed(name string) bool {
	return r.allowList[strings.ToLower(strings.TrimSpace(name))]
}

// Environments returns every environment name in the global allow-list, for
// health aggregation and similar enumeration needs.
func (r *Registry) Environments() []string {
	out := make([]string, 0, len(r.allowList))
	for name := range r.allowList {
		out = append(out, name)
	}
	return out
}

// Resolve returns the Environment for name, loading it lazily on first
// reference (or re-using the cached snapshot from the last reload).
func (r *Registry) Resolve(name string) (*Environment, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if !r.allowList[key] {
		return nil, gwerr.New(gwerr.CodeNotFound, "envreg.resolve", name, nil)
	}

	r.mu.RLock()
	cached, ok := r.envs[key]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	env, err := r.load(key)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.envs[key] = env
	r.mu.Unlock()
	return env, nil
}

// Reload forces name's settings to be re-read from disk/secret-store,
// replacing (copy-on-reload) rather than mutating the previous snapshot.
func (r *Registry) Reload(name string) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if !r.allowList[key] {
		return gwerr.New(gwerr.CodeNotFound, "envreg.reload", name, nil)
	}
	env, err := r.load(key)
	if err != nil {
		return err
	}
	r.mu.Lock()
	old := r.envs[key]
	r.envs[key] = env
	r.mu.Unlock()
	if old != nil {
		old.Conn.Wipe()
	}
	return nil
}

func (r *Registry) load(key string) (*Environment, error) {
	conn, hasConn := r.secrets.Lookup(key + "-ConnectionString")
	serverName, _ := r.secrets.Lookup(key + "-ServerName")
	headersRaw, hasHeaders := r.secrets.Lookup(key + "-Headers")

	var headers map[string]string
	if hasHeaders {
		_ = json.Unmarshal([]byte(headersRaw), &headers)
	}

	if !hasConn {
		settingsPath := filepath.Join(r.root, key, "settings.json")
		body, err := os.ReadFile(settingsPath)
		if err != nil {
			return nil, gwerr.New(gwerr.CodeEnvironmentMisconfigured, "envreg.load", key, err)
		}
		if IsEncrypted(body) {
			if r.decryptor == nil {
				return nil, gwerr.New(gwerr.CodeSettingsDecryptUnavail, "envreg.load", key, nil)
			}
			plain, err := r.decryptor.Decrypt(body)
			if err != nil {
				return nil, gwerr.New(gwerr.CodeSettingsDecryptUnavail, "envreg.load", key, err)
			}
			body = plain
		}
		var raw rawSettings
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, gwerr.New(gwerr.CodeEnvironmentMisconfigured, "envreg.load", key, err)
		}
		if strings.TrimSpace(raw.ConnectionString) == "" {
			return nil, gwerr.New(gwerr.CodeEnvironmentMisconfigured, "envreg.load", key, nil).
				WithDetail("ConnectionString is required")
		}
		conn = raw.ConnectionString
		if serverName == "" {
			serverName = raw.ServerName
		}
		if headers == nil {
			headers = raw.Headers
		}
	}

	if headers == nil {
		headers = map[string]string{}
	}
	if _, ok := headers["DatabaseName"]; !ok {
		headers["DatabaseName"] = key
	}
	if _, ok := headers["ServerName"]; !ok {
		headers["ServerName"] = serverName
	}

	return &Environment{
		Name:       key,
		ServerName: serverName,
		Conn:       NewSecret(conn),
		Headers:    headers,
	}, nil
}

// MaskedConnection renders env's connection string through Masked, for
// logging.
func MaskedConnection(env *Environment) map[string]string {
	if env == nil {
		return nil
	}
	return Masked(env.Conn.Reveal())
}
