package authz

import (
	"context"
	"net/http"
	"strings"

	"github.com/melosso/portway/internal/gwerr"
)

// Decision is the outcome of an authorization check, carried back to the
// router for logging alongside the access log line.
type Decision struct {
	TokenID string
	IsAdmin bool
}

// Authorizer is the request-path authorization filter: extract the bearer
// token, find its row by scanning active tokens for a hash match, and
// match its grants against the requested endpoint scope and environment.
type Authorizer struct {
	store *Store
}

func New(store *Store) *Authorizer {
	return &Authorizer{store: store}
}

// Authorize validates the Authorization header against the token store and
// checks the resulting grants against environment/scope. remoteAddr and
// method are used only for the audit row.
func (a *Authorizer) Authorize(ctx context.Context, header, environment, scope, method, remoteAddr string) (Decision, error) {
	token, err := parseBearer(header)
	if err != nil {
		a.store.AuditAsync(AuditEntry{Operation: OperationFailedAuth, Environment: environment, Endpoint: scope, Method: method,
			Outcome: "denied", Reason: "missing or malformed bearer token", RemoteAddr: remoteAddr})
		return Decision{}, gwerr.New(gwerr.CodeUnauthenticated, "authz.authorize", scope, nil)
	}

	rec, err := a.authenticate(ctx, token)
	if err != nil {
		a.store.AuditAsync(AuditEntry{Operation: OperationFailedAuth, Environment: environment, Endpoint: scope, Method: method,
			Outcome: "denied", Reason: "token hash mismatch", RemoteAddr: remoteAddr})
		return Decision{}, gwerr.New(gwerr.CodeUnauthenticated, "authz.authorize", scope, nil)
	}

	if !rec.IsAdmin {
		if !MatchEnvironment(rec.Environments, environment) {
			a.store.AuditAsync(AuditEntry{TokenID: rec.TokenID, Username: rec.Username, Operation: OperationAuthorizationFailed,
				Environment: environment, Endpoint: scope, Method: method, Outcome: "denied", Reason: "environment not granted",
				RemoteAddr: remoteAddr, ResourceType: "Environment", ResourceName: environment,
				Details: map[string]string{"availableEnvironments": strings.Join(rec.Environments, ",")}})
			return Decision{}, gwerr.New(gwerr.CodeForbidden, "authz.authorize", scope, nil)
		}
		if !MatchScope(rec.Scopes, scope) {
			a.store.AuditAsync(AuditEntry{TokenID: rec.TokenID, Username: rec.Username, Operation: OperationAuthorizationFailed,
				Environment: environment, Endpoint: scope, Method: method, Outcome: "denied", Reason: "scope not granted",
				RemoteAddr: remoteAddr, ResourceType: "Endpoint", ResourceName: scope,
				Details: map[string]string{"availableScopes": strings.Join(rec.Scopes, ",")}})
			return Decision{}, gwerr.New(gwerr.CodeForbidden, "authz.authorize", scope, nil).
				WithDetail("scope not granted")
		}
	}

	a.store.AuditAsync(AuditEntry{TokenID: rec.TokenID, Username: rec.Username, Operation: OperationAllowed,
		Environment: environment, Endpoint: scope, Method: method, Outcome: "allowed", RemoteAddr: remoteAddr})
	return Decision{TokenID: rec.TokenID, IsAdmin: rec.IsAdmin}, nil
}

// authenticate finds the active token row matching token's hash. Per the
// token file format ({Username, Token, ...}), a bearer token is an opaque
// secret with no embedded identifier, so the only way to locate its row is
// to PBKDF2-compare it against every active token's stored hash.
func (a *Authorizer) authenticate(ctx context.Context, token string) (*TokenRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	active, err := a.store.ActiveTokens(ctx)
	if err != nil {
		return nil, err
	}
	for i := range active {
		if Verify(token, active[i].Hash, active[i].Salt, active[i].Iterations) {
			return &active[i], nil
		}
	}
	return nil, gwerr.New(gwerr.CodeUnauthenticated, "authz.authenticate", "", nil)
}

// FromRequest is a convenience wrapper pulling the bearer header, remote
// addr, and method out of an *http.Request.
func (a *Authorizer) FromRequest(r *http.Request, environment, scope string) (Decision, error) {
	return a.Authorize(r.Context(), r.Header.Get("Authorization"), environment, scope, r.Method, r.RemoteAddr)
}

func parseBearer(header string) (token string, err error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", gwerr.New(gwerr.CodeUnauthenticated, "authz.parse", "", nil)
	}
	token = strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", gwerr.New(gwerr.CodeUnauthenticated, "authz.parse", "", nil)
	}
	return token, nil
}
