package authz

import (
	"context"
	"encoding/json"
	"time"

	"github.com/melosso/portway/internal/logging"
)

// Operation tags every audit row with the spec's enum so consumers can
// filter by decision kind without parsing Reason text.
const (
	OperationFailedAuth          = "FailedAuth"
	OperationAuthorizationFailed = "AuthorizationFailed"
	OperationAllowed             = "Allowed"
)

// AuditEntry is one authorization decision, persisted async so the
// request path never waits on the audit write. ResourceType/ResourceName
// and any extra Details are folded into the persisted details_json column.
type AuditEntry struct {
	TokenID      string
	Username     string
	Operation    string
	Environment  string
	Endpoint     string
	Method       string
	Outcome      string // "allowed" | "denied"
	Reason       string
	RemoteAddr   string
	ResourceType string
	ResourceName string
	Details      map[string]string
}

func (e AuditEntry) detailsJSON() string {
	details := make(map[string]string, len(e.Details)+2)
	for k, v := range e.Details {
		details[k] = v
	}
	if e.ResourceType != "" {
		details["ResourceType"] = e.ResourceType
	}
	if e.ResourceName != "" {
		details["ResourceName"] = e.ResourceName
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func (s *Store) recordAudit(ctx context.Context, e AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO token_audits
		(token_id, username, operation, environment, endpoint, method, outcome, reason, remote_addr, details_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TokenID, e.Username, e.Operation, e.Environment, e.Endpoint, e.Method, e.Outcome, e.Reason, e.RemoteAddr,
		e.detailsJSON(), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// AuditAsync fires recordAudit on its own goroutine so a slow disk never
// adds latency to a denied or allowed request. A failed write is logged as
// one structured line and otherwise ignored — audit logging is best-effort,
// never a reason to fail the request twice.
func (s *Store) AuditAsync(e AuditEntry) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.recordAudit(ctx, e); err != nil {
			logging.New("authz ").Event("authz.audit_write_failed",
				map[string]any{"operation": e.Operation, "error": err.Error()})
		}
	}()
}
