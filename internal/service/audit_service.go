package service

import (
	"context"
	"log"

	"platform/internal/auth"
	"platform/internal/model"
	"platform/internal/repository"
)

type AuditLogResponse struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	Action       string `json:"action"`
	ResourceKind string `json:"resource_kind"`
	ResourceID   string `json:"resource_id"`
	Decision     string `json:"decision"`
	Reason       string `json:"reason"`
	Details      string `json:"details"`
	CreatedAt    string `json:"created_at"`
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, p auth.Principal, page, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	gate *auth.Gate
	repo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(gate *auth.Gate, repo repository.AuditRepository) AuditService {
	return &auditService{gate: gate, repo: repo}
}

// GetAuditLogs retrieves paginated decision records, admin only.
func (s *auditService) GetAuditLogs(ctx context.Context, p auth.Principal, page, limit int) ([]AuditLogResponse, int64, error) {
	if _, err := s.gate.AuthorizeRead(ctx, p, auth.KindAudit, nil); err != nil {
		return nil, 0, err
	}

	logs, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		username := "System"
		userID := ""
		if l.User != nil {
			username = l.User.Username
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}

		res = append(res, AuditLogResponse{
			ID:           l.ID.String(),
			UserID:       userID,
			Username:     username,
			Action:       l.Action,
			ResourceKind: l.ResourceKind,
			ResourceID:   l.ResourceID,
			Decision:     l.Decision,
			Reason:       l.Reason,
			Details:      l.Details,
			CreatedAt:    l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	return res, total, nil
}

// Sink adapts the audit repository into the gate's fire-and-forget
// decision-record interface. Failures are logged, never surfaced: the
// absence of the sink must not affect request latency or correctness.
type Sink struct {
	repo repository.AuditRepository
}

func NewAuditSink(repo repository.AuditRepository) *Sink {
	return &Sink{repo: repo}
}

func (s *Sink) Record(ctx context.Context, entry *model.AuditLog) {
	if err := s.repo.Log(ctx, entry); err != nil {
		log.Printf("audit sink: failed to record decision: %v", err)
	}
}
