package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"example.com/insight/internal/analysis"
	"example.com/insight/internal/domain"
	"example.com/insight/internal/events"
)

// AnalysisService is the subset of the domain service the handler needs.
type AnalysisService interface {
	AnalyzeActivity(ctx context.Context, tenantID, activityID string) (*domain.Insight, error)
}

// AnalysisHandler triggers analysis for every accepted activity event.
type AnalysisHandler struct {
	service AnalysisService
	logger  *log.Logger
}

// NewAnalysisHandler constructs a handler backed by the domain service.
func NewAnalysisHandler(service AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{
		service: service,
		logger:  log.New(log.Writer(), "[analysis] ", log.LstdFlags),
	}
}

// Handle decodes an activity.created event and runs the analysis pipeline.
// Events the service cannot act on (unknown activity, invalid summary data)
// are dropped so the partition never stalls on a poison message.
func (h *AnalysisHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != "activity.created" {
		return nil
	}

	var event events.ActivityCreated
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("decode activity.created: %w", err)
	}
	if event.ActivityID == "" || event.TenantID == "" {
		return errors.New("activity.created missing identifiers")
	}

	insight, err := h.service.AnalyzeActivity(ctx, event.TenantID, event.ActivityID)
	if err != nil {
		var verr *analysis.ValidationError
		switch {
		case errors.Is(err, domain.ErrActivityNotFound):
			h.logger.Printf("skipping unknown activity %s (tenant=%s)", event.ActivityID, event.TenantID)
			return nil
		case errors.As(err, &verr):
			h.logger.Printf("skipping invalid activity %s: %v", event.ActivityID, verr)
			return nil
		default:
			return err
		}
	}

	h.logger.Printf("analyzed activity %s (class=%s, risk=%s, confidence=%s)",
		insight.ActivityID, insight.Metrics.ActivityClass, insight.Metrics.RiskLevel, insight.Metrics.Confidence)
	return nil
}
