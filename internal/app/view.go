package service

import (
	"fmt"

	"github.com/okian/vesseltrail/internal/adapters/repository"
	"github.com/okian/vesseltrail/internal/domain/colors"
	"github.com/okian/vesseltrail/internal/domain/model"
	"github.com/okian/vesseltrail/internal/domain/types"
)

// Notification texts.
const (
	msgLoadFailed = "Failed to load data. Please try again."
	msgNoData     = "No data found for the selected filters."
	msgBusy       = "The server is busy. Please try again."
)

func loadedMessage(n int) string { return fmt.Sprintf("Loaded %d data points.", n) }

func viewOf(s *repository.Session) types.View {
	return types.View{
		SessionID:        s.ID,
		Status:           s.Status,
		Generation:       s.Generation,
		Criteria:         s.Criteria,
		Metric:           s.Metric,
		AvailableMetrics: colors.AvailableMetrics(s.Result.SFOCVisible),
		Theme:            s.Theme,
		PointCount:       len(s.Result.Points),
		InfoCard:         s.Result.InfoCard,
		SFOCVisible:      s.Result.SFOCVisible,
		Trail:            s.Trail,
		Notification:     s.Notification,
	}
}

// outcome maps a resolved fetch to its status and notification.
func outcome(result *model.FilterResult, fetchErr error) (model.Status, model.Notification) {
	switch {
	case fetchErr != nil:
		return model.StatusError, model.Notification{Kind: model.NotifyError, Message: msgLoadFailed}
	case len(result.Points) == 0:
		return model.StatusEmpty, model.Notification{Kind: model.NotifyInfo, Message: msgNoData}
	default:
		return model.StatusReady, model.Notification{Kind: model.NotifySuccess, Message: loadedMessage(len(result.Points))}
	}
}
