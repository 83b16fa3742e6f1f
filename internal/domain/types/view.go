// Package types contains the read shapes shared by the service and the API.
package types

import (
	"github.com/okian/vesseltrail/internal/domain/colors"
	"github.com/okian/vesseltrail/internal/domain/model"
	"github.com/okian/vesseltrail/internal/domain/trail"
)

// View is what the dashboard shows for one query or session.
type View struct {
	SessionID        string               `json:"sessionId,omitempty"`
	Status           model.Status         `json:"status"`
	Generation       uint64               `json:"generation,omitempty"`
	Criteria         model.FilterCriteria `json:"criteria"`
	Metric           colors.Metric        `json:"metric"`
	AvailableMetrics []colors.Metric      `json:"availableMetrics"`
	Theme            model.Theme          `json:"theme,omitempty"`
	PointCount       int                  `json:"pointCount"`
	InfoCard         model.InfoCard       `json:"infoCard"`
	SFOCVisible      bool                 `json:"sfocVisible"`
	Trail            trail.Render         `json:"trail"`
	Notification     *model.Notification  `json:"notification,omitempty"`
}

// Accepted acknowledges a queued filter submission.
type Accepted struct {
	SessionID  string `json:"sessionId"`
	Generation uint64 `json:"generation"`
	Status     string `json:"status"`
}
