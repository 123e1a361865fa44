// Package dashboard assembles the farm overview: sensor readings, trends,
// alerts and the user's recent scans.
package dashboard

import (
	"context"

	"go.uber.org/zap"

	"github.com/example/agrilens/internal/usecase"
)

// Reading is one sensor value with its status label.
type Reading struct {
	Label  string  `json:"label"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
	Status string  `json:"status"`
}

// Point is one sample of a time series.
type Point struct {
	At    string `json:"at"`
	Value int    `json:"value"`
}

// Alert is a farm notification.
type Alert struct {
	ID      int    `json:"id"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

// RecentScan summarises one past analysis.
type RecentScan struct {
	SessionID  string  `json:"session_id,omitempty"`
	Crop       string  `json:"crop"`
	Result     string  `json:"result"`
	Confidence float64 `json:"confidence"`
	Date       string  `json:"date"`
}

// Overview is the dashboard payload.
type Overview struct {
	Sensors         []Reading    `json:"sensors"`
	MoistureHistory []Point      `json:"moisture_history"`
	CropHealth      []Point      `json:"crop_health"`
	RecentScans     []RecentScan `json:"recent_scans"`
	Alerts          []Alert      `json:"alerts"`
}

var sensors = []Reading{
	{Label: "Moisture", Value: 68, Unit: "%", Status: "Optimal"},
	{Label: "Nitrogen", Value: 42, Unit: "ppm", Status: "Low"},
	{Label: "Phosphorus", Value: 38, Unit: "ppm", Status: "Good"},
	{Label: "Potassium", Value: 55, Unit: "ppm", Status: "Good"},
	{Label: "Temp", Value: 28, Unit: "°C", Status: "Normal"},
	{Label: "Humidity", Value: 72, Unit: "%", Status: "High"},
}

var moistureHistory = []Point{
	{"6AM", 72}, {"9AM", 68}, {"12PM", 55}, {"3PM", 48}, {"6PM", 52}, {"9PM", 65}, {"Now", 68},
}

var cropHealth = []Point{
	{"Mon", 85}, {"Tue", 88}, {"Wed", 82}, {"Thu", 90}, {"Fri", 87}, {"Sat", 92}, {"Sun", 94},
}

var sampleScans = []RecentScan{
	{Crop: "Tomato", Result: "Healthy", Confidence: 98, Date: "Today"},
	{Crop: "Cotton", Result: "Early Blight", Confidence: 94, Date: "Yesterday"},
	{Crop: "Wheat", Result: "Healthy", Confidence: 96, Date: "2 days ago"},
}

var alerts = []Alert{
	{ID: 1, Type: "warning", Message: "Soil moisture dropping below optimal level in Field 2", Time: "2h ago"},
	{ID: 2, Type: "info", Message: "NPK levels optimal for tomato growth", Time: "5h ago"},
	{ID: 3, Type: "success", Message: "Grade A certification received for cotton batch", Time: "1 day ago"},
}

const recentLimit = 3

// ScanLister yields a user's stored outcomes, newest first.
type ScanLister interface {
	RecentScans(ctx context.Context, userID string, limit int) ([]*usecase.StoredOutcome, error)
}

// Service builds overviews.
type Service struct {
	scans  ScanLister
	logger *zap.Logger
}

// NewService builds a Service.
func NewService(scans ScanLister, logger *zap.Logger) *Service {
	return &Service{scans: scans, logger: logger.Named("dashboard")}
}

// Overview returns the dashboard for userID. Scan history failures degrade
// to the sample history instead of failing the page.
func (s *Service) Overview(ctx context.Context, userID string) *Overview {
	o := &Overview{
		Sensors:         append([]Reading(nil), sensors...),
		MoistureHistory: append([]Point(nil), moistureHistory...),
		CropHealth:      append([]Point(nil), cropHealth...),
		Alerts:          append([]Alert(nil), alerts...),
	}

	stored, err := s.scans.RecentScans(ctx, userID, recentLimit)
	if err != nil {
		s.logger.Warn("failed to load recent scans", zap.String("user_id", userID), zap.Error(err))
	}
	for _, st := range stored {
		o.RecentScans = append(o.RecentScans, toRecentScan(st))
	}
	if len(o.RecentScans) == 0 {
		o.RecentScans = append([]RecentScan(nil), sampleScans...)
	}
	return o
}

func toRecentScan(st *usecase.StoredOutcome) RecentScan {
	rs := RecentScan{
		SessionID: st.SessionID,
		Result:    st.Label,
		Date:      st.CreatedAt.Format("2006-01-02"),
	}
	if st.Outcome != nil {
		switch {
		case st.Outcome.Diagnosis != nil:
			rs.Crop = st.Outcome.Diagnosis.Crop
			rs.Confidence = st.Outcome.Diagnosis.Confidence
		case st.Outcome.Grade != nil:
			rs.Crop = "Produce"
			rs.Result = "Grade " + st.Outcome.Grade.Grade
			rs.Confidence = float64(st.Outcome.Grade.TrustScore)
		}
	}
	return rs
}
