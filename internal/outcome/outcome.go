// Package outcome defines the canned analysis results and the selectors that
// choose between them.
package outcome

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies which analysis a session runs.
type Kind string

const (
	KindDisease Kind = "disease"
	KindGrade   Kind = "grade"
)

// ErrUnknownKind is returned for kinds other than disease and grade.
var ErrUnknownKind = errors.New("unknown analysis kind")

// ErrUnknownLabel is returned when a label names no canned outcome.
var ErrUnknownLabel = errors.New("unknown outcome label")

// ParseKind validates a kind from user input.
func ParseKind(raw string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(raw))); k {
	case KindDisease, KindGrade:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
}

// Remedy is one recommended treatment for a diagnosis.
type Remedy struct {
	Type         string `json:"type"`
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
}

// Diagnosis is the result of a disease scan.
type Diagnosis struct {
	Name        string   `json:"name"`
	Confidence  float64  `json:"confidence"`
	Severity    string   `json:"severity"`
	Crop        string   `json:"crop"`
	Description string   `json:"description"`
	Remedies    []Remedy `json:"remedies"`
}

// Healthy reports whether the diagnosis found no disease.
func (d *Diagnosis) Healthy() bool {
	return d != nil && d.Name == healthyName
}

// GradeDetails holds the sub-scores behind a grade.
type GradeDetails struct {
	ColorUniformity  int `json:"color_uniformity"`
	SizeDistribution int `json:"size_distribution"`
	SurfaceQuality   int `json:"surface_quality"`
	Freshness        int `json:"freshness"`
}

// Grade is the result of quality grading.
type Grade struct {
	Grade           string       `json:"grade"`
	Score           int          `json:"score"`
	Label           string       `json:"label"`
	Color           string       `json:"color"`
	Details         GradeDetails `json:"details"`
	TrustScore      int          `json:"trust_score"`
	PriceMultiplier float64      `json:"price_multiplier"`
}

// Outcome carries exactly one of Diagnosis or Grade, matching Kind.
type Outcome struct {
	Kind      Kind       `json:"kind"`
	Diagnosis *Diagnosis `json:"diagnosis,omitempty"`
	Grade     *Grade     `json:"grade,omitempty"`
}

// Label is the short name of the outcome: the disease name or the grade letter.
func (o *Outcome) Label() string {
	switch {
	case o == nil:
		return ""
	case o.Diagnosis != nil:
		return o.Diagnosis.Name
	case o.Grade != nil:
		return o.Grade.Grade
	default:
		return ""
	}
}

// Clone returns a deep copy.
func (o *Outcome) Clone() *Outcome {
	if o == nil {
		return nil
	}
	c := &Outcome{Kind: o.Kind}
	if o.Diagnosis != nil {
		d := *o.Diagnosis
		d.Remedies = append([]Remedy(nil), o.Diagnosis.Remedies...)
		c.Diagnosis = &d
	}
	if o.Grade != nil {
		g := *o.Grade
		c.Grade = &g
	}
	return c
}
