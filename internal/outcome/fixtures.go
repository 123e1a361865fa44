package outcome

import "fmt"

const (
	earlyBlightName = "Early Blight"
	healthyName     = "Healthy"
)

var diagnoses = []Diagnosis{
	{
		Name:        earlyBlightName,
		Confidence:  94.7,
		Severity:    "Moderate",
		Crop:        "Tomato",
		Description: "Fungal infection caused by Alternaria solani. Brown spots with concentric rings on leaves.",
		Remedies: []Remedy{
			{Type: "Organic", Name: "Neem Oil Spray", Instructions: "Mix 5ml neem oil in 1L water. Spray every 7 days."},
			{Type: "Organic", Name: "Copper Fungicide", Instructions: "Apply Bordeaux mixture (1%) on affected areas."},
			{Type: "Prevention", Name: "Crop Rotation", Instructions: "Rotate with non-solanaceous crops for 2-3 years."},
		},
	},
	{
		Name:        healthyName,
		Confidence:  98.2,
		Severity:    "None",
		Crop:        "General",
		Description: "No disease detected. Your crop appears to be healthy with good leaf coloration and structure.",
		Remedies: []Remedy{
			{Type: "Prevention", Name: "Regular Monitoring", Instructions: "Continue weekly inspections of your crops."},
			{Type: "Nutrition", Name: "Balanced Fertilizer", Instructions: "Apply NPK fertilizer as per soil test recommendations."},
		},
	},
}

var grades = []Grade{
	{
		Grade: "A", Score: 92, Label: "Premium Quality", Color: "success",
		Details:    GradeDetails{ColorUniformity: 95, SizeDistribution: 88, SurfaceQuality: 93, Freshness: 92},
		TrustScore: 94, PriceMultiplier: 1.4,
	},
	{
		Grade: "B", Score: 75, Label: "Standard Quality", Color: "warning",
		Details:    GradeDetails{ColorUniformity: 78, SizeDistribution: 72, SurfaceQuality: 76, Freshness: 74},
		TrustScore: 78, PriceMultiplier: 1.15,
	},
	{
		Grade: "C", Score: 58, Label: "Economy Quality", Color: "destructive",
		Details:    GradeDetails{ColorUniformity: 55, SizeDistribution: 60, SurfaceQuality: 58, Freshness: 59},
		TrustScore: 62, PriceMultiplier: 0.9,
	},
}

func diagnosisOutcome(i int) *Outcome {
	d := diagnoses[i]
	return (&Outcome{Kind: KindDisease, Diagnosis: &d}).Clone()
}

func gradeOutcome(i int) *Outcome {
	g := grades[i]
	return &Outcome{Kind: KindGrade, Grade: &g}
}

// EarlyBlight returns the canned diseased diagnosis.
func EarlyBlight() *Outcome { return diagnosisOutcome(0) }

// Healthy returns the canned healthy diagnosis.
func Healthy() *Outcome { return diagnosisOutcome(1) }

// GradeA returns the canned premium grade.
func GradeA() *Outcome { return gradeOutcome(0) }

// GradeB returns the canned standard grade.
func GradeB() *Outcome { return gradeOutcome(1) }

// GradeC returns the canned economy grade.
func GradeC() *Outcome { return gradeOutcome(2) }

// Labels lists the canned labels for kind in fixture order.
func Labels(kind Kind) []string {
	switch kind {
	case KindDisease:
		return []string{earlyBlightName, healthyName}
	case KindGrade:
		return []string{"A", "B", "C"}
	default:
		return nil
	}
}

// Lookup returns a copy of the canned outcome with the given label.
func Lookup(kind Kind, label string) (*Outcome, error) {
	switch kind {
	case KindDisease:
		for i := range diagnoses {
			if diagnoses[i].Name == label {
				return diagnosisOutcome(i), nil
			}
		}
	case KindGrade:
		for i := range grades {
			if grades[i].Grade == label {
				return gradeOutcome(i), nil
			}
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return nil, fmt.Errorf("%w: %s/%q", ErrUnknownLabel, kind, label)
}

// ExpectedShares returns the long-run share of each label under the random
// selector.
func ExpectedShares(kind Kind) map[string]float64 {
	switch kind {
	case KindDisease:
		return map[string]float64{earlyBlightName: 0.5, healthyName: 0.5}
	case KindGrade:
		return map[string]float64{"A": 0.4, "B": 0.3, "C": 0.3}
	default:
		return nil
	}
}
