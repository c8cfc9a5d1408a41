package rating

// Labels, highest tier first.
const (
	LabelBestSeller = "Best Seller"
	LabelVeryGood   = "Very Good"
	LabelGood       = "Good"
	LabelDecent     = "Decent"
	LabelAverage    = "Average"
	LabelNeedsWork  = "Needs work"
)

// LabelFor maps a rating to its tier. Only the top tier has an exclusive lower bound.
func LabelFor(rating float64) string {
	switch {
	case rating > 4.5:
		return LabelBestSeller
	case rating >= 4.0:
		return LabelVeryGood
	case rating >= 3.5:
		return LabelGood
	case rating >= 3.0:
		return LabelDecent
	case rating >= 2.0:
		return LabelAverage
	default:
		return LabelNeedsWork
	}
}
