package emotion

// Label is the emotional state assigned to a user message.
type Label string

const (
	Happy    Label = "happy"
	Sad      Label = "sad"
	Angry    Label = "angry"
	HighRisk Label = "high_risk"
)

// Labels lists every label in display order.
var Labels = []Label{Happy, Sad, Angry, HighRisk}

// Valid reports whether l is one of the known labels.
func (l Label) Valid() bool {
	switch l {
	case Happy, Sad, Angry, HighRisk:
		return true
	default:
		return false
	}
}

// Emoji returns the badge shown next to a reply tagged with l.
func (l Label) Emoji() string {
	switch l {
	case Happy:
		return "😊"
	case Sad:
		return "😔"
	case Angry:
		return "😠"
	case HighRisk:
		return "🚨"
	default:
		return "🤖"
	}
}

// ParseLabel normalizes raw into a Label.
func ParseLabel(raw string) (Label, bool) {
	l := Label(normalize(raw))
	if l == "high-risk" || l == "highrisk" {
		l = HighRisk
	}
	return l, l.Valid()
}
