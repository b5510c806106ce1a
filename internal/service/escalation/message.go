package escalation

import (
	"fmt"
	"strings"
)

// DefaultLocation is used when the caller has no location for the farmer.
const DefaultLocation = "Current Location"

var alertFormats = map[string]string{
	"english": "🚨 EMERGENCY ALERT: %s needs immediate help at %s. Please contact them urgently!",
	"hindi":   "🚨 आपातकालीन अलर्ट: %s को %s पर तत्काल मदद की आवश्यकता है। कृपया उनसे संपर्क करें!",
	"tamil":   "🚨 அவசர எச்சரிக்கை: %s க்கு %s இல் உடனடி உதவி தேவை. தயவுசெய்து அவரை தொடர்பு கொள்ளுங்கள்!",
}

// AlertMessage renders the alert text in language, falling back to English.
func AlertMessage(name, location, language string) string {
	format, ok := alertFormats[strings.ToLower(strings.TrimSpace(language))]
	if !ok {
		format = alertFormats["english"]
	}
	if strings.TrimSpace(location) == "" {
		location = DefaultLocation
	}
	return fmt.Sprintf(format, name, location)
}
