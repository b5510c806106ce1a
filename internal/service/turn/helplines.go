package turn

// Helpline is one entry of the emergency directory.
type Helpline struct {
	Name    string `json:"name"`
	Purpose string `json:"purpose"`
	Number  string `json:"number"`
}

var helplines = []Helpline{
	{Name: "AASRA", Purpose: "Mental health", Number: "1800-121-4559"},
	{Name: "Kisan Call Centre", Purpose: "Farmer helpline", Number: "1800-120-0024"},
	{Name: "Vandrevala Foundation", Purpose: "Suicide prevention", Number: "9152987821"},
	{Name: "Police", Purpose: "Emergency", Number: "100"},
	{Name: "Ambulance", Purpose: "Emergency", Number: "108"},
}

// Helplines returns the Indian emergency helpline directory.
func Helplines() []Helpline {
	return append([]Helpline(nil), helplines...)
}
