package chat

import "time"

// Session captures one farmer's conversation with the assistant.
type Session struct {
	ID        string    `json:"id"`
	FarmerID  string    `json:"farmerId"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"createdAt"`
}
