package farmer

import "strings"

// MaxContacts is the number of emergency contacts a profile can hold.
const MaxContacts = 2

// Contact is an emergency contact reachable over WhatsApp.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Context is the read-only view of a farmer profile used by the chat engine.
type Context struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Age      int       `json:"age,omitempty"`
	Location string    `json:"location,omitempty"`
	Language string    `json:"language,omitempty"`
	Contacts []Contact `json:"contacts,omitempty"`
}

// DisplayName returns the name used in prompts and replies.
func (c *Context) DisplayName() string {
	if c == nil || strings.TrimSpace(c.Name) == "" {
		return "friend"
	}
	return strings.TrimSpace(c.Name)
}

// UsableContacts returns the contacts that have a phone number.
func (c *Context) UsableContacts() []Contact {
	if c == nil {
		return nil
	}
	out := make([]Contact, 0, len(c.Contacts))
	for _, contact := range c.Contacts {
		if strings.TrimSpace(contact.Phone) == "" {
			continue
		}
		out = append(out, contact)
	}
	return out
}

// Seed provides the demo profiles loaded at start-up.
func Seed() []Context {
	return []Context{
		{
			ID:       "ravi-kumar",
			Name:     "Ravi Kumar",
			Age:      46,
			Location: "Thanjavur, Tamil Nadu",
			Language: "Tamil",
			Contacts: []Contact{
				{Name: "Lakshmi", Phone: "+919800000001"},
				{Name: "Suresh", Phone: "+919800000002"},
			},
		},
		{
			ID:       "meena-devi",
			Name:     "Meena Devi",
			Age:      39,
			Location: "Nashik, Maharashtra",
			Language: "Hindi",
			Contacts: []Contact{
				{Name: "Arjun", Phone: "+919800000003"},
			},
		},
	}
}
