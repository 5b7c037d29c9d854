package emergency

import "time"

// MaxContacts is how many emergency contacts a user may keep.
const MaxContacts = 5

type Contact struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Relationship string    `json:"relationship,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Email        string    `json:"email,omitempty"`
	Primary      bool      `json:"primary"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ContactInput struct {
	Name         string `json:"name" validate:"required,max=100"`
	Relationship string `json:"relationship" validate:"max=50"`
	Phone        string `json:"phone" validate:"omitempty,e164"`
	Email        string `json:"email" validate:"omitempty,email"`
	Primary      bool   `json:"primary"`
}

type SOSInput struct {
	// Name is how the user is introduced to their contacts.
	Name     string `json:"name" validate:"max=100"`
	Message  string `json:"message" validate:"max=500"`
	Location string `json:"location" validate:"max=200"`
}

type Alert struct {
	ContactID string `json:"contact_id"`
	Contact   string `json:"contact"`
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type SOSResult struct {
	TriggeredAt time.Time `json:"triggered_at"`
	Alerted     int       `json:"alerted"`
	Alerts      []Alert   `json:"alerts"`
}
