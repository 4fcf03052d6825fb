package models

// NotificationRequest asks for the status-change message of one application to be delivered.
type NotificationRequest struct {
	ApplicationID  string            `json:"application_id"`
	Status         ApplicationStatus `json:"status"`
	RecipientEmail string            `json:"recipient_email"`
	RecipientName  string            `json:"recipient_name"`
	ReviewerNotes  *string           `json:"reviewer_notes,omitempty"`
}

// NotificationTemplate is the rendered subject and HTML body for one status.
type NotificationTemplate struct {
	Subject string
	HTML    string
}
