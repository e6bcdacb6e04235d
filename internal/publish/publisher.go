// Package publish defines the announcement channel for newly discovered
// vacancies. Implementations deliver JSON payloads to a messaging topic; the
// scanner treats delivery as best effort.
package publish

import "context"

// Publisher delivers vacancy announcements to a messaging topic.
type Publisher interface {
	// Publish sends the payload to the named topic and returns the broker
	// message ID.
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Announcement is the payload published for each vacancy a scan stores.
type Announcement struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	CompanyID *int64 `json:"company_id"`
}
