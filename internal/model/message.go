package model

import (
	"math"
	"time"
)

// Message is a contact-form submission. Email, Phone, Message and IPAddress
// are encrypted at rest; values held in this struct are always plaintext.
type Message struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Message   string    `json:"message"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	Read      bool      `json:"read"`
	Starred   bool      `json:"starred"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewMessage carries the caller-supplied fields of a submission.
type NewMessage struct {
	Name      string
	Email     string
	Phone     string
	Message   string
	IPAddress string
	UserAgent string
}

// Page selects a 1-indexed page of Size records.
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of records that precede the page. A page too far
// out to address saturates at math.MaxInt, which is past any result set.
func (p Page) Offset() int {
	if p.Number < 1 || p.Size < 1 {
		return 0
	}
	if p.Number-1 > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return (p.Number - 1) * p.Size
}

// MessagePage is one page of a filtered listing.
type MessagePage struct {
	Data        []*Message `json:"data"`
	Total       int        `json:"total"`
	CurrentPage int        `json:"currentPage"`
	TotalPages  int        `json:"totalPages"`
}
