package orders

import (
	"fmt"
	"strings"

	domainorders "campusmarket/internal/domain/orders"
)

// Announcements selects which statuses post a chat note. StatusPending
// stands for order creation.
type Announcements map[domainorders.Status]bool

// DefaultAnnouncements speaks on creation, confirmation and cancellation.
func DefaultAnnouncements() Announcements {
	return Announcements{
		domainorders.StatusPending:   true,
		domainorders.StatusConfirmed: true,
		domainorders.StatusCancelled: true,
	}
}

// ParseAnnouncements reads a list of status names; "none" disables every
// note.
func ParseAnnouncements(names []string) (Announcements, error) {
	out := Announcements{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || strings.EqualFold(name, "none") {
			continue
		}
		if strings.EqualFold(name, "created") {
			name = string(domainorders.StatusPending)
		}
		status, err := domainorders.ParseStatus(name)
		if err != nil {
			return nil, fmt.Errorf("announce %q: %w", name, err)
		}
		out[status] = true
	}
	return out, nil
}

func (a Announcements) Speaks(status domainorders.Status) bool {
	return a[status]
}

// placedNote renders the note posted by the buyer when an order is created.
func placedNote(title string, order *domainorders.Order) string {
	if title == "" {
		title = "this item"
	}
	return fmt.Sprintf("💰 I just placed an order for \"%s\" (%s). Let's arrange the payment and pickup!", title, order.Amount)
}

// transitionNote renders the note for a status change, or "" when the status
// has no template.
func transitionNote(title string, status domainorders.Status) string {
	if title == "" {
		title = "the item"
	}
	switch status {
	case domainorders.StatusPaid:
		return fmt.Sprintf("💳 Payment for \"%s\" has been received.", title)
	case domainorders.StatusConfirmed:
		return fmt.Sprintf("✅ I confirmed receiving \"%s\". Transaction complete!", title)
	case domainorders.StatusCancelled:
		return fmt.Sprintf("❌ The order for \"%s\" has been cancelled.", title)
	}
	return ""
}
