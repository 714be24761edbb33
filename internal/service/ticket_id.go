package service

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TicketIDFunc produces the ticket code of a new purchase.
type TicketIDFunc func(userID, eventID uint64, now time.Time) (string, error)

// NewTicketID returns TKT-{user}-{event}-{millis base36}-{random base36},
// upper-cased. The random part has 40 bits of entropy; uniqueness is
// still enforced by the unique index on purchases.unique_ticket_id.
func NewTicketID(userID, eventID uint64, now time.Time) (string, error) {
	var b [5]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("ticket id entropy: %w", err)
	}
	var n uint64
	for _, x := range b {
		n = n<<8 | uint64(x)
	}
	random := strconv.FormatUint(n, 36)
	if len(random) < 8 {
		random = strings.Repeat("0", 8-len(random)) + random
	}
	id := fmt.Sprintf("TKT-%d-%d-%s-%s", userID, eventID, strconv.FormatInt(now.UnixMilli(), 36), random)
	return strings.ToUpper(id), nil
}
