package admission

import (
	"strings"
	"time"

	"wifi-admission-backend/internal/model"
)

// PlaceholderTransactionID is what clients send when they have no receipt.
const PlaceholderTransactionID = "----"

// Conflict describes the earlier approved subscription that already used a
// transaction id.
type Conflict struct {
	SubscriptionID int64      `json:"subscription_id"`
	Mobile         string     `json:"mobile"`
	MACAddress     string     `json:"mac_address"`
	PlanName       string     `json:"plan_name"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	TransactionID  string     `json:"transaction_id"`
}

func normalizeTransactionID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// CheckDuplicate returns the first subscription in history that was
// approved at some point (active or expired) and carries the same
// transaction id, compared case-insensitively after trimming. Empty ids and
// the placeholder never conflict. history is scanned in the order given;
// callers pass it sorted by id so the answer is stable.
func CheckDuplicate(candidate string, history []model.Subscription) *Conflict {
	want := normalizeTransactionID(candidate)
	if want == "" || want == PlaceholderTransactionID {
		return nil
	}

	for i := range history {
		prior := &history[i]
		if prior.Status != model.StatusActive && prior.Status != model.StatusExpired {
			continue
		}
		if normalizeTransactionID(prior.TransactionID) != want {
			continue
		}
		return &Conflict{
			SubscriptionID: prior.ID,
			Mobile:         prior.Mobile,
			MACAddress:     prior.MACAddress,
			PlanName:       prior.PlanName,
			ApprovedAt:     prior.StartTime,
			TransactionID:  prior.TransactionID,
		}
	}
	return nil
}
