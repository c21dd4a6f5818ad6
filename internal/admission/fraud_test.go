package admission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wifi-admission-backend/internal/model"
)

func approvedAt(t time.Time) *time.Time { return &t }

func history() []model.Subscription {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return []model.Subscription{
		{ID: 1, MACAddress: "aa:aa:aa:aa:aa:01", Mobile: "111", PlanName: "1h", TransactionID: "----", Status: model.StatusActive, StartTime: approvedAt(start)},
		{ID: 2, MACAddress: "aa:aa:aa:aa:aa:02", Mobile: "222", PlanName: "1h", TransactionID: "", Status: model.StatusExpired, StartTime: approvedAt(start)},
		{ID: 3, MACAddress: "aa:aa:aa:aa:aa:03", Mobile: "333", PlanName: "1d", TransactionID: "txn-7421", Status: model.StatusPending},
		{ID: 4, MACAddress: "aa:aa:aa:aa:aa:04", Mobile: "444", PlanName: "1d", TransactionID: "txn-7421", Status: model.StatusRejected},
		{ID: 5, MACAddress: "aa:aa:aa:aa:aa:05", Mobile: "555", PlanName: "1w", TransactionID: " TXN-7421 ", Status: model.StatusExpired, StartTime: approvedAt(start)},
		{ID: 6, MACAddress: "aa:aa:aa:aa:aa:06", Mobile: "666", PlanName: "1h", TransactionID: "txn-7421", Status: model.StatusActive, StartTime: approvedAt(start.Add(time.Hour))},
	}
}

func TestCheckDuplicate(t *testing.T) {
	testCases := []struct {
		name      string
		candidate string
		wantID    int64
	}{
		{name: "no prior use", candidate: "txn-9999"},
		{name: "placeholder never conflicts", candidate: "----"},
		{name: "placeholder with spaces", candidate: "  ----  "},
		{name: "empty never conflicts", candidate: ""},
		{name: "blank never conflicts", candidate: "   "},
		{name: "pending and rejected records are ignored, first approved match wins", candidate: "txn-7421", wantID: 5},
		{name: "case and whitespace are ignored", candidate: "\tTxN-7421", wantID: 5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := CheckDuplicate(tc.candidate, history())
			if tc.wantID == 0 {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tc.wantID, got.SubscriptionID)
		})
	}
}

func TestCheckDuplicate_ConflictDetails(t *testing.T) {
	got := CheckDuplicate("TXN-7421", history())
	require.NotNil(t, got)
	assert.Equal(t, "555", got.Mobile)
	assert.Equal(t, "aa:aa:aa:aa:aa:05", got.MACAddress)
	assert.Equal(t, "1w", got.PlanName)
	require.NotNil(t, got.ApprovedAt)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), *got.ApprovedAt)
}

func TestCheckDuplicate_PlaceholderRepeatedEverywhere(t *testing.T) {
	var subs []model.Subscription
	for i := 1; i <= 50; i++ {
		subs = append(subs, model.Subscription{ID: int64(i), TransactionID: "----", Status: model.StatusActive})
		subs = append(subs, model.Subscription{ID: int64(100 + i), TransactionID: "", Status: model.StatusExpired})
	}
	assert.Nil(t, CheckDuplicate("----", subs))
	assert.Nil(t, CheckDuplicate("", subs))
}

func TestCheckDuplicate_Deterministic(t *testing.T) {
	h := history()
	first := CheckDuplicate("txn-7421", h)

	// Unrelated approvals elsewhere in the ledger do not change the answer.
	h = append(h,
		model.Subscription{ID: 7, TransactionID: "other", Status: model.StatusActive},
		model.Subscription{ID: 8, TransactionID: "txn-7421", Status: model.StatusPending},
	)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, CheckDuplicate("txn-7421", h))
	}
}

func TestCanTransition(t *testing.T) {
	statuses := []model.Status{model.StatusNone, model.StatusPending, model.StatusActive, model.StatusRejected, model.StatusExpired}
	valid := map[[2]model.Status]bool{
		{model.StatusNone, model.StatusPending}:     true,
		{model.StatusPending, model.StatusActive}:   true,
		{model.StatusPending, model.StatusRejected}: true,
		{model.StatusActive, model.StatusExpired}:   true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			assert.Equal(t, valid[[2]model.Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	for _, terminal := range []model.Status{model.StatusRejected, model.StatusExpired} {
		assert.True(t, terminal.Terminal())
		for _, to := range statuses {
			assert.False(t, CanTransition(terminal, to), "terminal %s must have no outgoing edge", terminal)
		}
	}
}
