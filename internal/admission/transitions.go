package admission

import "wifi-admission-backend/internal/model"

type transition struct {
	from model.Status
	to   model.Status
}

// allowed is the complete subscription state graph. StatusNone stands for
// "no record yet"; rejected and expired have no outgoing edges.
var allowed = map[transition]bool{
	{model.StatusNone, model.StatusPending}:     true,
	{model.StatusPending, model.StatusActive}:   true,
	{model.StatusPending, model.StatusRejected}: true,
	{model.StatusActive, model.StatusExpired}:   true,
}

// CanTransition reports whether a subscription may move from one status to another.
func CanTransition(from, to model.Status) bool {
	return allowed[transition{from, to}]
}
