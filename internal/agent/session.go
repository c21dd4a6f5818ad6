package agent

import (
	"sync"

	"wifi-admission-backend/internal/model"
)

// Step is where the device is in the admission flow.
type Step string

const (
	StepIdentityEntry     Step = "identity_entry"
	StepPlanSelection     Step = "plan_selection"
	StepPaymentSubmission Step = "payment_submission"
	StepVerdict           Step = "verdict"
)

// Connectivity is the post-activation reachability check.
type Connectivity string

const (
	ConnectivityIdle     Connectivity = "idle"
	ConnectivityChecking Connectivity = "checking"
	ConnectivitySuccess  Connectivity = "success"
	ConnectivityFailed   Connectivity = "failed"
)

// Session is the state of one device going through admission. Each device
// owns its own Session; the Agent keeps none.
type Session struct {
	mu sync.RWMutex

	step           Step
	status         model.Status
	connectivity   Connectivity
	mac            string
	ip             string
	mobile         string
	plan           *model.Plan
	expectedAmount float64
	resubmission   bool
}

func NewSession() *Session {
	return &Session{
		step:         StepIdentityEntry,
		status:       model.StatusNone,
		connectivity: ConnectivityIdle,
	}
}

// Snapshot is a point-in-time copy of a Session.
type Snapshot struct {
	Step           Step         `json:"step"`
	Status         model.Status `json:"status"`
	Connectivity   Connectivity `json:"connectivity"`
	MAC            string       `json:"mac"`
	IP             string       `json:"ip"`
	Mobile         string       `json:"mobile"`
	Plan           *model.Plan  `json:"plan,omitempty"`
	ExpectedAmount float64      `json:"expected_amount"`
	Resubmission   bool         `json:"resubmission"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var plan *model.Plan
	if s.plan != nil {
		p := *s.plan
		plan = &p
	}
	return Snapshot{
		Step:           s.step,
		Status:         s.status,
		Connectivity:   s.connectivity,
		MAC:            s.mac,
		IP:             s.ip,
		Mobile:         s.mobile,
		Plan:           plan,
		ExpectedAmount: s.expectedAmount,
		Resubmission:   s.resubmission,
	}
}

func (s *Session) update(fn func(s *Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *Session) setVerdict(status model.Status) {
	s.update(func(s *Session) {
		s.step = StepVerdict
		s.status = status
	})
}

func (s *Session) setConnectivity(c Connectivity) {
	s.update(func(s *Session) { s.connectivity = c })
}
