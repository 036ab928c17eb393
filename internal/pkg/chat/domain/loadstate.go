package domain

// LoadState classifies what the presentation layer should render for a
// server-backed view (conversation list, open thread).
type LoadState int

const (
	LoadInitial      LoadState = iota
	LoadReady                  // data is live
	LoadAuthRequired           // token missing or rejected: render "must log in"
	LoadFailed                 // network or server failure: render retry affordance
)
