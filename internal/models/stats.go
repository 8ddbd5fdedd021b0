package models

// MatchStats aggregates resolved invitations for one freelancer.
type MatchStats struct {
	Accepted               int     `json:"accepted"`
	Declined               int     `json:"declined"`
	Expired                int     `json:"expired"`
	Reassigned             int     `json:"reassigned"`
	AcceptanceRate         float64 `json:"acceptance_rate"`
	AverageResponseMinutes float64 `json:"average_response_minutes"`
}
