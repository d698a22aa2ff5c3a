package handler

import "optin/internal/consent/models"

// StatusResponse is the answer of GET /consent/status.
type StatusResponse struct {
	HasSubscribed bool `json:"has_subscribed"`
	Functional    bool `json:"functional"`
	Performance   bool `json:"performance"`
	Targeting     bool `json:"targeting"`
}

func toStatusResponse(d models.Decision) StatusResponse {
	return StatusResponse{
		HasSubscribed: d.Recorded,
		Functional:    d.Functional,
		Performance:   d.Performance,
		Targeting:     d.Targeting,
	}
}
