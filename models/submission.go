package models

// Submission is the collaborator record describing a team's registered entry:
// its display name, shortlist state and (optionally) the API endpoint the
// evaluator will call. This service only reads submissions.
type Submission struct {
	TeamID          string  `json:"team_id"`
	EventID         string  `json:"event_id"`
	TeamName        string  `json:"team_name"`
	EndpointURL     *string `json:"endpoint_url,omitempty"`
	ShortlistStatus string  `json:"shortlist_status"`
}

const ShortlistStatusShortlisted = "shortlisted"

// HasEndpoint reports whether the team registered a callable API endpoint.
func (s *Submission) HasEndpoint() bool {
	return s != nil && s.EndpointURL != nil && *s.EndpointURL != ""
}
