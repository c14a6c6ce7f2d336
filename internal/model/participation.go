package model

import "time"

// Participation links a user to a project. Its document id is the
// deterministic composite key from ParticipationID, which makes assignment
// idempotent and duplicate membership impossible.
type Participation struct {
	UserID    string    `json:"userId"`
	ProjectID string    `json:"projectId"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func ParticipationID(userID, projectID string) string {
	return userID + "-" + projectID
}
