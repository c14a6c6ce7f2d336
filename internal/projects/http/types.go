package http

import "github.com/taskboard-app/taskboard-backend/internal/model"

type memberReq struct {
	ID       string `json:"id" binding:"required"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type projectReq struct {
	Title       string      `json:"title" binding:"required"`
	Slug        string      `json:"slug"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	IsPublic    bool        `json:"isPublic"`
	MemberIDs   []string    `json:"memberIds"`
	Members     []memberReq `json:"members"`
}

type archiveReq struct {
	IsArchived *bool `json:"isArchived" binding:"required"`
}

type participantsReq struct {
	MemberIDs []string    `json:"memberIds"`
	Members   []memberReq `json:"members"`
}

func toUsers(members []memberReq) []model.User {
	out := make([]model.User, 0, len(members))
	for _, m := range members {
		out = append(out, model.User{ID: m.ID, Name: m.Name, Username: m.Username, Avatar: m.Avatar})
	}
	return out
}
