// Package service reads user records for member pickers and display. Users
// are owned by the identity system; this backend never mutates them.
package service

import (
	"context"

	"github.com/taskboard-app/taskboard-backend/internal/apperror"
	"github.com/taskboard-app/taskboard-backend/internal/model"
	"github.com/taskboard-app/taskboard-backend/internal/store"
)

type Service struct {
	store store.Store
}

func New(st store.Store) *Service {
	return &Service{store: st}
}

// List returns every known user with the username preferred as display name.
// Always live: the picker backs authenticated forms.
func (s *Service) List(ctx context.Context) ([]model.User, error) {
	docs, _, err := s.store.GetDocuments(ctx, model.CollectionUsers, nil)
	if err != nil {
		return nil, err
	}
	users, err := store.DecodeAll[model.User](docs)
	if err != nil {
		return nil, apperror.Store("users.list", err)
	}
	for i := range users {
		users[i].Name = users[i].DisplayName()
	}
	return users, nil
}
