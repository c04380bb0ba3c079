package users

import (
	"context"
	"time"
)

type repoMock struct {
	// keyed by email
	users map[string]*User
}

func NewMockUsersRepo() *repoMock {
	return &repoMock{
		users: make(map[string]*User),
	}
}

func (r *repoMock) Create(_ context.Context, user User) (*User, error) {
	if _, ok := r.users[user.Email]; ok {
		return nil, ErrEmailTaken
	}
	if user.ID == "" {
		user.ID = NewUserID(time.Now())
	}
	r.users[user.Email] = &user
	return &user, nil
}

func (r *repoMock) GetByEmail(_ context.Context, email string) (*User, error) {
	user, ok := r.users[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}
