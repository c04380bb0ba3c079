package auth

import "context"

type LoginTestChecker struct {
	// token -> user id
	LoggedSessions map[string]string
}

func NewLoginTestChecker() *LoginTestChecker {
	return &LoginTestChecker{
		map[string]string{},
	}
}

func (c *LoginTestChecker) GetLoggedUserID(_ context.Context, token string) (string, error) {
	userID, ok := c.LoggedSessions[token]
	if !ok {
		return "", ErrNotLoggedIn
	}
	return userID, nil
}
