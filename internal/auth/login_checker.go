package auth

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
)

var ErrNotLoggedIn = errors.New("not logged in")

type LoginChecker struct {
	redisClient *redis.Client
}

func NewLoginChecker(redisClient *redis.Client) *LoginChecker {
	return &LoginChecker{
		redisClient: redisClient,
	}
}

// GetLoggedUserID resolves the session token to the owning user id,
// or returns ErrNotLoggedIn when there is no live session for it.
func (c *LoginChecker) GetLoggedUserID(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrNotLoggedIn
	}

	sessionKey := sessionKeyPrefix + token
	cmd := c.redisClient.Get(ctx, sessionKey)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotLoggedIn
		}
		return "", err
	}

	userID := cmd.Val()
	if userID == "" {
		return "", ErrNotLoggedIn
	}

	return userID, nil
}
