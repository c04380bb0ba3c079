package users

import (
	"fmt"
	"strconv"
	"time"

	"github.com/2beens/fitsync/pkg"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func NewUserID(now time.Time) string {
	randPart, err := pkg.GenerateRandomString(9)
	if err != nil {
		randPart = strconv.FormatInt(now.UnixNano(), 36)
	}
	return fmt.Sprintf("user_%d_%s", now.UnixMilli(), randPart)
}
