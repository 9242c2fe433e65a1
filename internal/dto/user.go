package dto

import (
	"Lumen_Stream/internal/model"
	"time"
)

// UserResponse 是用户信息的安全投影，只有id/username/email，密码哈希永远不出库房
type UserResponse struct {
	ID        uint64    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

func ToUserResponse(user *model.User) UserResponse {
	return UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	}
}
