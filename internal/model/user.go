package model

// User结构，注册时创建，登录/会话校验时按Email或ID查询，密码只存bcrypt哈希
type User struct {
	BaseModel        // 包括 ID, CreatedAt, UpdatedAt, DeletedAt
	Username  string `gorm:"not null"`
	// Email是登录凭证，必须唯一，靠MySQL的唯一索引查重，而不是先查后插
	Email    string `gorm:"unique;not null"`
	Password string `gorm:"not null"` // bcrypt哈希，任何响应里都不能出现
}

func (User) TableName() string {
	return "users"
}
