package model

// SubmitMessageRequest 提交用户消息请求
type SubmitMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// SwitchDatabaseRequest 切换文档库请求
type SwitchDatabaseRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateDatabaseRequest 创建文档库请求
type CreateDatabaseRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description,omitempty"`
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}
