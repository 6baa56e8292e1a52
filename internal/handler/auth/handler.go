package auth

import (
	"docchat/internal/service"
)

// Handler 认证处理器
type Handler struct {
	authService *service.AuthService
}

// NewHandler 创建认证处理器
func NewHandler(authService *service.AuthService) *Handler {
	return &Handler{authService: authService}
}
