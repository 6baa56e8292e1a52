package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat/internal/model"
	"docchat/internal/service"
)

// LoginResponseData 登录响应数据
type LoginResponseData struct {
	AccessToken string   `json:"access_token"`
	ExpiresIn   int      `json:"expires_in"` // 过期时间（秒）
	TokenType   string   `json:"token_type"` // Token类型：Bearer
	User        UserInfo `json:"user"`
}

// Login 用户登录
// @Summary      用户登录
// @Description  用户登录，返回Access Token
// @Tags         认证
// @Accept       json
// @Produce      json
// @Param        request  body      model.LoginRequest  true  "登录请求"
// @Success      200     {object}  map[string]interface{}
// @Failure      400     {object}  model.ErrorResponse
// @Failure      401     {object}  model.ErrorResponse
// @Router       /api/v1/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) || errors.Is(err, service.ErrInvalidPassword) {
			c.JSON(http.StatusUnauthorized, model.ErrorResponse{
				Code:    40101,
				Message: "invalid credentials",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50032,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "ok",
		"data": LoginResponseData{
			AccessToken: resp.AccessToken,
			ExpiresIn:   resp.ExpiresIn,
			TokenType:   resp.TokenType,
			User:        toUserInfo(resp.User),
		},
	})
}
