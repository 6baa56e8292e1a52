package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat/internal/model"
	"docchat/internal/service"
)

// Register 用户注册
// @Summary      用户注册
// @Tags         认证
// @Accept       json
// @Produce      json
// @Param        request  body      model.RegisterRequest  true  "注册请求"
// @Success      201     {object}  map[string]interface{}
// @Failure      400     {object}  model.ErrorResponse
// @Failure      409     {object}  model.ErrorResponse
// @Router       /api/v1/auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUserAlreadyExists) || errors.Is(err, service.ErrEmailTaken) {
			c.JSON(http.StatusConflict, model.ErrorResponse{
				Code:    40902,
				Message: err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50031,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"code":    0,
		"message": "registered",
		"data":    toUserInfo(user),
	})
}
