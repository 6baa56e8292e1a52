package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat/internal/chat"
	"docchat/internal/model"
	"docchat/internal/pkg/id"
)

// ChatHandler 会话处理器
// 每个请求按路径中的会话 ID 路由到各自的会话编排器
type ChatHandler struct {
	manager *chat.Manager
}

// NewChatHandler 创建会话处理器
func NewChatHandler(manager *chat.Manager) *ChatHandler {
	return &ChatHandler{manager: manager}
}

func (h *ChatHandler) controller(c *gin.Context) *chat.Controller {
	return h.manager.GetOrCreate(c.Param("sid"))
}

// CreateSession 创建新会话
// @Summary      创建新会话
// @Description  返回会话 ID，后续请求通过路径携带该 ID
// @Tags         会话
// @Produce      json
// @Success      201  {object}  map[string]string
// @Router       /api/v1/sessions [post]
func (h *ChatHandler) CreateSession(c *gin.Context) {
	sessionID := id.New()
	h.manager.GetOrCreate(sessionID)
	c.JSON(http.StatusCreated, gin.H{"session_id": sessionID})
}

// View 渲染会话视图
// @Summary      渲染会话视图
// @Description  返回文档库目录、对话列表与当前对话的消息历史
// @Tags         会话
// @Produce      json
// @Param        sid  path  string  true  "会话 ID"
// @Success      200  {object}  chat.SessionView
// @Failure      500  {object}  model.ErrorResponse
// @Router       /api/v1/sessions/{sid}/view [get]
func (h *ChatHandler) View(c *gin.Context) {
	view, err := h.controller(c).Render(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "failed to render session",
			Detail:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, view)
}

// Submit 提交用户消息
// @Summary      提交用户消息
// @Description  先持久化用户消息，再调用智能体生成回答并落库，最后返回重新渲染的视图
// @Tags         会话
// @Accept       json
// @Produce      json
// @Param        sid      path  string                      true  "会话 ID"
// @Param        request  body  model.SubmitMessageRequest  true  "用户消息"
// @Success      200  {object}  chat.SessionView
// @Failure      400  {object}  model.ErrorResponse
// @Failure      422  {object}  model.ErrorResponse
// @Router       /api/v1/sessions/{sid}/messages [post]
func (h *ChatHandler) Submit(c *gin.Context) {
	var req model.SubmitMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	view, err := h.controller(c).Submit(c.Request.Context(), req.Text)
	if err != nil {
		if errors.Is(err, chat.ErrNoDatabaseSelected) {
			c.JSON(http.StatusUnprocessableEntity, model.ErrorResponse{
				Code:    42201,
				Message: "No hay una base de datos de documentos seleccionada",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50002,
			Message: "failed to process message",
			Detail:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, view)
}

// NewConversation 新建对话
// @Summary      新建对话并切换
// @Tags         会话
// @Produce      json
// @Param        sid  path  string  true  "会话 ID"
// @Success      200  {object}  chat.SessionView
// @Router       /api/v1/sessions/{sid}/conversations [post]
func (h *ChatHandler) NewConversation(c *gin.Context) {
	view, err := h.controller(c).NewConversation(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50003,
			Message: "failed to create conversation",
			Detail:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, view)
}

// SwitchConversation 切换当前对话
// @Summary      切换当前对话
// @Tags         会话
// @Produce      json
// @Param        sid     path  string  true  "会话 ID"
// @Param        convID  path  string  true  "对话 ID"
// @Success      200  {object}  chat.SessionView
// @Router       /api/v1/sessions/{sid}/conversations/{convID} [put]
func (h *ChatHandler) SwitchConversation(c *gin.Context) {
	view, err := h.controller(c).SwitchConversation(c.Request.Context(), c.Param("convID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50004,
			Message: "failed to switch conversation",
			Detail:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteConversation 删除对话
// @Summary      删除对话及其消息与记忆
// @Description  删除的是当前对话时自动新建并切换
// @Tags         会话
// @Produce      json
// @Param        sid     path  string  true  "会话 ID"
// @Param        convID  path  string  true  "对话 ID"
// @Success      200  {object}  chat.SessionView
// @Router       /api/v1/sessions/{sid}/conversations/{convID} [delete]
func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	view, err := h.controller(c).DeleteConversation(c.Request.Context(), c.Param("convID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50005,
			Message: "failed to delete conversation",
			Detail:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, view)
}

// SwitchDatabase 切换当前文档库
// @Summary      切换当前文档库
// @Tags         会话
// @Accept       json
// @Produce      json
// @Param        sid      path  string                       true  "会话 ID"
// @Param        request  body  model.SwitchDatabaseRequest  true  "目标库"
// @Success      200  {object}  chat.SessionView
// @Failure      400  {object}  model.ErrorResponse
// @Router       /api/v1/sessions/{sid}/database [put]
func (h *ChatHandler) SwitchDatabase(c *gin.Context) {
	var req model.SwitchDatabaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	view, err := h.controller(c).SwitchDatabase(c.Request.Context(), req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50006,
			Message: "failed to switch database",
			Detail:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, view)
}
