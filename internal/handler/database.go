package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat/internal/model"
	"docchat/internal/service"
)

// DatabaseHandler 文档库管理处理器
type DatabaseHandler struct {
	docService *service.DocumentService
}

// NewDatabaseHandler 创建文档库管理处理器
func NewDatabaseHandler(docService *service.DocumentService) *DatabaseHandler {
	return &DatabaseHandler{docService: docService}
}

// List 查询文档库目录
// @Summary      查询文档库目录
// @Tags         文档库
// @Produce      json
// @Success      200  {array}   model.DocumentDatabase
// @Failure      500  {object}  model.ErrorResponse
// @Router       /api/v1/databases [get]
func (h *DatabaseHandler) List(c *gin.Context) {
	databases, err := h.docService.ListDatabases(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50011,
			Message: "failed to list databases",
			Detail:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, databases)
}

// Create 注册新文档库
// @Summary      注册新文档库
// @Tags         文档库
// @Accept       json
// @Produce      json
// @Param        request  body  model.CreateDatabaseRequest  true  "库信息"
// @Success      201  {object}  model.DocumentDatabase
// @Failure      400  {object}  model.ErrorResponse
// @Failure      409  {object}  model.ErrorResponse
// @Router       /api/v1/databases [post]
func (h *DatabaseHandler) Create(c *gin.Context) {
	var req model.CreateDatabaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	db, err := h.docService.CreateDatabase(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		if errors.Is(err, service.ErrDatabaseExists) {
			c.JSON(http.StatusConflict, model.ErrorResponse{
				Code:    40901,
				Message: "database already exists",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50012,
			Message: "failed to create database",
			Detail:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, db)
}

// Delete 删除文档库
// @Summary      删除文档库及其全部文档
// @Tags         文档库
// @Produce      json
// @Param        name  path  string  true  "库名"
// @Success      204
// @Failure      404  {object}  model.ErrorResponse
// @Router       /api/v1/databases/{name} [delete]
func (h *DatabaseHandler) Delete(c *gin.Context) {
	err := h.docService.DeleteDatabase(c.Request.Context(), c.Param("name"))
	if err != nil {
		if errors.Is(err, service.ErrDatabaseNotFound) {
			c.JSON(http.StatusNotFound, model.ErrorResponse{
				Code:    40401,
				Message: "database not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50013,
			Message: "failed to delete database",
			Detail:  err.Error(),
		})
		return
	}

	c.Status(http.StatusNoContent)
}
