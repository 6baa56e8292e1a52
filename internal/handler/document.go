package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat/internal/model"
	"docchat/internal/service"
)

// DocumentHandler 文档管理处理器
type DocumentHandler struct {
	docService *service.DocumentService
}

// NewDocumentHandler 创建文档管理处理器
func NewDocumentHandler(docService *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// Upload 上传文档
// @Summary      上传文档到指定库
// @Description  multipart 表单上传，文本文件内容落库并生成语义描述
// @Tags         文档
// @Accept       multipart/form-data
// @Produce      json
// @Param        name  path      string  true  "库名"
// @Param        file  formData  file    true  "文档文件"
// @Success      201  {object}  model.Document
// @Failure      400  {object}  model.ErrorResponse
// @Failure      404  {object}  model.ErrorResponse
// @Router       /api/v1/databases/{name}/documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40002,
			Message: "missing file",
			Detail:  err.Error(),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40003,
			Message: "failed to open upload",
			Detail:  err.Error(),
		})
		return
	}
	defer file.Close()

	doc, err := h.docService.UploadDocument(c.Request.Context(), c.Param("name"), fileHeader.Filename, file)
	if err != nil {
		if errors.Is(err, service.ErrDatabaseNotFound) {
			c.JSON(http.StatusNotFound, model.ErrorResponse{
				Code:    40401,
				Message: "database not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50021,
			Message: "failed to upload document",
			Detail:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, doc)
}

// List 查询指定库的文档
// @Summary      查询指定库的文档
// @Tags         文档
// @Produce      json
// @Param        name  path  string  true  "库名"
// @Success      200  {array}   model.Document
// @Failure      500  {object}  model.ErrorResponse
// @Router       /api/v1/databases/{name}/documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.docService.ListDocuments(c.Request.Context(), c.Param("name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50022,
			Message: "failed to list documents",
			Detail:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, docs)
}

// Delete 删除文档
// @Summary      删除文档及其存储文件
// @Tags         文档
// @Produce      json
// @Param        name  path  string  true  "库名"
// @Param        id    path  string  true  "文档 ID"
// @Success      204
// @Failure      500  {object}  model.ErrorResponse
// @Router       /api/v1/databases/{name}/documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.docService.DeleteDocument(c.Request.Context(), c.Param("name"), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50023,
			Message: "failed to delete document",
			Detail:  err.Error(),
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// Download 下载库中的文件
// @Summary      下载库中的源文件
// @Tags         文档
// @Produce      octet-stream
// @Param        name      path  string  true  "库名"
// @Param        filename  path  string  true  "文件名"
// @Success      200
// @Failure      404  {object}  model.ErrorResponse
// @Router       /api/v1/databases/{name}/files/{filename} [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	filename := c.Param("filename")

	reader, err := h.docService.DownloadFile(c.Request.Context(), c.Param("name"), filename)
	if err != nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Code:    40402,
			Message: "Archivo no encontrado",
		})
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/octet-stream")
	if _, err := io.Copy(c.Writer, reader); err != nil {
		c.Abort()
	}
}
