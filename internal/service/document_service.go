package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"docchat/internal/agent"
	"docchat/internal/model"
	"docchat/internal/pkg/storage"
	"docchat/internal/repository"
)

var (
	ErrDatabaseNotFound = errors.New("document database not found")
	ErrDatabaseExists   = errors.New("document database already exists")
)

// maxSemanticAnalysisChars 送入语义分析的文本上限
const maxSemanticAnalysisChars = 8000

// DocumentService 文档管理服务
// 负责文档库的增删与文档的上传、落库、语义描述生成
type DocumentService struct {
	dbRepo   *repository.DocumentDBRepo
	docRepo  *repository.DocumentRepo
	storage  storage.Storage
	semantic *agent.SemanticAgent // 可为 nil，无模型时跳过语义描述
}

// NewDocumentService 创建文档管理服务
func NewDocumentService(dbRepo *repository.DocumentDBRepo, docRepo *repository.DocumentRepo, st storage.Storage, semantic *agent.SemanticAgent) *DocumentService {
	return &DocumentService{
		dbRepo:   dbRepo,
		docRepo:  docRepo,
		storage:  st,
		semantic: semantic,
	}
}

// CreateDatabase 注册新文档库
func (s *DocumentService) CreateDatabase(ctx context.Context, name, description string) (*model.DocumentDatabase, error) {
	if existing, _ := s.dbRepo.FindByName(ctx, name); existing != nil {
		return nil, ErrDatabaseExists
	}
	return s.dbRepo.Create(ctx, name, description)
}

// ListDatabases 查询文档库目录
func (s *DocumentService) ListDatabases(ctx context.Context) ([]*model.DocumentDatabase, error) {
	return s.dbRepo.List(ctx)
}

// DeleteDatabase 删除文档库，级联删除文档记录与存储文件
func (s *DocumentService) DeleteDatabase(ctx context.Context, name string) error {
	if _, err := s.dbRepo.FindByName(ctx, name); err != nil {
		return ErrDatabaseNotFound
	}

	docs, err := s.docRepo.ListByDatabase(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	for _, doc := range docs {
		if doc.Filename == "" {
			continue
		}
		if err := s.storage.Delete(ctx, name+"/"+doc.Filename); err != nil {
			log.Warn().Err(err).Str("filename", doc.Filename).Msg("failed to delete document file")
		}
	}

	if err := s.docRepo.DeleteByDatabase(ctx, name); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return s.dbRepo.Delete(ctx, name)
}

// UploadDocument 上传文档
// 文件存入 <库名>/<文件名>，文本内容落库并生成语义描述
func (s *DocumentService) UploadDocument(ctx context.Context, databaseName, filename string, data io.Reader) (*model.Document, error) {
	if _, err := s.dbRepo.FindByName(ctx, databaseName); err != nil {
		return nil, ErrDatabaseNotFound
	}

	content, err := io.ReadAll(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	key := databaseName + "/" + filename
	if _, err := s.storage.Upload(ctx, key, bytes.NewReader(content), ""); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	doc := &model.Document{
		DatabaseName: databaseName,
		Title:        strings.TrimSuffix(filename, filepath.Ext(filename)),
		Content:      extractText(filename, content),
		Filename:     filename,
	}

	if s.semantic != nil && doc.Content != "" {
		text := doc.Content
		if len(text) > maxSemanticAnalysisChars {
			text = text[:maxSemanticAnalysisChars]
		}
		description, err := s.semantic.GenerateDescription(ctx, text)
		if err != nil {
			log.Warn().Err(err).Str("filename", filename).Msg("failed to generate semantic description")
		} else {
			doc.SemanticDescription = description
		}
	}

	if err := s.docRepo.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	log.Info().Str("database", databaseName).Str("filename", filename).Msg("document uploaded")
	return doc, nil
}

// ListDocuments 查询指定库的文档
func (s *DocumentService) ListDocuments(ctx context.Context, databaseName string) ([]*model.Document, error) {
	return s.docRepo.ListByDatabase(ctx, databaseName)
}

// DeleteDocument 删除单个文档及其存储文件
func (s *DocumentService) DeleteDocument(ctx context.Context, databaseName, docID string) error {
	docs, err := s.docRepo.ListByDatabase(ctx, databaseName)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if doc.ID.Hex() == docID && doc.Filename != "" {
			if err := s.storage.Delete(ctx, databaseName+"/"+doc.Filename); err != nil {
				log.Warn().Err(err).Str("filename", doc.Filename).Msg("failed to delete document file")
			}
			break
		}
	}
	return s.docRepo.Delete(ctx, databaseName, docID)
}

// DownloadFile 下载库中的文件
func (s *DocumentService) DownloadFile(ctx context.Context, databaseName, filename string) (io.ReadCloser, error) {
	exists, err := s.storage.Exists(ctx, databaseName+"/"+filename)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.New("file not found")
	}
	return s.storage.Download(ctx, databaseName+"/"+filename)
}

// extractText 按扩展名提取可检索文本，二进制格式暂不解析
func extractText(filename string, content []byte) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".json", ".csv":
		return string(content)
	default:
		return ""
	}
}
