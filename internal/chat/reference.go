package chat

import (
	"context"
	"io"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"docchat/internal/pkg/storage"
)

// NotFoundNotice 引用文件缺失时附加的提示
const NotFoundNotice = "(Archivo no encontrado)"

// leadingIndexPattern 引用开头的 [数字] 序号
var leadingIndexPattern = regexp.MustCompile(`^\[\d+\]\s*`)

// ResolvedReference 解析后的引用
// Label 始终保留原始引用文本；文件缺失不是错误，以 Found=false 表达
type ResolvedReference struct {
	Label    string `json:"label"`
	Display  string `json:"display"`
	Filename string `json:"filename"`
	Content  []byte `json:"content,omitempty"`
	Found    bool   `json:"found"`
}

// DisplayLabel 引用的展示文本，文件缺失时在原始引用后附加提示
func (r ResolvedReference) DisplayLabel() string {
	if r.Found {
		return r.Label
	}
	return r.Label + " " + NotFoundNotice
}

// Resolver 引用解析器
// 按 <库名>/<文件名> 约定在存储中定位被引用的源文件，每次解析都重新读取，不做缓存
type Resolver struct {
	storage storage.Storage
}

// NewResolver 创建引用解析器
func NewResolver(st storage.Storage) *Resolver {
	return &Resolver{storage: st}
}

// ExtractFilename 从引用文本提取文件名
// " - " 之前的部分为文件名，去掉开头的 [数字] 序号并修剪空白
func ExtractFilename(citation string) string {
	name := citation
	if idx := strings.Index(name, " - "); idx >= 0 {
		name = name[:idx]
	}
	name = strings.TrimSpace(name)
	name = leadingIndexPattern.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// Resolve 解析单条引用
// 文件存在时带回内容字节，缺失时仅标记 Found=false，不返回错误
func (r *Resolver) Resolve(ctx context.Context, citation, corpusName string) ResolvedReference {
	filename := ExtractFilename(citation)
	resolved := ResolvedReference{
		Label:    citation,
		Filename: filename,
	}

	if filename == "" || corpusName == "" {
		return resolved
	}

	key := corpusName + "/" + filename
	exists, err := r.storage.Exists(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to check referenced file")
		return resolved
	}
	if !exists {
		return resolved
	}

	reader, err := r.storage.Download(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to download referenced file")
		return resolved
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to read referenced file")
		return resolved
	}

	resolved.Content = content
	resolved.Found = true
	return resolved
}
