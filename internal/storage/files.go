package storage

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Supported file types for document processing.
const (
	FileTypePDF     = "pdf"
	FileTypeTXT     = "txt"
	FileTypeDOC     = "doc"
	FileTypeDOCX    = "docx"
	FileTypeWebpage = "webpage"
)

// supportedFileTypes maps each accepted file type to its canonical
// content type.
var supportedFileTypes = map[string]string{
	FileTypePDF:     "application/pdf",
	FileTypeTXT:     "text/plain",
	FileTypeDOC:     "application/msword",
	FileTypeDOCX:    "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	FileTypeWebpage: "text/html",
}

// IsSupportedFileType reports whether the given type is accepted for
// processing. The comparison ignores case.
func IsSupportedFileType(fileType string) bool {
	_, ok := supportedFileTypes[strings.ToLower(strings.TrimSpace(fileType))]
	return ok
}

// SupportedFileTypes returns the accepted file types in stable order.
func SupportedFileTypes() []string {
	return []string{FileTypePDF, FileTypeTXT, FileTypeDOC, FileTypeDOCX, FileTypeWebpage}
}

// ContentTypeFor returns the content type for a file name, falling back
// to application/octet-stream when the extension is unknown.
func ContentTypeFor(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if canonical, ok := supportedFileTypes[strings.TrimPrefix(ext, ".")]; ok {
		return canonical
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// UniqueFilename inserts a short random token before the extension so
// repeated uploads of the same name never collide in the bucket.
func UniqueFilename(fileName string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	ext := filepath.Ext(fileName)
	base := strings.TrimSuffix(fileName, ext)
	return fmt.Sprintf("%s_%s%s", base, token, ext)
}
