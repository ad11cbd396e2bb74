package routes

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/infinitehq/aimlgw/internal/apierror"
	"github.com/infinitehq/aimlgw/internal/forward"
	"github.com/infinitehq/aimlgw/internal/storage"
)

func (h *Handlers) registerFiles(group *gin.RouterGroup) {
	group.POST("/upload/generate_url", h.generateUploadURL)
	group.POST("/process", h.processFile)
	group.GET("/download/:file_id", h.downloadFile)
	group.DELETE("/delete/:file_id", h.deleteFile)
	group.GET("/files/:agent_id", h.agentFiles)
	group.POST("/validate", h.validateFile)
	group.GET("/jobs/:job_id", h.jobStatus)

	// "/collections/:agent_id" and "/collections/files/..." cannot
	// coexist in gin's route tree, so both are served under a catch-all.
	group.GET("/collections/*rest", h.collections)
}

// uploadRequest is the validated query surface shared by generate_url
// and validate.
type uploadRequest struct {
	FileName string
	FileType string
	FileSize int // megabytes
	AgentID  string
}

func bindUploadRequest(c *gin.Context) (*uploadRequest, error) {
	req := &uploadRequest{
		FileName: c.Query("file_name"),
		FileType: c.Query("file_type"),
		AgentID:  c.Query("agent_id"),
	}
	if req.FileName == "" || req.FileType == "" || req.AgentID == "" {
		return nil, apierror.NewValidationError("file_name, file_type and agent_id are required")
	}

	size, err := strconv.Atoi(c.Query("file_size"))
	if err != nil {
		return nil, apierror.NewValidationError("file_size must be an integer (megabytes)")
	}
	req.FileSize = size

	return req, nil
}

// checkUpload runs the type, size and duplicate checks. Type and size
// are decided locally and reject before the upstream listing is ever
// consulted; the duplicate lookup only runs for otherwise valid uploads.
func (h *Handlers) checkUpload(c *gin.Context, req *uploadRequest) ([]string, string, error) {
	var issues []string

	if !storage.IsSupportedFileType(req.FileType) {
		issues = append(issues, fmt.Sprintf("File type %s not allowed", req.FileType))
	}
	if req.FileSize > h.maxFileSizeMB {
		issues = append(issues, fmt.Sprintf("File size exceeds maximum limit of %dMB", h.maxFileSizeMB))
	}
	if len(issues) > 0 {
		return issues, "", nil
	}

	existing, err := h.forwarder.Forward(c.Request.Context(), http.MethodGet,
		h.upstreamURL("/files/files/all/"+url.PathEscape(req.AgentID)),
		forward.Subject(subjectFrom(c)))
	if err != nil {
		return nil, "", err
	}

	if duplicateID, found := findDuplicate(existing, req.FileName); found {
		issues = append(issues, "File with this name already exists")
		return issues, duplicateID, nil
	}

	return issues, "", nil
}

// findDuplicate scans an upstream file listing for a case-insensitive
// filename match.
func findDuplicate(listing interface{}, fileName string) (string, bool) {
	m, ok := listing.(map[string]interface{})
	if !ok {
		return "", false
	}
	data, ok := m["data"].([]interface{})
	if !ok {
		return "", false
	}

	want := strings.ToLower(fileName)
	for _, entry := range data {
		file, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := file["filename"].(string)
		if strings.ToLower(name) == want {
			id, _ := file["_id"].(string)
			return id, true
		}
	}
	return "", false
}

// generateUploadURL validates the upload and returns a presigned PUT URL.
func (h *Handlers) generateUploadURL(c *gin.Context) {
	const route = "files.generate_url"

	req, err := bindUploadRequest(c)
	if err != nil {
		apierror.Respond(c, h.auditor, route, err)
		return
	}

	issues, duplicateID, err := h.checkUpload(c, req)
	if err != nil {
		apierror.Respond(c, h.auditor, route, err)
		return
	}
	if duplicateID != "" {
		apierror.Respond(c, h.auditor, route, apierror.Conflict(gin.H{
			"message":          "File with this name already exists",
			"existing_file_id": duplicateID,
		}))
		return
	}
	if len(issues) > 0 {
		apierror.Respond(c, h.auditor, route, apierror.NewValidationError(issues[0]))
		return
	}

	key := fmt.Sprintf("files/%s/%s", subjectFrom(c), storage.UniqueFilename(req.FileName))
	contentType := storage.ContentTypeFor(req.FileName)

	uploadURL, err := h.storage.PresignUpload(c.Request.Context(), key, contentType)
	if err != nil {
		apierror.Respond(c, h.auditor, route, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Upload URL generated successfully",
		"upload_url":   uploadURL,
		"s3_key":       key,
		"s3_bucket":    h.storage.Bucket(),
		"content_type": contentType,
	})
}

// validateFile runs the upload checks without issuing a URL.
func (h *Handlers) validateFile(c *gin.Context) {
	const route = "files.validate"

	req, err := bindUploadRequest(c)
	if err != nil {
		apierror.Respond(c, h.auditor, route, err)
		return
	}

	issues, _, err := h.checkUpload(c, req)
	if err != nil {
		apierror.Respond(c, h.auditor, route, err)
		return
	}
	if issues == nil {
		issues = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":  len(issues) == 0,
		"issues": issues,
	})
}

// processFile starts upstream processing of an uploaded object, adding
// the gateway's bucket to the job parameters.
func (h *Handlers) processFile(c *gin.Context) {
	const route = "files.process"

	query := c.Request.URL.Query()
	if query.Get("s3_key") == "" {
		apierror.Respond(c, h.auditor, route, apierror.NewValidationError("s3_key is required"))
		return
	}
	if query.Get("chunk_size") == "" {
		query.Set("chunk_size", "3")
	}
	if query.Get("overlap") == "" {
		query.Set("overlap", "1")
	}
	if query.Get("chunk_type") == "" {
		query.Set("chunk_type", "sentence")
	}
	query.Set("s3_bucket", h.storage.Bucket())

	result, err := h.forwarder.Forward(c.Request.Context(), http.MethodPost,
		h.upstreamURL("/files/jobs/start"),
		forward.Query(query),
		forward.Subject(subjectFrom(c)),
	)
	if err != nil {
		apierror.Respond(c, h.auditor, route, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// fileDetails fetches a file document from the upstream.
func (h *Handlers) fileDetails(c *gin.Context, fileID string) (map[string]interface{}, error) {
	result, err := h.forwarder.Forward(c.Request.Context(), http.MethodGet,
		h.upstreamURL("/files/files/get/"+url.PathEscape(fileID)),
		forward.Subject(subjectFrom(c)))
	if err != nil {
		return nil, err
	}

	details, ok := result.(map[string]interface{})
	if !ok {
		return nil, apierror.Internal("unexpected file details shape from upstream")
	}
	return details, nil
}

// downloadFile returns the webpage URL directly or a presigned GET URL
// for stored objects.
func (h *Handlers) downloadFile(c *gin.Context) {
	const route = "files.download"

	details, err := h.fileDetails(c, c.Param("file_id"))
	if err != nil {
		apierror.Respond(c, h.auditor, route, err)
		return
	}

	if fileType, _ := details["file_type"].(string); fileType == storage.FileTypeWebpage {
		c.JSON(http.StatusOK, gin.H{
			"message": "Webpage URL retrieved",
			"url":     details["url"],
		})
		return
	}

	key, _ := details["s3_key"].(string)
	downloadURL, err := h.storage.PresignDownload(c.Request.Context(), key)
	if err != nil {
		apierror.Respond(c, h.auditor, route, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Download URL generated successfully",
		"download_url": downloadURL,
	})
}

// deleteFile removes a file upstream and from object storage. Partial
// failures are reported per step, not as an overall error.
func (h *Handlers) deleteFile(c *gin.Context) {
	const route = "files.delete"

	fileID := c.Param("file_id")
	details, err := h.fileDetails(c, fileID)
	if err != nil {
		apierror.Respond(c, h.auditor, route, err)
		return
	}

	var errs []string

	if _, err := h.forwarder.Forward(c.Request.Context(), http.MethodDelete,
		h.upstreamURL("/files/delete/"+url.PathEscape(fileID)),
		forward.Subject(subjectFrom(c))); err != nil {
		errs = append(errs, fmt.Sprintf("Failed to delete from backend: %v", err))
	}

	if fileType, _ := details["file_type"].(string); fileType != storage.FileTypeWebpage {
		key, _ := details["s3_key"].(string)
		if err := h.storage.DeleteObject(c.Request.Context(), key); err != nil {
			errs = append(errs, fmt.Sprintf("Failed to delete from storage: %v", err))
		}
	}

	if len(errs) > 0 {
		c.JSON(http.StatusOK, gin.H{
			"message": "File deletion partially completed with errors",
			"errors":  errs,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "File deleted successfully"})
}

// agentFiles lists all files for an agent.
func (h *Handlers) agentFiles(c *gin.Context) {
	const route = "files.list"

	query := c.Request.URL.Query()
	if query.Get("limit") == "" {
		query.Set("limit", "20")
	}
	if query.Get("skip") == "" {
		query.Set("skip", "0")
	}

	result, err := h.forwarder.Forward(c.Request.Context(), http.MethodGet,
		h.upstreamURL("/files/files/all/"+url.PathEscape(c.Param("agent_id"))),
		forward.Query(query),
		forward.Subject(subjectFrom(c)),
	)
	if err != nil {
		apierror.Respond(c, h.auditor, route, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// collections dispatches the two collection listing forms.
func (h *Handlers) collections(c *gin.Context) {
	parts := strings.Split(strings.Trim(c.Param("rest"), "/"), "/")

	var name, upstream string
	opts := []forward.RequestOption{forward.Subject(subjectFrom(c))}

	switch {
	case len(parts) == 1 && parts[0] != "":
		name = "files.collections"
		upstream = "/files/collections/all/" + url.PathEscape(parts[0])
	case len(parts) == 3 && parts[0] == "files":
		name = "files.collection_files"
		upstream = "/files/collections/files/" +
			url.PathEscape(parts[1]) + "/" + url.PathEscape(parts[2])

		query := c.Request.URL.Query()
		if query.Get("limit") == "" {
			query.Set("limit", "20")
		}
		if query.Get("skip") == "" {
			query.Set("skip", "0")
		}
		opts = append(opts, forward.Query(query))
	default:
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"detail": "Not found"})
		return
	}

	result, err := h.forwarder.Forward(c.Request.Context(), http.MethodGet,
		h.upstreamURL(upstream), opts...)
	if err != nil {
		apierror.Respond(c, h.auditor, name, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// jobStatus returns the status of a processing job.
func (h *Handlers) jobStatus(c *gin.Context) {
	const route = "files.job_status"

	result, err := h.forwarder.Forward(c.Request.Context(), http.MethodGet,
		h.upstreamURL("/files/jobs/get/"+url.PathEscape(c.Param("job_id"))))
	if err != nil {
		apierror.Respond(c, h.auditor, route, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
