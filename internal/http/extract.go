package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/recall/internal/entities"
	"github.com/mrlokans/recall/internal/extract"
	"github.com/mrlokans/recall/internal/faults"
	"github.com/mrlokans/recall/internal/formats"
	"github.com/mrlokans/recall/internal/runner"
	"github.com/mrlokans/recall/internal/services"
	"github.com/mrlokans/recall/internal/tasks"
)

const defaultMaxUploadBytes = 64 << 20

type ExtractController struct {
	extractor      Extractor
	runs           services.RunRecorder
	queue          TaskQueue
	libraryDir     string
	maxUploadBytes int64
}

func NewExtractController(cfg RouterConfig) *ExtractController {
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	return &ExtractController{
		extractor:      cfg.Extractor,
		runs:           cfg.Runs,
		queue:          cfg.TaskClient,
		libraryDir:     cfg.LibraryDir,
		maxUploadBytes: maxUpload,
	}
}

// ExtractResponse is the body of a successful extraction.
type ExtractResponse struct {
	Result *extract.Result         `json:"result"`
	BookID uint                    `json:"book_id,omitempty"`
	Run    *entities.ExtractionRun `json:"run,omitempty"`
}

// Extract handles POST /api/extract
// Multipart fields: book, annotations, optional format, optional persist.
// Without persist=true nothing is saved.
func (ec *ExtractController) Extract(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ec.maxUploadBytes)

	bookName, book, err := readFormFile(c, "book")
	if err != nil {
		ec.respondUploadError(c, err)
		return
	}
	_, annotations, err := readFormFile(c, "annotations")
	if err != nil {
		ec.respondUploadError(c, err)
		return
	}

	var format formats.Format
	if f := c.PostForm("format"); f != "" {
		if format, err = formats.ParseFormat(f); err != nil {
			respondBadRequest(c, err.Error())
			return
		}
	}
	persist := parseBool(c.PostForm("persist"))

	out := ec.extractor.RunInput(c.Request.Context(), extract.Input{
		BookName:    bookName,
		Book:        book,
		Annotations: annotations,
		Format:      format,
	}, runner.Options{Trigger: runner.TriggerHTTP, DryRun: !persist})

	if out.Err != nil {
		kind := extract.FailureKind(out.Err)
		status := http.StatusUnprocessableEntity
		if kind == faults.KindIO {
			status = http.StatusInternalServerError
		}
		c.JSON(status, ErrorResponse{Error: out.Err.Error(), Kind: string(kind)})
		return
	}

	response := ExtractResponse{Result: out.Result, BookID: out.BookID}
	if persist {
		response.Run = &out.Run
	}
	c.JSON(http.StatusOK, response)
}

func readFormFile(c *gin.Context, field string) (string, []byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("%s file not provided: %w", field, err)
	}
	data, err := readMultipart(header)
	if err != nil {
		return "", nil, fmt.Errorf("read %s file: %w", field, err)
	}
	return header.Filename, data, nil
}

func readMultipart(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func (ec *ExtractController) respondUploadError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(c, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("upload too large (max %d MB)", ec.maxUploadBytes>>20))
		return
	}
	respondBadRequest(c, err.Error())
}

// JobRequest names a book and sidecar inside the library directory.
type JobRequest struct {
	Book        string `json:"book" binding:"required"`
	Annotations string `json:"annotations" binding:"required"`
	Format      string `json:"format,omitempty"`
}

// EnqueueJob handles POST /api/extract/jobs
func (ec *ExtractController) EnqueueJob(c *gin.Context) {
	var req JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "book and annotations are required")
		return
	}
	if req.Format != "" {
		if _, err := formats.ParseFormat(req.Format); err != nil {
			respondBadRequest(c, err.Error())
			return
		}
	}

	book, err := ec.libraryFile(req.Book, extract.IsBook)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	annotations, err := ec.libraryFile(req.Annotations, extract.IsSidecar)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	id, err := ec.queue.Enqueue(tasks.ExtractBookTask{Book: book, Annotations: annotations, Format: req.Format})
	if err != nil {
		respondInternalError(c, err, "enqueue extraction")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task_id": id,
		"type":    "extract_book",
		"message": "task enqueued",
	})
}

// libraryFile resolves name against the library directory and refuses
// anything that escapes it, has the wrong extension or does not exist.
func (ec *ExtractController) libraryFile(name string, accept func(string) bool) (string, error) {
	if ec.libraryDir == "" {
		return "", errors.New("library directory not configured")
	}
	root, err := filepath.Abs(ec.libraryDir)
	if err != nil {
		return "", err
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the library directory", name)
	}
	if !accept(path) {
		return "", fmt.Errorf("%s has an unsupported extension", name)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%s not found in the library directory", name)
	}
	return path, nil
}

// ListRuns handles GET /api/runs?status=&limit=&offset=
func (ec *ExtractController) ListRuns(c *gin.Context) {
	status := entities.RunStatus(c.Query("status"))
	switch status {
	case "", entities.RunStatusCompleted, entities.RunStatusFailed:
	default:
		respondBadRequest(c, "status must be completed or failed")
		return
	}
	offset, _ := strconv.Atoi(c.Query("offset"))

	runs, total, err := ec.runs.GetExtractionRunPage(status, parseLimit(c, 50, 500), offset)
	if err != nil {
		respondInternalError(c, err, "list runs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs), "total": total})
}

// ListBookRuns handles GET /api/books/:id/runs
func (ec *ExtractController) ListBookRuns(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	runs, err := ec.runs.GetExtractionRunsForBook(id)
	if err != nil {
		respondInternalError(c, err, "list book runs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}
