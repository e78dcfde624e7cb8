package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/open-audit/internal/application/service"
	"github.com/garyjia/open-audit/internal/domain/entity"
)

// Version is reported by the health endpoint
var Version = "dev"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	documents      service.DocumentService
	tax            service.TaxService
	maxUploadBytes int64
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(documents service.DocumentService, tax service.TaxService, maxUploadBytes int64, logger Logger) *Handlers {
	return &Handlers{
		documents:      documents,
		tax:            tax,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Field   string      `json:"field,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Version    string      `json:"version"`
	Components interface{} `json:"components,omitempty"`
}

// TaxRequest is the calculation body; each value may be a number or a string
type TaxRequest struct {
	AnnualIncome    interface{} `json:"annualIncome"`
	Investments     interface{} `json:"investments"`
	OtherDeductions interface{} `json:"otherDeductions"`
	RentPaid        interface{} `json:"rentPaid"`
}

// RegimeResponse is one side of the comparison
type RegimeResponse struct {
	TaxableIncome float64 `json:"taxableIncome"`
	Tax           float64 `json:"tax"`
}

// TaxResponse is the result of POST /api/tax/calculate
type TaxResponse struct {
	Message        string                       `json:"message"`
	OldRegime      RegimeResponse               `json:"oldRegime"`
	NewRegime      RegimeResponse               `json:"newRegime"`
	Recommendation string                       `json:"recommendation"`
	Savings        float64                      `json:"savings"`
	FinalTax       float64                      `json:"finalTax"`
	SavedRecord    *entity.TaxCalculationRecord `json:"savedRecord"`
}

// UploadResponse is the result of POST /api/documents/upload
type UploadResponse struct {
	Msg        string           `json:"msg"`
	Document   *entity.Document `json:"document"`
	AuditFlags []string         `json:"auditFlags"`
}

// EditRequest is a partial edit; amount may be a number or a string
type EditRequest struct {
	Vendor   *string     `json:"vendor"`
	Amount   interface{} `json:"amount"`
	Date     *string     `json:"date"`
	Category *string     `json:"category"`
}

// CalculateTax handles POST /api/tax/calculate
func (h *Handlers) CalculateTax(c *gin.Context) {
	var req TaxRequest
	if err := decodeJSON(c.Request.Body, &req); err != nil {
		h.writeError(c, &service.ValidationError{Field: "body", Message: "invalid JSON"})
		return
	}

	calc, err := h.tax.Calculate(c.Request.Context(), identityFrom(c), service.TaxInput{
		AnnualIncome:    req.AnnualIncome,
		Investments:     req.Investments,
		RentPaid:        req.RentPaid,
		OtherDeductions: req.OtherDeductions,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	result := calc.Result
	c.JSON(http.StatusOK, TaxResponse{
		Message: "Tax calculated successfully",
		OldRegime: RegimeResponse{
			TaxableIncome: result.Old.TaxableIncome.InexactFloat64(),
			Tax:           result.Old.Tax.InexactFloat64(),
		},
		NewRegime: RegimeResponse{
			TaxableIncome: result.New.TaxableIncome.InexactFloat64(),
			Tax:           result.New.Tax.InexactFloat64(),
		},
		Recommendation: result.Recommendation.String(),
		Savings:        result.Savings.InexactFloat64(),
		FinalTax:       result.FinalTax.InexactFloat64(),
		SavedRecord:    calc.Record,
	})
}

// TaxHistory handles GET /api/tax/history
func (h *Handlers) TaxHistory(c *gin.Context) {
	history, err := h.tax.History(c.Request.Context(), identityFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// UploadDocument handles POST /api/documents/upload
func (h *Handlers) UploadDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.writeError(c, &service.ValidationError{Field: "file", Message: "file is required"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open upload", "error", err)
		h.writeError(c, &service.ValidationError{Field: "file", Message: "unreadable upload"})
		return
	}
	defer f.Close()

	reader := io.Reader(f)
	if h.maxUploadBytes > 0 {
		// One extra byte lets the service detect oversize uploads.
		reader = io.LimitReader(f, h.maxUploadBytes+1)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		h.writeError(c, &service.ValidationError{Field: "file", Message: "unreadable upload"})
		return
	}

	doc, err := h.documents.Submit(c.Request.Context(), identityFrom(c), service.Upload{
		Filename:     fileHeader.Filename,
		MimeType:     fileHeader.Header.Get("Content-Type"),
		Content:      content,
		DocumentType: c.PostForm("document_type"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	msg := "Document uploaded and analyzed"
	if doc.Status != entity.DocumentStatusAnalyzed {
		msg = "Document uploaded; analysis failed and can be retried"
	}
	c.JSON(http.StatusCreated, UploadResponse{Msg: msg, Document: doc, AuditFlags: doc.AuditFlags})
}

// ListDocuments handles GET /api/documents
func (h *Handlers) ListDocuments(c *gin.Context) {
	docs, err := h.documents.List(c.Request.Context(), identityFrom(c), entity.DocumentFilter{
		Search:   c.Query("search"),
		Category: c.Query("category"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

// GetDocument handles GET /api/documents/:id
func (h *Handlers) GetDocument(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}
	doc, err := h.documents.Get(c.Request.Context(), identityFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// EditDocument handles PUT /api/documents/:id
func (h *Handlers) EditDocument(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	var req EditRequest
	if err := decodeJSON(c.Request.Body, &req); err != nil {
		h.writeError(c, &service.ValidationError{Field: "body", Message: "invalid JSON"})
		return
	}

	doc, err := h.documents.Edit(c.Request.Context(), identityFrom(c), id, service.EditInput{
		Vendor:   req.Vendor,
		Amount:   req.Amount,
		Date:     req.Date,
		Category: req.Category,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/documents/:id
func (h *Handlers) DeleteDocument(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}
	if err := h.documents.Delete(c.Request.Context(), identityFrom(c), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Document deleted"})
}

// RetryDocument handles POST /api/documents/:id/retry
func (h *Handlers) RetryDocument(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}
	doc, err := h.documents.Retry(c.Request.Context(), identityFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// DownloadDocument handles GET /api/documents/:id/download
func (h *Handlers) DownloadDocument(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}
	file, err := h.documents.Download(c.Request.Context(), identityFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	attachment(c, file.Filename, file.ContentType, file.Content)
}

// ExportCSV handles GET /api/documents/export.csv
func (h *Handlers) ExportCSV(c *gin.Context) {
	data, err := h.documents.ExportCSV(c.Request.Context(), identityFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	attachment(c, "documents.csv", "text/csv; charset=utf-8", data)
}

// ExportXLSX handles GET /api/documents/export.xlsx
func (h *Handlers) ExportXLSX(c *gin.Context) {
	data, err := h.documents.ExportXLSX(c.Request.Context(), identityFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	attachment(c, "documents.xlsx", xlsxContentType, data)
}

// DocumentStats handles GET /api/documents/stats
func (h *Handlers) DocumentStats(c *gin.Context) {
	stats, err := h.documents.Stats(c.Request.Context(), identityFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handlers) documentID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(c, &service.ValidationError{Field: "id", Message: "invalid document id"})
		return 0, false
	}
	return id, true
}

// writeError maps service errors onto status codes. Store failures are logged
// and replaced by a generic message.
func (h *Handlers) writeError(c *gin.Context, err error) {
	var validation *service.ValidationError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: validation.Message, Field: validation.Field})
	case errors.Is(err, service.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, Response{Success: false, Error: "unauthenticated"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "document not found"})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
	case errors.Is(err, service.ErrRetrievalFailure):
		c.JSON(http.StatusBadGateway, Response{Success: false, Error: service.ErrRetrievalFailure.Error()})
	case errors.Is(err, service.ErrExtractionUnavailable):
		c.JSON(http.StatusServiceUnavailable, Response{Success: false, Error: "extraction unavailable"})
	default:
		h.logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"user_id", identityFrom(c).UserID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal server error"})
	}
}

// decodeJSON decodes an optional JSON body keeping numbers exact
func decodeJSON(body io.Reader, v interface{}) error {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}
