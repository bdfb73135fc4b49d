package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/AnTengye/contractdesk/middleware"
	"github.com/AnTengye/contractdesk/model"
	"github.com/AnTengye/contractdesk/pkg/future"
	"github.com/AnTengye/contractdesk/pkg/logger"
	"github.com/AnTengye/contractdesk/service"
	"github.com/gin-gonic/gin"
)

// MaxUploadSize caps contract documents
const MaxUploadSize = 20 << 20

var (
	errUnsupportedType = errors.New("only PDF and DOCX files are allowed")
	errUnreadableFile  = errors.New("failed to read file")
	errTypeMismatch    = errors.New("file content is not a PDF")
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// SummaryRecorder observes how long summaries take
type SummaryRecorder interface {
	RecordSummarizeLatency(d time.Duration)
}

type ContractHandler struct {
	contracts *service.ContractService
	recorder  SummaryRecorder
}

// NewContractHandler wires the contract routes. recorder may be nil.
func NewContractHandler(contracts *service.ContractService, recorder SummaryRecorder) *ContractHandler {
	return &ContractHandler{contracts: contracts, recorder: recorder}
}

// List returns contracts, filtered by ?status= when given
func (h *ContractHandler) List(c *gin.Context) {
	var status model.ContractStatus
	if raw := c.Query("status"); raw != "" {
		st, err := model.ParseContractStatus(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		status = st
	}

	contracts, err := h.contracts.List(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contracts": contracts})
}

// Create adds a draft contract, optionally from a template
func (h *ContractHandler) Create(c *gin.Context) {
	var in service.ContractInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	contract, err := h.contracts.Create(c.Request.Context(), middleware.GetSession(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contract)
}

// Upload handles contract file upload
func (h *ContractHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "No file provided")
		return
	}
	defer file.Close()

	if header.Size > MaxUploadSize {
		badRequest(c, "File is too large")
		return
	}

	contentType, err := detectContentType(file, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	contract, err := h.contracts.Upload(c.Request.Context(), middleware.GetSession(c), service.Upload{
		Name:        c.PostForm("name"),
		Filename:    header.Filename,
		Reader:      file,
		Size:        header.Size,
		ContentType: contentType,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contract)
}

// detectContentType accepts PDF and DOCX documents only. PDFs whose declared
// type disagrees are sniffed.
func detectContentType(file io.ReadSeeker, filename, declared string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".docx":
		return contentTypeDOCX, nil
	case ".pdf":
	default:
		return "", errUnsupportedType
	}

	if declared == "" || declared == "application/octet-stream" || strings.Contains(declared, "pdf") {
		return contentTypePDF, nil
	}

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", errUnreadableFile
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", errUnreadableFile
	}

	detected := http.DetectContentType(buffer[:n])
	if !strings.Contains(detected, "pdf") && detected != "application/octet-stream" {
		return "", errTypeMismatch
	}
	return contentTypePDF, nil
}

// Get returns a single contract with a download link
func (h *ContractHandler) Get(c *gin.Context) {
	view, err := h.contracts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Update renames a contract or moves its status
func (h *ContractHandler) Update(c *gin.Context) {
	var patch service.ContractPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	contract, err := h.contracts.Update(c.Request.Context(), middleware.GetSession(c), c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

// Delete deletes a contract
func (h *ContractHandler) Delete(c *gin.Context) {
	if err := h.contracts.Delete(c.Request.Context(), middleware.GetSession(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Contract deleted"})
}

// SubmitForReview opens a review for the contract
func (h *ContractHandler) SubmitForReview(c *gin.Context) {
	review, err := h.contracts.SubmitForReview(c.Request.Context(), middleware.GetSession(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

// Summarize generates an AI summary. The summary is stored even when the
// client stops waiting for it; only the response is dropped.
func (h *ContractHandler) Summarize(c *gin.Context) {
	ctx := c.Request.Context()
	actor := middleware.GetSession(c)
	id := c.Param("id")

	start := time.Now()
	f := future.Go(ctx, func(ctx context.Context) (model.Contract, error) {
		contract, err := h.contracts.Summarize(ctx, actor, id)
		if h.recorder != nil {
			h.recorder.RecordSummarizeLatency(time.Since(start))
		}
		return contract, err
	})

	lt := future.NewLifetime()
	delivered := future.Deliver(lt, f, func(contract model.Contract, err error) {
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, contract)
	})

	select {
	case <-delivered:
	case <-ctx.Done():
		// End waits for a delivery in progress, so c is never written after return
		lt.End()
		logger.Info(ctx, "client left before summary finished", "contract_id", id)
	}
}
