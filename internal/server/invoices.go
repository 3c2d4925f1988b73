package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pekarna-dev/invoice-engine/internal/common"
	"github.com/pekarna-dev/invoice-engine/internal/entity"
	"github.com/pekarna-dev/invoice-engine/internal/repository"
)

// maxUploadBytes caps scanned invoice uploads (300 dpi multi-page PDFs).
const maxUploadBytes = 32 << 20

// processInvoice accepts a multipart upload, runs OCR, and processes the
// document with the supplier's active template.
func (s *Server) processInvoice(c *gin.Context) {
	supplierID, err := uuid.Parse(c.PostForm("supplier_id"))
	if err != nil {
		s.fail(c, common.NewAppError(common.CodeInvalidInput, "invalid supplier_id", err))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		s.fail(c, common.NewAppError(common.CodeInvalidInput, "missing file upload", err))
		return
	}
	if fileHeader.Size > maxUploadBytes {
		s.fail(c, common.NewAppError(common.CodeInvalidInput, "upload too large", nil))
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		s.fail(c, common.NewAppError(common.CodeInvalidInput, "unreadable upload", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		s.fail(c, common.NewAppError(common.CodeInvalidInput, "unreadable upload", err))
		return
	}

	doc, err := s.ocr.Recognize(c.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		s.fail(c, err)
		return
	}

	res, err := s.processor.Process(c.Request.Context(), supplierID, doc)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type processTextRequest struct {
	SupplierID uuid.UUID `json:"supplier_id" binding:"required"`
	Text       string    `json:"text" binding:"required"`
}

// processInvoiceText processes already-recognized text, used by re-runs
// after template edits so documents are not re-OCRed.
func (s *Server) processInvoiceText(c *gin.Context) {
	var req processTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, common.NewAppError(common.CodeInvalidInput, "invalid request body", err))
		return
	}

	res, err := s.processor.Process(c.Request.Context(), req.SupplierID,
		&entity.RawDocument{Text: req.Text})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type approveRequest struct {
	SupplierID     uuid.UUID                `json:"supplier_id" binding:"required"`
	ReceiverID     *uuid.UUID               `json:"receiver_id"`
	ConfirmReplace bool                     `json:"confirm_replace"`
	Result         *entity.ExtractionResult `json:"result" binding:"required"`
}

func (s *Server) approveInvoice(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, common.NewAppError(common.CodeInvalidInput, "invalid request body", err))
		return
	}

	res, err := s.invoices.Approve(c.Request.Context(), repository.ApproveRequest{
		SupplierID:     req.SupplierID,
		ReceiverID:     req.ReceiverID,
		Result:         req.Result,
		ConfirmReplace: req.ConfirmReplace,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getInvoice(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.fail(c, common.NewAppError(common.CodeInvalidInput, "invalid invoice id", err))
		return
	}
	inv, err := s.invoices.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}
