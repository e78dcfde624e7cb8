package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/open-audit/internal/domain/entity"
)

// ExportColumns is the fixed column order of document exports
var ExportColumns = []string{
	"id", "user_id", "file_url", "storage_id", "mime_type", "document_type", "status",
	"extracted_amount", "extracted_date", "extracted_vendor", "category",
	"confidence_score", "audit_notes", "audit_flags", "uploaded_at",
}

const flagSeparator = "; "

// exportRow renders one document in ExportColumns order; nulls are empty cells
func exportRow(doc *entity.Document) []string {
	amount := ""
	if doc.ExtractedAmount.Valid {
		amount = doc.ExtractedAmount.Decimal.String()
	}
	confidence := ""
	if doc.ConfidenceScore != nil {
		confidence = strconv.FormatFloat(*doc.ConfidenceScore, 'f', -1, 64)
	}

	return []string{
		strconv.FormatInt(doc.ID, 10),
		doc.UserID,
		doc.FileURL,
		doc.StorageID,
		doc.MimeType,
		doc.DocumentType,
		doc.Status,
		amount,
		deref(doc.ExtractedDate),
		deref(doc.ExtractedVendor),
		deref(doc.Category),
		confidence,
		deref(doc.AuditNotes),
		strings.Join(doc.AuditFlags, flagSeparator),
		doc.UploadedAt.UTC().Format(time.RFC3339),
	}
}

// WriteDocumentsCSV writes a header row followed by one row per document
func WriteDocumentsCSV(w io.Writer, docs []*entity.Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, doc := range docs {
		if err := cw.Write(exportRow(doc)); err != nil {
			return fmt.Errorf("write csv row %d: %w", doc.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

const exportSheet = "Documents"

// WriteDocumentsXLSX writes the same table as WriteDocumentsCSV into a workbook
func WriteDocumentsXLSX(w io.Writer, docs []*entity.Document) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	writeRow := func(rowNum int, values []string) error {
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(exportSheet, cell, value); err != nil {
				return err
			}
		}
		return nil
	}

	if err := writeRow(1, ExportColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, doc := range docs {
		if err := writeRow(i+2, exportRow(doc)); err != nil {
			return fmt.Errorf("write row %d: %w", doc.ID, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
