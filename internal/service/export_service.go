package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kendrekaran/clr-bke/internal/models"
	appErrors "github.com/kendrekaran/clr-bke/pkg/errors"
	"github.com/kendrekaran/clr-bke/pkg/export"
)

type exportAttendanceReader interface {
	Query(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, error)
}

type exportTestReader interface {
	FindByID(ctx context.Context, batchID, id string) (*models.Test, error)
	ListMarks(ctx context.Context, testID string) ([]models.TestMark, error)
}

type exportFeeReader interface {
	Find(ctx context.Context, batchID, studentID string) (*models.FeePayment, error)
}

type exportAccountReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.UserInfo, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFile is a rendered document ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders downloadable documents for batch owners. Rendering is
// synchronous; files are streamed back, never stored.
type ExportService struct {
	attendance exportAttendanceReader
	tests      exportTestReader
	fees       exportFeeReader
	accounts   exportAccountReader
	access     *AccessService
	csv        csvRenderer
	pdf        pdfRenderer
	logger     *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(attendance exportAttendanceReader, tests exportTestReader, fees exportFeeReader, accounts exportAccountReader, access *AccessService, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		attendance: attendance,
		tests:      tests,
		fees:       fees,
		accounts:   accounts,
		access:     access,
		csv:        csv,
		pdf:        pdf,
		logger:     logger,
	}
}

// AttendanceRegisterCSV renders the batch's attendance registers over the
// window as CSV; owner-only.
func (s *ExportService) AttendanceRegisterCSV(ctx context.Context, batchID, dateFrom, dateTo string, claims *models.JWTClaims) (*ExportFile, error) {
	batch, err := s.access.RequireBatchOwner(ctx, batchID, claims)
	if err != nil {
		return nil, err
	}
	filter, err := buildFilter(batchID, "", dateFrom, dateTo)
	if err != nil {
		return nil, err
	}
	details, err := s.attendance.Query(ctx, *filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query attendance")
	}

	names, err := s.studentNames(ctx, attendanceStudentIDs(details))
	if err != nil {
		return nil, err
	}

	headers := []string{"Date", "Student ID", "Student Name", "Status"}
	rows := make([]map[string]string, 0)
	for _, detail := range details {
		for _, entry := range detail.Entries {
			rows = append(rows, map[string]string{
				"Date":         detail.Date.Format("2006-01-02"),
				"Student ID":   entry.StudentID,
				"Student Name": names[entry.StudentID],
				"Status":       string(entry.Status),
			})
		}
	}

	payload, err := s.csv.Render(export.Dataset{Headers: headers, Rows: rows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render attendance register")
	}
	return &ExportFile{
		Filename:    exportFilename("attendance", batch.Code, "csv"),
		ContentType: "text/csv",
		Payload:     payload,
	}, nil
}

// TestMarksheetCSV renders a test's marks as CSV; owner-only.
func (s *ExportService) TestMarksheetCSV(ctx context.Context, batchID, testID string, claims *models.JWTClaims) (*ExportFile, error) {
	batch, err := s.access.RequireBatchOwner(ctx, batchID, claims)
	if err != nil {
		return nil, err
	}
	test, err := s.tests.FindByID(ctx, batchID, testID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "test not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load test")
	}
	marks, err := s.tests.ListMarks(ctx, testID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list marks")
	}

	ids := make([]string, len(marks))
	for i, mark := range marks {
		ids[i] = mark.StudentID
	}
	names, err := s.studentNames(ctx, ids)
	if err != nil {
		return nil, err
	}

	headers := []string{"Student ID", "Student Name", "Marks", "Max Marks", "Remarks"}
	rows := make([]map[string]string, 0, len(marks))
	for _, mark := range marks {
		remarks := ""
		if mark.Remarks != nil {
			remarks = *mark.Remarks
		}
		rows = append(rows, map[string]string{
			"Student ID":   mark.StudentID,
			"Student Name": names[mark.StudentID],
			"Marks":        fmt.Sprintf("%d", mark.Marks),
			"Max Marks":    fmt.Sprintf("%d", test.MaxMarks),
			"Remarks":      remarks,
		})
	}

	payload, err := s.csv.Render(export.Dataset{Headers: headers, Rows: rows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render marksheet")
	}
	return &ExportFile{
		Filename:    exportFilename("marksheet", batch.Code, "csv"),
		ContentType: "text/csv",
		Payload:     payload,
	}, nil
}

// FeeReceiptPDF renders a student's payment record as a PDF receipt;
// owner-only. A student with no record is not found.
func (s *ExportService) FeeReceiptPDF(ctx context.Context, batchID, studentID string, claims *models.JWTClaims) (*ExportFile, error) {
	batch, err := s.access.RequireBatchOwner(ctx, batchID, claims)
	if err != nil {
		return nil, err
	}
	payment, err := s.fees.Find(ctx, batchID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee payment")
	}
	names, err := s.studentNames(ctx, []string{studentID})
	if err != nil {
		return nil, err
	}

	remarks := ""
	if payment.Remarks != nil {
		remarks = *payment.Remarks
	}
	dataset := export.Dataset{
		Headers: []string{"Field", "Value"},
		Rows: []map[string]string{
			{"Field": "Batch", "Value": fmt.Sprintf("%s (%s)", batch.Name, batch.Code)},
			{"Field": "Student", "Value": names[studentID]},
			{"Field": "Amount", "Value": fmt.Sprintf("%.2f", payment.Amount)},
			{"Field": "Method", "Value": string(payment.Method)},
			{"Field": "Status", "Value": string(payment.Status)},
			{"Field": "Remarks", "Value": remarks},
			{"Field": "Updated At", "Value": payment.UpdatedAt.UTC().Format(time.RFC3339)},
		},
	}

	payload, err := s.pdf.Render(dataset, fmt.Sprintf("Fee Receipt %s", batch.Code))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render fee receipt")
	}
	return &ExportFile{
		Filename:    exportFilename("fee_receipt", batch.Code, "pdf"),
		ContentType: "application/pdf",
		Payload:     payload,
	}, nil
}

func (s *ExportService) studentNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	infos, err := s.accounts.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student names")
	}
	for _, info := range infos {
		names[info.ID] = info.FullName
	}
	return names, nil
}

func attendanceStudentIDs(details []models.AttendanceRecordDetail) []string {
	seen := make(map[string]bool)
	ids := make([]string, 0)
	for _, detail := range details {
		for _, entry := range detail.Entries {
			if !seen[entry.StudentID] {
				seen[entry.StudentID] = true
				ids = append(ids, entry.StudentID)
			}
		}
	}
	return ids
}

func exportFilename(kind, batchCode, ext string) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s.%s", kind, strings.ToLower(batchCode), timestamp, ext)
}
