package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"rag-docqa-platform/internal/database"
	"rag-docqa-platform/internal/logger"
	"rag-docqa-platform/models"
)

// Export formats accepted by GET /chats/:id/export.
const (
	ExportFormatXLSX = "xlsx"
	ExportFormatCSV  = "csv"
)

// ErrUnknownExportFormat is returned for formats other than xlsx and csv.
var ErrUnknownExportFormat = errors.New("unknown export format")

const timeLayout = "2006-01-02 15:04:05"

var transcriptHeaders = []string{"ID", "Sender", "Text", "Citations", "Created At"}

// ExportFile is a rendered transcript.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders chat transcripts for download.
type ExportService struct {
	chats database.ChatStore
}

func NewExportService(chats database.ChatStore) *ExportService {
	return &ExportService{chats: chats}
}

// ExportChat renders the messages of a chat in format.
func (es *ExportService) ExportChat(ctx context.Context, chatID int64, format string) (*ExportFile, error) {
	format = strings.ToLower(format)
	if format == "" {
		format = ExportFormatXLSX
	}
	if format != ExportFormatXLSX && format != ExportFormatCSV {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExportFormat, format)
	}

	chat, err := es.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	messages, err := es.chats.ListMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}

	base := fmt.Sprintf("chat_%d", chat.ID)
	if format == ExportFormatCSV {
		data, err := transcriptCSV(messages)
		if err != nil {
			return nil, err
		}
		return &ExportFile{Filename: base + ".csv", ContentType: "text/csv", Data: data}, nil
	}

	data, err := transcriptXLSX(chat, messages)
	if err != nil {
		return nil, err
	}
	return &ExportFile{
		Filename:    base + ".xlsx",
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        data,
	}, nil
}

func transcriptRow(m models.Message) []string {
	return []string{
		strconv.FormatInt(m.ID, 10),
		m.Sender,
		m.Text,
		citedDocuments(m),
		m.CreatedAt.Format(timeLayout),
	}
}

// citedDocuments lists the document names cited in an assistant payload.
func citedDocuments(m models.Message) string {
	payload, ok := m.AskPayload()
	if !ok {
		return ""
	}
	names := make([]string, 0, len(payload.Citations))
	for _, c := range payload.Citations {
		names = append(names, c.DocumentName)
	}
	return strings.Join(names, ", ")
}

func transcriptCSV(messages []models.Message) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(transcriptHeaders); err != nil {
		return nil, err
	}
	for _, m := range messages {
		if err := w.Write(transcriptRow(m)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func transcriptXLSX(chat models.Chat, messages []models.Message) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Failed to close workbook", "error", err)
		}
	}()

	const sheet = "Transcript"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	for i, h := range transcriptHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(transcriptHeaders), 1)
	f.SetCellStyle(sheet, "A1", last, header)

	for r, m := range messages {
		for c, v := range transcriptRow(m) {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			f.SetCellValue(sheet, cell, v)
		}
	}
	f.SetColWidth(sheet, "A", "B", 12)
	f.SetColWidth(sheet, "C", "C", 80)
	f.SetColWidth(sheet, "D", "E", 24)

	const info = "Chat"
	if _, err := f.NewSheet(info); err != nil {
		return nil, fmt.Errorf("create info sheet: %w", err)
	}
	rows := [][]any{
		{"Title", chat.Title},
		{"Session ID", chat.SessionID},
		{"Created At", chat.CreatedAt.Format(timeLayout)},
		{"Messages", len(messages)},
	}
	for i, row := range rows {
		f.SetCellValue(info, fmt.Sprintf("A%d", i+1), row[0])
		f.SetCellValue(info, fmt.Sprintf("B%d", i+1), row[1])
	}
	f.SetColWidth(info, "A", "A", 15)
	f.SetColWidth(info, "B", "B", 40)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
