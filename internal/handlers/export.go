package handlers

import (
	"fmt"
	"log"
	"time"

	"opsdesk/internal/database"
	"opsdesk/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
)

// ExportHandler produces spreadsheet exports of the delivery ledger
type ExportHandler struct {
	store services.Store
}

// NewExportHandler creates a new export handler
func NewExportHandler(store services.Store) *ExportHandler {
	return &ExportHandler{store: store}
}

var exportColumns = []string{"ID", "Client", "Description", "Amount", "Status", "Delivery Date", "Created"}

// Deliveries streams the full delivery ledger as an .xlsx workbook.
// GET /api/deliveries/export
func (h *ExportHandler) Deliveries(c *fiber.Ctx) error {
	docs, err := h.store.ScanAll(c.Context(), database.CollectionDeliveries)
	if err != nil {
		log.Printf("❌ Failed to export deliveries: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Store unavailable, please try again",
		})
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Deliveries"
	f.SetSheetName("Sheet1", sheet)

	for i, col := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col)
	}

	for row, doc := range docs {
		values := []interface{}{
			doc.ID,
			doc.StringField("clientName"),
			doc.StringField("description"),
			doc.Field("amount"),
			doc.StringField("status"),
			doc.Field("deliveryDate"),
			doc.CreatedAt.Format("2006-01-02 15:04"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build export",
		})
	}

	filename := fmt.Sprintf("deliveries-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(buf.Bytes())
}
