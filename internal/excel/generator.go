package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/snowops-boq/internal/boq"
	"github.com/nurpe/snowops-boq/internal/model"
)

const (
	itemsSheet     = "Vigent BOQ"
	addendumsSheet = "Addendums"
	itemsTableRow  = 5
)

var itemHeaders = []string{
	"Code",
	"Description",
	"Type",
	"Unit",
	"Base qty",
	"Base unit price",
	"Base value",
	"Qty",
	"Unit price",
	"Value",
	"Status",
	"Base subtotal",
	"Active subtotal",
}

// Generator renders the vigent bill of quantities of a contract as a workbook.
type Generator struct {
	scale int32
}

func NewGenerator(scale int32) *Generator {
	return &Generator{scale: scale}
}

func (g *Generator) Generate(contract model.Contract, rollup *boq.Rollup, addendums []model.Addendum) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", itemsSheet); err != nil {
		return nil, err
	}
	if err := g.writeItems(file, contract, rollup); err != nil {
		return nil, err
	}
	if _, err := file.NewSheet(addendumsSheet); err != nil {
		return nil, err
	}
	g.writeAddendums(file, addendums)

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeItems(file *excelize.File, contract model.Contract, rollup *boq.Rollup) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(itemsSheet, cell, value)
	}

	set("A1", "Contract")
	set("B1", contract.Code)
	set("A2", "Name")
	set("B2", contract.Name)
	set("A3", "Base total")
	set("B3", g.amount(rollup.BaseTotal))
	set("C3", "Active total")
	set("D3", g.amount(rollup.ActiveTotal))

	for i, header := range itemHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, itemsTableRow)
		set(cell, header)
	}

	bold, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	_ = file.SetRowStyle(itemsSheet, itemsTableRow, itemsTableRow, bold)

	indents := make(map[int]int)
	indentStyle := func(depth int, container bool) (int, error) {
		key := depth*2 + boolIndex(container)
		if style, ok := indents[key]; ok {
			return style, nil
		}
		style, err := file.NewStyle(&excelize.Style{
			Font:      &excelize.Font{Bold: container},
			Alignment: &excelize.Alignment{Indent: depth},
		})
		if err != nil {
			return 0, err
		}
		indents[key] = style
		return style, nil
	}

	row := itemsTableRow
	var walk func(nodes []*boq.Node, depth int) error
	walk = func(nodes []*boq.Node, depth int) error {
		for _, node := range nodes {
			row++
			set(fmt.Sprintf("A%d", row), node.Code)
			set(fmt.Sprintf("B%d", row), node.Description)
			set(fmt.Sprintf("C%d", row), string(node.Type))
			if item := node.Item; item != nil {
				set(fmt.Sprintf("D%d", row), item.Unit)
				if !item.Added {
					set(fmt.Sprintf("E%d", row), g.quantity(item.BaseQuantity))
					set(fmt.Sprintf("F%d", row), g.amount(item.BaseUnitPrice))
					set(fmt.Sprintf("G%d", row), g.amount(item.BaseValue))
				}
				set(fmt.Sprintf("H%d", row), g.quantity(item.Quantity))
				set(fmt.Sprintf("I%d", row), g.amount(item.UnitPrice))
				set(fmt.Sprintf("J%d", row), g.amount(item.TotalValue))
				set(fmt.Sprintf("K%d", row), itemStatus(*item))
			}
			set(fmt.Sprintf("L%d", row), g.amount(node.BaseSubtotal))
			set(fmt.Sprintf("M%d", row), g.amount(node.ActiveSubtotal))

			style, err := indentStyle(depth, node.Item == nil)
			if err != nil {
				return err
			}
			_ = file.SetCellStyle(itemsSheet, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row), style)

			if err := walk(node.Children, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(rollup.Roots, 0); err != nil {
		return err
	}

	_ = file.SetColWidth(itemsSheet, "A", "A", 18)
	_ = file.SetColWidth(itemsSheet, "B", "B", 48)
	_ = file.SetColWidth(itemsSheet, "C", "D", 12)
	_ = file.SetColWidth(itemsSheet, "E", "M", 16)
	return nil
}

func (g *Generator) writeAddendums(file *excelize.File, addendums []model.Addendum) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(addendumsSheet, cell, value)
	}

	headers := []string{"No.", "Date", "Status", "Description", "Total addition", "Total suppression", "Net value", "Approved at", "Approved by"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		set(cell, header)
	}

	for i, addendum := range addendums {
		row := i + 2
		set(fmt.Sprintf("A%d", row), addendum.Number)
		set(fmt.Sprintf("B%d", row), formatDate(addendum.Date))
		set(fmt.Sprintf("C%d", row), string(addendum.Status))
		set(fmt.Sprintf("D%d", row), addendum.Description)
		if addendum.ApprovedAt != nil {
			set(fmt.Sprintf("E%d", row), g.amount(addendum.TotalAddition))
			set(fmt.Sprintf("F%d", row), g.amount(addendum.TotalSuppression))
			set(fmt.Sprintf("G%d", row), g.amount(addendum.NetValue))
			set(fmt.Sprintf("H%d", row), formatDateTime(*addendum.ApprovedAt))
			set(fmt.Sprintf("I%d", row), formatString(addendum.ApprovedBy))
		}
	}

	_ = file.SetColWidth(addendumsSheet, "A", "C", 12)
	_ = file.SetColWidth(addendumsSheet, "D", "D", 40)
	_ = file.SetColWidth(addendumsSheet, "E", "I", 18)
}

func (g *Generator) amount(value decimal.Decimal) string {
	return value.StringFixed(g.scale)
}

func (g *Generator) quantity(value decimal.Decimal) string {
	return value.StringFixed(3)
}

func itemStatus(item boq.ItemState) string {
	var parts []string
	if item.Added {
		parts = append(parts, "ADDED")
	}
	if item.Suppressed {
		parts = append(parts, "SUPPRESSED")
	} else if len(item.History) > 0 {
		parts = append(parts, "MODIFIED")
	}
	return strings.Join(parts, ", ")
}

func boolIndex(value bool) int {
	if value {
		return 1
	}
	return 0
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
