package report

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/meridian-group/decision-cli/internal/orchestrator"
)

// ExportXLSX writes the outcome to an XLSX workbook with one sheet per
// concern: role outputs, verified claims and consistency findings.
func ExportXLSX(path string, o *orchestrator.Outcome) error {
	f := xlsx.NewFile()

	if err := writeResultsSheet(f, o); err != nil {
		return err
	}
	if err := writeClaimsSheet(f, o); err != nil {
		return err
	}
	if err := writeFindingsSheet(f, o); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

func writeResultsSheet(f *xlsx.File, o *orchestrator.Outcome) error {
	sheet, err := f.AddSheet("角色结果")
	if err != nil {
		return eris.Wrap(err, "xlsx: add results sheet")
	}
	addRow(sheet, "角色", "提供商", "模型", "耗时(ms)", "降级层级", "成功", "拦截", "修正数")

	for k, res := range o.Run.Results {
		addRow(sheet,
			k,
			res.Provider,
			res.Model,
			fmt.Sprintf("%d", res.Latency.Milliseconds()),
			fmt.Sprintf("%d", res.FallbackLevel),
			boolCN(res.Success),
			boolCN(res.Blocked),
			fmt.Sprintf("%d", len(res.Corrections)),
		)
	}
	return nil
}

func writeClaimsSheet(f *xlsx.File, o *orchestrator.Outcome) error {
	sheet, err := f.AddSheet("数据核验")
	if err != nil {
		return eris.Wrap(err, "xlsx: add claims sheet")
	}
	addRow(sheet, "断言", "数值", "单位", "状态", "等级", "置信度", "来源数")

	for _, c := range o.Claims {
		addRow(sheet,
			c.Text,
			fmt.Sprintf("%g", c.Value),
			c.Unit,
			string(c.Status),
			string(c.Grade),
			fmt.Sprintf("%.0f", c.Confidence),
			fmt.Sprintf("%d", len(c.Sources)),
		)
	}
	return nil
}

func writeFindingsSheet(f *xlsx.File, o *orchestrator.Outcome) error {
	sheet, err := f.AddSheet("一致性")
	if err != nil {
		return eris.Wrap(err, "xlsx: add findings sheet")
	}
	addRow(sheet, "一致性得分", fmt.Sprintf("%.0f", o.Consistency))
	addRow(sheet, "问题", "类别", "严重度", "详情")

	for _, fd := range o.Findings {
		addRow(sheet, fd.Label, fd.Category, string(fd.Severity), fd.Detail)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, cells ...string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().Value = c
	}
}

func boolCN(b bool) string {
	if b {
		return "是"
	}
	return "否"
}
