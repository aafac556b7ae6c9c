// Package export writes rank history and discovery reports as XLSX workbooks.
package export

import (
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/placerank/internal/model"
)

const (
	HistorySheet   = "history"
	DiscoverySheet = "discovery"
)

// HistoryHeader is the first row of the history sheet.
var HistoryHeader = []string{
	"checked_at", "keyword", "found", "rank", "place_id", "place_name",
	"n1", "n2", "n3", "visitor_reviews", "blog_reviews", "total_biz", "is_ad", "matched_by",
}

// DiscoveryHeader is the first row of the discovery sheet.
var DiscoveryHeader = []string{
	"created_at", "place_id", "place_name", "keyword", "rank", "type",
	"total_biz", "monthly_search", "competition",
}

// HistoryWorkbook builds a workbook with one row per rank check.
func HistoryWorkbook(checks []model.RankCheckResult) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(HistorySheet)
	if err != nil {
		return nil, eris.Wrap(err, "export: add history sheet")
	}
	addHeader(sheet, HistoryHeader)

	for _, c := range checks {
		row := sheet.AddRow()
		row.AddCell().SetString(c.CheckedAt.UTC().Format(time.RFC3339))
		row.AddCell().SetString(c.Keyword)
		row.AddCell().SetBool(c.Found)
		row.AddCell().SetInt(c.Rank)
		row.AddCell().SetString(c.PlaceID)
		row.AddCell().SetString(c.PlaceName)
		row.AddCell().SetFloat(c.N1)
		row.AddCell().SetFloat(c.N2)
		row.AddCell().SetFloat(c.N3)
		row.AddCell().SetInt(c.VisitorReviews)
		row.AddCell().SetInt(c.BlogReviews)
		row.AddCell().SetInt(c.TotalCompetitorCount)
		row.AddCell().SetBool(c.IsAd)
		row.AddCell().SetString(string(c.MatchedBy))
	}
	return f, nil
}

// DiscoveryWorkbook builds a workbook with one row per qualified keyword
// across the given reports.
func DiscoveryWorkbook(reports []model.DiscoveryReport) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(DiscoverySheet)
	if err != nil {
		return nil, eris.Wrap(err, "export: add discovery sheet")
	}
	addHeader(sheet, DiscoveryHeader)

	for _, rep := range reports {
		created := rep.CreatedAt.UTC().Format(time.RFC3339)
		for _, kw := range rep.Keywords {
			row := sheet.AddRow()
			row.AddCell().SetString(created)
			row.AddCell().SetString(rep.Place.ID)
			row.AddCell().SetString(rep.Place.Name)
			row.AddCell().SetString(kw.Keyword)
			row.AddCell().SetInt(kw.Rank)
			row.AddCell().SetString(string(kw.Type))
			row.AddCell().SetInt(kw.TotalCompetitorCount)
			row.AddCell().SetInt(kw.MonthlySearch)
			row.AddCell().SetString(string(kw.Competition))
		}
	}
	return f, nil
}

// WriteHistory writes the history workbook to w.
func WriteHistory(w io.Writer, checks []model.RankCheckResult) error {
	f, err := HistoryWorkbook(checks)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "export: write history")
}

// SaveHistory writes the history workbook to path.
func SaveHistory(path string, checks []model.RankCheckResult) error {
	f, err := HistoryWorkbook(checks)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

// SaveDiscoveries writes the discovery workbook to path.
func SaveDiscoveries(path string, reports []model.DiscoveryReport) error {
	f, err := DiscoveryWorkbook(reports)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

func addHeader(sheet *xlsx.Sheet, header []string) {
	row := sheet.AddRow()
	for _, h := range header {
		row.AddCell().SetString(h)
	}
}
