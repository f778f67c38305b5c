// Package report writes opportunity reports as XLSX workbooks.
package report

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/terrascope/terrascope/internal/model"
	"github.com/terrascope/terrascope/internal/scorer"
	"github.com/terrascope/terrascope/internal/store"
)

// Sheet names.
const (
	SheetOpportunities = "Opportunities"
	SheetSummary       = "Summary"
)

// OpportunityHeader is the first row of the opportunities sheet.
var OpportunityHeader = []string{
	"Rank", "ID", "Address", "Land Use", "Price", "Price Band", "Height",
	"Year Built", "Yield", "Appreciation", "Zoning Risk", "Momentum",
	"Investment Score", "Imputed",
}

// Build returns a workbook with the top n opportunities among features and
// the city-wide analytics. analytics may be nil.
func Build(features []model.Feature, n int, analytics *store.CityAnalytics) (*xlsx.File, error) {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet(SheetOpportunities)
	if err != nil {
		return nil, eris.Wrap(err, "report: add opportunities sheet")
	}
	addStrings(sheet.AddRow(), OpportunityHeader)

	for i, feat := range scorer.TopOpportunities(features, n) {
		p := feat.Properties
		row := sheet.AddRow()
		row.AddCell().SetInt(i + 1)
		row.AddCell().SetString(feat.ID)
		row.AddCell().SetString(p.Address)
		row.AddCell().SetString(string(p.LandUse))
		addFloat(row, p.Price, "#,##0")
		band := row.AddCell()
		band.SetString(string(scorer.Band(p.Price)))
		band.SetStyle(bandStyle(p.Price))
		addFloat(row, p.Height, "0.0")
		if p.YearBuilt != nil {
			row.AddCell().SetInt(*p.YearBuilt)
		} else {
			row.AddCell()
		}
		addFloat(row, p.Yield, "0.00%")
		addFloat(row, p.AppreciationRate, "0.00%")
		addFloat(row, p.ZoningRisk, "0.00")
		addFloat(row, p.Momentum, "0.0")
		row.AddCell().SetInt(*p.InvestmentScore)
		row.AddCell().SetString(strings.Join(p.ImputedFields, ","))
	}

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return nil, eris.Wrap(err, "report: add summary sheet")
	}
	addStrings(summary.AddRow(), []string{"Metric", "Value"})
	metric := func(name string, v float64, format string) {
		row := summary.AddRow()
		row.AddCell().SetString(name)
		row.AddCell().SetFloatWithFormat(v, format)
	}
	metric("Properties Ranked", float64(len(features)), "0")
	if analytics != nil {
		metric("Total Market Value", analytics.TotalMarketValue, "#,##0")
		metric("Average ROI (%)", analytics.AvgROI, "0.00")
		metric("Property Count", float64(analytics.PropertyCount), "0")
		metric("Average Price", analytics.AvgPrice, "#,##0")
	}

	return f, nil
}

// Write builds the report and writes it to w.
func Write(w io.Writer, features []model.Feature, n int, analytics *store.CityAnalytics) error {
	f, err := Build(features, n, analytics)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write workbook")
	}
	return nil
}

// Save builds the report and saves it to path.
func Save(path string, features []model.Feature, n int, analytics *store.CityAnalytics) error {
	f, err := Build(features, n, analytics)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

// bandStyle fills the price band cell with the heatmap tint of price.
func bandStyle(price *float64) *xlsx.Style {
	argb := scorer.PriceColor(price, true).ARGB()
	style := xlsx.NewStyle()
	style.Fill = *xlsx.NewFill(xlsx.Solid_Cell_Fill, argb, argb)
	style.ApplyFill = true
	return style
}

func addStrings(row *xlsx.Row, values []string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func addFloat(row *xlsx.Row, v *float64, format string) {
	cell := row.AddCell()
	if v != nil {
		cell.SetFloatWithFormat(*v, format)
	}
}
