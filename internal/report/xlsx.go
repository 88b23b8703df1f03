// Package report exports the audit log for compliance review.
package report

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/patou-app/moderation-cli/internal/model"
)

var exportHeader = []string{
	"event_id", "track_id", "profile_id", "source", "decision",
	"rules_fired", "keyword_matches", "lyrics_found", "error", "created_at",
}

// WriteXLSX writes moderation events to an XLSX workbook at path, newest
// first as supplied by the caller.
func WriteXLSX(path string, events []model.ModerationEvent) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("moderation_events")
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	header := sheet.AddRow()
	for _, name := range exportHeader {
		header.AddCell().SetString(name)
	}

	for _, ev := range events {
		row := sheet.AddRow()
		row.AddCell().SetString(ev.ID)
		row.AddCell().SetString(ev.TrackID)
		row.AddCell().SetString(ev.ProfileID)
		row.AddCell().SetString(ev.Source)
		row.AddCell().SetString(string(ev.Decision))
		row.AddCell().SetString(strings.Join(ev.RulesFired, "; "))
		row.AddCell().SetString(formatMatches(ev.KeywordMatches))
		row.AddCell().SetString(strconv.FormatBool(ev.LyricsFound))
		row.AddCell().SetString(ev.ErrorMessage)
		row.AddCell().SetString(ev.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

// formatMatches renders summaries as "term (severity/category) xN" pairs.
// Terms arrive already redacted.
func formatMatches(matches []model.KeywordMatchSummary) string {
	if len(matches) == 0 {
		return ""
	}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		part := m.Term + " (" + string(m.Severity)
		if m.Category != "" {
			part += "/" + m.Category
		}
		part += ") x" + strconv.Itoa(m.Occurrences)
		parts = append(parts, part)
	}
	return strings.Join(parts, "; ")
}
