package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"audio-notes-go/internal/logger"
	"audio-notes-go/internal/storage"
	"audio-notes-go/internal/types"
)

const (
	jobsSheet     = "Jobs"
	notesSheet    = "Notes"
	overviewSheet = "Overview"
)

var jobsHeader = []any{
	"Job ID", "File", "State", "Size (bytes)", "Language",
	"Created At", "Updated At", "Failed Stage", "Error Class", "Error",
	"Duration (s)", "Note Items",
}

var notesHeader = []any{"Job ID", "File", "#", "Category", "Note"}

// Builder renders jobs and their stored artifacts into an xlsx workbook.
// Artifacts are read from disk, so the same workbook can be produced from a
// live registry or from a bare data directory.
type Builder struct {
	store *storage.Store
	log   *logger.Logger
}

func New(store *storage.Store, log *logger.Logger) *Builder {
	return &Builder{store: store, log: log.WithComponent("report")}
}

// jobDetail is what the artifact files contribute beyond the job record.
type jobDetail struct {
	hasTranscript bool
	duration      float64
	hasNotes      bool
	items         []types.NoteItem
}

// Build assembles the workbook in memory. The caller owns the returned file
// and must Close it.
func (b *Builder) Build(jobList []types.Job) (*excelize.File, error) {
	ordered := make([]types.Job, len(jobList))
	copy(ordered, jobList)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	details := b.collect(ordered)

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), jobsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{notesSheet, overviewSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("add sheet %s: %w", name, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	if err := b.writeJobs(f, headerStyle, ordered, details); err != nil {
		return nil, err
	}
	if err := b.writeNotes(f, headerStyle, ordered, details); err != nil {
		return nil, err
	}
	if err := b.writeOverview(f, headerStyle, ordered, details); err != nil {
		return nil, err
	}

	b.log.WithField("jobs", len(ordered)).Info("workbook assembled")
	return f, nil
}

// WriteTo streams the workbook, for serving over HTTP.
func (b *Builder) WriteTo(w io.Writer, jobList []types.Job) error {
	f, err := b.Build(jobList)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Save writes the workbook to a file, for the export command.
func (b *Builder) Save(path string, jobList []types.Job) error {
	f, err := b.Build(jobList)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// collect reads the transcript and notes artifacts that exist for each job.
// Unreadable artifacts are skipped quietly; the report shows what it can.
func (b *Builder) collect(jobList []types.Job) map[string]jobDetail {
	details := make(map[string]jobDetail, len(jobList))
	for _, job := range jobList {
		var d jobDetail
		var tr types.Transcript
		if err := b.store.ReadArtifact(types.StageTranscript, job.ID, &tr); err == nil {
			d.hasTranscript = true
			d.duration = tr.DurationSeconds
		} else {
			b.log.WithJob(job.ID).WithError(err).Debug("transcript not included in report")
		}
		var doc types.NotesDocument
		if err := b.store.ReadArtifact(types.StageNotes, job.ID, &doc); err == nil {
			d.hasNotes = true
			d.items = doc.Items
		} else {
			b.log.WithJob(job.ID).WithError(err).Debug("notes not included in report")
		}
		details[job.ID] = d
	}
	return details
}

func (b *Builder) writeJobs(f *excelize.File, headerStyle int, jobList []types.Job, details map[string]jobDetail) error {
	if err := setRow(f, jobsSheet, 1, jobsHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(jobsSheet, cell(1, 1), cell(len(jobsHeader), 1), headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(jobsSheet, "A", "A", 38); err != nil {
		return err
	}
	if err := f.SetColWidth(jobsSheet, "B", "B", 28); err != nil {
		return err
	}
	if err := f.SetColWidth(jobsSheet, "F", "G", 22); err != nil {
		return err
	}
	if err := f.SetColWidth(jobsSheet, "J", "J", 48); err != nil {
		return err
	}

	for i, job := range jobList {
		failedStage, errClass, errMsg := "", "", ""
		if job.Error != nil {
			failedStage = string(job.Error.Stage)
			errClass = string(job.Error.Class)
			errMsg = job.Error.Message
		}
		d := details[job.ID]
		var duration, noteCount any = "", ""
		if d.hasTranscript {
			duration = d.duration
		}
		if d.hasNotes {
			noteCount = len(d.items)
		}
		row := []any{
			job.ID, job.Filename, string(job.State), job.SizeBytes, job.Language,
			job.CreatedAt.Format(time.RFC3339), job.UpdatedAt.Format(time.RFC3339),
			failedStage, errClass, errMsg,
			duration, noteCount,
		}
		if err := setRow(f, jobsSheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) writeNotes(f *excelize.File, headerStyle int, jobList []types.Job, details map[string]jobDetail) error {
	if err := setRow(f, notesSheet, 1, notesHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(notesSheet, cell(1, 1), cell(len(notesHeader), 1), headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(notesSheet, "A", "A", 38); err != nil {
		return err
	}
	if err := f.SetColWidth(notesSheet, "E", "E", 80); err != nil {
		return err
	}

	row := 2
	for _, job := range jobList {
		for i, item := range details[job.ID].items {
			values := []any{job.ID, job.Filename, i + 1, item.Category, item.Text}
			if err := setRow(f, notesSheet, row, values); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

func (b *Builder) writeOverview(f *excelize.File, headerStyle int, jobList []types.Job, details map[string]jobDetail) error {
	byState := map[string]int{}
	byCategory := map[string]int{}
	totalNotes := 0
	var audioSeconds float64
	for _, job := range jobList {
		byState[string(job.State)]++
		d := details[job.ID]
		audioSeconds += d.duration
		totalNotes += len(d.items)
		for _, item := range d.items {
			cat := item.Category
			if cat == "" {
				cat = "uncategorized"
			}
			byCategory[cat]++
		}
	}

	rows := [][]any{
		{"Generated At", time.Now().UTC().Format(time.RFC3339)},
		{"Total Jobs", len(jobList)},
		{"Total Note Items", totalNotes},
		{"Audio Seconds", audioSeconds},
		{},
		{"Jobs by state"},
	}
	for _, state := range sortedKeys(byState) {
		rows = append(rows, []any{state, byState[state]})
	}
	rows = append(rows, []any{}, []any{"Notes by category"})
	for _, cat := range sortedKeys(byCategory) {
		rows = append(rows, []any{cat, byCategory[cat]})
	}

	for i, values := range rows {
		if err := setRow(f, overviewSheet, i+1, values); err != nil {
			return err
		}
		if len(values) == 1 {
			if err := f.SetCellStyle(overviewSheet, cell(1, i+1), cell(1, i+1), headerStyle); err != nil {
				return err
			}
		}
	}
	return f.SetColWidth(overviewSheet, "A", "A", 24)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	for i, v := range values {
		if err := f.SetCellValue(sheet, cell(i+1, row), v); err != nil {
			return fmt.Errorf("set %s row %d: %w", sheet, row, err)
		}
	}
	return nil
}

// cell maps 1-based coordinates to an A1 reference. Coordinates here are
// always in range, so the conversion cannot fail.
func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
