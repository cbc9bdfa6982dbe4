package report

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"audio-notes-go/internal/logger"
	"audio-notes-go/internal/storage"
	"audio-notes-go/internal/types"
)

func seedJobs(t *testing.T, st *storage.Store) []types.Job {
	t.Helper()

	doneID := storage.NewJobID()
	_, err := st.WriteArtifact(types.StageTranscript, doneID, &types.Transcript{
		Text:            "Quick sync about the rollout.",
		Segments:        []types.Segment{{Start: 0, End: 12.5, Text: "Quick sync about the rollout."}},
		DurationSeconds: 12.5,
	})
	require.NoError(t, err)
	_, err = st.WriteArtifact(types.StageNotes, doneID, &types.NotesDocument{Items: []types.NoteItem{
		{Text: "Send the revised quote", Category: "action"},
		{Text: "Beta slips to March", Category: "decision"},
		{Text: "Who owns the rollout?", Category: "open_question"},
	}})
	require.NoError(t, err)

	failedID := storage.NewJobID()

	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return []types.Job{
		{
			ID: failedID, Filename: "broken.mp3", State: types.StateFailed,
			SizeBytes: 10, CreatedAt: now, UpdatedAt: now,
			Error: &types.JobError{
				Stage:   types.StateTranscribing,
				Class:   types.ErrorClassInput,
				Message: "unreadable header",
			},
		},
		{
			ID: doneID, Filename: "standup.wav", State: types.StateDone,
			SizeBytes: 2048, Language: "en",
			CreatedAt: now.Add(-time.Hour), UpdatedAt: now,
		},
	}
}

func TestBuildWorkbook(t *testing.T) {
	st, err := storage.New(t.TempDir())
	require.NoError(t, err)
	jobList := seedJobs(t, st)
	doneID, failedID := jobList[1].ID, jobList[0].ID

	f, err := New(st, logger.Silent()).Build(jobList)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{jobsSheet, notesSheet, overviewSheet}, f.GetSheetList())

	rows, err := f.GetRows(jobsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Job ID", rows[0][0])

	// Oldest job first.
	assert.Equal(t, doneID, rows[1][0])
	assert.Equal(t, "done", rows[1][2])
	assert.Equal(t, "12.5", rows[1][10])
	assert.Equal(t, "3", rows[1][11])

	assert.Equal(t, failedID, rows[2][0])
	assert.Equal(t, "failed", rows[2][2])
	assert.Equal(t, "transcribing", rows[2][7])
	assert.Equal(t, "input", rows[2][8])
	assert.Equal(t, "unreadable header", rows[2][9])

	noteRows, err := f.GetRows(notesSheet)
	require.NoError(t, err)
	require.Len(t, noteRows, 4)
	assert.Equal(t, "action", noteRows[1][3])
	assert.Equal(t, "Send the revised quote", noteRows[1][4])
	assert.Equal(t, "open_question", noteRows[3][3])
}

func TestOverviewCounts(t *testing.T) {
	st, err := storage.New(t.TempDir())
	require.NoError(t, err)
	jobList := seedJobs(t, st)

	f, err := New(st, logger.Silent()).Build(jobList)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(overviewSheet)
	require.NoError(t, err)

	got := map[string]string{}
	for _, row := range rows {
		if len(row) >= 2 {
			got[row[0]] = row[1]
		}
	}
	assert.Equal(t, "2", got["Total Jobs"])
	assert.Equal(t, "3", got["Total Note Items"])
	assert.Equal(t, "1", got["done"])
	assert.Equal(t, "1", got["failed"])
	assert.Equal(t, "1", got["action"])
	assert.Equal(t, "1", got["decision"])
}

func TestWriteToProducesReadableWorkbook(t *testing.T) {
	st, err := storage.New(t.TempDir())
	require.NoError(t, err)
	jobList := seedJobs(t, st)

	var buf bytes.Buffer
	require.NoError(t, New(st, logger.Silent()).WriteTo(&buf, jobList))
	require.NotZero(t, buf.Len())

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, f.GetSheetList(), 3)
}

func TestSave(t *testing.T) {
	st, err := storage.New(t.TempDir())
	require.NoError(t, err)
	jobList := seedJobs(t, st)

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, New(st, logger.Silent()).Save(path, jobList))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(jobsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestEmptyJobList(t *testing.T) {
	st, err := storage.New(t.TempDir())
	require.NoError(t, err)

	f, err := New(st, logger.Silent()).Build(nil)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(jobsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1, "only the header survives an empty registry")
}
