package service

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"kidpoints/internal/catalog"
	"kidpoints/internal/ledger"
)

func TestReportServiceWorkbook(t *testing.T) {
	now := time.Date(2024, 3, 11, 18, 0, 0, 0, time.UTC)
	l := ledger.New(catalog.New(), ledger.WithClock(func() time.Time { return now }))

	emma := l.AddChild("Emma", "")
	leo := l.AddChild("Leo", "")
	_, _, err := l.LogAction(emma.ID, "sc_1")
	require.NoError(t, err)
	_, _, err = l.ValidateWeek(emma.ID)
	require.NoError(t, err)
	_, _, err = l.LogAction(leo.ID, "sc_1")
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := NewReportService(l, zap.NewNop()).WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetChildren, sheetHistory, sheetLogs}, f.GetSheetList())

	children, err := f.GetRows(sheetChildren)
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.Equal(t, childrenHeader, children[0])
	assert.Equal(t, "Emma", children[1][1])
	assert.Equal(t, "10", children[1][2])
	assert.Equal(t, "1", children[1][7])
	assert.Equal(t, "11", children[2][2])

	history, err := f.GetRows(sheetHistory)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, []string{"Emma", "11/03/2024", "11"}, history[1])

	logs, err := f.GetRows(sheetLogs)
	require.NoError(t, err)
	require.Len(t, logs, 2, "validated logs are purged")
	assert.Equal(t, "Leo", logs[1][0])
	assert.Equal(t, "Did their homework", logs[1][2])
	assert.Equal(t, "school", logs[1][3])
}
