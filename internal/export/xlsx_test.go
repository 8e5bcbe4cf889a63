package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWorkbookRoundTrip(t *testing.T) {
	data, err := Workbook(Sheet{
		Name:    "Purchase Orders",
		Headers: []string{"Number", "Supplier", "Grand Total"},
		Rows: [][]any{
			{"PO/2025-26/0001", "Acme Industrial", 472000.0},
			{"PO/2025-26/0002", "Bharat Forge", 531000.0},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Purchase Orders")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Number", "Supplier", "Grand Total"}, rows[0])
	assert.Equal(t, "PO/2025-26/0001", rows[1][0])
}

func TestWorkbookMultipleSheets(t *testing.T) {
	data, err := Workbook(
		Sheet{Name: "Countries", Headers: []string{"Name"}, Rows: [][]any{{"India"}}},
		Sheet{Name: "States", Headers: []string{"Name"}, Rows: [][]any{{"Karnataka"}}},
	)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.ElementsMatch(t, []string{"Countries", "States"}, f.GetSheetList())
}

func TestWorkbookRequiresSheet(t *testing.T) {
	_, err := Workbook()
	require.Error(t, err)
}
