package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	// Drain error channel
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func TestStreamCSV_Basic(t *testing.T) {
	input := "a,b,c\n1,2,3\n4,5,6\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"a", "b", "c"}, rows[0])
	assert.Equal(t, []string{"4", "5", "6"}, rows[2])
}

func TestStreamCSV_PipeDelimited(t *testing.T) {
	input := "a|b|c\n1|2|3\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: '|',
	})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1", "2", "3"}, rows[1])
}

func TestStreamCSV_TrimSpace(t *testing.T) {
	input := " Account Name , Billing City \n Tony's Pizza ,Boston\n"
	rows, err := ReadCSV(context.Background(), strings.NewReader(input), CSVOptions{TrimSpace: true})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Account Name", "Billing City"}, rows[0])
	assert.Equal(t, []string{"Tony's Pizza", "Boston"}, rows[1])
}

func TestStreamCSV_VariableFields(t *testing.T) {
	input := "a,b,c\n1\n"
	rows, err := ReadCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1"}, rows[1])
}

func TestReadCSV_MalformedQuote(t *testing.T) {
	input := "a,b\n\"unterminated,1\n"
	_, err := ReadCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read row")
}

func TestReadCSV_LazyQuotes(t *testing.T) {
	input := "name\nTony\"s Pizza\n"
	rows, err := ReadCSV(context.Background(), strings.NewReader(input), CSVOptions{LazyQuotes: true})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Tony\"s Pizza", rows[1][0])
}

func TestStreamCSV_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReadCSV(ctx, strings.NewReader("a\nb\n"), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}
