package interp

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

func TestReadCSVSkipsMalformedRows(t *testing.T) {
	in := strings.Join([]string{
		"x,y",
		"0, 1",
		"",
		"# comment",
		"1,abc",
		"2,4,extra",
		"3",
		"NaN,1",
		`4"5,1`,
		"5,25",
	}, "\n")

	ds, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, Dataset{{X: 0, Y: 1}, {X: 2, Y: 4}, {X: 5, Y: 25}}, ds)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestReadCSVReportsReadErrors(t *testing.T) {
	_, err := ReadCSV(failingReader{})
	assert.ErrorIs(t, err, optimization.ErrValidation)
}
