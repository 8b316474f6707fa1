package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Collect(t *testing.T) {
	assert.NoError(t, Collect(Required("a", "x"), MinInt("n", 2, 1)))

	long := "abcdef"
	err := Collect(Required("book_id", " "), MinInt("n", 0, 1), MaxLen("notes", &long, 3))
	require.Error(t, err)

	var errs Errs
	require.True(t, errors.As(err, &errs))
	assert.Len(t, errs, 3)
	assert.Equal(t, "book_id: required; n: must be >= 1; notes: must be at most 3 bytes", err.Error())
}

func Test_OneOf(t *testing.T) {
	good, bad := "good", "lost"
	assert.Nil(t, OneOf("c", nil, "good"))
	assert.Nil(t, OneOf("c", &good, "good", "fair"))
	assert.NotNil(t, OneOf("c", &bad, "good", "fair"))
}
