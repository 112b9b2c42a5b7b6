package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatResult(t *testing.T) {
	out := FormatResult(Result{PK: 42, Source: "hello world", Distance: 0.1234})
	require.Equal(t, "0.1234 --> 42\nhello world\n", out)
}

func TestPgIdent_RejectsInvalidIdentifiers(t *testing.T) {
	_, err := pgIdent("docs; DROP TABLE users")
	require.Error(t, err)

	_, err = pgIdent("")
	require.Error(t, err)
}

func TestPgIdent_AcceptsValidIdentifiers(t *testing.T) {
	q, err := pgIdent("my_table")
	require.NoError(t, err)
	require.Equal(t, `"my_table"`, q)
}
