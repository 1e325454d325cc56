package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func executeRoot(t *testing.T, stdin string, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	return root.ExecuteContext(context.Background())
}

// Each case fails during flag validation, before any config or storage is
// opened.
func TestLogin_RequiresPassword(t *testing.T) {
	err := executeRoot(t, "", "login", "-u", "analyst")
	require.ErrorContains(t, err, "password")
	require.ErrorContains(t, err, "password-stdin")

	err = executeRoot(t, "\n", "login", "-u", "analyst", "--password-stdin")
	require.EqualError(t, err, "password must not be empty")

	err = executeRoot(t, "", "login", "-u", "analyst", "-p", "")
	require.EqualError(t, err, "password must not be empty")

	err = executeRoot(t, "", "login", "-u", "analyst", "-p", "x", "--password-stdin")
	require.ErrorContains(t, err, "none of the others can be")
}

func TestReadLine_TrimsLineEnding(t *testing.T) {
	got, err := readLine(strings.NewReader("s3cret\r\nignored\n"))
	require.NoError(t, err)
	require.Equal(t, "s3cret", got)

	got, err = readLine(strings.NewReader("no-newline"))
	require.NoError(t, err)
	require.Equal(t, "no-newline", got)
}
