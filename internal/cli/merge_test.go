package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCommand executes the CLI with a fresh root command and returns
// stdout. The same database path can be threaded through successive
// calls to build up state.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

func TestMergeUndoWorkflow(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "trove.db")
	snapshotPath := filepath.Join(dir, "merge.json")

	// Two records plus a third acting as creator of the duplicate
	for _, title := range []string{"Song", "Duplicate Song", "Artist"} {
		out, err := runCommand(t, "--db", db, "--format", "json", "record", "add", "--title", title)
		require.NoError(t, err, out)
		resp := decodeResponse(t, out)
		assert.Equal(t, "ok", resp.Status)
	}

	out, err := runCommand(t, "--db", db, "--format", "json",
		"link", "create", "3", "2", "--predicate", "creator_of")
	require.NoError(t, err, out)

	// Merge the duplicate (id 2) into the original (id 1)
	out, err = runCommand(t, "--db", db, "--format", "json",
		"merge", "2", "1", "--snapshot-out", snapshotPath)
	require.NoError(t, err, out)
	resp := decodeResponse(t, out)
	require.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), data["updated_record_id"])
	assert.Equal(t, float64(2), data["deleted_record_id"])
	assert.Equal(t, snapshotPath, data["snapshot_path"])

	// The merged-away record is gone
	_, err = runCommand(t, "--db", db, "--format", "json", "record", "show", "2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	// The creator link now points at the surviving record
	out, err = runCommand(t, "--db", db, "--format", "json", "link", "list", "1")
	require.NoError(t, err, out)
	resp = decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)

	// Undo brings the duplicate back
	out, err = runCommand(t, "--db", db, "--format", "json", "undo", "--snapshot", snapshotPath)
	require.NoError(t, err, out)
	resp = decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)

	out, err = runCommand(t, "--db", db, "--format", "json", "record", "show", "2")
	require.NoError(t, err, out)
	resp = decodeResponse(t, out)
	require.Equal(t, "ok", resp.Status)

	// Undoing twice fails cleanly
	out, err = runCommand(t, "--db", db, "--format", "json", "undo", "--snapshot", snapshotPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	resp = decodeResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ALREADY_UNDONE", resp.Error.Code)
}

func TestMergeIdenticalIDs(t *testing.T) {
	db := filepath.Join(t.TempDir(), "trove.db")

	out, err := runCommand(t, "--db", db, "--format", "json", "record", "add", "--title", "Solo")
	require.NoError(t, err, out)

	out, err = runCommand(t, "--db", db, "--format", "json", "merge", "1", "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	resp := decodeResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "IDENTICAL_MERGE_TARGETS", resp.Error.Code)
}

func TestMergeInvalidArgs(t *testing.T) {
	db := filepath.Join(t.TempDir(), "trove.db")

	_, err := runCommand(t, "--db", db, "merge", "one", "two")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestLinkCreateSelfLoop(t *testing.T) {
	db := filepath.Join(t.TempDir(), "trove.db")

	out, err := runCommand(t, "--db", db, "--format", "json", "record", "add", "--title", "Loop")
	require.NoError(t, err, out)

	out, err = runCommand(t, "--db", db, "--format", "json",
		"link", "create", "1", "1", "--predicate", "contains")
	require.Error(t, err)
	resp := decodeResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SELF_LINK_REJECTED", resp.Error.Code)
}

func TestDuplicatesCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "trove.db")

	for _, title := range []string{"The Go Blog", "the go blog", "Unrelated Thing"} {
		out, err := runCommand(t, "--db", db, "--format", "json", "record", "add", "--title", title)
		require.NoError(t, err, out)
	}

	out, err := runCommand(t, "--db", db, "--format", "json", "duplicates", "1")
	require.NoError(t, err, out)
	resp := decodeResponse(t, out)
	require.Equal(t, "ok", resp.Status)

	candidates, ok := resp.Data.([]interface{})
	require.True(t, ok, fmt.Sprintf("data: %v", resp.Data))
	assert.Len(t, candidates, 1)
}
