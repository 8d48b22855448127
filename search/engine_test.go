package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BjarniRunar/moggie/storage/records"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(records.Options{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestAddResultsThenSearchFindsKeyword(t *testing.T) {
	e := openTestEngine(t)
	_, err := e.AddResults([]Entry{NewEntry(42, "hello", "world")}, Options{})
	require.NoError(t, err)

	got, err := e.Search("hello")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{42}, got.Slice())
}

func TestAddResultsImplicitAndAcrossKeywords(t *testing.T) {
	e := openTestEngine(t)
	_, err := e.AddResults([]Entry{
		NewEntry(1, "hello", "world"),
		NewEntry(2, "hello"),
	}, Options{})
	require.NoError(t, err)

	got, err := e.Search("hello world")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{1}, got.Slice())
}

func TestTagNamespaceScoping(t *testing.T) {
	e := openTestEngine(t)
	_, err := e.AddResults([]Entry{NewEntry(5, "in:inbox")}, Options{TagNamespace: "work"})
	require.NoError(t, err)

	got, err := e.Search("in:inbox@work")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{5}, got.Slice())

	got, err = e.Search("in:inbox")
	require.NoError(t, err)
	assert.Empty(t, got.Slice())
}

func TestDelResultsRemovesMembership(t *testing.T) {
	e := openTestEngine(t)
	_, err := e.AddResults([]Entry{NewEntry(7, "hello")}, Options{})
	require.NoError(t, err)
	_, err = e.DelResults([]Entry{NewEntry(7, "hello")}, Options{})
	require.NoError(t, err)

	got, err := e.Search("hello")
	require.NoError(t, err)
	assert.Empty(t, got.Slice())
}

func TestIsDeletedExcludedByDefault(t *testing.T) {
	e := openTestEngine(t)
	_, err := e.AddResults([]Entry{NewEntry(1, "hello")}, Options{})
	require.NoError(t, err)

	e.mu.Lock()
	e.deleted.Add(1)
	e.mu.Unlock()

	got, err := e.Search("hello")
	require.NoError(t, err)
	assert.Empty(t, got.Slice())

	got, err = e.Search("hello is:deleted")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{1}, got.Slice())
}

func TestMutateRecordsHistoryAndUndo(t *testing.T) {
	e := openTestEngine(t)
	_, err := e.AddResults([]Entry{NewEntry(3, "hello")}, Options{})
	require.NoError(t, err)

	scope := e.deleted.Copy()
	scope.Add(3)
	res, err := e.Mutate(scope, []MutateOp{{Op: '+', Keyword: "in:starred"}}, Options{})
	require.NoError(t, err)
	assert.NotZero(t, res.Version)

	got, err := e.Search("in:starred")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{3}, got.Slice())

	ops, undoScope, err := e.HistoricMutations(res.HistoryID, true)
	require.NoError(t, err)
	require.NotEmpty(t, ops)
	_, err = e.Mutate(undoScope, ops, Options{})
	require.NoError(t, err)

	got, err = e.Search("in:starred")
	require.NoError(t, err)
	assert.Empty(t, got.Slice())
}

func TestCandidatesAfterAddResults(t *testing.T) {
	e := openTestEngine(t)
	e.mu.Lock()
	e.config.PartialShortest = 1
	e.config.PartialLongest = 32
	e.mu.Unlock()

	_, err := e.AddResults([]Entry{NewEntry(1, "hello", "help", "world")}, Options{})
	require.NoError(t, err)

	got := e.Candidates("hel*", 10)
	assert.ElementsMatch(t, []string{"hello", "help"}, got)
}

func TestExplainRendersOperatorTree(t *testing.T) {
	e := openTestEngine(t)
	expl, err := e.Explain("hello OR world")
	require.NoError(t, err)
	assert.Contains(t, expl, "OR")
}
