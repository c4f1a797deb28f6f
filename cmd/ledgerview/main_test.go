package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/ledgerview/pkg/ledger"
)

const feedDump = `{"success":true,"data":[
  {"id":"R-1","vendor":"Garuda","date":"2024-06-03","total":1500000,"category":"Travel","status":"verified",
   "blockchain":{"txHash":"0x9f8e7d6c5b4a39281706","explorerUrl":"https://explorer.example/tx/0x9f8e"}},
  {"id":"R-2","vendor":"Kopi Kenangan","date":"2024-05-20","total":"45000","category":"Meals","status":"pending"},
  {"id":"R-3","vendor":"Traveloka","date":"2023-11-02","total":800000,"category":"Travel","status":"VERIFIED",
   "ipfsUrl":"https://ipfs.io/ipfs/bafy"}
]}`

type cliEnv struct {
	dir string
	out string
}

func setupCLI(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	feedFile := filepath.Join(dir, "feed.json")
	require.NoError(t, os.WriteFile(feedFile, []byte(feedDump), 0o600))

	t.Setenv("FEED_FILE", feedFile)
	t.Setenv("HISTORY_BACKEND", "json")
	t.Setenv("HISTORY_PATH", filepath.Join(dir, "history.json"))
	t.Setenv("ARTIFACT_SINK", "none")
	t.Setenv("REPORT_CHART", "false")
	t.Setenv("GSHEETS_ID", "")
	t.Setenv("GSHEETS_TITLE", "")
	t.Setenv("AMQP_URL", "")
	t.Setenv("LOG_LEVEL", "ERROR")

	return &cliEnv{dir: dir, out: filepath.Join(dir, "out")}
}

func (e *cliEnv) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"-env", filepath.Join(e.dir, "missing.env")}, args...)
	code := run(context.Background(), full, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	env := setupCLI(t)

	code, out, _ := env.run(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Commands:")

	code, _, errOut := env.run(t, "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `unknown command "frobnicate"`)

	code, _, _ = env.run(t)
	assert.Equal(t, 2, code)

	code, _, _ = env.run(t, "ledger", "-bogus")
	assert.Equal(t, 2, code)

	code, _, _ = env.run(t, "ledger", "-h")
	assert.Equal(t, 0, code)
}

func TestRun_Summary(t *testing.T) {
	env := setupCLI(t)

	code, out, errOut := env.run(t, "summary", "-json")
	require.Equal(t, 0, code, errOut)

	var d ledger.Dashboard
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, 3, d.Stats.TotalCount)
	assert.Equal(t, 2, d.Stats.CountsByStatus.Verified)
	assert.Equal(t, "2300000", d.Stats.TotalVerifiedValue.String())

	code, out, _ = env.run(t, "summary")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Audit Summary (all)")
	assert.Contains(t, out, "Compliance rate: 66.7%")
	assert.Contains(t, out, "Recent receipts:")
}

func TestRun_Ledger(t *testing.T) {
	env := setupCLI(t)

	code, out, errOut := env.run(t, "ledger", "-category", "Travel", "-sort", "amount-asc")
	require.Equal(t, 0, code, errOut)
	assert.Less(t, strings.Index(out, "R-3"), strings.Index(out, "R-1"))
	assert.NotContains(t, out, "R-2")
	assert.Contains(t, out, "2 receipts")

	code, out, _ = env.run(t, "ledger", "-q", "nothing")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "No receipts match the current filters.")

	code, _, errOut = env.run(t, "ledger", "-start", "June")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "expected YYYY-MM-DD")
}

func TestRun_Show(t *testing.T) {
	env := setupCLI(t)

	code, out, _ := env.run(t, "show", "R-1")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Garuda")
	assert.Contains(t, out, "0x9f8e7d6c5b4a39281706")

	code, out, _ = env.run(t, "show", "R-2")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Pending")

	code, _, _ = env.run(t, "show", "R-404")
	assert.Equal(t, 3, code)

	code, _, _ = env.run(t, "show")
	assert.Equal(t, 2, code)
}

var idPattern = regexp.MustCompile(`id ([0-9a-f-]{36})`)

func TestRun_ReportLifecycle(t *testing.T) {
	env := setupCLI(t)

	code, out, errOut := env.run(t, "report", "-format", "csv", "-category", "Travel", "-out", env.out)
	require.Equal(t, 0, code, errOut)
	assert.FileExists(t, filepath.Join(env.out, "AuditReport_2Items_1.csv"))
	assert.Contains(t, out, `"Audit Report #1 (2 Items)"`)

	m := idPattern.FindStringSubmatch(out)
	require.Len(t, m, 2)
	id := m[1]

	code, _, _ = env.run(t, "report", "-format", "pdf", "-start", "2030-01-01", "-out", env.out)
	assert.Equal(t, 3, code, "no matching data")

	code, out, _ = env.run(t, "history", "list")
	require.Equal(t, 0, code)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "small")

	code, out, errOut = env.run(t, "history", "redownload", "-out", env.out, id)
	require.Equal(t, 0, code, errOut)
	assert.FileExists(t, filepath.Join(env.out, "AuditReport_2Items_1_Copy.csv"))
	assert.Contains(t, out, "(2 items)")

	code, _, errOut = env.run(t, "history", "clear")
	assert.Equal(t, 3, code)
	assert.Contains(t, errOut, "-yes")

	code, _, _ = env.run(t, "history", "clear", "--yes")
	require.Equal(t, 0, code)

	code, out, _ = env.run(t, "history")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "No reports generated yet.")

	code, out, _ = env.run(t, "report", "-format", "json", "-out", env.out)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "AuditReport_3Items_2.json", "sequence survives clearing")
}

func TestRun_ReportPreview(t *testing.T) {
	env := setupCLI(t)

	code, out, errOut := env.run(t, "report", "-preview", "-category", "Travel,Meals")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Showing 3 of 3")

	code, out, _ = env.run(t, "history", "list", "-json")
	require.Equal(t, 0, code)
	assert.Contains(t, out, `"total": 0`)
}

func TestRun_Status(t *testing.T) {
	env := setupCLI(t)

	code, out, _ := env.run(t, "status")
	assert.Equal(t, 0, code, out)
	assert.Contains(t, out, "✓ 3 receipts")
	assert.Contains(t, out, "Status: ✓ Ready to run")

	t.Setenv("HISTORY_BACKEND", "redis")
	code, out, _ = env.run(t, "status")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Status: ✗")
}

func TestStringList(t *testing.T) {
	var s stringList
	require.NoError(t, s.Set("Travel, Meals"))
	require.NoError(t, s.Set("Office"))
	assert.Equal(t, stringList{"Travel", "Meals", "Office"}, s)
	assert.Equal(t, "Travel,Meals,Office", s.String())
}
