package job

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhppoted/uhppoted-app-sync/records"
)

var header = []string{"Request Token", "Client Name", "Pax", "Last Updated"}

type authenticator struct {
	calls  int
	client Client
	err    error
}

func (a *authenticator) Authenticate(ctx context.Context, credentials []byte) (Client, error) {
	a.calls++

	return a.client, a.err
}

type client struct {
	remote Remote
	err    error
}

func (c *client) Open(ctx context.Context, spreadsheet string, area string) (Remote, error) {
	return c.remote, c.err
}

type remote struct {
	rows    [][]string
	appends [][]string
	updates map[int][]string
	writes  int
	failAt  int
	inserts bool
	unknown bool
}

func (r *remote) Rows(ctx context.Context) ([][]string, error) {
	rows := [][]string{}
	for _, row := range r.rows {
		rows = append(rows, append([]string{}, row...))
	}

	return rows, nil
}

func (r *remote) Append(ctx context.Context, row []string) (int, error) {
	r.writes++
	if r.writes == r.failAt {
		return 0, fmt.Errorf("simulated write failure")
	}

	r.appends = append(r.appends, row)

	// INSERT_ROWS appends after the first block of rows and moves everything below it down
	index := len(r.rows)
	if r.inserts {
		for i := 1; i < len(r.rows); i++ {
			if isBlank(r.rows[i]) {
				index = i
				break
			}
		}
	}

	r.rows = slices.Insert(r.rows, index, row)

	if r.unknown {
		return 0, nil
	}

	return index, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}

	return true
}

func (r *remote) Update(ctx context.Context, index int, row []string) error {
	r.writes++
	if r.writes == r.failAt {
		return fmt.Errorf("simulated write failure")
	}

	if r.updates == nil {
		r.updates = map[int][]string{}
	}

	r.updates[index] = row
	for len(r.rows) <= index {
		r.rows = append(r.rows, nil)
	}
	r.rows[index] = row

	return nil
}

type source struct {
	table *records.Table
	err   error
}

func (s *source) Check() error {
	return s.err
}

func (s *source) Load() (*records.Table, error) {
	return s.table, nil
}

func (s *source) String() string {
	return "memory"
}

func makeSource(t *testing.T, rows ...[]string) *source {
	table, err := records.MakeTable(append([][]string{header}, rows...), records.DEFAULT_KEY, records.DEFAULT_UPDATED, records.DEFAULT_LAYOUT)
	require.NoError(t, err)

	return &source{table: table}
}

func makeCredentials(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "credentials.json")
	json := `{"type":"service_account","client_email":"sync@example.iam.gserviceaccount.com","private_key":"-","token_uri":"https://oauth2.googleapis.com/token"}`

	require.NoError(t, os.WriteFile(path, []byte(json), 0600))

	return path
}

func makeProbe(t *testing.T) *Probe {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Cleanup(server.Close)

	return &Probe{URL: server.URL}
}

func makeJob(t *testing.T, r *remote, s *source) (*Job, *authenticator, *MemorySink) {
	auth := &authenticator{client: &client{remote: r}}
	sink := &MemorySink{}

	job := Job{
		Credentials:   makeCredentials(t),
		Spreadsheet:   "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms",
		Range:         "Leads!A1:D",
		Probe:         makeProbe(t),
		Source:        s,
		Authenticator: auth,
		Log:           sink,
	}

	return &job, auth, sink
}

func count(lines []string, token string) int {
	n := 0
	for _, line := range lines {
		if strings.Contains(line, token) {
			n++
		}
	}

	return n
}

func last(sink *MemorySink) string {
	lines := sink.Lines()
	if len(lines) == 0 {
		return ""
	}

	return lines[len(lines)-1]
}

func TestRunWithMissingCredentials(t *testing.T) {
	job, auth, sink := makeJob(t, &remote{rows: [][]string{header}}, makeSource(t))
	job.Credentials = filepath.Join(t.TempDir(), "missing.json")

	outcome := job.Run(context.Background())

	assert.Equal(t, CredentialMissing, outcome.Reason)
	assert.NotZero(t, outcome.ExitCode())
	assert.Equal(t, 1, count(sink.Lines(), "CREDENTIAL_MISSING"))
	assert.True(t, strings.HasSuffix(last(sink), "FAILURE: CREDENTIAL_MISSING"))
	assert.Contains(t, last(sink), " ERROR ")
	assert.Zero(t, auth.calls)
}

func TestRunWithInvalidCredentials(t *testing.T) {
	job, _, _ := makeJob(t, &remote{rows: [][]string{header}}, makeSource(t))

	require.NoError(t, os.WriteFile(job.Credentials, []byte("not json"), 0600))

	outcome := job.Run(context.Background())

	assert.Equal(t, CredentialMissing, outcome.Reason)
}

func TestRunIsIdempotent(t *testing.T) {
	r := &remote{rows: [][]string{header}}
	s := makeSource(t,
		[]string{"T001", "Ahmed", "2", "2025-10-01 12:30:00"},
		[]string{"T002", "Bianca", "1", "2025-10-02 09:15:00"})

	job, _, _ := makeJob(t, r, s)

	first := job.Run(context.Background())
	require.True(t, first.Ok(), "first run failed: %v", first)
	require.Equal(t, 2, r.writes)

	second := job.Run(context.Background())
	require.True(t, second.Ok(), "second run failed: %v", second)

	assert.Equal(t, 2, r.writes, "second run should not write")
	assert.Len(t, r.rows, 3)
}

func TestRunAppendsMissingRecord(t *testing.T) {
	r := &remote{
		rows: [][]string{
			{"Last Updated", "Request Token", "Client Name", "Pax"},
			{"2025-09-01 08:00:00", "T000", "Chen", "4"},
		},
	}

	s := makeSource(t, []string{"T001", "Ahmed", "2", "2025-10-01 12:30:00"})
	job, _, sink := makeJob(t, r, s)

	outcome := job.Run(context.Background())

	require.True(t, outcome.Ok(), "run failed: %v", outcome)
	require.Len(t, r.appends, 1)
	assert.Empty(t, r.updates)
	assert.Equal(t, []string{"2025-10-01 12:30:00", "T001", "Ahmed", "2"}, r.appends[0])
	assert.True(t, strings.HasSuffix(last(sink), "SUCCESS"))
}

func TestRunUpdatesOlderRow(t *testing.T) {
	r := &remote{
		rows: [][]string{
			{"Request Token", "Client Name", "Pax", "Last Updated", "Notes"},
			{"T001", "Ahmed", "1", "2025-09-01 08:00:00", "called twice"},
		},
	}

	s := makeSource(t, []string{"T001", "Ahmed", "2", "2025-10-01 12:30:00"})
	job, _, _ := makeJob(t, r, s)

	outcome := job.Run(context.Background())

	require.True(t, outcome.Ok(), "run failed: %v", outcome)
	assert.Empty(t, r.appends)
	require.Len(t, r.updates, 1)
	assert.Equal(t, []string{"T001", "Ahmed", "2", "2025-10-01 12:30:00", "called twice"}, r.updates[1])
	assert.Len(t, r.rows, 2)
}

func TestRunIgnoresNewerRemoteRow(t *testing.T) {
	r := &remote{
		rows: [][]string{
			header,
			{"T001", "Ahmed", "3", "2025-11-01 08:00:00"},
		},
	}

	s := makeSource(t, []string{"T001", "Ahmed", "2", "2025-10-01 12:30:00"})
	job, _, _ := makeJob(t, r, s)

	outcome := job.Run(context.Background())

	require.True(t, outcome.Ok())
	assert.Zero(t, r.writes)
}

func TestRunWithoutRemoteTimestampColumn(t *testing.T) {
	r := &remote{
		rows: [][]string{
			{"Request Token", "Client Name"},
			{"T001", "Ahmed"},
			{"T002", "Bianca"},
		},
	}

	s := makeSource(t,
		[]string{"T001", "Ahmed", "2", "2025-10-01 12:30:00"},
		[]string{"T002", "Bianca K", "1", "2025-10-02 09:15:00"})

	job, _, _ := makeJob(t, r, s)

	outcome := job.Run(context.Background())

	require.True(t, outcome.Ok())
	require.Len(t, r.updates, 1)
	assert.Equal(t, []string{"T002", "Bianca K"}, r.updates[2])
}

func TestRunWithDuplicateLocalKeys(t *testing.T) {
	r := &remote{rows: [][]string{header}}
	s := makeSource(t,
		[]string{"T001", "Ahmed", "2", "2025-10-01 12:30:00"},
		[]string{"T001", "Ahmed", "3", "2025-10-03 12:30:00"})

	job, _, _ := makeJob(t, r, s)

	outcome := job.Run(context.Background())

	require.True(t, outcome.Ok())
	assert.Len(t, r.appends, 1)
	assert.Len(t, r.updates, 1)
	assert.Len(t, r.rows, 2)
	assert.Equal(t, "3", r.rows[1][2])
}

func TestRunWithPartialWriteFailure(t *testing.T) {
	r := &remote{
		rows:   [][]string{header},
		failAt: 3,
	}

	s := makeSource(t,
		[]string{"T001", "A", "1", "2025-10-01 12:30:00"},
		[]string{"T002", "B", "1", "2025-10-01 12:30:00"},
		[]string{"T003", "C", "1", "2025-10-01 12:30:00"},
		[]string{"T004", "D", "1", "2025-10-01 12:30:00"},
		[]string{"T005", "E", "1", "2025-10-01 12:30:00"})

	job, _, sink := makeJob(t, r, s)

	outcome := job.Run(context.Background())

	assert.Equal(t, PartialWriteFailure, outcome.Reason)
	assert.NotZero(t, outcome.ExitCode())

	keys := []string{}
	for _, row := range r.appends {
		keys = append(keys, row[0])
	}

	assert.Equal(t, []string{"T001", "T002", "T004", "T005"}, keys)

	failed := []string{}
	for _, line := range sink.Lines() {
		if strings.Contains(line, "PARTIAL_WRITE_FAILURE") && strings.Contains(line, "record ") {
			failed = append(failed, line)
		}
	}

	require.Len(t, failed, 1)
	assert.Contains(t, failed[0], "record 3 (T003)")
	assert.True(t, strings.HasSuffix(last(sink), "FAILURE: PARTIAL_WRITE_FAILURE"))

	// ... a second run completes the remainder
	outcome = job.Run(context.Background())

	assert.True(t, outcome.Ok())
	assert.Len(t, r.appends, 5)
}

func TestRunWithoutConnectivity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	job, auth, _ := makeJob(t, &remote{rows: [][]string{header}}, makeSource(t))
	job.Probe = &Probe{URL: server.URL}

	outcome := job.Run(context.Background())

	assert.Equal(t, NoConnectivity, outcome.Reason)
	assert.Zero(t, auth.calls, "authentication should not be attempted")
}

func TestRunWithUnexpectedProbeStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	job, _, sink := makeJob(t, &remote{rows: [][]string{header}}, makeSource(t))
	job.Probe = &Probe{URL: server.URL}

	outcome := job.Run(context.Background())

	assert.True(t, outcome.Ok())
	assert.Equal(t, 1, count(sink.Lines(), "unexpected response"))
}

func TestRunWithMissingSource(t *testing.T) {
	s := makeSource(t)
	s.err = fmt.Errorf("no such file")

	job, auth, _ := makeJob(t, &remote{rows: [][]string{header}}, s)

	outcome := job.Run(context.Background())

	assert.Equal(t, DependencyMissing, outcome.Reason)
	assert.Zero(t, auth.calls)
}

func TestRunWithoutAuthenticator(t *testing.T) {
	job, _, _ := makeJob(t, &remote{rows: [][]string{header}}, makeSource(t))
	job.Authenticator = nil

	outcome := job.Run(context.Background())

	assert.Equal(t, DependencyMissing, outcome.Reason)
}

func TestRunWithAuthFailure(t *testing.T) {
	job, auth, _ := makeJob(t, &remote{rows: [][]string{header}}, makeSource(t))
	auth.err = fmt.Errorf("%w: invalid_grant", ErrAuthFailed)

	outcome := job.Run(context.Background())

	assert.Equal(t, AuthFailed, outcome.Reason)
}

func TestRunWithConnectFailures(t *testing.T) {
	tests := []struct {
		err      error
		expected Reason
	}{
		{fmt.Errorf("open (%w)", ErrSheetNotFound), SheetNotFound},
		{fmt.Errorf("open (%w)", ErrPermissionDenied), PermissionDenied},
		{fmt.Errorf("open (%w)", ErrAuthFailed), AuthFailed},
		{fmt.Errorf("internal error"), Unknown},
	}

	for _, test := range tests {
		job, auth, _ := makeJob(t, &remote{}, makeSource(t))
		auth.client = &client{err: test.err}

		outcome := job.Run(context.Background())

		assert.Equal(t, test.expected, outcome.Reason, "%v", test.err)
	}
}

func TestRunWithLockHeld(t *testing.T) {
	lockfile := filepath.Join(t.TempDir(), "sync.lock")

	lock, err := acquire(lockfile)
	require.NoError(t, err)
	defer lock.release()

	job, auth, _ := makeJob(t, &remote{rows: [][]string{header}}, makeSource(t))
	job.Lockfile = lockfile

	outcome := job.Run(context.Background())

	assert.Equal(t, AlreadyRunning, outcome.Reason)
	assert.Zero(t, auth.calls)
}

func TestRunReleasesLock(t *testing.T) {
	lockfile := filepath.Join(t.TempDir(), "sync.lock")

	job, _, _ := makeJob(t, &remote{rows: [][]string{header}}, makeSource(t))
	job.Lockfile = lockfile

	require.True(t, job.Run(context.Background()).Ok())
	require.True(t, job.Run(context.Background()).Ok())
}

func TestRunDryRun(t *testing.T) {
	r := &remote{
		rows: [][]string{
			header,
			{"T001", "Ahmed", "1", "2025-09-01 08:00:00"},
		},
	}

	s := makeSource(t,
		[]string{"T001", "Ahmed", "2", "2025-10-01 12:30:00"},
		[]string{"T002", "Bianca", "1", "2025-10-02 09:15:00"})

	job, _, _ := makeJob(t, r, s)
	job.DryRun = true

	outcome := job.Run(context.Background())

	assert.True(t, outcome.Ok())
	assert.Zero(t, r.writes)
}

func TestRunInitialisesEmptyWorksheet(t *testing.T) {
	r := &remote{}
	s := makeSource(t, []string{"T001", "Ahmed", "2", "2025-10-01 12:30:00"})

	job, _, _ := makeJob(t, r, s)

	outcome := job.Run(context.Background())

	require.True(t, outcome.Ok(), "run failed: %v", outcome)
	assert.Equal(t, header, r.updates[0])
	require.Len(t, r.appends, 1)
	assert.Len(t, r.rows, 2)
}

func TestRunSkipsRecordsWithoutKey(t *testing.T) {
	r := &remote{rows: [][]string{header}}
	s := makeSource(t,
		[]string{"", "Ahmed", "2", "2025-10-01 12:30:00"},
		[]string{"T002", "Bianca", "1", "2025-10-02 09:15:00"})

	job, _, _ := makeJob(t, r, s)

	outcome := job.Run(context.Background())

	assert.True(t, outcome.Ok())
	assert.Len(t, r.appends, 1)
}

func TestRunWithMissingKeyColumnInWorksheet(t *testing.T) {
	r := &remote{rows: [][]string{{"Client Name", "Pax"}}}

	job, _, _ := makeJob(t, r, makeSource(t, []string{"T001", "Ahmed", "2", "2025-10-01 12:30:00"}))

	outcome := job.Run(context.Background())

	assert.Equal(t, Unknown, outcome.Reason)
	assert.Zero(t, r.writes)
}

func TestRunWithAppendInsertedMidSheet(t *testing.T) {
	r := &remote{
		rows: [][]string{
			header,
			{"T001", "Ahmed", "2", "2025-10-01 12:30:00"},
			{},
			{"T002", "Bianca", "1", "2025-10-01 09:15:00"},
		},
		inserts: true,
	}

	s := makeSource(t,
		[]string{"T009", "Chen", "4", "2025-10-02 08:00:00"},
		[]string{"T002", "Bianca", "5", "2025-10-02 09:15:00"})

	job, _, _ := makeJob(t, r, s)

	outcome := job.Run(context.Background())

	require.True(t, outcome.Ok())
	require.Len(t, r.rows, 5)
	assert.Equal(t, "T009", r.rows[2][0])
	assert.Empty(t, r.rows[3])
	assert.Equal(t, []string{"T002", "Bianca", "5", "2025-10-02 09:15:00"}, r.rows[4])

	keys := map[string]int{}
	for _, row := range r.rows[1:] {
		if len(row) > 0 {
			keys[row[0]]++
		}
	}

	assert.Equal(t, map[string]int{"T001": 1, "T002": 1, "T009": 1}, keys)
}

func TestRunWithUnknownAppendPosition(t *testing.T) {
	r := &remote{
		rows: [][]string{
			header,
			{"T001", "Ahmed", "2", "2025-10-01 12:30:00"},
			{},
			{"T002", "Bianca", "1", "2025-10-01 09:15:00"},
		},
		inserts: true,
		unknown: true,
	}

	s := makeSource(t,
		[]string{"T009", "Chen", "4", "2025-10-02 08:00:00"},
		[]string{"T002", "Bianca", "5", "2025-10-02 09:15:00"})

	job, _, _ := makeJob(t, r, s)

	outcome := job.Run(context.Background())

	require.True(t, outcome.Ok())
	require.Len(t, r.updates, 1)
	assert.Equal(t, []string{"T002", "Bianca", "5", "2025-10-02 09:15:00"}, r.updates[4])
}

func TestRunTagsLogWithRunID(t *testing.T) {
	job, _, sink := makeJob(t, &remote{rows: [][]string{header}}, makeSource(t, []string{"T001", "Ahmed", "2", "2025-10-01 12:30:00"}))

	require.True(t, job.Run(context.Background()).Ok())
	require.True(t, job.Run(context.Background()).Ok())

	runs := []string{}
	for _, e := range sink.Entries {
		require.NotEmpty(t, e.Run)
		if !slices.Contains(runs, e.Run) {
			runs = append(runs, e.Run)
		}
	}

	assert.Len(t, runs, 2)
	assert.Regexp(t, `\[`+runs[1]+`\] SUCCESS$`, last(sink))
}

func TestRunWarnsOfUnmappedColumns(t *testing.T) {
	r := &remote{
		rows: [][]string{
			{"Request Token", "Client Name", "Last Updated"},
		},
	}

	job, _, sink := makeJob(t, r, makeSource(t, []string{"T001", "Ahmed", "2", "2025-10-01 12:30:00"}))

	require.True(t, job.Run(context.Background()).Ok())

	assert.Equal(t, 1, count(sink.Lines(), "local columns Pax not in worksheet header"))
	assert.Equal(t, []string{"T001", "Ahmed", "2025-10-01 12:30:00"}, r.appends[0])
}

type failing struct{}

func (f failing) Append(Entry) error {
	return fmt.Errorf("disk full")
}

func TestRunWithBrokenLog(t *testing.T) {
	var buffer strings.Builder

	log.SetOutput(&buffer)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	job, _, _ := makeJob(t, &remote{rows: [][]string{header}}, makeSource(t))
	job.Log = failing{}

	assert.True(t, job.Run(context.Background()).Ok())
	assert.Equal(t, 1, strings.Count(buffer.String(), "error writing to run log (disk full)"))
}

func TestAbort(t *testing.T) {
	sink := MemorySink{}

	outcome := Abort(&sink, Unknown, fmt.Errorf("invalid TOML"))

	assert.Equal(t, Unknown, outcome.Reason)
	require.Len(t, sink.Entries, 2)
	assert.Contains(t, sink.Entries[0].Message, "invalid TOML")
	assert.Equal(t, ERROR, sink.Entries[1].Level)
	assert.Equal(t, "FAILURE: UNKNOWN", sink.Entries[1].Message)
	assert.Equal(t, sink.Entries[0].Run, sink.Entries[1].Run)
}
