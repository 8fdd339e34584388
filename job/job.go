package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/uhppoted/uhppoted-app-sync/records"
)

// Authenticator exchanges a credential for an authorised client.
type Authenticator interface {
	Authenticate(ctx context.Context, credentials []byte) (Client, error)
}

// Client opens a remote worksheet.
type Client interface {
	Open(ctx context.Context, spreadsheet string, area string) (Remote, error)
}

// Remote is a worksheet range. Row indices are 0-based offsets into the slice returned by
// Rows, with the header row at index 0.
type Remote interface {
	Rows(ctx context.Context) ([][]string, error)
	Append(ctx context.Context, row []string) (int, error)
	Update(ctx context.Context, index int, row []string) error
}

// Source supplies the local records.
type Source interface {
	Check() error
	Load() (*records.Table, error)
}

// Job is a single synchronisation pass of local records into a remote worksheet.
type Job struct {
	Credentials   string
	Spreadsheet   string
	Range         string
	Lockfile      string
	Key           string
	Updated       string
	Layout        string
	Probe         *Probe
	Source        Source
	Authenticator Authenticator
	Log           Sink
	DryRun        bool
	Debug         bool

	id      string
	logfail bool
	now     func() time.Time
}

// Run executes the job and returns the classified outcome. The last entry written to the
// run log is either SUCCESS or FAILURE: <reason>.
func (j *Job) Run(ctx context.Context) (result Outcome) {
	j.id = runID()

	j.infof("sync started")

	defer func() {
		if r := recover(); r != nil {
			j.errorf("unexpected error (%v)", r)
			result = Outcome{Reason: Unknown, Err: fmt.Errorf("%v", r)}
		}

		if result.Ok() {
			j.log(INFO, result.String())
		} else {
			j.log(ERROR, result.String())
		}
	}()

	return outcome(j.run(ctx))
}

func (j *Job) run(ctx context.Context) error {
	if j.Lockfile != "" {
		lock, err := acquire(j.Lockfile)
		if err == ErrLocked {
			j.errorf("another sync is in progress (lockfile %v)", j.Lockfile)
			return fail(AlreadyRunning, "%v", err)
		} else if err != nil {
			j.errorf("unable to create lockfile %v (%v)", j.Lockfile, err)
			return fail(Unknown, "%v", err)
		}

		defer func() {
			if err := lock.release(); err != nil {
				j.warnf("error releasing lockfile %v (%v)", j.Lockfile, err)
			}
		}()
	}

	credentials, err := j.prerequisites(ctx)
	if err != nil {
		return err
	}

	defer clear(credentials)

	j.infof("authenticating")
	client, err := j.Authenticator.Authenticate(ctx, credentials)
	if err != nil {
		j.errorf("authentication/authorization error (%v)", err)
		return fail(AuthFailed, "%v", err)
	}

	j.infof("opening spreadsheet %v, range %v", j.Spreadsheet, j.Range)
	remote, err := client.Open(ctx, j.Spreadsheet, j.Range)
	if err != nil {
		j.errorf("unable to open spreadsheet %v (%v)", j.Spreadsheet, err)
		return fail(classify(err, Unknown), "%v", err)
	}

	table, err := j.Source.Load()
	if err != nil {
		j.errorf("error loading records from %v (%v)", j.Source, err)
		return fail(Unknown, "%v", err)
	}

	j.infof("loaded %v records from %v", len(table.Records), j.Source)

	summary, err := j.reconcile(ctx, remote, table)
	if err != nil {
		return err
	}

	j.infof("appended:%v  updated:%v  unchanged:%v  skipped:%v  failed:%v",
		summary.appended, summary.updated, summary.unchanged, summary.skipped, summary.failed)

	if summary.failed > 0 {
		return fail(PartialWriteFailure, "%v of %v record writes failed", summary.failed, summary.failed+summary.appended+summary.updated)
	}

	return nil
}

func (j *Job) prerequisites(ctx context.Context) ([]byte, error) {
	j.infof("checking prerequisites")

	// ... credentials
	if strings.TrimSpace(j.Credentials) == "" {
		j.errorf("no credential file configured")
		return nil, fail(CredentialMissing, "no credential file configured")
	}

	credentials, err := os.ReadFile(j.Credentials)
	if err != nil {
		j.errorf("credential file %v not readable (%v)", j.Credentials, err)
		return nil, fail(CredentialMissing, "%v", err)
	}

	var object map[string]any
	if err := json.Unmarshal(credentials, &object); err != nil {
		j.errorf("credential file %v is not a valid JSON object (%v)", j.Credentials, err)
		return nil, fail(CredentialMissing, "%v", err)
	}

	j.debugf("credential file %v is valid JSON", j.Credentials)

	// ... collaborators
	if j.Authenticator == nil {
		j.errorf("no authenticator configured")
		return nil, fail(DependencyMissing, "no authenticator")
	}

	if j.Source == nil {
		j.errorf("no record source configured")
		return nil, fail(DependencyMissing, "no record source")
	}

	if err := j.Source.Check(); err != nil {
		j.errorf("record source %v not available (%v)", j.Source, err)
		return nil, fail(DependencyMissing, "%v", err)
	}

	// ... connectivity
	if j.Probe != nil {
		status, err := j.Probe.Check(ctx)
		if err != nil {
			j.errorf("no network connectivity (%v)", err)
			return nil, fail(NoConnectivity, "%v", err)
		}

		if status < 200 || status > 299 {
			j.warnf("unexpected response from %v (%v)", j.Probe.URL, status)
		} else {
			j.debugf("network connectivity confirmed")
		}
	}

	j.infof("prerequisites ok")

	return credentials, nil
}

func (j *Job) debugf(format string, args ...any) {
	if j.Debug {
		j.log(DEBUG, fmt.Sprintf(format, args...))
	}
}

func (j *Job) infof(format string, args ...any) {
	j.log(INFO, fmt.Sprintf(format, args...))
}

func (j *Job) warnf(format string, args ...any) {
	j.log(WARN, fmt.Sprintf(format, args...))
}

func (j *Job) errorf(format string, args ...any) {
	j.log(ERROR, fmt.Sprintf(format, args...))
}

func (j *Job) log(level Level, msg string) {
	if j.Log == nil {
		return
	}

	now := time.Now
	if j.now != nil {
		now = j.now
	}

	entry := Entry{
		Timestamp: now(),
		Level:     level,
		Run:       j.id,
		Message:   msg,
	}

	if err := j.Log.Append(entry); err != nil && !j.logfail {
		j.logfail = true
		log.Printf("%-5s %s", WARN, fmt.Sprintf("error writing to run log (%v)", err))
	}
}

// Abort records a sync that could not be started because its own setup failed (e.g. an
// unreadable configuration) and returns the failure outcome.
func Abort(sink Sink, reason Reason, err error) Outcome {
	j := Job{
		Log: sink,
		id:  runID(),
	}

	outcome := Outcome{Reason: reason, Err: err}

	j.errorf("sync not started (%v)", err)
	j.log(ERROR, outcome.String())

	return outcome
}

// runID returns a short random tag for the log lines of a single run.
func runID() string {
	id := uuid.NewString()

	return id[:8]
}
