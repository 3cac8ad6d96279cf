package job

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// rows written by hand or by older builds
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC(), err
}

// jobColumns is the column list every job SELECT uses, in scan order.
var jobColumns = []string{
	"id", "uri", "meeting", "scope", "source", "status",
	"retry_count", "created_at", "modified_at",
}

// jobScanArgs holds the columns that need conversion after scanning.
type jobScanArgs struct {
	Scope      string
	Source     sql.NullString
	CreatedAt  string
	ModifiedAt string
}

func jobScanTargets(j *Job, args *jobScanArgs) []interface{} {
	return []interface{}{
		&j.ID,
		&j.URI,
		&j.Meeting,
		&args.Scope,
		&args.Source,
		&j.Status,
		&j.RetryCount,
		&args.CreatedAt,
		&args.ModifiedAt,
	}
}

func processJobScanArgs(j *Job, args *jobScanArgs) error {
	if err := json.Unmarshal([]byte(args.Scope), &j.Scope); err != nil {
		return errors.Wrapf(err, "invalid scope of job %s", j.ID)
	}
	if j.Scope == nil {
		j.Scope = []Scope{}
	}
	if args.Source.Valid {
		j.Source = args.Source.String
	}
	var err error
	if j.CreatedAt, err = parseTime(args.CreatedAt); err != nil {
		return errors.Wrapf(err, "invalid created_at of job %s", j.ID)
	}
	if j.ModifiedAt, err = parseTime(args.ModifiedAt); err != nil {
		return errors.Wrapf(err, "invalid modified_at of job %s", j.ID)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (*Job, error) {
	var j Job
	args := &jobScanArgs{}
	if err := row.Scan(jobScanTargets(&j, args)...); err != nil {
		return nil, err
	}
	if err := processJobScanArgs(&j, args); err != nil {
		return nil, err
	}
	return &j, nil
}

func encodeScope(scope []Scope) (string, error) {
	if scope == nil {
		scope = []Scope{}
	}
	b, err := json.Marshal(scope)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode scope")
	}
	return string(b), nil
}
