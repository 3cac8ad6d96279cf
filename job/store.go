package job

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
)

const (
	jobsTable      = "export_jobs"
	generatedTable = "export_job_generated"
)

// Store persists jobs in the service database. Jobs are never deleted.
type Store struct {
	db *sql.DB
}

// NewStore creates a job store on a migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new job.
func (s *Store) Create(ctx context.Context, j *Job) error {
	scope, err := encodeScope(j.Scope)
	if err != nil {
		return err
	}
	source := sql.NullString{String: j.Source, Valid: j.Source != ""}

	query, args, err := sq.Insert(jobsTable).
		Columns(jobColumns...).
		Values(j.ID, j.URI, j.Meeting, scope, source, j.Status, j.RetryCount,
			formatTime(j.CreatedAt), formatTime(j.ModifiedAt)).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build insert")
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrapf(err, "failed to create job %s", j.ID)
	}
	return nil
}

// Get returns a job with its generated resources.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	query, args, err := sq.Select(jobColumns...).From(jobsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}
	j, err := scanJob(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("job %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get job %s", id)
	}
	if err := s.loadGenerated(ctx, []*Job{j}); err != nil {
		return nil, err
	}
	return j, nil
}

// NextScheduled returns the oldest scheduled job, or nil when there is none
// or when some job is ongoing.
func (s *Store) NextScheduled(ctx context.Context) (*Job, error) {
	query, args, err := sq.Select(jobColumns...).
		From(jobsTable).
		Where(sq.Eq{"status": StatusScheduled}).
		Where(sq.Expr("NOT EXISTS (SELECT 1 FROM "+jobsTable+" WHERE status = ?)", StatusOngoing)).
		OrderBy("created_at", "rowid").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}
	j, err := scanJob(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get next scheduled job")
	}
	if err := s.loadGenerated(ctx, []*Job{j}); err != nil {
		return nil, err
	}
	return j, nil
}

// ListFailed returns every job in failure, oldest first.
func (s *Store) ListFailed(ctx context.Context) ([]*Job, error) {
	status := StatusFailure
	return s.List(ctx, Filter{Status: &status})
}

// Filter narrows List. A zero Limit means no limit.
type Filter struct {
	Status *Status
	Limit  int
	Offset int
}

// List returns jobs oldest first.
func (s *Store) List(ctx context.Context, f Filter) ([]*Job, error) {
	b := sq.Select(jobColumns...).From(jobsTable).OrderBy("created_at", "rowid")
	if f.Status != nil {
		b = b.Where(sq.Eq{"status": *f.Status})
	}
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		if f.Limit <= 0 {
			b = b.Limit(1<<63 - 1)
		}
		b = b.Offset(uint64(f.Offset))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, j)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, errors.Wrap(err, "failed to iterate jobs")
	}

	if err := s.loadGenerated(ctx, jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Transition moves a job from one status to another only if it is still in
// the expected status. A job that moved on in the meantime yields
// ErrConflict.
func (s *Store) Transition(ctx context.Context, id string, from, to Status, now time.Time) error {
	if !CanTransition(from, to) {
		return errors.NewInvalidRequestError("job cannot move from %s to %s", from, to)
	}
	query, args, err := sq.Update(jobsTable).
		Set("status", to).
		Set("modified_at", formatTime(now)).
		Where(sq.Eq{"id": id, "status": from}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build update")
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "failed to move job %s to %s", id, to)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return errors.NewConflictError("job %s is %s, expected %s", id, current.Status, from)
}

// IncrementRetry bumps the retry counter of a job.
func (s *Store) IncrementRetry(ctx context.Context, id string, now time.Time) error {
	query, args, err := sq.Update(jobsTable).
		Set("retry_count", sq.Expr("retry_count + 1")).
		Set("modified_at", formatTime(now)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build update")
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "failed to increment retry count of job %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFoundError("job %s", id)
	}
	return nil
}

// AddGenerated records a resource produced by a job.
func (s *Store) AddGenerated(ctx context.Context, id, resource string, now time.Time) error {
	query, args, err := sq.Insert(generatedTable).
		Columns("job_id", "resource", "created_at").
		Values(id, resource, formatTime(now)).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build insert")
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrapf(err, "failed to record generated resource of job %s", id)
	}
	return nil
}

// ExistsBySource reports whether any job references the origin activity.
func (s *Store) ExistsBySource(ctx context.Context, source string) (bool, error) {
	query, args, err := sq.Select("1").From(jobsTable).Where(sq.Eq{"source": source}).Limit(1).ToSql()
	if err != nil {
		return false, errors.Wrap(err, "failed to build query")
	}
	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to look up jobs for %s", source)
	}
	return true, nil
}

// StatusCount is one entry of the job summary.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int    `json:"count"`
}

// Summary counts jobs per status. Every status is present, in lifecycle
// order.
func (s *Store) Summary(ctx context.Context) ([]StatusCount, error) {
	query, args, err := sq.Select("status", "COUNT(*)").From(jobsTable).GroupBy("status").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to summarize jobs")
	}
	defer rows.Close()

	counts := map[Status]int{}
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.Wrap(err, "failed to scan summary")
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate summary")
	}

	summary := make([]StatusCount, 0, len(Statuses))
	for _, status := range Statuses {
		summary = append(summary, StatusCount{Status: status, Count: counts[status]})
	}
	return summary, nil
}

func (s *Store) loadGenerated(ctx context.Context, jobs []*Job) error {
	if len(jobs) == 0 {
		return nil
	}
	byID := make(map[string]*Job, len(jobs))
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j
		ids = append(ids, j.ID)
	}

	query, args, err := sq.Select("job_id", "resource").
		From(generatedTable).
		Where(sq.Eq{"job_id": ids}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build query")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "failed to load generated resources")
	}
	defer rows.Close()
	for rows.Next() {
		var jobID, resource string
		if err := rows.Scan(&jobID, &resource); err != nil {
			return errors.Wrap(err, "failed to scan generated resource")
		}
		byID[jobID].Generated = append(byID[jobID].Generated, resource)
	}
	return errors.Wrap(rows.Err(), "failed to iterate generated resources")
}
