package snapshot

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/rdf"
	"github.com/kanselarij-vlaanderen/themis-export-service/sym"
)

// insertChunk keeps multi-row inserts under SQLite's bound variable limit.
const insertChunk = 200

// SQLStore keeps graphs in the quads table of the service database.
// Terms are stored in their N-Triples encoding; insertion order (the row
// id) is the stable paging order.
type SQLStore struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// NewSQLStore creates a store on a migrated database.
func NewSQLStore(db *sql.DB, log *zap.SugaredLogger) *SQLStore {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &SQLStore{db: db, log: log}
}

func (s *SQLStore) Insert(ctx context.Context, graph string, triples []rdf.Triple) error {
	if len(triples) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := insertTriples(ctx, tx, graph, triples); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit triples")
	}
	s.log.Debugw("Inserted triples", "graph", graph, "count", len(triples), "symbol", sym.DB)
	return nil
}

func insertTriples(ctx context.Context, tx *sql.Tx, graph string, triples []rdf.Triple) error {
	for start := 0; start < len(triples); start += insertChunk {
		end := min(start+insertChunk, len(triples))
		insert := sq.Insert("quads").
			Options("OR IGNORE").
			Columns("graph", "subject", "predicate", "object")
		for _, t := range triples[start:end] {
			insert = insert.Values(graph, t.Subject.String(), t.Predicate.String(), t.Object.String())
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return errors.Wrap(err, "failed to build insert")
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrapf(err, "failed to insert triples into %s", graph)
		}
	}
	return nil
}

func (s *SQLStore) Match(ctx context.Context, graph string, pattern rdf.Pattern) ([]rdf.Triple, error) {
	where := sq.Eq{"graph": graph}
	if !pattern.Subject.IsZero() {
		where["subject"] = pattern.Subject.String()
	}
	if !pattern.Predicate.IsZero() {
		where["predicate"] = pattern.Predicate.String()
	}
	if !pattern.Object.IsZero() {
		where["object"] = pattern.Object.String()
	}
	return s.query(ctx, sq.Select("id", "subject", "predicate", "object").
		From("quads").
		Where(where).
		OrderBy("id"))
}

func (s *SQLStore) Count(ctx context.Context, graph string) (int, error) {
	query, args, err := sq.Select("COUNT(*)").From("quads").Where(sq.Eq{"graph": graph}).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "failed to build count")
	}
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrapf(err, "failed to count triples in %s", graph)
	}
	return count, nil
}

func (s *SQLStore) Page(ctx context.Context, graph string, limit, offset int) ([]rdf.Triple, error) {
	if limit <= 0 {
		return nil, errors.Newf("page limit must be positive, got %d", limit)
	}
	if offset < 0 {
		return nil, errors.Newf("page offset must not be negative, got %d", offset)
	}
	return s.query(ctx, sq.Select("id", "subject", "predicate", "object").
		From("quads").
		Where(sq.Eq{"graph": graph}).
		OrderBy("id").
		Limit(uint64(limit)).
		Offset(uint64(offset)))
}

func (s *SQLStore) Merge(ctx context.Context, src, dst string) error {
	selectSrc := sq.Select().
		Column(sq.Expr("?", dst)).
		Columns("subject", "predicate", "object").
		From("quads").
		Where(sq.Eq{"graph": src}).
		OrderBy("id")
	query, args, err := sq.Insert("quads").
		Options("OR IGNORE").
		Columns("graph", "subject", "predicate", "object").
		Select(selectSrc).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build merge")
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "failed to merge %s into %s", src, dst)
	}
	added, _ := res.RowsAffected()
	s.log.Infow("Merged graph", "source", src, "graph", dst, "count", added, "symbol", sym.DB)
	return nil
}

func (s *SQLStore) Drop(ctx context.Context, graph string) error {
	query, args, err := sq.Delete("quads").Where(sq.Eq{"graph": graph}).ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build drop")
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrapf(err, "failed to drop %s", graph)
	}
	return nil
}

func (s *SQLStore) Rewrite(ctx context.Context, graph, fromPrefix, toPrefix string) error {
	if fromPrefix == "" || fromPrefix == toPrefix {
		return nil
	}
	// LIKE treats _ as a wildcard, so candidates are re-checked below.
	like := "<" + escapeLike(fromPrefix) + "%"
	ids, triples, err := s.rows(ctx, sq.Select("id", "subject", "predicate", "object").
		From("quads").
		Where(sq.And{
			sq.Eq{"graph": graph},
			sq.Or{sq.Like{"predicate": like}, sq.Like{"object": like}},
		}).
		OrderBy("id"))
	if err != nil {
		return err
	}

	var staleIDs []int64
	var rewritten []rdf.Triple
	for i, t := range triples {
		if nt, changed := rewriteTriple(t, fromPrefix, toPrefix); changed {
			staleIDs = append(staleIDs, ids[i])
			rewritten = append(rewritten, nt)
		}
	}
	if len(staleIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for start := 0; start < len(staleIDs); start += insertChunk {
		end := min(start+insertChunk, len(staleIDs))
		query, args, err := sq.Delete("quads").Where(sq.Eq{"id": staleIDs[start:end]}).ToSql()
		if err != nil {
			return errors.Wrap(err, "failed to build delete")
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrapf(err, "failed to delete rewritten triples in %s", graph)
		}
	}
	if err := insertTriples(ctx, tx, graph, rewritten); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit rewrite")
	}
	s.log.Debugw("Rewrote namespace", "graph", graph, "from", fromPrefix, "to", toPrefix, "count", len(rewritten), "symbol", sym.DB)
	return nil
}

func (s *SQLStore) query(ctx context.Context, b sq.SelectBuilder) ([]rdf.Triple, error) {
	_, triples, err := s.rows(ctx, b)
	return triples, err
}

// rows reads the whole result before returning so the connection is free
// for the next statement.
func (s *SQLStore) rows(ctx context.Context, b sq.SelectBuilder) ([]int64, []rdf.Triple, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to build query")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to query quads")
	}
	defer rows.Close()

	var ids []int64
	var triples []rdf.Triple
	for rows.Next() {
		var id int64
		var subject, predicate, object string
		if err := rows.Scan(&id, &subject, &predicate, &object); err != nil {
			return nil, nil, errors.Wrap(err, "failed to scan quad")
		}
		t, err := decodeRow(subject, predicate, object)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "corrupt quad %d", id)
		}
		ids = append(ids, id)
		triples = append(triples, t)
	}
	return ids, triples, errors.Wrap(rows.Err(), "failed to iterate quads")
}

func decodeRow(subject, predicate, object string) (rdf.Triple, error) {
	s, err := rdf.ParseTerm(subject)
	if err != nil {
		return rdf.Triple{}, err
	}
	p, err := rdf.ParseTerm(predicate)
	if err != nil {
		return rdf.Triple{}, err
	}
	o, err := rdf.ParseTerm(object)
	if err != nil {
		return rdf.Triple{}, err
	}
	return rdf.T(s, p, o), nil
}

func escapeLike(s string) string {
	return strings.ReplaceAll(s, "%", "_")
}
