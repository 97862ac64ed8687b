// Package store persists scoreboards in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2"
	trmcontext "github.com/avito-tech/go-transaction-manager/trm/v2/context"
	trmmanager "github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/naka-gawa/github-scorecard/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

var ctxGetter = trmsql.DefaultCtxGetter

// Record is a stored scoreboard row.
type Record struct {
	ID int64
	domain.Scoreboard
	UpdatedAt time.Time
}

// Store reads and writes the scoreboards table.
type Store struct {
	db     *sql.DB
	tm     trm.Manager
	logger *zap.Logger
}

// Open connects to the database at url and verifies the connection.
func Open(ctx context.Context, url string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return New(db, logger), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	mgr := trmmanager.Must(
		trmsql.NewDefaultFactory(db),
		trmmanager.WithCtxManager(trmcontext.DefaultManager),
	)
	return &Store{db: db, tm: mgr, logger: logger}
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{s.logger.Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Save inserts one scoreboard and returns its id.
func (s *Store) Save(ctx context.Context, board domain.Scoreboard) (int64, error) {
	scoreData, err := json.Marshal(board.Tally)
	if err != nil {
		return 0, fmt.Errorf("encode score data: %w", err)
	}
	configData, err := json.Marshal(board.Policy)
	if err != nil {
		return 0, fmt.Errorf("encode config data: %w", err)
	}
	createdAt := board.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	const q = `
	INSERT INTO scoreboards (run_id, repository_name, score_data, config_data, score_range, partial, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	RETURNING id;`

	var id int64
	err = s.tm.Do(ctx, func(ctx context.Context) error {
		tr := ctxGetter.DefaultTrOrDB(ctx, s.db)
		return tr.QueryRowContext(ctx, q,
			board.RunID.String(),
			board.Repository.String(),
			scoreData,
			configData,
			board.RangeLabel,
			board.Partial,
			createdAt.UTC(),
		).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("save scoreboard: %w", err)
	}
	s.logger.Debug("scoreboard saved", zap.Int64("id", id), zap.Stringer("repo", board.Repository))
	return id, nil
}

// List returns every stored scoreboard, oldest first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	const q = `
	SELECT id, run_id, repository_name, score_data, config_data, score_range, partial, created_at, updated_at
	FROM scoreboards
	ORDER BY id;`

	tr := ctxGetter.DefaultTrOrDB(ctx, s.db)
	rows, err := tr.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list scoreboards: %w", err)
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var (
			r          Record
			repoName   string
			scoreData  []byte
			configData []byte
		)
		if err := rows.Scan(&r.ID, &r.RunID, &repoName, &scoreData, &configData, &r.RangeLabel, &r.Partial, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		if r.Repository, err = domain.ParseRepositoryURL(repoName); err != nil {
			return nil, fmt.Errorf("record %d: %w", r.ID, err)
		}
		if err := json.Unmarshal(scoreData, &r.Tally); err != nil {
			return nil, fmt.Errorf("record %d score data: %w", r.ID, err)
		}
		if err := json.Unmarshal(configData, &r.Policy); err != nil {
			return nil, fmt.Errorf("record %d config data: %w", r.ID, err)
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

type gooseLogger struct {
	l *zap.SugaredLogger
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.l.Infof(strings.TrimSpace(format), v...)
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.l.Fatalf(strings.TrimSpace(format), v...)
}
