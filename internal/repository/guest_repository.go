package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/receipt-printer/internal/model"
)

// GuestRepo stores guest tokens in MySQL. Usage counters live in their
// own table keyed by (token, day).
type GuestRepo struct{ DB *sql.DB }

func NewGuestRepo(db *sql.DB) *GuestRepo { return &GuestRepo{DB: db} }

var guestSchema = []string{
	`CREATE TABLE IF NOT EXISTS guest_tokens (
		token         VARCHAR(64)  NOT NULL PRIMARY KEY,
		name          VARCHAR(128) NOT NULL,
		created_at    DATETIME     NOT NULL,
		active        TINYINT(1)   NOT NULL DEFAULT 1,
		quota_per_day INT          NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS guest_usage (
		token VARCHAR(64) NOT NULL,
		day   CHAR(10)    NOT NULL,
		used  INT         NOT NULL DEFAULT 0,
		PRIMARY KEY (token, day),
		CONSTRAINT fk_guest_usage_token FOREIGN KEY (token) REFERENCES guest_tokens (token)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates the guest tables when they do not exist yet.
func (r *GuestRepo) EnsureSchema(ctx context.Context) error {
	for _, stmt := range guestSchema {
		if _, err := r.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure guest schema: %w", err)
		}
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *GuestRepo) Get(ctx context.Context, token string) (model.GuestToken, error) {
	return loadGuest(ctx, r.DB, token, false)
}

func (r *GuestRepo) List(ctx context.Context) (map[string]model.GuestToken, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT token, name, created_at, active, quota_per_day FROM guest_tokens")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]model.GuestToken{}
	for rows.Next() {
		var (
			tok     string
			rec     model.GuestToken
			created time.Time
		)
		if err := rows.Scan(&tok, &rec.Name, &created, &rec.Active, &rec.QuotaPerDay); err != nil {
			return nil, err
		}
		rec.Created = created.Unix()
		rec.Used = map[string]int{}
		out[tok] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	usage, err := r.DB.QueryContext(ctx, "SELECT token, day, used FROM guest_usage")
	if err != nil {
		return nil, err
	}
	defer usage.Close()
	for usage.Next() {
		var (
			tok, day string
			used     int
		)
		if err := usage.Scan(&tok, &day, &used); err != nil {
			return nil, err
		}
		if rec, ok := out[tok]; ok {
			rec.Used[day] = used
		}
	}
	return out, usage.Err()
}

func (r *GuestRepo) Insert(ctx context.Context, token string, rec model.GuestToken) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO guest_tokens (token, name, created_at, active, quota_per_day) VALUES (?,?,?,?,?)",
		token, rec.Name, rec.CreatedAt().UTC(), rec.Active, rec.QuotaPerDay)
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 { // ER_DUP_ENTRY
		return ErrConflict
	}
	return err
}

// Update locks the token row and its usage rows for the duration of the
// transaction, so two concurrent consumes of one token are serialized by
// the database. Both reads are locking reads: a plain SELECT would read
// from the transaction's snapshot instead of the latest committed counts.
func (r *GuestRepo) Update(ctx context.Context, token string, fn func(*model.GuestToken) error) (model.GuestToken, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.GuestToken{}, err
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := loadGuest(ctx, tx, token, true)
	if err != nil {
		return model.GuestToken{}, err
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return model.GuestToken{}, err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE guest_tokens SET name=?, active=?, quota_per_day=? WHERE token=?",
		next.Name, next.Active, next.QuotaPerDay, token); err != nil {
		return model.GuestToken{}, err
	}
	for day, used := range next.Used {
		if cur.Used[day] == used {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO guest_usage (token, day, used) VALUES (?,?,?) ON DUPLICATE KEY UPDATE used=VALUES(used)",
			token, day, used); err != nil {
			return model.GuestToken{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.GuestToken{}, err
	}
	return next, nil
}

func loadGuest(ctx context.Context, q querier, token string, forUpdate bool) (model.GuestToken, error) {
	query := "SELECT name, created_at, active, quota_per_day FROM guest_tokens WHERE token=? LIMIT 1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	var (
		rec     model.GuestToken
		created time.Time
	)
	err := q.QueryRowContext(ctx, query, token).Scan(&rec.Name, &created, &rec.Active, &rec.QuotaPerDay)
	if errors.Is(err, sql.ErrNoRows) {
		return model.GuestToken{}, ErrNotFound
	}
	if err != nil {
		return model.GuestToken{}, err
	}
	rec.Created = created.Unix()
	rec.Used = map[string]int{}

	usageQuery := "SELECT day, used FROM guest_usage WHERE token=?"
	if forUpdate {
		usageQuery += " FOR UPDATE"
	}
	rows, err := q.QueryContext(ctx, usageQuery, token)
	if err != nil {
		return model.GuestToken{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			day  string
			used int
		)
		if err := rows.Scan(&day, &used); err != nil {
			return model.GuestToken{}, err
		}
		rec.Used[day] = used
	}
	return rec, rows.Err()
}
