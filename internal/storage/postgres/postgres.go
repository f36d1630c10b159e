package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mwx2006/blessing-skin-server/internal/config"
	"github.com/mwx2006/blessing-skin-server/internal/models"
	"github.com/mwx2006/blessing-skin-server/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	dsn := dsn(cfg)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

func (r *PostgresRepo) SaveUser(ctx context.Context, u *models.User) (int64, error) {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (email, nickname, score, password_hash, permission, verified, ip, register_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING uid;
	`

	var uid int64

	err := r.pool.QueryRow(ctx, query,
		u.Email,
		u.Nickname,
		u.Score,
		string(u.PassHash),
		u.Permission,
		u.Verified,
		u.IP,
		u.RegisterAt,
	).Scan(&uid)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, storage.ErrUserExists
		}

		return 0, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return uid, nil
}

func (r *PostgresRepo) UserByEmail(ctx context.Context, email string) (models.User, error) {
	query := `
		SELECT uid, email, nickname, score, password_hash, permission, verified, ip, register_at
		FROM users
		WHERE email = $1 AND email <> '';
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PostgresRepo) UserByID(ctx context.Context, uid int64) (models.User, error) {
	query := `
		SELECT uid, email, nickname, score, password_hash, permission, verified, ip, register_at
		FROM users
		WHERE uid = $1;
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, uid))
}

func (r *PostgresRepo) UpdatePassword(ctx context.Context, uid int64, passHash []byte) error {
	query := `UPDATE users SET password_hash = $1 WHERE uid = $2`

	_, err := r.pool.Exec(ctx, query, string(passHash), uid)

	return err
}

func (r *PostgresRepo) SetVerified(ctx context.Context, uid int64, verified bool) error {
	query := `UPDATE users SET verified = $1 WHERE uid = $2`

	_, err := r.pool.Exec(ctx, query, verified, uid)

	return err
}

// CountRegistrationsByIP counts accounts whose registration source
// matches the given address, for the per-address registration quota.
func (r *PostgresRepo) CountRegistrationsByIP(ctx context.Context, ip string) (int, error) {
	query := `SELECT COUNT(*) FROM users WHERE ip = $1`

	var count int

	err := r.pool.QueryRow(ctx, query, ip).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *PostgresRepo) SavePlayer(ctx context.Context, p *models.Player) (int64, error) {
	const op = "storage.postgres.SavePlayer"

	query := `
		INSERT INTO players (uid, name)
		VALUES ($1, $2)
		RETURNING pid;
	`

	var pid int64

	err := r.pool.QueryRow(ctx, query, p.UID, p.Name).Scan(&pid)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, storage.ErrPlayerExists
		}

		return 0, fmt.Errorf("%s: failed to save player: %w", op, err)
	}

	return pid, nil
}

func (r *PostgresRepo) PlayerByName(ctx context.Context, name string) (models.Player, error) {
	query := `
		SELECT pid, uid, name
		FROM players
		WHERE name = $1;
	`

	var p models.Player

	err := r.pool.QueryRow(ctx, query, name).Scan(&p.PID, &p.UID, &p.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Player{}, storage.ErrPlayerNotFound
		}

		return models.Player{}, err
	}

	return p, nil
}

func (r *PostgresRepo) Options(ctx context.Context) (map[string]string, error) {
	query := `SELECT option_name, option_value FROM options`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	opts := make(map[string]string)

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		opts[name] = value
	}

	return opts, rows.Err()
}

func (r *PostgresRepo) SetOption(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO options (option_name, option_value)
		VALUES ($1, $2)
		ON CONFLICT (option_name) DO UPDATE SET option_value = EXCLUDED.option_value;
	`

	_, err := r.pool.Exec(ctx, query, key, value)

	return err
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func (r *PostgresRepo) scanUser(row pgx.Row) (models.User, error) {
	var (
		u        models.User
		passHash string
	)

	err := row.Scan(
		&u.UID,
		&u.Email,
		&u.Nickname,
		&u.Score,
		&passHash,
		&u.Permission,
		&u.Verified,
		&u.IP,
		&u.RegisterAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, err
	}

	u.PassHash = []byte(passHash)

	return u, nil
}

func dsn(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
