package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/prn-tf/warden/internal/domain"
	"github.com/prn-tf/warden/internal/identity"
	"github.com/prn-tf/warden/internal/metrics"
	"github.com/prn-tf/warden/internal/pkg/crypto"
	"github.com/prn-tf/warden/internal/pool"
)

const (
	selectUserColumns = `SELECT user_id, username, account_level FROM users`

	queryInsertUser     = `INSERT INTO users (username, hashed_password, account_level) VALUES (?, ?, ?)`
	querySelectByID     = selectUserColumns + ` WHERE user_id = ?`
	querySelectAll      = selectUserColumns + ` ORDER BY user_id`
	queryCountUsers     = `SELECT COUNT(*) FROM users`
	queryDeleteByID     = `DELETE FROM users WHERE user_id = ?`
	queryUpdatePassword = `UPDATE users SET hashed_password = ? WHERE user_id = ?`
	queryUpdateLevel    = `UPDATE users SET account_level = ? WHERE user_id = ?`
)

// usernameQueries are the statements that match on username. Usernames are
// case-insensitive on every dialect: SQLite and MySQL through the column
// collation, PostgreSQL through a unique index on lower(username).
type usernameQueries struct {
	selectByUsername string
	selectByIDName   string
	selectCredential string
	deleteByUsername string
}

func usernameQueriesFor(d pool.Dialect) usernameQueries {
	match := `username = ?`
	if d == pool.DialectPostgres {
		match = `lower(username) = lower(?)`
	}
	return usernameQueries{
		selectByUsername: selectUserColumns + ` WHERE ` + match,
		selectByIDName:   selectUserColumns + ` WHERE user_id = ? AND ` + match,
		selectCredential: `SELECT user_id, username, account_level, hashed_password FROM users WHERE ` + match,
		deleteByUsername: `DELETE FROM users WHERE ` + match,
	}
}

// userRepository implements UserRepository on a pool.Accessor.
type userRepository struct {
	pool    pool.Accessor
	q       usernameQueries
	hasher  crypto.PasswordHasher
	levels  domain.AccountLevels
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewUserRepository creates a new user repository.
func NewUserRepository(
	p pool.Accessor,
	hasher crypto.PasswordHasher,
	levels domain.AccountLevels,
	logger zerolog.Logger,
	m *metrics.Metrics,
) UserRepository {
	return &userRepository{
		pool:    p,
		q:       usernameQueriesFor(p.Dialect()),
		hasher:  hasher,
		levels:  levels,
		logger:  logger.With().Str("service", "user_repository").Logger(),
		metrics: m,
	}
}

// Create creates a new user.
func (r *userRepository) Create(ctx context.Context, username, plaintext string, level domain.AccountLevel) (user User, err error) {
	defer func() { r.metrics.ObserveRepository("create", err) }()

	if err := identity.CheckCredentials(username, plaintext); err != nil {
		return User{}, err
	}
	if !identity.ValidateAccountLevel(level, r.levels) {
		return User{}, domain.NewDomainError(domain.ErrBadAccountLevel, "create", level.String())
	}

	// Hash before checkout so bcrypt time never holds a connection.
	hash, err := r.hasher.Hash(ctx, plaintext)
	if err != nil {
		return User{}, err
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return User{}, err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, queryInsertUser, username, hash, int16(level)); err != nil {
		return User{}, translate("create user", username, err)
	}

	user, err = scanUser(conn.QueryRow(ctx, r.q.selectByUsername, username))
	if err != nil {
		return User{}, translate("re-read created user", username, err)
	}

	r.logger.Info().
		Int64("user_id", user.ID()).
		Str("username", user.Username()).
		Stringer("account_level", user.AccountLevel()).
		Msg("user created")

	return user, nil
}

// FindByUsername retrieves a user and its stored hash.
func (r *userRepository) FindByUsername(ctx context.Context, username string) (cred Credential, err error) {
	defer func() { r.metrics.ObserveRepository("find_by_username", err) }()

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return Credential{}, err
	}
	defer conn.Release()

	var (
		id    int64
		name  string
		level int16
		hash  string
	)
	if err := conn.QueryRow(ctx, r.q.selectCredential, username).Scan(&id, &name, &level, &hash); err != nil {
		return Credential{}, translate("lookup by username", username, err)
	}

	return Credential{user: newUser(id, name, domain.AccountLevel(level)), hash: hash}, nil
}

// FindByID retrieves a user by ID.
func (r *userRepository) FindByID(ctx context.Context, id int64) (user User, err error) {
	defer func() { r.metrics.ObserveRepository("find_by_id", err) }()

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return User{}, err
	}
	defer conn.Release()

	user, err = scanUser(conn.QueryRow(ctx, querySelectByID, id))
	if err != nil {
		return User{}, translate("lookup by id", strconv.FormatInt(id, 10), err)
	}
	return user, nil
}

// FindByIDAndUsername retrieves a user matching both keys.
func (r *userRepository) FindByIDAndUsername(ctx context.Context, id int64, username string) (user User, err error) {
	defer func() { r.metrics.ObserveRepository("find_by_id_and_username", err) }()

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return User{}, err
	}
	defer conn.Release()

	user, err = scanUser(conn.QueryRow(ctx, r.q.selectByIDName, id, username))
	if err != nil {
		return User{}, translate("lookup by id and username", fmt.Sprintf("%d/%s", id, username), err)
	}
	return user, nil
}

// ListAll returns every user. Hashes are never selected.
func (r *userRepository) ListAll(ctx context.Context) (users []User, err error) {
	defer func() { r.metrics.ObserveRepository("list_all", err) }()

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, querySelectAll)
	if err != nil {
		return nil, translate("list users", "", err)
	}
	defer rows.Close()

	users = make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, translate("scan user", "", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("iterate users", "", err)
	}

	return users, nil
}

// Count returns the number of users.
func (r *userRepository) Count(ctx context.Context) (n int64, err error) {
	defer func() { r.metrics.ObserveRepository("count", err) }()

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	if err := conn.QueryRow(ctx, queryCountUsers).Scan(&n); err != nil {
		return 0, translate("count users", "", err)
	}
	return n, nil
}

// DeleteByUsername deletes a user by username.
func (r *userRepository) DeleteByUsername(ctx context.Context, username string) (n int64, err error) {
	defer func() { r.metrics.ObserveRepository("delete_by_username", err) }()

	n, err = r.exec(ctx, "delete by username", username, r.q.deleteByUsername, username)
	if err != nil {
		return 0, err
	}

	r.logger.Info().Str("username", username).Int64("affected", n).Msg("delete by username")
	return n, nil
}

// DeleteByID deletes a user by ID.
func (r *userRepository) DeleteByID(ctx context.Context, id int64) (n int64, err error) {
	defer func() { r.metrics.ObserveRepository("delete_by_id", err) }()

	n, err = r.exec(ctx, "delete by id", strconv.FormatInt(id, 10), queryDeleteByID, id)
	if err != nil {
		return 0, err
	}

	r.logger.Info().Int64("user_id", id).Int64("affected", n).Msg("delete by id")
	return n, nil
}

// UpdatePassword replaces the stored hash for a user.
func (r *userRepository) UpdatePassword(ctx context.Context, id int64, plaintext string) (err error) {
	defer func() { r.metrics.ObserveRepository("update_password", err) }()

	if res := identity.ValidatePassword(plaintext); !res.OK() {
		return domain.NewDomainError(domain.ErrBadPassword, res.String(), strconv.FormatInt(id, 10))
	}

	hash, err := r.hasher.Hash(ctx, plaintext)
	if err != nil {
		return err
	}

	n, err := r.exec(ctx, "update password", strconv.FormatInt(id, 10), queryUpdatePassword, hash, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewDomainError(domain.ErrUserNotFound, "update password", strconv.FormatInt(id, 10))
	}

	r.logger.Info().Int64("user_id", id).Msg("password updated")
	return nil
}

// SetAccountLevel changes a user's account level.
func (r *userRepository) SetAccountLevel(ctx context.Context, id int64, level domain.AccountLevel) (user User, err error) {
	defer func() { r.metrics.ObserveRepository("set_account_level", err) }()

	if !identity.ValidateAccountLevel(level, r.levels) {
		return User{}, domain.NewDomainError(domain.ErrBadAccountLevel, "set account level", level.String())
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return User{}, err
	}
	defer conn.Release()

	resource := strconv.FormatInt(id, 10)
	n, err := conn.Exec(ctx, queryUpdateLevel, int16(level), id)
	if err != nil {
		return User{}, translate("set account level", resource, err)
	}
	if n == 0 {
		return User{}, domain.NewDomainError(domain.ErrUserNotFound, "set account level", resource)
	}

	user, err = scanUser(conn.QueryRow(ctx, querySelectByID, id))
	if err != nil {
		return User{}, translate("re-read user", resource, err)
	}

	r.logger.Info().Int64("user_id", id).Stringer("account_level", level).Msg("account level changed")
	return user, nil
}

// exec runs a single statement on a fresh checkout.
func (r *userRepository) exec(ctx context.Context, op, resource, query string, args ...any) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	n, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return 0, translate(op, resource, err)
	}
	return n, nil
}

func scanUser(row pool.Row) (User, error) {
	var (
		id    int64
		name  string
		level int16
	)
	if err := row.Scan(&id, &name, &level); err != nil {
		return User{}, err
	}
	return newUser(id, name, domain.AccountLevel(level)), nil
}

// Ensure userRepository implements UserRepository.
var _ UserRepository = (*userRepository)(nil)
