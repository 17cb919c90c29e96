package repositories

import (
	"database/sql"
	"strings"
	"time"

	"essayhub/internal/models"
)

type UserRepository interface {
	Create(user *models.User) error
	GetByID(id int64) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id int64) error
	List(limit, offset int) ([]*models.User, error)
	GetCount() (int, error)
	GetCountByRole(roleID int) (int, error)

	Approve(userID int64) error

	// refresh helpers
	UpdateRefresh(userID int64, token string, expiresAt time.Time) error
	RotateRefresh(oldToken, newToken string, newExpiresAt time.Time) (*models.User, error)
	GetByRefreshToken(token string) (*models.User, error)
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

const userColumns = `
	id, name, email, password_hash, role_id, country, approved,
	refresh_token, refresh_expires_at, refresh_revoked, created_at
`

func (r *userRepository) scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var (
		rt  sql.NullString
		rte sql.NullTime
		rr  sql.NullBool
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.RoleID, &u.Country, &u.Approved,
		&rt, &rte, &rr, &u.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if rt.Valid {
		s := rt.String
		u.RefreshToken = &s
	}
	if rte.Valid {
		t := rte.Time
		u.RefreshExpiresAt = &t
	}
	if rr.Valid {
		u.RefreshRevoked = rr.Bool
	}
	return u, nil
}

func (r *userRepository) Create(user *models.User) error {
	const q = `
		INSERT INTO users (name, email, password_hash, role_id, country, approved, created_at)
		VALUES ($1, LOWER($2), $3, $4, $5, $6, NOW())
		RETURNING id, created_at
	`
	return r.DB.QueryRow(q,
		user.Name,
		strings.TrimSpace(user.Email),
		user.PasswordHash,
		user.RoleID,
		user.Country,
		user.Approved,
	).Scan(&user.ID, &user.CreatedAt)
}

func (r *userRepository) GetByID(id int64) (*models.User, error) {
	return r.scanUser(r.DB.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanUser(r.DB.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *userRepository) Update(user *models.User) error {
	const q = `
		UPDATE users SET name=$1, email=LOWER($2), password_hash=$3, role_id=$4,
			country=$5, approved=$6
		WHERE id=$7
	`
	_, err := r.DB.Exec(q,
		user.Name, strings.TrimSpace(user.Email), user.PasswordHash, user.RoleID,
		user.Country, user.Approved, user.ID,
	)
	return err
}

// Delete removes the user; verification_codes rows go with it (ON DELETE CASCADE).
func (r *userRepository) Delete(id int64) error {
	_, err := r.DB.Exec(`DELETE FROM users WHERE id = $1`, id)
	return err
}

func (r *userRepository) List(limit, offset int) ([]*models.User, error) {
	rows, err := r.DB.Query(
		`SELECT `+userColumns+` FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		var (
			rt  sql.NullString
			rte sql.NullTime
			rr  sql.NullBool
		)
		if err := rows.Scan(
			&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.RoleID, &u.Country, &u.Approved,
			&rt, &rte, &rr, &u.CreatedAt,
		); err != nil {
			return nil, err
		}
		if rt.Valid {
			s := rt.String
			u.RefreshToken = &s
		}
		if rte.Valid {
			t := rte.Time
			u.RefreshExpiresAt = &t
		}
		if rr.Valid {
			u.RefreshRevoked = rr.Bool
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *userRepository) GetCount() (int, error) {
	var c int
	err := r.DB.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&c)
	return c, err
}

func (r *userRepository) GetCountByRole(roleID int) (int, error) {
	var c int
	err := r.DB.QueryRow(`SELECT COUNT(*) FROM users WHERE role_id = $1`, roleID).Scan(&c)
	return c, err
}

func (r *userRepository) Approve(userID int64) error {
	res, err := r.DB.Exec(`UPDATE users SET approved = TRUE WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *userRepository) UpdateRefresh(userID int64, token string, expiresAt time.Time) error {
	_, err := r.DB.Exec(`
		UPDATE users SET refresh_token=$1, refresh_expires_at=$2, refresh_revoked=FALSE
		WHERE id=$3`, token, expiresAt, userID)
	return err
}

func (r *userRepository) RotateRefresh(oldToken, newToken string, newExpiresAt time.Time) (*models.User, error) {
	const q = `
		UPDATE users SET refresh_token=$1, refresh_expires_at=$2, refresh_revoked=FALSE
		WHERE refresh_token=$3 AND refresh_revoked=FALSE
		RETURNING ` + userColumns
	return r.scanUser(r.DB.QueryRow(q, newToken, newExpiresAt, oldToken))
}

func (r *userRepository) GetByRefreshToken(token string) (*models.User, error) {
	return r.scanUser(r.DB.QueryRow(`SELECT `+userColumns+` FROM users WHERE refresh_token = $1`, token))
}
