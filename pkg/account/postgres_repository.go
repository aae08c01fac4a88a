package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"github.com/tendant/simple-idm-multiemail/pkg/account/migrations"
	"github.com/tendant/simple-idm-multiemail/pkg/utils"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresRepository implements Repository on the accounts and emails tables.
type PostgresRepository struct {
	db DBTX
}

func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

const pgUniqueViolation = "23505"

// uniqueIndexFields maps unique index names to the field reported as taken.
var uniqueIndexFields = map[string]string{
	"accounts_username_key":           "username",
	"emails_address_key":              "email",
	"emails_confirmation_token_key":   AttrConfirmationToken,
	"emails_reset_password_token_key": AttrResetPasswordToken,
}

func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		if field, ok := uniqueIndexFields[pgErr.ConstraintName]; ok {
			return newTakenError(field)
		}
	}
	return err
}

const accountColumns = "a.id, a.username, a.encrypted_password, a.disabled_at, a.created_at, a.updated_at"

const emailColumns = `id, account_id, address, unconfirmed_address, "primary", confirmed_at,
	confirmation_token, confirmation_sent_at, reset_password_token, reset_password_sent_at, created_at, updated_at`

func (r *PostgresRepository) CreateAccount(ctx context.Context, acct *Account) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (id, username, encrypted_password, disabled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		acct.ID, utils.ToNullString(acct.Username), acct.EncryptedPassword, acct.DisabledAt, acct.CreatedAt, acct.UpdatedAt)
	if err != nil {
		return translatePgError(err)
	}
	acct.persisted = true
	return nil
}

func (r *PostgresRepository) UpdateAccount(ctx context.Context, acct *Account) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET username = $2, encrypted_password = $3, disabled_at = $4, updated_at = $5
		WHERE id = $1`,
		acct.ID, utils.ToNullString(acct.Username), acct.EncryptedPassword, acct.DisabledAt, acct.UpdatedAt)
	if err != nil {
		return translatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *PostgresRepository) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	row := r.db.QueryRow(ctx, "SELECT "+accountColumns+" FROM accounts a WHERE a.id = $1", id)
	return scanAccount(row)
}

func (r *PostgresRepository) FindAccount(ctx context.Context, conds Conditions) (*Account, error) {
	acctConds, emailConds, err := conds.split()
	if err != nil {
		return nil, err
	}

	var where []string
	var args []interface{}
	for _, cond := range acctConds {
		clause, arg, ok := sqlCondition("a", cond)
		if !ok {
			return nil, ErrAccountNotFound
		}
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if len(emailConds) > 0 {
		var sub []string
		for _, cond := range emailConds {
			clause, arg, ok := sqlCondition("e", cond)
			if !ok {
				return nil, ErrAccountNotFound
			}
			args = append(args, arg)
			sub = append(sub, fmt.Sprintf(clause, len(args)))
		}
		where = append(where, "EXISTS (SELECT 1 FROM emails e WHERE e.account_id = a.id AND "+strings.Join(sub, " AND ")+")")
	}
	if len(where) == 0 {
		where = append(where, "TRUE")
	}

	query := "SELECT " + accountColumns + " FROM accounts a WHERE " + strings.Join(where, " AND ") + " ORDER BY a.created_at LIMIT 1"
	return scanAccount(r.db.QueryRow(ctx, query, args...))
}

func (r *PostgresRepository) SaveEmail(ctx context.Context, rec *EmailRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO emails (`+emailColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			address = EXCLUDED.address,
			unconfirmed_address = EXCLUDED.unconfirmed_address,
			"primary" = EXCLUDED."primary",
			confirmed_at = EXCLUDED.confirmed_at,
			confirmation_token = EXCLUDED.confirmation_token,
			confirmation_sent_at = EXCLUDED.confirmation_sent_at,
			reset_password_token = EXCLUDED.reset_password_token,
			reset_password_sent_at = EXCLUDED.reset_password_sent_at,
			updated_at = EXCLUDED.updated_at`,
		rec.ID, rec.AccountID, rec.Address, utils.ToNullString(rec.UnconfirmedAddress), rec.Primary, rec.ConfirmedAt,
		utils.ToNullString(rec.ConfirmationToken), rec.ConfirmationSentAt,
		utils.ToNullString(rec.ResetPasswordToken), rec.ResetPasswordSentAt,
		rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return translatePgError(err)
	}
	return nil
}

func (r *PostgresRepository) DeleteEmail(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM emails WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEmailNotFound
	}
	return nil
}

func (r *PostgresRepository) FindEmail(ctx context.Context, conds Conditions) (*EmailRecord, error) {
	if err := conds.validateEmail(); err != nil {
		return nil, err
	}

	var where []string
	var args []interface{}
	for _, cond := range conds {
		clause, arg, ok := sqlCondition("", cond)
		if !ok {
			return nil, ErrEmailNotFound
		}
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if len(where) == 0 {
		where = append(where, "TRUE")
	}

	query := "SELECT " + emailColumns + " FROM emails WHERE " + strings.Join(where, " AND ") + " ORDER BY created_at, id LIMIT 1"
	rec, err := scanEmail(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEmailNotFound
	}
	return rec, err
}

func (r *PostgresRepository) ListEmails(ctx context.Context, accountID uuid.UUID) ([]*EmailRecord, error) {
	rows, err := r.db.Query(ctx, "SELECT "+emailColumns+" FROM emails WHERE account_id = $1 ORDER BY created_at, id", accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []*EmailRecord
	for rows.Next() {
		rec, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, rec)
	}
	return emails, rows.Err()
}

// sqlCondition renders cond as a clause with a %d placeholder for its
// argument. ok is false when the value cannot match the column type.
func sqlCondition(alias string, cond Condition) (clause string, arg interface{}, ok bool) {
	column := cond.Attribute
	if column == AttrPrimary {
		column = `"primary"`
	}
	if alias != "" {
		column = alias + "." + column
	}

	switch cond.Attribute {
	case AttrID, AttrAccountID:
		id, err := uuid.Parse(cond.Value)
		if err != nil {
			return "", nil, false
		}
		return column + " = $%d", id, true
	case AttrPrimary:
		b, err := strconv.ParseBool(cond.Value)
		if err != nil {
			return "", nil, false
		}
		return column + " = $%d", b, true
	}
	if cond.Value == "" {
		return column + " IS NOT DISTINCT FROM NULLIF($%d, '')", cond.Value, true
	}
	return column + " = $%d", cond.Value, true
}

func scanAccount(row pgx.Row) (*Account, error) {
	var acct Account
	var username sql.NullString
	err := row.Scan(&acct.ID, &username, &acct.EncryptedPassword, &acct.DisabledAt, &acct.CreatedAt, &acct.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	acct.Username = utils.FromNullString(username)
	acct.persisted = true
	return &acct, nil
}

func scanEmail(row pgx.Row) (*EmailRecord, error) {
	var rec EmailRecord
	var unconfirmed, confirmationToken, resetToken sql.NullString
	err := row.Scan(&rec.ID, &rec.AccountID, &rec.Address, &unconfirmed, &rec.Primary, &rec.ConfirmedAt,
		&confirmationToken, &rec.ConfirmationSentAt, &resetToken, &rec.ResetPasswordSentAt,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.UnconfirmedAddress = utils.FromNullString(unconfirmed)
	rec.ConfirmationToken = utils.FromNullString(confirmationToken)
	rec.ResetPasswordToken = utils.FromNullString(resetToken)
	rec.markPersisted()
	return &rec, nil
}
