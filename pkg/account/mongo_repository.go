package account

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	accountsCollection = "accounts"
	emailsCollection   = "emails"
)

// MongoRepository implements Repository on two collections, with IDs stored
// as strings.
type MongoRepository struct {
	accounts *mongo.Collection
	emails   *mongo.Collection
}

type accountDoc struct {
	ID                string     `bson:"_id"`
	Username          string     `bson:"username,omitempty"`
	EncryptedPassword string     `bson:"encrypted_password"`
	DisabledAt        *time.Time `bson:"disabled_at,omitempty"`
	CreatedAt         time.Time  `bson:"created_at"`
	UpdatedAt         time.Time  `bson:"updated_at"`
}

type emailDoc struct {
	ID                  string     `bson:"_id"`
	AccountID           string     `bson:"account_id"`
	Address             string     `bson:"address"`
	UnconfirmedAddress  string     `bson:"unconfirmed_address,omitempty"`
	Primary             bool       `bson:"primary"`
	ConfirmedAt         *time.Time `bson:"confirmed_at,omitempty"`
	ConfirmationToken   string     `bson:"confirmation_token,omitempty"`
	ConfirmationSentAt  *time.Time `bson:"confirmation_sent_at,omitempty"`
	ResetPasswordToken  string     `bson:"reset_password_token,omitempty"`
	ResetPasswordSentAt *time.Time `bson:"reset_password_sent_at,omitempty"`
	CreatedAt           time.Time  `bson:"created_at"`
	UpdatedAt           time.Time  `bson:"updated_at"`
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		accounts: db.Collection(accountsCollection),
		emails:   db.Collection(emailsCollection),
	}
}

// mongoUniqueIndexes maps index names to the field reported as taken.
var mongoUniqueIndexes = map[string]string{
	"accounts_username_key":           "username",
	"emails_address_key":              "email",
	"emails_confirmation_token_key":   AttrConfirmationToken,
	"emails_reset_password_token_key": AttrResetPasswordToken,
}

// EnsureIndexes creates the unique indexes the repository relies on.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	stringOnly := func(field string) bson.M {
		return bson.M{field: bson.M{"$type": "string"}}
	}
	_, err := r.accounts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetName("accounts_username_key").SetUnique(true).SetPartialFilterExpression(stringOnly("username")),
	})
	if err != nil {
		return err
	}
	_, err = r.emails.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "address", Value: 1}},
			Options: options.Index().SetName("emails_address_key").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: AttrConfirmationToken, Value: 1}},
			Options: options.Index().SetName("emails_confirmation_token_key").SetUnique(true).SetPartialFilterExpression(stringOnly(AttrConfirmationToken)),
		},
		{
			Keys:    bson.D{{Key: AttrResetPasswordToken, Value: 1}},
			Options: options.Index().SetName("emails_reset_password_token_key").SetUnique(true).SetPartialFilterExpression(stringOnly(AttrResetPasswordToken)),
		},
		{
			Keys:    bson.D{{Key: AttrAccountID, Value: 1}},
			Options: options.Index().SetName("emails_account_id_idx"),
		},
	})
	return err
}

func translateMongoError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	msg := err.Error()
	for index, field := range mongoUniqueIndexes {
		if strings.Contains(msg, index) {
			return newTakenError(field)
		}
	}
	return err
}

func (r *MongoRepository) CreateAccount(ctx context.Context, acct *Account) error {
	if _, err := r.accounts.InsertOne(ctx, toAccountDoc(acct)); err != nil {
		return translateMongoError(err)
	}
	acct.persisted = true
	return nil
}

func (r *MongoRepository) UpdateAccount(ctx context.Context, acct *Account) error {
	res, err := r.accounts.ReplaceOne(ctx, bson.M{"_id": acct.ID.String()}, toAccountDoc(acct))
	if err != nil {
		return translateMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *MongoRepository) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	return r.findAccount(ctx, bson.M{"_id": id.String()})
}

func (r *MongoRepository) FindAccount(ctx context.Context, conds Conditions) (*Account, error) {
	acctConds, emailConds, err := conds.split()
	if err != nil {
		return nil, err
	}
	filter, ok := mongoFilter(acctConds)
	if !ok {
		return nil, ErrAccountNotFound
	}
	if len(emailConds) > 0 {
		emailFilter, ok := mongoFilter(emailConds)
		if !ok {
			return nil, ErrAccountNotFound
		}
		ids, err := r.emails.Distinct(ctx, AttrAccountID, emailFilter)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, ErrAccountNotFound
		}
		filter = bson.M{"$and": bson.A{filter, bson.M{"_id": bson.M{"$in": ids}}}}
	}
	return r.findAccount(ctx, filter)
}

func (r *MongoRepository) findAccount(ctx context.Context, filter interface{}) (*Account, error) {
	var doc accountDoc
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})
	err := r.accounts.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toAccount()
}

func (r *MongoRepository) SaveEmail(ctx context.Context, rec *EmailRecord) error {
	doc := toEmailDoc(rec)
	_, err := r.emails.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return translateMongoError(err)
}

func (r *MongoRepository) DeleteEmail(ctx context.Context, id uuid.UUID) error {
	res, err := r.emails.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrEmailNotFound
	}
	return nil
}

func (r *MongoRepository) FindEmail(ctx context.Context, conds Conditions) (*EmailRecord, error) {
	if err := conds.validateEmail(); err != nil {
		return nil, err
	}
	filter, ok := mongoFilter(conds)
	if !ok {
		return nil, ErrEmailNotFound
	}

	var doc emailDoc
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	err := r.emails.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrEmailNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toEmail()
}

func (r *MongoRepository) ListEmails(ctx context.Context, accountID uuid.UUID) ([]*EmailRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.emails.Find(ctx, bson.M{AttrAccountID: accountID.String()}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []emailDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	emails := make([]*EmailRecord, 0, len(docs))
	for _, doc := range docs {
		rec, err := doc.toEmail()
		if err != nil {
			return nil, err
		}
		emails = append(emails, rec)
	}
	return emails, nil
}

// mongoFilter converts conditions to a query document. ok is false when a
// value cannot match its field type.
func mongoFilter(conds Conditions) (bson.M, bool) {
	filter := bson.M{}
	for _, cond := range conds {
		field := cond.Attribute
		if field == AttrID {
			field = "_id"
		}
		switch cond.Attribute {
		case AttrPrimary:
			b, err := strconv.ParseBool(cond.Value)
			if err != nil {
				return nil, false
			}
			filter[field] = b
		case AttrID, AttrAccountID:
			id, err := uuid.Parse(cond.Value)
			if err != nil {
				return nil, false
			}
			filter[field] = id.String()
		default:
			if cond.Value == "" {
				filter[field] = bson.M{"$in": bson.A{nil, ""}}
			} else {
				filter[field] = cond.Value
			}
		}
	}
	return filter, true
}

func toAccountDoc(acct *Account) accountDoc {
	return accountDoc{
		ID:                acct.ID.String(),
		Username:          acct.Username,
		EncryptedPassword: acct.EncryptedPassword,
		DisabledAt:        acct.DisabledAt,
		CreatedAt:         acct.CreatedAt,
		UpdatedAt:         acct.UpdatedAt,
	}
}

func (d accountDoc) toAccount() (*Account, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	return &Account{
		ID:                id,
		Username:          d.Username,
		EncryptedPassword: d.EncryptedPassword,
		DisabledAt:        d.DisabledAt,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
		persisted:         true,
	}, nil
}

func toEmailDoc(rec *EmailRecord) emailDoc {
	return emailDoc{
		ID:                  rec.ID.String(),
		AccountID:           rec.AccountID.String(),
		Address:             rec.Address,
		UnconfirmedAddress:  rec.UnconfirmedAddress,
		Primary:             rec.Primary,
		ConfirmedAt:         rec.ConfirmedAt,
		ConfirmationToken:   rec.ConfirmationToken,
		ConfirmationSentAt:  rec.ConfirmationSentAt,
		ResetPasswordToken:  rec.ResetPasswordToken,
		ResetPasswordSentAt: rec.ResetPasswordSentAt,
		CreatedAt:           rec.CreatedAt,
		UpdatedAt:           rec.UpdatedAt,
	}
}

func (d emailDoc) toEmail() (*EmailRecord, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	accountID, err := uuid.Parse(d.AccountID)
	if err != nil {
		return nil, err
	}
	rec := &EmailRecord{
		ID:                  id,
		AccountID:           accountID,
		Address:             d.Address,
		UnconfirmedAddress:  d.UnconfirmedAddress,
		Primary:             d.Primary,
		ConfirmedAt:         d.ConfirmedAt,
		ConfirmationToken:   d.ConfirmationToken,
		ConfirmationSentAt:  d.ConfirmationSentAt,
		ResetPasswordToken:  d.ResetPasswordToken,
		ResetPasswordSentAt: d.ResetPasswordSentAt,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
	rec.markPersisted()
	return rec, nil
}
