// Package mongo provides the MongoDB implementation of the composite store,
// backed by Grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readconcern"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/sentinel/application"
	"github.com/xraph/sentinel/audit"
	"github.com/xraph/sentinel/errs"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/policy"
	"github.com/xraph/sentinel/store"
	"github.com/xraph/sentinel/user"
)

// Collection name constants.
const (
	colUsers        = "sentinel_users"
	colApplications = "sentinel_applications"
	colAuditLogs    = "sentinel_audit_logs"
)

// DefaultAuditRetention is how long audit entries survive before the TTL
// index drops them.
const DefaultAuditRetention = 90 * 24 * time.Hour

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of the composite store.
type Store struct {
	db             *grove.DB
	mdb            *mongodriver.MongoDB
	auditRetention time.Duration
}

// Option configures the mongo store.
type Option func(*Store)

// WithAuditRetention sets the TTL applied to audit entries at Migrate time.
func WithAuditRetention(d time.Duration) Option {
	return func(s *Store) { s.auditRetention = d }
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB, opts ...Option) *Store {
	s := &Store{
		db:             db,
		mdb:            mongodriver.Unwrap(db),
		auditRetention: DefaultAuditRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates indexes for all collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range s.migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("sentinel/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InTransaction runs fn inside a MongoDB session with read concern local
// and write concern majority. The session travels through the callback
// context, so fn uses the same Store. Commit conflicts surface as
// errs.ErrTransient.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	client := s.mdb.Collection(colUsers).Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("sentinel: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Local()).
		SetWriteConcern(writeconcern.Majority())

	_, err = sess.WithTransaction(ctx, func(sc context.Context) (any, error) {
		return nil, fn(sc, s)
	}, txOpts)
	if err != nil {
		if isTransientTx(err) {
			return fmt.Errorf("%w: %v", errs.ErrTransient, err)
		}
		return err
	}
	return nil
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// isTransientTx checks for retryable transaction error labels.
func isTransientTx(err error) bool {
	var ce mongod.CommandError
	if errors.As(err, &ce) {
		return ce.HasErrorLabel("TransientTransactionError") ||
			ce.HasErrorLabel("UnknownTransactionCommitResult")
	}
	return false
}

func (s *Store) migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colUsers: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "roles", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		colApplications: {
			// At most one open application per user, enforced by the
			// database rather than trusted to application checks.
			{
				Keys: bson.D{{Key: "user_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{
					"status": bson.M{"$in": []string{
						string(application.StatusPending),
						string(application.StatusInReview),
					}},
				}),
			},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "role", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		colAuditLogs: {
			{
				Keys:    bson.D{{Key: "created_at", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(int32(s.auditRetention / time.Second)),
			},
			{Keys: bson.D{{Key: "subject_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "actor_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "event", Value: 1}}},
		},
	}
}

// ──────────────────────────────────────────────────
// User operations
// ──────────────────────────────────────────────────

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	t := now()
	u.CreatedAt = t
	u.UpdatedAt = t
	m := userToModel(u)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: user email %q already exists", errs.ErrStateConflict, u.Email)
		}
		return fmt.Errorf("sentinel: create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID id.UserID) (*user.User, error) {
	var m userModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": userID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("user %s: %w", userID, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("sentinel: get user: %w", err)
	}
	return userFromModel(&m), nil
}

func (s *Store) UpdateUser(ctx context.Context, u *user.User) error {
	u.UpdatedAt = now()
	m := userToModel(u)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sentinel: update user: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("user %s: %w", u.ID, errs.ErrNotFound)
	}
	return nil
}

func (s *Store) UpdateUserRoles(ctx context.Context, userID id.UserID, roles []policy.Role) error {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	u.Roles = append([]policy.Role(nil), roles...)
	return s.UpdateUser(ctx, u)
}

func (s *Store) AddUserRole(ctx context.Context, userID id.UserID, role policy.Role) error {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.HasRole(role) {
		return nil
	}
	u.Roles = append(u.Roles, role)
	return s.UpdateUser(ctx, u)
}

func (s *Store) SetRoleVerified(ctx context.Context, userID id.UserID, role policy.Role, at time.Time) error {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.RoleData == nil {
		u.RoleData = make(map[policy.Role]user.RoleData)
	}
	u.RoleData[role] = user.RoleData{Verified: true, VerifiedAt: &at}
	return s.UpdateUser(ctx, u)
}

func (s *Store) SetCustomPermissions(ctx context.Context, userID id.UserID, perms []policy.Permission) error {
	if len(perms) > user.MaxCustomPermissions {
		return fmt.Errorf("%w: at most %d custom permissions per user", errs.ErrValidation, user.MaxCustomPermissions)
	}
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	u.CustomPermissions = append([]policy.Permission(nil), perms...)
	return s.UpdateUser(ctx, u)
}

func (s *Store) ListUsers(ctx context.Context, filter *user.ListFilter) ([]*user.User, error) {
	var models []userModel
	f := bson.M{}
	if filter != nil {
		if filter.Role != "" {
			f["roles"] = string(filter.Role)
		}
		if filter.Status != "" {
			f["status"] = string(filter.Status)
		}
		if filter.Search != "" {
			f["email"] = bson.M{"$regex": filter.Search, "$options": "i"}
		}
	}
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "created_at", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("sentinel: list users: %w", err)
	}
	result := make([]*user.User, len(models))
	for i := range models {
		result[i] = userFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) DeleteUser(ctx context.Context, userID id.UserID) error {
	_, err := s.mdb.NewDelete((*userModel)(nil)).
		Filter(bson.M{"_id": userID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sentinel: delete user: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Application operations
// ──────────────────────────────────────────────────

func (s *Store) CreateApplication(ctx context.Context, a *application.Application) error {
	m, err := applicationToModel(a)
	if err != nil {
		return fmt.Errorf("sentinel: encode application: %w", err)
	}
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: user %s already has an open application", errs.ErrStateConflict, a.UserID)
		}
		return fmt.Errorf("sentinel: create application: %w", err)
	}
	return nil
}

func (s *Store) GetApplication(ctx context.Context, appID id.ApplicationID) (*application.Application, error) {
	var m applicationModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": appID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("application %s: %w", appID, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("sentinel: get application: %w", err)
	}
	return applicationFromModel(&m)
}

func (s *Store) GetOpenApplication(ctx context.Context, userID id.UserID) (*application.Application, error) {
	var m applicationModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{
			"user_id": userID.String(),
			"status": bson.M{"$in": []string{
				string(application.StatusPending),
				string(application.StatusInReview),
			}},
		}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("open application for user %s: %w", userID, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("sentinel: get open application: %w", err)
	}
	return applicationFromModel(&m)
}

func (s *Store) UpdateApplication(ctx context.Context, a *application.Application) error {
	a.UpdatedAt = now()
	m, err := applicationToModel(a)
	if err != nil {
		return fmt.Errorf("sentinel: encode application: %w", err)
	}
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sentinel: update application: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("application %s: %w", a.ID, errs.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteApplication(ctx context.Context, appID id.ApplicationID) error {
	_, err := s.mdb.NewDelete((*applicationModel)(nil)).
		Filter(bson.M{"_id": appID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sentinel: delete application: %w", err)
	}
	return nil
}

func applicationFilter(filter *application.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if !filter.UserID.IsNil() {
		f["user_id"] = filter.UserID.String()
	}
	if filter.Role != "" {
		f["role"] = string(filter.Role)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		f["status"] = bson.M{"$in": statuses}
	}
	if filter.UpdatedBefore != nil {
		f["updated_at"] = bson.M{"$lt": *filter.UpdatedBefore}
	}
	return f
}

func (s *Store) ListApplications(ctx context.Context, filter *application.ListFilter) ([]*application.Application, error) {
	var models []applicationModel
	q := s.mdb.NewFind(&models).
		Filter(applicationFilter(filter)).
		Sort(bson.D{{Key: "created_at", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Skip(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("sentinel: list applications: %w", err)
	}
	result := make([]*application.Application, len(models))
	for i := range models {
		a, err := applicationFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("sentinel: decode application %s: %w", models[i].ID, err)
		}
		result[i] = a
	}
	return result, nil
}

func (s *Store) CountApplications(ctx context.Context, filter *application.ListFilter) (int64, error) {
	count, err := s.mdb.NewFind((*applicationModel)(nil)).
		Filter(applicationFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("sentinel: count applications: %w", err)
	}
	return count, nil
}

func (s *Store) CountApplicationsByRoleStatus(ctx context.Context) ([]application.StatusCount, error) {
	pipeline := mongod.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"role": "$role", "status": "$status"},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id.role", Value: 1}, {Key: "_id.status", Value: 1}}}},
	}
	cursor, err := s.mdb.Collection(colApplications).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("sentinel: aggregate application stats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID struct {
			Role   string `bson:"role"`
			Status string `bson:"status"`
		} `bson:"_id"`
		Count int64 `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("sentinel: decode application stats: %w", err)
	}
	result := make([]application.StatusCount, len(rows))
	for i, row := range rows {
		result[i] = application.StatusCount{
			Role:   policy.Role(row.ID.Role),
			Status: application.Status(row.ID.Status),
			Count:  row.Count,
		}
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Audit operations
// ──────────────────────────────────────────────────

func (s *Store) CreateAuditEntry(ctx context.Context, e *audit.Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	m := auditToModel(e)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("sentinel: create audit entry: %w", err)
	}
	return nil
}

func (s *Store) GetAuditEntry(ctx context.Context, entryID string) (*audit.Entry, error) {
	var m auditModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": entryID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("audit entry %s: %w", entryID, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("sentinel: get audit entry: %w", err)
	}
	return auditFromModel(&m), nil
}

func auditQueryFilter(filter *audit.QueryFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.Event != "" {
		f["event"] = filter.Event
	}
	if !filter.ActorID.IsNil() {
		f["actor_id"] = filter.ActorID.String()
	}
	if !filter.SubjectID.IsNil() {
		f["subject_id"] = filter.SubjectID.String()
	}
	if filter.TargetID != "" {
		f["target_id"] = filter.TargetID
	}
	if filter.Decision != "" {
		f["decision"] = filter.Decision
	}
	created := bson.M{}
	if filter.After != nil {
		created["$gt"] = *filter.After
	}
	if filter.Before != nil {
		created["$lt"] = *filter.Before
	}
	if len(created) > 0 {
		f["created_at"] = created
	}
	return f
}

func (s *Store) ListAuditEntries(ctx context.Context, filter *audit.QueryFilter) ([]*audit.Entry, error) {
	var models []auditModel
	q := s.mdb.NewFind(&models).
		Filter(auditQueryFilter(filter)).
		Sort(bson.D{{Key: "created_at", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Skip(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("sentinel: list audit entries: %w", err)
	}
	result := make([]*audit.Entry, len(models))
	for i := range models {
		result[i] = auditFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountAuditEntries(ctx context.Context, filter *audit.QueryFilter) (int64, error) {
	count, err := s.mdb.NewFind((*auditModel)(nil)).
		Filter(auditQueryFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("sentinel: count audit entries: %w", err)
	}
	return count, nil
}

func (s *Store) PurgeAuditEntries(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*auditModel)(nil)).
		Filter(bson.M{"created_at": bson.M{"$lt": before}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("sentinel: purge audit entries: %w", err)
	}
	return res.DeletedCount(), nil
}
