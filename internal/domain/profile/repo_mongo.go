package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type mongoRepository struct {
	users    *mongo.Collection
	profiles *mongo.Collection
}

// NewMongoRepository stores accounts in the users and profiles collections
// of database and makes sure emails are unique.
func NewMongoRepository(ctx context.Context, client *mongo.Client, database string) (Repository, error) {
	d := client.Database(database)
	r := &mongoRepository{users: d.Collection("users"), profiles: d.Collection("profiles")}
	_, err := r.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create email index: %w", err)
	}
	return r, nil
}

func (r *mongoRepository) CreateUser(ctx context.Context, u *User) error {
	doc := *u
	doc.Email = strings.ToLower(doc.Email)
	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *mongoRepository) findUser(ctx context.Context, filter bson.M) (*User, error) {
	var u User
	err := r.users.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (r *mongoRepository) GetUser(ctx context.Context, id string) (*User, error) {
	return r.findUser(ctx, bson.M{"_id": id})
}

func (r *mongoRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return r.findUser(ctx, bson.M{"email": strings.ToLower(email)})
}

func (r *mongoRepository) UpdateUser(ctx context.Context, u *User) error {
	res, err := r.users.UpdateOne(ctx, bson.M{"_id": u.ID}, bson.M{"$set": bson.M{
		"name":          u.Name,
		"role":          u.Role,
		"password_hash": u.PasswordHash,
	}})
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *mongoRepository) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	total, err := r.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	opts := options.Find().
		SetSkip(int64(offset)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "email", Value: 1}})
	cursor, err := r.users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer cursor.Close(ctx)
	var out []*User
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("decode users: %w", err)
	}
	return out, int(total), nil
}

func (r *mongoRepository) UpdateRole(ctx context.Context, id, role string) error {
	res, err := r.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"role": role}})
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *mongoRepository) CountByRole(ctx context.Context) (map[string]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$role"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := r.users.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("count roles: %w", err)
	}
	defer cursor.Close(ctx)
	var rows []struct {
		Role  string `bson:"_id"`
		Count int    `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode role counts: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Role] = row.Count
	}
	return out, nil
}

func (r *mongoRepository) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	err := r.profiles.FindOne(ctx, bson.M{"_id": userID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &p, nil
}

func (r *mongoRepository) UpsertProfile(ctx context.Context, p *Profile) error {
	if _, err := r.GetUser(ctx, p.UserID); err != nil {
		return err
	}
	_, err := r.profiles.ReplaceOne(ctx, bson.M{"_id": p.UserID}, p, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
