// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sonirn/Back-id/internal/core/model"
)

// MongoUserService is the Mongo-backed implementation of UserService.
type MongoUserService struct {
	collection *mongo.Collection
}

// NewUserService is a constructor function that binds the service to the
// users collection of the given database.
//
// Inputs:
//   - db: The application database handle.
//
// Outputs:
//   - *MongoUserService: A pointer to the new service.
func NewUserService(db *mongo.Database) *MongoUserService {
	return &MongoUserService{collection: db.Collection(model.CollectionUsers)}
}

// CreateOrFetch registers an account keyed by email. When the email already
// exists the stored record is returned with a refreshed last_login stamp, so
// re-registering acts as a login rather than an error.
//
// Inputs:
//   - ctx: The context for the database calls.
//   - email: The account email address.
//   - name: The display name for a newly created account.
//
// Outputs:
//   - *model.User: The created or existing account record.
//   - bool: True when a new account was created.
//   - error: An error if a database call fails.
func (s *MongoUserService) CreateOrFetch(ctx context.Context, email string, name string) (*model.User, bool, error) {
	var existing model.User
	err := s.collection.FindOne(ctx, bson.M{"email": email}).Decode(&existing)
	if err == nil {
		now := time.Now().UTC()
		_, err = s.collection.UpdateOne(ctx,
			bson.M{"email": email},
			bson.M{"$set": bson.M{"last_login": now}})
		if err != nil {
			return nil, false, fmt.Errorf("failed to update last login: %w", err)
		}
		existing.LastLogin = now
		return &existing, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("failed to look up user: %w", err)
	}

	user := model.NewUser(email, name)
	if _, err := s.collection.InsertOne(ctx, user); err != nil {
		return nil, false, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, true, nil
}

// GetByID returns the account with the given ID.
func (s *MongoUserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := s.collection.FindOne(ctx, bson.M{"id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return &user, nil
}
