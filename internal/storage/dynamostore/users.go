// internal/storage/dynamostore/users.go

package dynamostore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"go.uber.org/zap"

	"github.com/imadgeboyega/gratitude-backend/internal/models"
	"github.com/imadgeboyega/gratitude-backend/internal/storage"
)

// ListActiveUsers scans for active users and orders them by phone
func (s *Store) ListActiveUsers(ctx context.Context) ([]models.User, error) {
	input := &dynamodb.ScanInput{
		TableName:                 aws.String(s.users),
		ConsistentRead:            aws.Bool(true),
		FilterExpression:          aws.String("#active = :active"),
		ExpressionAttributeNames:  map[string]*string{"#active": aws.String("active")},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{":active": boolValue(true)},
	}
	users, err := s.scanUsers(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	return users, nil
}

// ListUsers scans every user and orders them by phone
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.scanUsers(ctx, &dynamodb.ScanInput{
		TableName:      aws.String(s.users),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *Store) scanUsers(ctx context.Context, input *dynamodb.ScanInput) ([]models.User, error) {
	users := []models.User{}
	var unmarshalErr error

	err := s.db.ScanPagesWithContext(ctx, input, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		var batch []models.User
		if err := dynamodbattribute.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			unmarshalErr = err
			return false
		}
		users = append(users, batch...)
		return true
	})
	if err != nil {
		return nil, err
	}
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal users: %w", unmarshalErr)
	}

	sort.Slice(users, func(i, j int) bool { return users[i].Phone < users[j].Phone })
	return users, nil
}

// GetUser retrieves a user by phone
func (s *Store) GetUser(ctx context.Context, phone string) (*models.User, error) {
	out, err := s.db.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.users),
		Key:            phoneKey(phone),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, &models.NotFoundError{Phone: phone}
	}
	return unmarshalUser(out.Item)
}

// CreateUser writes a new active user unless the phone is already taken
func (s *Store) CreateUser(ctx context.Context, in models.NewUser) (*models.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.timestamp()
	user := &models.User{
		Phone:         in.Phone,
		Email:         in.Email,
		Timezone:      in.Timezone,
		PreferredTime: in.PreferredTime,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	item, err := dynamodbattribute.MarshalMap(user)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user: %w", err)
	}

	_, err = s.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.users),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#phone)"),
		ExpressionAttributeNames: map[string]*string{"#phone": aws.String(attrPhone)},
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, &models.ConflictError{Phone: in.Phone}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// UpdateUser applies the present fields with one conditional UpdateItem
func (s *Store) UpdateUser(ctx context.Context, phone string, upd models.UserUpdate) (*models.User, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	set := newSetBuilder()
	if upd.Email != nil {
		set.add("email", stringValue(*upd.Email))
	}
	if upd.Timezone != nil {
		set.add("timezone", stringValue(*upd.Timezone))
	}
	if upd.PreferredTime != nil {
		set.add("preferred_time", stringValue(*upd.PreferredTime))
	}
	if upd.Active != nil {
		set.add("active", boolValue(*upd.Active))
	}
	set.add("updated_at", timeValue(s.timestamp()))

	out, err := s.update(ctx, phone, set)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return unmarshalUser(out.Attributes)
}

// DeleteUser removes a user. Entries are kept.
func (s *Store) DeleteUser(ctx context.Context, phone string) error {
	_, err := s.db.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(s.users),
		Key:                      phoneKey(phone),
		ConditionExpression:      aws.String("attribute_exists(#phone)"),
		ExpressionAttributeNames: map[string]*string{"#phone": aws.String(attrPhone)},
	})
	if err != nil {
		if isConditionFailed(err) {
			return &models.NotFoundError{Phone: phone}
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// SetActive toggles the active flag
func (s *Store) SetActive(ctx context.Context, phone string, active bool) error {
	set := newSetBuilder()
	set.add("active", boolValue(active))
	set.add("updated_at", timeValue(s.timestamp()))

	if _, err := s.update(ctx, phone, set); err != nil {
		return fmt.Errorf("failed to set active: %w", err)
	}
	return nil
}

// RecordDispatch stores the dedup marker for kind
func (s *Store) RecordDispatch(ctx context.Context, phone string, kind models.DispatchKind, localNow time.Time) error {
	if err := storage.ValidateKind(kind); err != nil {
		return err
	}

	attr := "last_daily_dispatch"
	if kind == models.DispatchWeekly {
		attr = "last_weekly_dispatch"
	}

	marker := kind.Marker(localNow)
	set := newSetBuilder()
	set.add(attr, stringValue(marker))
	set.add("updated_at", timeValue(s.timestamp()))

	if _, err := s.update(ctx, phone, set); err != nil {
		return fmt.Errorf("failed to record %s dispatch: %w", kind, err)
	}

	s.log.Debug("dispatch recorded", zap.String("phone", phone), zap.String("kind", string(kind)), zap.String("marker", marker))
	return nil
}

// update runs a SET expression against an existing user.
// A missing user surfaces as *models.NotFoundError.
func (s *Store) update(ctx context.Context, phone string, set *setBuilder) (*dynamodb.UpdateItemOutput, error) {
	set.names["#phone"] = aws.String(attrPhone)

	out, err := s.db.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.users),
		Key:                       phoneKey(phone),
		UpdateExpression:          aws.String(set.expression()),
		ConditionExpression:       aws.String("attribute_exists(#phone)"),
		ExpressionAttributeNames:  set.names,
		ExpressionAttributeValues: set.values,
		ReturnValues:              aws.String(dynamodb.ReturnValueAllNew),
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, &models.NotFoundError{Phone: phone}
		}
		return nil, err
	}
	return out, nil
}

// setBuilder collects "SET #a = :a" clauses with placeholder names derived
// from the attribute, keeping reserved words out of the expression.
type setBuilder struct {
	clauses []string
	names   map[string]*string
	values  map[string]*dynamodb.AttributeValue
}

func newSetBuilder() *setBuilder {
	return &setBuilder{
		names:  map[string]*string{},
		values: map[string]*dynamodb.AttributeValue{},
	}
}

func (b *setBuilder) add(attr string, value *dynamodb.AttributeValue) {
	b.clauses = append(b.clauses, fmt.Sprintf("#%s = :%s", attr, attr))
	b.names["#"+attr] = aws.String(attr)
	b.values[":"+attr] = value
}

func (b *setBuilder) expression() string {
	return "SET " + strings.Join(b.clauses, ", ")
}

func unmarshalUser(item map[string]*dynamodb.AttributeValue) (*models.User, error) {
	var user models.User
	if err := dynamodbattribute.UnmarshalMap(item, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return &user, nil
}
