// internal/storage/dynamostore/store.go
// DynamoDB storage backend.
//
// Users table:   hash key "phone".
// Entries table: hash key "phone", range key "sort_key" holding the creation
// time in a fixed-width UTC layout followed by "#<id>", so a key-condition
// range query returns a phone's entries in time order.

package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"go.uber.org/zap"

	"github.com/imadgeboyega/gratitude-backend/internal/storage"
)

const (
	attrPhone   = "phone"
	attrSortKey = "sort_key"

	// sortKeyLayout is fixed width so string order matches time order
	sortKeyLayout = "2006-01-02T15:04:05.000000Z"
)

// Config names the tables used by the store
type Config struct {
	UsersTable   string
	EntriesTable string
}

// Store implements storage.Repository on DynamoDB
type Store struct {
	db      dynamodbiface.DynamoDBAPI
	users   string
	entries string
	now     storage.Clock
	log     *zap.Logger
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the clock used for timestamps
func WithClock(clock storage.Clock) Option {
	return func(s *Store) {
		s.now = clock
	}
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// New creates a new Store
func New(db dynamodbiface.DynamoDBAPI, cfg Config, opts ...Option) (*Store, error) {
	if cfg.UsersTable == "" || cfg.EntriesTable == "" {
		return nil, errors.New("dynamodb users and entries table names are required")
	}

	s := &Store{
		db:      db,
		users:   cfg.UsersTable,
		entries: cfg.EntriesTable,
		now:     storage.SystemClock,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ping checks that the users table is reachable
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.db.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.users),
	})
	if err != nil {
		return fmt.Errorf("failed to describe table %s: %w", s.users, err)
	}
	return nil
}

// Close is a no-op; the AWS client holds no long-lived connections
func (s *Store) Close() error {
	return nil
}

// CreateTables creates both tables with on-demand billing if they do not
// exist yet. Meant for DynamoDB Local and first deploys.
func (s *Store) CreateTables(ctx context.Context) error {
	tables := []*dynamodb.CreateTableInput{
		{
			TableName:   aws.String(s.users),
			BillingMode: aws.String(dynamodb.BillingModePayPerRequest),
			AttributeDefinitions: []*dynamodb.AttributeDefinition{
				{AttributeName: aws.String(attrPhone), AttributeType: aws.String(dynamodb.ScalarAttributeTypeS)},
			},
			KeySchema: []*dynamodb.KeySchemaElement{
				{AttributeName: aws.String(attrPhone), KeyType: aws.String(dynamodb.KeyTypeHash)},
			},
		},
		{
			TableName:   aws.String(s.entries),
			BillingMode: aws.String(dynamodb.BillingModePayPerRequest),
			AttributeDefinitions: []*dynamodb.AttributeDefinition{
				{AttributeName: aws.String(attrPhone), AttributeType: aws.String(dynamodb.ScalarAttributeTypeS)},
				{AttributeName: aws.String(attrSortKey), AttributeType: aws.String(dynamodb.ScalarAttributeTypeS)},
			},
			KeySchema: []*dynamodb.KeySchemaElement{
				{AttributeName: aws.String(attrPhone), KeyType: aws.String(dynamodb.KeyTypeHash)},
				{AttributeName: aws.String(attrSortKey), KeyType: aws.String(dynamodb.KeyTypeRange)},
			},
		},
	}

	for _, input := range tables {
		_, err := s.db.CreateTableWithContext(ctx, input)
		if err != nil && !isAWSCode(err, dynamodb.ErrCodeResourceInUseException) {
			return fmt.Errorf("failed to create table %s: %w", aws.StringValue(input.TableName), err)
		}
		if err == nil {
			s.log.Info("created dynamodb table", zap.String("table", aws.StringValue(input.TableName)))
		}

		err = s.db.WaitUntilTableExistsWithContext(ctx, &dynamodb.DescribeTableInput{TableName: input.TableName})
		if err != nil {
			return fmt.Errorf("failed waiting for table %s: %w", aws.StringValue(input.TableName), err)
		}
	}
	return nil
}

func (s *Store) timestamp() time.Time {
	return storage.Normalize(s.now())
}

func isAWSCode(err error, code string) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == code
}

func isConditionFailed(err error) bool {
	return isAWSCode(err, dynamodb.ErrCodeConditionalCheckFailedException)
}

func stringValue(v string) *dynamodb.AttributeValue {
	return &dynamodb.AttributeValue{S: aws.String(v)}
}

func boolValue(v bool) *dynamodb.AttributeValue {
	return &dynamodb.AttributeValue{BOOL: aws.Bool(v)}
}

func timeValue(t time.Time) *dynamodb.AttributeValue {
	return stringValue(t.Format(time.RFC3339Nano))
}

func phoneKey(phone string) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{attrPhone: stringValue(phone)}
}
