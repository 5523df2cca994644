// internal/storage/dynamostore/entries.go

package dynamostore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/google/uuid"

	"github.com/imadgeboyega/gratitude-backend/internal/models"
	"github.com/imadgeboyega/gratitude-backend/internal/storage"
)

// AppendEntry stores a journal entry with a store-assigned timestamp
func (s *Store) AppendEntry(ctx context.Context, phone, text string) (*models.Entry, error) {
	if err := storage.ValidateEntryText(text); err != nil {
		return nil, err
	}

	entry := &models.Entry{
		ID:        uuid.NewString(),
		Phone:     phone,
		Text:      text,
		Timestamp: s.timestamp(),
	}

	item, err := dynamodbattribute.MarshalMap(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entry: %w", err)
	}
	item[attrSortKey] = stringValue(entry.Timestamp.Format(sortKeyLayout) + "#" + entry.ID)

	_, err = s.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.entries),
		Item:      item,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append entry: %w", err)
	}

	return entry, nil
}

// RecentEntries queries the phone's partition from the window start, newest first
func (s *Store) RecentEntries(ctx context.Context, phone string, windowDays int) ([]models.Entry, error) {
	since := storage.WindowStart(s.now(), windowDays)

	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.entries),
		ConsistentRead:         aws.Bool(true),
		KeyConditionExpression: aws.String("#phone = :phone AND #sk >= :since"),
		ExpressionAttributeNames: map[string]*string{
			"#phone": aws.String(attrPhone),
			"#sk":    aws.String(attrSortKey),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":phone": stringValue(phone),
			":since": stringValue(since.Format(sortKeyLayout)),
		},
		ScanIndexForward: aws.Bool(false),
	}

	entries := []models.Entry{}
	var unmarshalErr error

	err := s.db.QueryPagesWithContext(ctx, input, func(page *dynamodb.QueryOutput, lastPage bool) bool {
		var batch []models.Entry
		if err := dynamodbattribute.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			unmarshalErr = err
			return false
		}
		entries = append(entries, batch...)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get recent entries: %w", err)
	}
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal entries: %w", unmarshalErr)
	}

	for i := range entries {
		entries[i].Timestamp = entries[i].Timestamp.UTC()
	}
	return entries, nil
}
