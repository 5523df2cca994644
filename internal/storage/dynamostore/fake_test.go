package dynamostore

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

type item = map[string]*dynamodb.AttributeValue

// fakeDynamo is an in-memory DynamoDB that understands the expressions the
// store emits. Unimplemented API calls panic through the nil embedded interface.
type fakeDynamo struct {
	dynamodbiface.DynamoDBAPI

	mu       sync.Mutex
	tables   map[string]*fakeTable
	pageSize int
}

type fakeTable struct {
	hash, rng string
	items     map[string]item
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{tables: map[string]*fakeTable{}, pageSize: 2}
}

func (t *fakeTable) key(it item) string {
	k := aws.StringValue(it[t.hash].S)
	if t.rng != "" {
		k += "\x00" + aws.StringValue(it[t.rng].S)
	}
	return k
}

func (f *fakeDynamo) table(name *string) (*fakeTable, error) {
	t, ok := f.tables[aws.StringValue(name)]
	if !ok {
		return nil, awserr.New(dynamodb.ErrCodeResourceNotFoundException, "table not found", nil)
	}
	return t, nil
}

func conditionFailed() error {
	return awserr.New(dynamodb.ErrCodeConditionalCheckFailedException, "The conditional request failed", nil)
}

// checkCondition supports attribute_exists(#x) and attribute_not_exists(#x) on the key
func checkCondition(cond *string, exists bool) error {
	switch {
	case cond == nil:
		return nil
	case strings.HasPrefix(*cond, "attribute_not_exists("):
		if exists {
			return conditionFailed()
		}
	case strings.HasPrefix(*cond, "attribute_exists("):
		if !exists {
			return conditionFailed()
		}
	default:
		panic("unsupported condition " + *cond)
	}
	return nil
}

func copyItem(in item) item {
	out := make(item, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func equalValue(a, b *dynamodb.AttributeValue) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.S != nil || b.S != nil {
		return aws.StringValue(a.S) == aws.StringValue(b.S) && a.S != nil && b.S != nil
	}
	if a.BOOL != nil || b.BOOL != nil {
		return a.BOOL != nil && b.BOOL != nil && *a.BOOL == *b.BOOL
	}
	return false
}

func (f *fakeDynamo) CreateTableWithContext(ctx aws.Context, in *dynamodb.CreateTableInput, _ ...request.Option) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.StringValue(in.TableName)
	if _, ok := f.tables[name]; ok {
		return nil, awserr.New(dynamodb.ErrCodeResourceInUseException, "table exists", nil)
	}

	t := &fakeTable{items: map[string]item{}}
	for _, ks := range in.KeySchema {
		if aws.StringValue(ks.KeyType) == dynamodb.KeyTypeHash {
			t.hash = aws.StringValue(ks.AttributeName)
		} else {
			t.rng = aws.StringValue(ks.AttributeName)
		}
	}
	f.tables[name] = t
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeDynamo) WaitUntilTableExistsWithContext(ctx aws.Context, in *dynamodb.DescribeTableInput, _ ...request.WaiterOption) error {
	_, err := f.DescribeTableWithContext(ctx, in)
	return err
}

func (f *fakeDynamo) DescribeTableWithContext(ctx aws.Context, in *dynamodb.DescribeTableInput, _ ...request.Option) (*dynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.table(in.TableName); err != nil {
		return nil, err
	}
	return &dynamodb.DescribeTableOutput{Table: &dynamodb.TableDescription{TableName: in.TableName}}, nil
}

func (f *fakeDynamo) PutItemWithContext(ctx aws.Context, in *dynamodb.PutItemInput, _ ...request.Option) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k := t.key(in.Item)
	_, exists := t.items[k]
	if err := checkCondition(in.ConditionExpression, exists); err != nil {
		return nil, err
	}
	t.items[k] = copyItem(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItemWithContext(ctx aws.Context, in *dynamodb.GetItemInput, _ ...request.Option) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	it, ok := t.items[t.key(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(it)}, nil
}

func (f *fakeDynamo) UpdateItemWithContext(ctx aws.Context, in *dynamodb.UpdateItemInput, _ ...request.Option) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k := t.key(in.Key)
	current, exists := t.items[k]
	if err := checkCondition(in.ConditionExpression, exists); err != nil {
		return nil, err
	}

	next := copyItem(in.Key)
	if exists {
		next = copyItem(current)
	}

	expr := strings.TrimPrefix(aws.StringValue(in.UpdateExpression), "SET ")
	for _, clause := range strings.Split(expr, ", ") {
		lhs, rhs, ok := strings.Cut(clause, " = ")
		if !ok {
			panic("unsupported update clause " + clause)
		}
		attr := aws.StringValue(in.ExpressionAttributeNames[lhs])
		value, ok := in.ExpressionAttributeValues[rhs]
		if attr == "" || !ok {
			panic(fmt.Sprintf("unbound placeholder in %q", clause))
		}
		next[attr] = value
	}
	t.items[k] = next

	return &dynamodb.UpdateItemOutput{Attributes: copyItem(next)}, nil
}

func (f *fakeDynamo) DeleteItemWithContext(ctx aws.Context, in *dynamodb.DeleteItemInput, _ ...request.Option) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k := t.key(in.Key)
	_, exists := t.items[k]
	if err := checkCondition(in.ConditionExpression, exists); err != nil {
		return nil, err
	}
	delete(t.items, k)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) ScanPagesWithContext(ctx aws.Context, in *dynamodb.ScanInput, fn func(*dynamodb.ScanOutput, bool) bool, _ ...request.Option) error {
	f.mu.Lock()
	t, err := f.table(in.TableName)
	if err != nil {
		f.mu.Unlock()
		return err
	}

	var matched []item
	for _, it := range t.items {
		if in.FilterExpression != nil {
			lhs, rhs, _ := strings.Cut(*in.FilterExpression, " = ")
			attr := aws.StringValue(in.ExpressionAttributeNames[lhs])
			if !equalValue(it[attr], in.ExpressionAttributeValues[rhs]) {
				continue
			}
		}
		matched = append(matched, copyItem(it))
	}
	f.mu.Unlock()

	// scans come back in hash order, not phone order
	sort.Slice(matched, func(i, j int) bool { return t.key(matched[i]) > t.key(matched[j]) })

	for start := 0; ; start += f.pageSize {
		end := start + f.pageSize
		if end >= len(matched) {
			fn(&dynamodb.ScanOutput{Items: matched[min(start, len(matched)):]}, true)
			return nil
		}
		if !fn(&dynamodb.ScanOutput{Items: matched[start:end]}, false) {
			return nil
		}
	}
}

func (f *fakeDynamo) QueryPagesWithContext(ctx aws.Context, in *dynamodb.QueryInput, fn func(*dynamodb.QueryOutput, bool) bool, _ ...request.Option) error {
	f.mu.Lock()
	t, err := f.table(in.TableName)
	if err != nil {
		f.mu.Unlock()
		return err
	}

	// "#h = :h AND #r >= :r"
	hashPart, rangePart, _ := strings.Cut(aws.StringValue(in.KeyConditionExpression), " AND ")
	hName, hVal, _ := strings.Cut(hashPart, " = ")
	rName, rVal, _ := strings.Cut(rangePart, " >= ")
	hashAttr := aws.StringValue(in.ExpressionAttributeNames[hName])
	rangeAttr := aws.StringValue(in.ExpressionAttributeNames[rName])
	wantHash := aws.StringValue(in.ExpressionAttributeValues[hVal].S)
	since := aws.StringValue(in.ExpressionAttributeValues[rVal].S)

	var matched []item
	for _, it := range t.items {
		if aws.StringValue(it[hashAttr].S) != wantHash {
			continue
		}
		if aws.StringValue(it[rangeAttr].S) < since {
			continue
		}
		matched = append(matched, copyItem(it))
	}
	f.mu.Unlock()

	forward := in.ScanIndexForward == nil || *in.ScanIndexForward
	sort.Slice(matched, func(i, j int) bool {
		a, b := aws.StringValue(matched[i][rangeAttr].S), aws.StringValue(matched[j][rangeAttr].S)
		if forward {
			return a < b
		}
		return a > b
	})

	for start := 0; ; start += f.pageSize {
		end := start + f.pageSize
		if end >= len(matched) {
			fn(&dynamodb.QueryOutput{Items: matched[min(start, len(matched)):]}, true)
			return nil
		}
		if !fn(&dynamodb.QueryOutput{Items: matched[start:end]}, false) {
			return nil
		}
	}
}
