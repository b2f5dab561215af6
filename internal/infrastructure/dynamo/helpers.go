package dynamo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/go-sale-provisioner/internal/domain"
)

// updateExpr is a DynamoDB update expression with its placeholder maps.
type updateExpr struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// buildUpdateExpr converts field->value maps into a single SET expression.
// Fields in set are always overwritten; fields in setIfAbsent are written only
// when the attribute does not exist yet. Keys are sorted so the expression is
// deterministic.
func buildUpdateExpr(set, setIfAbsent map[string]interface{}) (*updateExpr, error) {
	ue := &updateExpr{
		Names:  make(map[string]string),
		Values: make(map[string]types.AttributeValue),
	}
	var clauses []string
	i := 0
	add := func(fields map[string]interface{}, format string) error {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			nameKey := fmt.Sprintf("#f%d", i)
			valueKey := fmt.Sprintf(":v%d", i)
			av, err := attributevalue.Marshal(fields[k])
			if err != nil {
				return fmt.Errorf("marshal field %s: %w", k, err)
			}
			ue.Names[nameKey] = k
			ue.Values[valueKey] = av
			clauses = append(clauses, fmt.Sprintf(format, nameKey, nameKey, valueKey))
			i++
		}
		return nil
	}
	if err := add(set, "%[1]s = %[3]s"); err != nil {
		return nil, err
	}
	if err := add(setIfAbsent, "%[1]s = if_not_exists(%[2]s, %[3]s)"); err != nil {
		return nil, err
	}
	if i == 0 {
		return nil, fmt.Errorf("no fields to update")
	}
	ue.Expr = "SET " + strings.Join(clauses, ", ")
	return ue, nil
}

// apiError wraps a failed DynamoDB call in domain.ErrStorage, naming the AWS
// error code when the service returned one.
func apiError(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s (%s): %w: %w", op, apiErr.ErrorCode(), domain.ErrStorage, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}
