// Package filter parses AIP-160 filter expressions over activity fields and
// translates them to parameterized SQL conditions.
package filter

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// Condition is a SQL WHERE fragment with positional parameters.
type Condition struct {
	Clause string
	Params []any
}

// columnByField maps declared filter fields to activity columns. The created
// field compares against the created_at millisecond column.
var columnByField = map[string]string{
	"customer_id": "customer_id",
	"keyword":     "system_keyword",
	"entity_name": "entity_name",
	"entity_id":   "entity_id",
	"created":     "created_at",
}

var comparisonOps = map[string]string{
	"_==_": "=",
	"=":    "=",
	"_!=_": "!=",
	"!=":   "!=",
	"_<_":  "<",
	"<":    "<",
	"_<=_": "<=",
	"<=":   "<=",
	"_>_":  ">",
	">":    ">",
	"_>=_": ">=",
	">=":   ">=",
}

func declarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("customer_id", filtering.TypeString),
		filtering.DeclareIdent("keyword", filtering.TypeString),
		filtering.DeclareIdent("entity_name", filtering.TypeString),
		filtering.DeclareIdent("entity_id", filtering.TypeString),
		filtering.DeclareIdent("created", filtering.TypeTimestamp),
	)
}

// Parse translates one filter expression. An empty expression yields an
// empty condition.
func Parse(filterStr string) (Condition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return Condition{}, nil
	}

	decls, err := declarations()
	if err != nil {
		return Condition{}, fmt.Errorf("create declarations: %w", err)
	}
	parsed, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return Condition{}, fmt.Errorf("parse filter: %w", err)
	}
	return translateExpr(parsed.CheckedExpr.Expr)
}

func translateExpr(e *expr.Expr) (Condition, error) {
	if e == nil {
		return Condition{}, nil
	}
	call, ok := e.ExprKind.(*expr.Expr_CallExpr)
	if !ok {
		return Condition{}, fmt.Errorf("unsupported expression type: %T", e.ExprKind)
	}
	return translateCall(call.CallExpr)
}

func translateCall(call *expr.Expr_Call) (Condition, error) {
	switch call.Function {
	case "_&&_", "AND":
		return translateLogical(call.Args, "AND")
	case "_||_", "OR":
		return translateLogical(call.Args, "OR")
	}
	if op, ok := comparisonOps[call.Function]; ok {
		return translateComparison(call.Args, op)
	}
	return Condition{}, fmt.Errorf("unsupported function: %s", call.Function)
}

func translateLogical(args []*expr.Expr, op string) (Condition, error) {
	if len(args) != 2 {
		return Condition{}, fmt.Errorf("%s requires 2 arguments", op)
	}
	left, err := translateExpr(args[0])
	if err != nil {
		return Condition{}, err
	}
	right, err := translateExpr(args[1])
	if err != nil {
		return Condition{}, err
	}
	return Condition{
		Clause: fmt.Sprintf("(%s %s %s)", left.Clause, op, right.Clause),
		Params: append(left.Params, right.Params...),
	}, nil
}

func translateComparison(args []*expr.Expr, op string) (Condition, error) {
	if len(args) != 2 {
		return Condition{}, fmt.Errorf("comparison requires 2 arguments")
	}
	field, err := extractFieldName(args[0])
	if err != nil {
		return Condition{}, err
	}
	column, ok := columnByField[field]
	if !ok {
		return Condition{}, fmt.Errorf("unknown field: %s", field)
	}
	value, err := extractValue(args[1])
	if err != nil {
		return Condition{}, err
	}
	return Condition{
		Clause: fmt.Sprintf("%s %s ?", column, op),
		Params: []any{value},
	}, nil
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}
	ident, ok := e.ExprKind.(*expr.Expr_IdentExpr)
	if !ok {
		return "", fmt.Errorf("expected identifier, got %T", e.ExprKind)
	}
	return ident.IdentExpr.Name, nil
}

func extractValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		return extractConstValue(kind.ConstExpr)
	case *expr.Expr_CallExpr:
		if kind.CallExpr.Function == "timestamp" && len(kind.CallExpr.Args) == 1 {
			return extractTimestampMillis(kind.CallExpr.Args[0])
		}
		return nil, fmt.Errorf("unsupported function in value position: %s", kind.CallExpr.Function)
	default:
		return nil, fmt.Errorf("expected constant or timestamp, got %T", kind)
	}
}

func extractConstValue(c *expr.Constant) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("nil constant")
	}
	switch kind := c.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return kind.Uint64Value, nil
	case *expr.Constant_DoubleValue:
		return kind.DoubleValue, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}

// extractTimestampMillis converts timestamp("...") arguments to the UTC
// millisecond representation activities are stored with.
func extractTimestampMillis(e *expr.Expr) (int64, error) {
	if e == nil {
		return 0, fmt.Errorf("nil timestamp argument")
	}
	constExpr, ok := e.ExprKind.(*expr.Expr_ConstExpr)
	if !ok {
		return 0, fmt.Errorf("timestamp argument must be a constant string")
	}
	strVal, ok := constExpr.ConstExpr.ConstantKind.(*expr.Constant_StringValue)
	if !ok {
		return 0, fmt.Errorf("timestamp argument must be a string")
	}
	parsed, err := time.Parse(time.RFC3339, strVal.StringValue)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339Nano, strVal.StringValue)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp format: %s", strVal.StringValue)
		}
	}
	return parsed.UTC().UnixMilli(), nil
}
