package option

import (
	"strings"

	"marketplace-ledger/pkg/db/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QueryOption func(*gorm.DB) *gorm.DB

type Operator string

const (
	EQ        Operator = "eq"
	NEQ       Operator = "neq"
	GT        Operator = "gt"
	GTE       Operator = "gte"
	LT        Operator = "lt"
	LTE       Operator = "lte"
	IN        Operator = "in"
	IsNull    Operator = "is_null"
	IsNotNull Operator = "is_not_null"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

func (c Condition) expression() clause.Expression {
	col := clause.Column{Name: c.Field}
	switch c.Operator {
	case NEQ:
		return clause.Neq{Column: col, Value: c.Value}
	case GT:
		return clause.Gt{Column: col, Value: c.Value}
	case GTE:
		return clause.Gte{Column: col, Value: c.Value}
	case LT:
		return clause.Lt{Column: col, Value: c.Value}
	case LTE:
		return clause.Lte{Column: col, Value: c.Value}
	case IN:
		return clause.IN{Column: col, Values: toValues(c.Value)}
	case IsNull:
		return clause.Eq{Column: col, Value: nil}
	case IsNotNull:
		return clause.Neq{Column: col, Value: nil}
	default:
		return clause.Eq{Column: col, Value: c.Value}
	}
}

func toValues(v any) []any {
	switch vs := v.(type) {
	case []string:
		out := make([]any, len(vs))
		for i, s := range vs {
			out[i] = s
		}
		return out
	case []any:
		return vs
	default:
		return []any{v}
	}
}

// ApplyOperator ANDs every condition onto the query.
func ApplyOperator(conds ...Condition) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		exprs := make([]clause.Expression, 0, len(conds))
		for _, c := range conds {
			exprs = append(exprs, c.expression())
		}
		return db.Clauses(clause.Where{Exprs: exprs})
	}
}

type QuerySortBy struct {
	SortBy  string
	OrderBy string
	Allow   map[string]bool
}

// WithSortBy orders by each allowed column in turn. Columns missing from
// Allow are ignored so request input never reaches the ORDER BY clause.
func WithSortBy(sorts ...QuerySortBy) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		for _, s := range sorts {
			if s.SortBy == "" || (s.Allow != nil && !s.Allow[s.SortBy]) {
				continue
			}
			db = db.Order(clause.OrderByColumn{
				Column: clause.Column{Name: s.SortBy},
				Desc:   strings.EqualFold(s.OrderBy, "desc"),
			})
		}
		return db
	}
}

func WithLimit(limit int) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Limit(limit)
	}
}

// ApplyPagination pages newest first using a keyset cursor.
func ApplyPagination(cursor *pagination.Cursor, limit int) QueryOption {
	return pagination.Keyset(cursor, limit)
}

func WithLockingUpdate() QueryOption {
	return LockingUpdate
}

// LockingUpdate adds SELECT ... FOR UPDATE. Dialects without row locks ignore it.
func LockingUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
