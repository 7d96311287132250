package paging

import "context"

// PageSize is the fixed number of records requested per query.
const PageSize = 10

// ResultKind is the outcome class of one remote query.
type ResultKind int

const (
	// ResultEmpty means the query succeeded with zero records past the cursor.
	ResultEmpty ResultKind = iota
	// ResultError means the query failed; Message carries the reason.
	ResultError
	// ResultSuccess means the query returned at least one record.
	ResultSuccess
)

// Result is the tri-state outcome returned by a Source.
type Result[R any] struct {
	Kind    ResultKind
	Message string
	Page    []R
}

// Empty returns a Result signalling no records past the cursor.
func Empty[R any]() Result[R] {
	return Result[R]{Kind: ResultEmpty}
}

// Failure returns an error Result carrying msg.
func Failure[R any](msg string) Result[R] {
	return Result[R]{Kind: ResultError, Message: msg}
}

// PageOf returns a success Result, or Empty when page has no records.
func PageOf[R any](page []R) Result[R] {
	if len(page) == 0 {
		return Empty[R]()
	}
	return Result[R]{Kind: ResultSuccess, Page: page}
}

// FromError converts a (page, err) pair from a store call into a Result.
func FromError[R any](page []R, err error) Result[R] {
	if err != nil {
		return Failure[R](err.Error())
	}
	return PageOf(page)
}

// Query bounds one remote fetch. After is empty for the first page.
type Query struct {
	Filter string
	After  string
}

// Source executes cursor-bounded queries against a remote record store.
// Implementations order records by identifier and return at most PageSize
// records with identifiers strictly greater than After.
type Source[R any] interface {
	Query(ctx context.Context, q Query) Result[R]
}

// SourceFunc adapts a plain function to Source.
type SourceFunc[R any] func(ctx context.Context, q Query) Result[R]

// Query calls f.
func (f SourceFunc[R]) Query(ctx context.Context, q Query) Result[R] {
	return f(ctx, q)
}

// Translator maps a raw backend record to a domain value.
type Translator[R, T any] func(R) T

// Keyed is implemented by list items whose identifier serves as the cursor.
type Keyed interface {
	Key() string
}
