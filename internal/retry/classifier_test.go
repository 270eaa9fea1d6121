package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPostgresClassifier_RetryableCodes(t *testing.T) {
	c := PostgresClassifier{}

	assert.True(t, c.IsRetryable(&pgconn.PgError{Code: "08006"}))
	assert.True(t, c.IsRetryable(&pgconn.PgError{Code: "40001"}))
	assert.True(t, c.IsRetryable(&pgconn.PgError{Code: "57P03"}))
}

func TestPostgresClassifier_PermanentCodes(t *testing.T) {
	c := PostgresClassifier{}

	assert.False(t, c.IsRetryable(&pgconn.PgError{Code: "23505"})) // unique_violation
	assert.False(t, c.IsRetryable(&pgconn.PgError{Code: "42601"})) // syntax_error
}

func TestPostgresClassifier_ContextErrorsNeverRetryable(t *testing.T) {
	c := PostgresClassifier{}

	assert.False(t, c.IsRetryable(context.Canceled))
	assert.False(t, c.IsRetryable(context.DeadlineExceeded))
}

func TestChainClassifier_RetryableIfAnyMatch(t *testing.T) {
	c := ChainClassifier{Classifiers: []Classifier{NeverRetryable{}, AlwaysRetryable{}}}
	assert.True(t, c.IsRetryable(errors.New("anything")))
}

func TestClassifyErrorType_PostgresCode(t *testing.T) {
	assert.Equal(t, "postgres_40001", classifyErrorType(&pgconn.PgError{Code: "40001"}))
}

func TestClassifyErrorType_ContextDeadline(t *testing.T) {
	assert.Equal(t, "context_deadline", classifyErrorType(context.DeadlineExceeded))
}
