package repository

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
)

type fakeResult struct {
	rows int64
	err  error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, r.err }

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate("op", nil))
	assert.ErrorIs(t, translate("op", sql.ErrNoRows), apierrors.ErrValueNotFound)
	assert.ErrorIs(t, translate("op", &pq.Error{Code: "23505"}), apierrors.ErrDuplicateValue)

	boom := errors.New("boom")
	err := translate("find payment intent", boom)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "find payment intent")
}

func TestCheckVersioned(t *testing.T) {
	assert.NoError(t, checkVersioned("op", fakeResult{rows: 1}))
	assert.ErrorIs(t, checkVersioned("op", fakeResult{rows: 0}), apierrors.ErrConcurrentUpdate)
	assert.Error(t, checkVersioned("op", fakeResult{err: errors.New("driver")}))
}

func TestNullHelpers(t *testing.T) {
	assert.False(t, nullString("").Valid)
	assert.True(t, nullString("x").Valid)
	assert.False(t, nullInt64(nil).Valid)

	v := int64(42)
	assert.Equal(t, int64(42), nullInt64(&v).Int64)
	assert.Nil(t, nullJSON(nil))
	assert.Equal(t, `{"a":1}`, nullJSON([]byte(`{"a":1}`)))

	assert.Nil(t, stringPtr(sql.NullString{}))
	assert.Equal(t, "r", *stringPtr(sql.NullString{String: "r", Valid: true}))
}
