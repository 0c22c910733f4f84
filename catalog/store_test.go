package catalog

import (
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
)

func TestIsDuplicateEntryMySQLError(t *testing.T) {
	err := &mysql.MySQLError{Number: mysqlDuplicateEntry, Message: "Duplicate entry 'REQ001' for key 'refill_request_id'"}
	require.True(t, isDuplicateEntry(err))
}

func TestIsDuplicateEntryOtherMySQLError(t *testing.T) {
	err := &mysql.MySQLError{Number: 1064, Message: "syntax error"}
	require.False(t, isDuplicateEntry(err))
}

func TestIsDuplicateEntrySubstringFallback(t *testing.T) {
	require.True(t, isDuplicateEntry(errors.New("Error 1062: Duplicate entry 'x' for key 'y'")))
	require.True(t, isDuplicateEntry(errors.New("UNIQUE constraint failed: refill_transactions.refill_request_id")))
}

func TestIsDuplicateEntryNilAndUnrelated(t *testing.T) {
	require.False(t, isDuplicateEntry(nil))
	require.False(t, isDuplicateEntry(errors.New("connection refused")))
}

func TestWrapNilErrReturnsNil(t *testing.T) {
	require.Nil(t, wrap("op", nil))
}

func TestWrapPreservesOpAndMessage(t *testing.T) {
	werr := wrap("get_chain_by_name", errors.New("boom"))
	require.Error(t, werr)
	require.Contains(t, werr.Error(), "get_chain_by_name")
	require.Contains(t, werr.Error(), "boom")
	require.Equal(t, "boom", errors.Unwrap(werr).Error())
}
