package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntryType(t *testing.T) {
	parsed, err := ParseEntryType("cash_in")
	require.NoError(t, err)
	assert.Equal(t, EntryTypeCashIn, parsed)
	assert.Equal(t, "Cash In", parsed.Label())
	assert.Equal(t, "Cash Out", EntryTypeCashOut.Label())

	_, err = ParseEntryType("transfer")
	assert.Error(t, err)
	assert.False(t, EntryType("transfer").IsValid())
}

func TestParsePaymentMode(t *testing.T) {
	parsed, err := ParsePaymentMode("credit_card")
	require.NoError(t, err)
	assert.Equal(t, PaymentModeCreditCard, parsed)
	assert.Equal(t, "Credit Card", parsed.Label())
	assert.Equal(t, "Cash", PaymentModeCash.Label())
	assert.Equal(t, "Online", PaymentModeOnline.Label())

	_, err = ParsePaymentMode("barter")
	assert.Error(t, err)
}

func TestParseSyncMethod(t *testing.T) {
	// Empty means sync was never configured.
	parsed, err := ParseSyncMethod("")
	require.NoError(t, err)
	assert.Equal(t, SyncMethodNone, parsed)

	parsed, err = ParseSyncMethod("drive")
	require.NoError(t, err)
	assert.Equal(t, SyncMethodDrive, parsed)

	_, err = ParseSyncMethod("ftp")
	assert.Error(t, err)
}

func TestParseTeamRole(t *testing.T) {
	parsed, err := ParseTeamRole("business_partner")
	require.NoError(t, err)
	assert.Equal(t, TeamRolePartner, parsed)

	_, err = ParseTeamRole("admin")
	assert.Error(t, err)
}

func TestSyncStatusIsValid(t *testing.T) {
	for _, status := range []SyncStatus{SyncStatusSynced, SyncStatusPending, SyncStatusConflict, SyncStatusError} {
		assert.True(t, status.IsValid(), status.String())
	}
	assert.False(t, SyncStatus("done").IsValid())
}
