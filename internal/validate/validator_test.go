package validate

import (
	"context"
	"testing"
	"time"

	"github.com/GoSwapGuard/swapguard/internal/config"
	"github.com/GoSwapGuard/swapguard/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"

func testConfig() config.ValidationConfig {
	return config.ValidationConfig{
		SuspiciousAmount:       10000,
		DuplicateWindowSeconds: 30,
		BurstWindowSeconds:     60,
		BurstLimit:             5,
		CacheSize:              100,
	}
}

func validIntent() Intent {
	return Intent{
		FromToken:   "USDC",
		ToToken:     "WETH",
		Amount:      "150.25",
		UserAddress: testAddress,
	}
}

func TestValidateAccepts(t *testing.T) {
	v := NewValidator(repository.NewMemoryStore(), testConfig())

	res := v.Validate(context.Background(), validIntent())

	assert.True(t, res.Valid)
	assert.True(t, res.Checks.AllPassed())
	assert.Equal(t, 0, res.RiskScore)
	assert.Empty(t, res.Warnings)
}

func TestValidateMissingFields(t *testing.T) {
	v := NewValidator(repository.NewMemoryStore(), testConfig())

	res := v.Validate(context.Background(), Intent{FromToken: "USDC"})

	assert.False(t, res.Valid)
	assert.False(t, res.Checks.InputSanitization)
	assert.GreaterOrEqual(t, res.RiskScore, 25)
}

func TestValidateBadAmount(t *testing.T) {
	v := NewValidator(repository.NewMemoryStore(), testConfig())

	in := validIntent()
	in.Amount = "-5"
	res := v.Validate(context.Background(), in)

	assert.False(t, res.Checks.InputSanitization)

	in.Amount = "not-a-number"
	res = v.Validate(context.Background(), in)
	assert.False(t, res.Checks.InputSanitization)
}

func TestValidateSuspiciousAmountIsWarningOnly(t *testing.T) {
	v := NewValidator(repository.NewMemoryStore(), testConfig())

	in := validIntent()
	in.Amount = "50000"
	res := v.Validate(context.Background(), in)

	assert.True(t, res.Valid) // 15 points stays below the reject threshold
	assert.True(t, res.Checks.AllPassed())
	assert.Equal(t, 15, res.RiskScore)
	assert.NotEmpty(t, res.Warnings)
}

func TestValidateMalformedAddress(t *testing.T) {
	v := NewValidator(repository.NewMemoryStore(), testConfig())

	in := validIntent()
	in.UserAddress = "definitely-not-an-address"
	res := v.Validate(context.Background(), in)

	assert.False(t, res.Checks.SignatureIntegrity)
	assert.GreaterOrEqual(t, res.RiskScore, 30)
}

func TestValidateDuplicateIntent(t *testing.T) {
	v := NewValidator(repository.NewMemoryStore(), testConfig())
	ctx := context.Background()

	in := validIntent()
	first := v.Validate(ctx, in)
	require.True(t, first.Valid)

	// Different amount: same user, not a duplicate, and bypasses the cache.
	in2 := in
	in2.Amount = "150.26"
	second := v.Validate(ctx, in2)
	assert.True(t, second.Checks.IntentUniqueness)

	// Exact duplicate without the cache hiding it: clear the cache entry.
	require.NoError(t, v.store.Delete(ctx, cacheKey(in)))
	dup := v.Validate(ctx, in)
	assert.False(t, dup.Checks.IntentUniqueness)
	assert.GreaterOrEqual(t, dup.RiskScore, 35)
}

func TestValidateCachedResultIsIdempotent(t *testing.T) {
	v := NewValidator(repository.NewMemoryStore(), testConfig())
	ctx := context.Background()

	in := validIntent()
	first := v.Validate(ctx, in)
	require.True(t, first.Valid)

	second := v.Validate(ctx, in)
	assert.Equal(t, first, second)
}

func TestValidateFailedResultNotCached(t *testing.T) {
	v := NewValidator(repository.NewMemoryStore(), testConfig())
	ctx := context.Background()

	bad := validIntent()
	bad.UserAddress = "nope"
	res := v.Validate(ctx, bad)
	require.False(t, res.Valid)

	_, hit := v.cachedResult(ctx, bad)
	assert.False(t, hit)
}

func TestValidateBurstTriggersRateLimit(t *testing.T) {
	v := NewValidator(repository.NewMemoryStore(), testConfig())
	ctx := context.Background()

	in := validIntent()
	last := v.Validate(ctx, in)
	for i := 0; i < 10; i++ {
		last = v.Validate(ctx, in)
	}

	// 11th call: the history holds 10 matching requests, over the limit of 5.
	// The cached verdict was stored on the first call, so bypass it.
	require.NoError(t, v.store.Delete(ctx, cacheKey(in)))
	last = v.Validate(ctx, in)
	assert.False(t, last.Checks.RateLimitCompliance)
	assert.False(t, last.Valid)

	status := v.CheckRateLimitStatus(ctx, in.UserAddress)
	assert.False(t, status.CanProceed)
	assert.Greater(t, status.WaitTimeMs, int64(0))
	assert.NotEmpty(t, status.Reason)
}

func TestCheckRateLimitStatusAllowsFreshUser(t *testing.T) {
	v := NewValidator(repository.NewMemoryStore(), testConfig())

	status := v.CheckRateLimitStatus(context.Background(), testAddress)
	assert.True(t, status.CanProceed)
	assert.Zero(t, status.WaitTimeMs)
}

// brokenStore simulates an unreachable backend for every operation.
type brokenStore struct{}

func (brokenStore) Get(ctx context.Context, key string, out interface{}) error {
	return repository.ErrUnavailable
}
func (brokenStore) Set(ctx context.Context, key string, val interface{}) error {
	return repository.ErrUnavailable
}
func (brokenStore) Delete(ctx context.Context, key string) error {
	return repository.ErrUnavailable
}

func TestValidateFailsClosedOnStorageError(t *testing.T) {
	v := NewValidator(brokenStore{}, testConfig())

	res := v.Validate(context.Background(), validIntent())

	assert.False(t, res.Valid)
	assert.Equal(t, 100, res.RiskScore)
	assert.False(t, res.Checks.AllPassed())
}

func TestCheckRateLimitStatusFailsOpenOnStorageError(t *testing.T) {
	v := NewValidator(brokenStore{}, testConfig())

	status := v.CheckRateLimitStatus(context.Background(), testAddress)
	assert.True(t, status.CanProceed)
}

func TestValidateCountersTrack(t *testing.T) {
	v := NewValidator(repository.NewMemoryStore(), testConfig())
	ctx := context.Background()

	v.Validate(ctx, validIntent())

	// Malformed address plus missing fields pushes the score over the
	// suspicious-activity threshold.
	bad := Intent{FromToken: "USDC", UserAddress: "nope"}
	v.Validate(ctx, bad)

	counters := v.Snapshot()
	assert.Equal(t, int64(2), counters.TotalValidations)
	assert.Equal(t, int64(1), counters.RejectedRequests)
	assert.Equal(t, int64(1), counters.SuspiciousActivity)
}

func TestHistoryTrimKeepsOneHour(t *testing.T) {
	store := repository.NewMemoryStore()
	v := NewValidator(store, testConfig())
	ctx := context.Background()

	old := []requestRecord{{
		FromToken: "USDC", ToToken: "WETH", Amount: "1",
		Timestamp: time.Now().Add(-2 * time.Hour),
	}}
	require.NoError(t, store.Set(ctx, historyKey(testAddress), old))

	v.Validate(ctx, validIntent())

	var history []requestRecord
	require.NoError(t, store.Get(ctx, historyKey(testAddress), &history))
	assert.Len(t, history, 1) // the stale record was dropped
	assert.Equal(t, "150.25", history[0].Amount)
}
