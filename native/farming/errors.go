package farming

import "errors"

// Wiring faults.
var (
	errNilState      = errors.New("farming engine: state not configured")
	errNilCustody    = errors.New("farming engine: custody not configured")
	errNilCollateral = errors.New("farming engine: collateral vault not configured")
)

// Validation failures.
var (
	ErrZeroAmount            = errors.New("farming: amount must be positive")
	ErrZeroDuration          = errors.New("farming: duration must be positive")
	ErrRewardRateZero        = errors.New("farming: reward rate rounds down to zero")
	ErrInvalidRewardDecimals = errors.New("farming: reward decimals out of range")
	ErrInvalidStakeDecimals  = errors.New("farming: stake decimals out of range")
	ErrInvalidBoostPercent   = errors.New("farming: boost percent out of range")
	ErrInvalidAsset          = errors.New("farming: asset identifier required")
	ErrWrongCollection       = errors.New("farming: collateral collection mismatch")
	ErrWrongCollateralAmount = errors.New("farming: collateral must be a single unit")
	ErrNotEnoughBalance      = errors.New("farming: not enough staked balance")
	ErrArithmeticOverflow    = errors.New("farming: arithmetic overflow")
)

// Lookup failures.
var (
	ErrPoolNotFound       = errors.New("farming: pool not found")
	ErrStakeNotFound      = errors.New("farming: stake not found")
	ErrBucketNotFound     = errors.New("farming: bucket not found")
	ErrEpochNotFound      = errors.New("farming: epoch not found")
	ErrCollateralNotFound = errors.New("farming: collateral unit not found")
)

// State conflicts.
var (
	ErrPoolExists                = errors.New("farming: pool already exists")
	ErrAlreadyBoosted            = errors.New("farming: stake already boosted")
	ErrNoBoost                   = errors.New("farming: stake has no boost attached")
	ErrBoostNotConfigured        = errors.New("farming: pool has no boost configuration")
	ErrNothingToHarvest          = errors.New("farming: nothing to harvest")
	ErrInsufficientRewardBalance = errors.New("farming: insufficient reward balance")
	ErrCollateralNotOwned        = errors.New("farming: collateral not owned by caller")
)

// Authorization failures.
var (
	ErrNotEmergencyAdmin = errors.New("farming: caller is not the emergency admin")
	ErrNotTreasuryAdmin  = errors.New("farming: caller is not the treasury admin")
	ErrNotPoolOwner      = errors.New("farming: caller is not the pool owner")
)

// Timing failures.
var (
	ErrStakeLocked          = errors.New("farming: stake is still locked")
	ErrTreasuryGraceNotOver = errors.New("farming: treasury grace period not elapsed")
	ErrClockWentBackwards   = errors.New("farming: timestamp precedes last pool update")
)

// Emergency failures.
var (
	ErrEmergency   = errors.New("farming: pool is in emergency")
	ErrNoEmergency = errors.New("farming: pool is not in emergency")
)

// ErrorKind classifies engine failures.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindNotFound      ErrorKind = "not_found"
	KindConflict      ErrorKind = "conflict"
	KindAuthorization ErrorKind = "authorization"
	KindTiming        ErrorKind = "timing"
	KindEmergency     ErrorKind = "emergency"
	KindInternal      ErrorKind = "internal"
)

var errorKinds = []struct {
	kind ErrorKind
	errs []error
}{
	{KindValidation, []error{ErrZeroAmount, ErrZeroDuration, ErrRewardRateZero, ErrInvalidRewardDecimals,
		ErrInvalidStakeDecimals, ErrInvalidBoostPercent, ErrInvalidAsset, ErrWrongCollection,
		ErrWrongCollateralAmount, ErrNotEnoughBalance, ErrArithmeticOverflow}},
	{KindNotFound, []error{ErrPoolNotFound, ErrStakeNotFound, ErrBucketNotFound, ErrEpochNotFound, ErrCollateralNotFound}},
	{KindConflict, []error{ErrPoolExists, ErrAlreadyBoosted, ErrNoBoost, ErrBoostNotConfigured, ErrNothingToHarvest,
		ErrInsufficientRewardBalance, ErrCollateralNotOwned}},
	{KindAuthorization, []error{ErrNotEmergencyAdmin, ErrNotTreasuryAdmin, ErrNotPoolOwner}},
	{KindTiming, []error{ErrStakeLocked, ErrTreasuryGraceNotOver, ErrClockWentBackwards}},
	{KindEmergency, []error{ErrEmergency, ErrNoEmergency}},
}

// Kind maps an engine error onto its failure class. Errors that do not
// originate from the engine report KindInternal; nil reports an empty kind.
func Kind(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, group := range errorKinds {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.kind
			}
		}
	}
	return KindInternal
}
