package farming

import (
	"math"

	"github.com/holiman/uint256"
)

const (
	// AccumRewardScale is the fixed-point base for accumulator values before
	// adjusting for reward token decimals.
	AccumRewardScale uint64 = 1_000_000_000_000
	// MaxRewardDecimals bounds reward token decimals so the scale stays
	// integral.
	MaxRewardDecimals uint8 = 10
	// MaxStakeDecimals bounds stake token decimals so 10^decimals fits a uint64.
	MaxStakeDecimals uint8 = 19
	// MaxBoostPercent caps the boost applied by attached collateral.
	MaxBoostPercent uint64 = 100
)

func pow10(exp uint8) uint64 {
	out := uint64(1)
	for i := uint8(0); i < exp; i++ {
		out *= 10
	}
	return out
}

// poolScale returns 10^stakeDecimals * (AccumRewardScale / 10^rewardDecimals).
func poolScale(stakeDecimals, rewardDecimals uint8) (uint256.Int, error) {
	var scale uint256.Int
	if rewardDecimals > MaxRewardDecimals {
		return scale, ErrInvalidRewardDecimals
	}
	if stakeDecimals > MaxStakeDecimals {
		return scale, ErrInvalidStakeDecimals
	}
	rewardPart := AccumRewardScale / pow10(rewardDecimals)
	scale.Mul(uint256.NewInt(pow10(stakeDecimals)), uint256.NewInt(rewardPart))
	return scale, nil
}

// accumDelta computes (rate * elapsed * scale) / totalWeight with truncating
// division. The remainder is left undistributed.
func accumDelta(rate, elapsed uint64, scale *uint256.Int, totalWeight uint64) (*uint256.Int, error) {
	if rate == 0 || elapsed == 0 || totalWeight == 0 {
		return new(uint256.Int), nil
	}
	perWeight := new(uint256.Int).Mul(uint256.NewInt(rate), uint256.NewInt(elapsed))
	delta, overflow := new(uint256.Int).MulDivOverflow(perWeight, scale, uint256.NewInt(totalWeight))
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return delta, nil
}

// accruedFor computes (accum * weight) / scale.
func accruedFor(accum *uint256.Int, weight uint64, scale *uint256.Int) (*uint256.Int, error) {
	if weight == 0 || accum.IsZero() {
		return new(uint256.Int), nil
	}
	out, overflow := new(uint256.Int).MulDivOverflow(accum, uint256.NewInt(weight), scale)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return out, nil
}

// boostFor computes amount * percent / 100.
func boostFor(amount, percent uint64) (uint64, error) {
	out, overflow := new(uint256.Int).MulDivOverflow(uint256.NewInt(amount), uint256.NewInt(percent), uint256.NewInt(100))
	if overflow || !out.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return out.Uint64(), nil
}

func addUint64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrArithmeticOverflow
	}
	return a + b, nil
}

func mulUint64(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > math.MaxUint64/b {
		return 0, ErrArithmeticOverflow
	}
	return a * b, nil
}

func subUint64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrArithmeticOverflow
	}
	return a - b, nil
}

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
