// Package epochTiming derives the countdown to the next game epoch from on-chain state.
package epochTiming

import (
	"fmt"
	"math/big"
	"time"

	"github.com/tank-turn-tactics/tankgame-sidecar/internal/types/numbers"
)

// EpochState is read from the contract for every computation and never cached.
type EpochState struct {
	CurrentEpoch         numbers.LargeInteger `json:"currentEpoch"`
	EpochDurationSeconds numbers.LargeInteger `json:"epochSeconds"`
}

// Countdown is the time left in the current epoch. SecondsUntilNextEpoch is negative when
// the chain has not advanced the epoch yet although its end has passed.
type Countdown struct {
	CurrentEpoch          numbers.LargeInteger `json:"currentEpoch"`
	EpochDurationSeconds  numbers.LargeInteger `json:"epochSeconds"`
	SecondsUntilNextEpoch numbers.LargeInteger `json:"secondsUntilNextEpoch"`
	Formatted             string               `json:"countdown"`
	Overdue               bool                 `json:"overdue"`
}

// TimeUntilNextEpoch returns (currentEpoch+1)*epochDurationSeconds - nowSeconds.
func TimeUntilNextEpoch(currentEpoch, epochDurationSeconds *big.Int, nowSeconds int64) *big.Int {
	end := new(big.Int).Add(currentEpoch, big.NewInt(1))
	end.Mul(end, epochDurationSeconds)
	return end.Sub(end, big.NewInt(nowSeconds))
}

var (
	secondsPerHour   = big.NewInt(3600)
	secondsPerMinute = big.NewInt(60)
)

// FormatHMS renders the absolute value of seconds as HH:MM:SS. Hours grow past two digits.
func FormatHMS(seconds *big.Int) string {
	abs := new(big.Int).Abs(seconds)
	hours, rem := new(big.Int).QuoRem(abs, secondsPerHour, new(big.Int))
	minutes, secs := new(big.Int).QuoRem(rem, secondsPerMinute, new(big.Int))
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes.Int64(), secs.Int64())
}

func Compute(state EpochState, now time.Time) Countdown {
	remaining := TimeUntilNextEpoch(state.CurrentEpoch.BigInt(), state.EpochDurationSeconds.BigInt(), now.Unix())
	return Countdown{
		CurrentEpoch:          state.CurrentEpoch,
		EpochDurationSeconds:  state.EpochDurationSeconds,
		SecondsUntilNextEpoch: numbers.NewLargeInteger(remaining),
		Formatted:             FormatHMS(remaining),
		Overdue:               remaining.Sign() < 0,
	}
}
