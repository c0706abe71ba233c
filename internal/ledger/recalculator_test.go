package ledger

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"saldi/internal/core"
)

func snap(day int, cur, pos, neg string) core.Snapshot {
	return core.Snapshot{
		ID:               core.NewDate(2024, 1, day).String(),
		AccountID:        "acc",
		Date:             core.NewDate(2024, 1, day),
		CurrentAmount:    decimal.RequireFromString(cur),
		PositiveMovement: decimal.RequireFromString(pos),
		NegativeMovement: decimal.RequireFromString(neg),
	}
}

func TestRoll(t *testing.T) {
	later := []core.Snapshot{
		snap(2, "0", "0", "50"),
		snap(3, "150", "200", "0"), // already consistent with the start below
		snap(4, "7", "1", "0"),
	}
	changed := Recalculator{}.Roll(decimal.RequireFromString("0"), later)

	assert.Equal(t, 2, len(changed))
	assert.True(t, changed[0].CurrentAmount.Equal(decimal.RequireFromString("-50")))
	assert.True(t, changed[1].Date.Equal(core.NewDate(2024, 1, 4)))
	assert.True(t, changed[1].CurrentAmount.Equal(decimal.RequireFromString("151")))

	// Input is not modified.
	assert.True(t, later[0].CurrentAmount.IsZero())
	// Rolling the corrected chain again changes nothing.
	assert.Equal(t, 0, len(Recalculator{}.Roll(decimal.Zero, []core.Snapshot{changed[0], later[1], changed[1]})))
}

func TestVerify(t *testing.T) {
	good := []core.Snapshot{
		snap(1, "-10", "0", "10"),
		snap(2, "-60", "0", "50"),
		snap(3, "140", "200", "0"),
	}
	assert.Equal(t, 0, len(Verify(good)))

	bad := []core.Snapshot{
		snap(1, "-10", "0", "10"),
		snap(2, "-61", "0", "50"),
		snap(3, "139", "200", "0"),
	}
	v := Verify(bad)
	assert.Equal(t, 1, len(v))
	assert.True(t, v[0].Expected.Equal(decimal.RequireFromString("-60")))
	assert.Contains(t, v[0].String(), "expected -60.00")
}
