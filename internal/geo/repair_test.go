package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitSquare() orb.MultiPolygon {
	return orb.MultiPolygon{orb.Polygon{orb.Ring{
		{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0},
	}}}
}

func TestRepair_ClosesOpenRing(t *testing.T) {
	open := orb.MultiPolygon{orb.Polygon{orb.Ring{
		{0, 0}, {1, 0}, {1, 1}, {0, 1}, // no closing vertex
	}}}

	repaired, err := Repair(open)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, Area(repaired), 1e-9)
}

func TestRepair_RemovesDuplicateVertices(t *testing.T) {
	dup := orb.MultiPolygon{orb.Polygon{orb.Ring{
		{0, 0}, {0, 0}, {1, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0},
	}}}

	repaired, err := Repair(dup)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, Area(repaired), 1e-9)
}

func TestRepair_DropsDegenerateRings(t *testing.T) {
	t.Run("line only", func(t *testing.T) {
		line := orb.MultiPolygon{orb.Polygon{orb.Ring{
			{0, 0}, {1, 1}, {0, 0},
		}}}
		_, err := Repair(line)
		assert.Error(t, err)
	})

	t.Run("degenerate hole dropped, outer kept", func(t *testing.T) {
		mp := orb.MultiPolygon{orb.Polygon{
			orb.Ring{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}},
			orb.Ring{{1, 1}, {2, 2}, {1, 1}}, // zero-area hole
		}}
		repaired, err := Repair(mp)
		require.NoError(t, err)
		assert.InDelta(t, 16.0, Area(repaired), 1e-9)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := Repair(orb.MultiPolygon{})
		assert.Error(t, err)
	})
}

func TestRepair_ResolvesSelfIntersection(t *testing.T) {
	// A bowtie crossing itself at (1,1). Re-noding splits it into two
	// triangles of area 1 each.
	bowtie := orb.MultiPolygon{orb.Polygon{orb.Ring{
		{0, 0}, {2, 2}, {2, 0}, {0, 2}, {0, 0},
	}}}

	repaired, err := Repair(bowtie)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, Area(repaired), 1e-9)
}

func TestRepair_RejectsNonFiniteCoordinates(t *testing.T) {
	tests := []struct {
		name string
		pt   orb.Point
	}{
		{name: "nan lon", pt: orb.Point{math.NaN(), 1}},
		{name: "nan lat", pt: orb.Point{1, math.NaN()}},
		{name: "positive inf", pt: orb.Point{math.Inf(1), 1}},
		{name: "negative inf", pt: orb.Point{1, math.Inf(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mp := orb.MultiPolygon{orb.Polygon{orb.Ring{
				{0, 0}, {1, 0}, tt.pt, {0, 1}, {0, 0},
			}}}
			_, err := Repair(mp)
			assert.Error(t, err)
		})
	}
}

func TestRepair_ValidGeometryKeepsArea(t *testing.T) {
	repaired, err := Repair(unitSquare())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, Area(repaired), 1e-9)
}
