package coverage

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/climate-sources/internal/catalog"
	"github.com/i474232898/climate-sources/internal/climate"
)

func newResolver(t *testing.T) (*Resolver, *catalog.Catalog) {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return NewResolver(c), c
}

func ids(avail []Availability) []string {
	out := make([]string, 0, len(avail))
	for _, a := range avail {
		out = append(out, a.ProviderID)
	}
	return out
}

func TestResolve_Paris(t *testing.T) {
	r, _ := newResolver(t)

	avail, err := r.Resolve(48.8566, 2.3522, false)
	require.NoError(t, err)

	got := ids(avail)
	assert.Contains(t, got, catalog.NASAPower)
	assert.Contains(t, got, catalog.OpenMeteo)
	assert.Contains(t, got, catalog.METNorway)
	assert.Contains(t, got, catalog.WeatherAPI)
	assert.NotContains(t, got, catalog.NWS)

	for _, a := range avail {
		switch a.ProviderID {
		case catalog.METNorway:
			assert.Equal(t, "34.00°N to 72.00°N, 25.00°W to 45.00°E", a.Coverage)
			assert.True(t, a.Fusable)
			assert.True(t, a.AttributionRequired)
		case catalog.NASAPower:
			assert.Equal(t, "global", a.Coverage)
		case catalog.WeatherAPI:
			assert.True(t, a.Available)
			assert.False(t, a.Fusable)
			assert.False(t, a.Downloadable)
		}
	}
}

func TestResolve_ExcludeNonCommercial(t *testing.T) {
	r, _ := newResolver(t)

	avail, err := r.Resolve(48.8566, 2.3522, true)
	require.NoError(t, err)
	assert.NotContains(t, ids(avail), catalog.WeatherAPI)
	for _, a := range avail {
		assert.True(t, a.Fusable)
	}
}

func TestResolve_InvalidCoordinate(t *testing.T) {
	r, _ := newResolver(t)

	for _, tc := range []struct{ lat, lon float64 }{{90.1, 0}, {-90.1, 0}, {0, 180.1}, {0, -181}} {
		_, err := r.Resolve(tc.lat, tc.lon, true)
		assert.ErrorIs(t, err, climate.ErrInvalidCoordinate)
		assert.ErrorIs(t, err, climate.ErrInvalidRequest)
	}
}

func TestResolve_CoverageProperty(t *testing.T) {
	r, c := newResolver(t)
	rng := rand.New(rand.NewSource(42))

	var global []string
	for _, p := range c.Providers() {
		if p.Coverage.Global {
			global = append(global, p.ID)
		}
	}

	for i := 0; i < 500; i++ {
		lat := rng.Float64()*180 - 90
		lon := rng.Float64()*360 - 180

		avail, err := r.Resolve(lat, lon, false)
		require.NoError(t, err)

		got := ids(avail)
		for _, g := range global {
			assert.Contains(t, got, g)
		}
		for _, a := range avail {
			if b := a.Descriptor.Coverage.BBox; b != nil {
				assert.True(t, b.Contains(lat, lon), "%s returned outside its box at %f,%f", a.ProviderID, lat, lon)
			}
		}
	}
}

func TestFusionCandidates(t *testing.T) {
	r, _ := newResolver(t)

	got, err := r.FusionCandidates(40.7128, -74.0060)
	require.NoError(t, err)
	assert.Equal(t, []string{catalog.NWS, catalog.OpenMeteo, catalog.NASAPower}, got)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "global", Describe(climate.Coverage{Global: true}))
	assert.Equal(t, "10.50°S to 5.00°N, 120.00°E to 150.25°E",
		Describe(climate.Coverage{BBox: &climate.BBox{West: 120, South: -10.5, East: 150.25, North: 5}}))
}
