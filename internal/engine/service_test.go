package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/i474232898/climate-sources/internal/cache"
	"github.com/i474232898/climate-sources/internal/catalog"
	"github.com/i474232898/climate-sources/internal/climate"
	"github.com/i474232898/climate-sources/internal/common"
	"github.com/i474232898/climate-sources/internal/coverage"
	"github.com/i474232898/climate-sources/internal/fusion"
	"github.com/i474232898/climate-sources/internal/router"
	"github.com/i474232898/climate-sources/internal/router/mocks"
)

var (
	now   = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	today = climate.DateOf(now)
)

const (
	parisLat, parisLon = 48.8566, 2.3522
	nycLat, nycLon     = 40.7128, -74.0060
)

type fixture struct {
	svc  *Service
	mock map[string]*mocks.MockUpstream
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	f := &fixture{mock: make(map[string]*mocks.MockUpstream)}
	var ups []climate.Upstream
	for _, desc := range cat.Providers() {
		m := mocks.NewMockUpstream(ctrl)
		m.EXPECT().ID().Return(desc.ID).AnyTimes()
		f.mock[desc.ID] = m
		ups = append(ups, m)
	}

	clock := func() time.Time { return now }
	layer := cache.New(cache.NewMemoryBackend(100), cache.WithClock(clock))
	rt, err := router.New(cat, ups, layer, router.WithClock(clock))
	require.NoError(t, err)
	fe, err := fusion.New(cat)
	require.NoError(t, err)

	f.svc = NewService(cat, coverage.NewResolver(cat), rt, fe)
	return f
}

// answer returns a Fetch stub whose values are base + day offset for every variable.
func answer(id string, base float64) func(context.Context, climate.API, climate.Query) (*climate.Series, error) {
	return func(_ context.Context, api climate.API, q climate.Query) (*climate.Series, error) {
		s := &climate.Series{ProviderID: id, APIUsed: api, Variables: q.Variables}
		for _, day := range q.Window.Dates() {
			values := make(map[string]*float64, len(q.Variables))
			for _, v := range q.Variables {
				values[v] = common.Ptr(base + float64(today.DaysUntil(day)))
			}
			s.Records = append(s.Records, climate.Record{Date: day, Values: values})
		}
		return s, nil
	}
}

func TestFusedSeries_HybridWindowInParis(t *testing.T) {
	f := newFixture(t)
	om := f.mock[catalog.OpenMeteo]
	om.EXPECT().Fetch(gomock.Any(), climate.APIArchive, gomock.Any()).DoAndReturn(answer(catalog.OpenMeteo, 0)).Times(1)
	om.EXPECT().Fetch(gomock.Any(), climate.APIForecast, gomock.Any()).DoAndReturn(answer(catalog.OpenMeteo, 0)).Times(1)

	res, err := f.svc.FusedSeries(context.Background(), FusionRequest{
		Latitude:  parisLat,
		Longitude: parisLon,
		Start:     today.AddDays(-3),
		End:       today.AddDays(6),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, []string{catalog.OpenMeteo}, res.Providers,
		"archive-only and forecast-only candidates cannot serve the window; weatherapi is non-commercial")
	require.Len(t, res.Plans, 1)
	assert.Equal(t, router.Hybrid, res.Plans[0].Strategy)
	assert.InDelta(t, 1.0, res.Weights.Sum(), 1e-6)
	assert.Empty(t, res.Unavailable)

	for _, v := range climate.FusibleVariables() {
		s := res.Series[v]
		require.NotNil(t, s, v)
		require.Len(t, s.Records, 10)
		for _, r := range s.Records {
			assert.LessOrEqual(t, len(r.Sources), 2)
			require.NotNil(t, r.Confidence)
			assert.GreaterOrEqual(t, *r.Confidence, 0)
			assert.LessOrEqual(t, *r.Confidence, 100)
		}
		assert.Equal(t, fusion.BandGood, res.Quality[v].Band)
	}

	precip := res.Series[climate.VarPrecipSum]
	require.NotNil(t, precip)
	assert.Equal(t, catalog.OpenMeteo, precip.ProviderID)
	assert.Contains(t, res.Attributions, "Weather data by Open-Meteo.com (CC BY 4.0)")
}

func TestFusedSeries_WeightedAcrossProviders(t *testing.T) {
	f := newFixture(t)
	f.mock[catalog.NWS].EXPECT().Fetch(gomock.Any(), climate.APIForecast, gomock.Any()).
		DoAndReturn(answer(catalog.NWS, 30)).Times(1)
	f.mock[catalog.OpenMeteo].EXPECT().Fetch(gomock.Any(), climate.APIForecast, gomock.Any()).
		DoAndReturn(answer(catalog.OpenMeteo, 0)).Times(1)

	res, err := f.svc.FusedSeries(context.Background(), FusionRequest{
		Latitude:  nycLat,
		Longitude: nycLon,
		Start:     today.AddDays(1),
		End:       today.AddDays(7),
		Variables: []string{climate.VarTempMax},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{catalog.NWS, catalog.OpenMeteo}, res.Providers)
	assert.InDelta(t, 2.0/3, res.Weights[catalog.NWS], 1e-9)
	assert.InDelta(t, 1.0/3, res.Weights[catalog.OpenMeteo], 1e-9)

	s := res.Series[climate.VarTempMax]
	require.Len(t, s.Records, 7)
	for i, r := range s.Records {
		v, ok := r.Value(climate.VarTempMax)
		require.True(t, ok)
		assert.InDelta(t, 20+float64(i+1), v, 1e-9)
		assert.Equal(t, []string{catalog.NWS, catalog.OpenMeteo}, r.Sources)
		assert.Equal(t, 100, *r.Confidence)
	}
	assert.Equal(t, fusion.Quality{Score: 100, Band: fusion.BandGood, Sources: 2, CoveragePercent: 100},
		res.Quality[climate.VarTempMax])
}

func TestFusedSeries_LicenseViolationBeforeFetch(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.FusedSeries(context.Background(), FusionRequest{
		Latitude:  parisLat,
		Longitude: parisLon,
		Start:     today.AddDays(1),
		End:       today.AddDays(7),
		Providers: []string{catalog.WeatherAPI},
	})
	assert.Nil(t, res)
	require.ErrorIs(t, err, climate.ErrLicenseViolation)
	assert.Equal(t, catalog.WeatherAPI, climate.ProviderOf(err))
}

func TestFusedSeries_WindowBeforeAnyHistory(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.FusedSeries(context.Background(), FusionRequest{
		Latitude:  parisLat,
		Longitude: parisLon,
		Start:     climate.MustParseDate("1900-01-01"),
		End:       climate.MustParseDate("1900-01-10"),
	})
	require.ErrorIs(t, err, climate.ErrOutOfRangeWindow)

	var ce *climate.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "history_floor", ce.Constraint)
}

func TestFusedSeries_FetchFailureIsHard(t *testing.T) {
	f := newFixture(t)
	f.mock[catalog.NWS].EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, climate.Malformed(catalog.NWS, "gridpoint payload without properties", nil))
	f.mock[catalog.OpenMeteo].EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(answer(catalog.OpenMeteo, 0)).MaxTimes(1)

	res, err := f.svc.FusedSeries(context.Background(), FusionRequest{
		Latitude:  nycLat,
		Longitude: nycLon,
		Start:     today.AddDays(1),
		End:       today.AddDays(7),
	})
	assert.Nil(t, res)
	require.ErrorIs(t, err, climate.ErrMalformedResponse)
	assert.Equal(t, catalog.NWS, climate.ProviderOf(err))
}

func TestFusedSeries_InvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		req  FusionRequest
	}{
		{
			name: "start after end",
			req:  FusionRequest{Latitude: parisLat, Longitude: parisLon, Start: today.AddDays(7), End: today.AddDays(1)},
		},
		{
			name: "window too short",
			req:  FusionRequest{Latitude: parisLat, Longitude: parisLon, Start: today.AddDays(1), End: today.AddDays(2)},
		},
		{
			name: "bad latitude",
			req:  FusionRequest{Latitude: 91, Longitude: parisLon, Start: today.AddDays(1), End: today.AddDays(7)},
		},
		{
			name: "unknown variable",
			req: FusionRequest{Latitude: parisLat, Longitude: parisLon, Start: today.AddDays(1), End: today.AddDays(7),
				Variables: []string{"snow_depth"}},
		},
		{
			name: "explicit provider does not cover the point",
			req: FusionRequest{Latitude: parisLat, Longitude: parisLon, Start: today.AddDays(1), End: today.AddDays(7),
				Providers: []string{catalog.NWS}},
		},
		{
			name: "unknown provider",
			req: FusionRequest{Latitude: parisLat, Longitude: parisLon, Start: today.AddDays(1), End: today.AddDays(7),
				Providers: []string{"ghost"}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.FusedSeries(context.Background(), tc.req)
			assert.ErrorIs(t, err, climate.ErrInvalidRequest)
		})
	}
}

func TestResolveSources_SortedByPriority(t *testing.T) {
	f := newFixture(t)

	avail, err := f.svc.ResolveSources(parisLat, parisLon)
	require.NoError(t, err)
	ids := make([]string, len(avail))
	for i, a := range avail {
		ids[i] = a.ProviderID
	}
	assert.Equal(t, []string{catalog.METNorway, catalog.OpenMeteo, catalog.NASAPower, catalog.WeatherAPI}, ids)

	_, err = f.svc.ResolveSources(0, 181)
	assert.ErrorIs(t, err, climate.ErrInvalidRequest)
}

func TestGetSeries(t *testing.T) {
	f := newFixture(t)
	f.mock[catalog.NASAPower].EXPECT().Fetch(gomock.Any(), climate.APIArchive, gomock.Any()).
		DoAndReturn(answer(catalog.NASAPower, 5)).Times(1)

	s, err := f.svc.GetSeries(context.Background(), catalog.NASAPower, parisLat, parisLon,
		today.AddDays(-20), today.AddDays(-10))
	require.NoError(t, err)
	assert.Equal(t, catalog.NASAPower, s.ProviderID)
	assert.Equal(t, climate.APIArchive, s.APIUsed)
	assert.Len(t, s.Records, 11)

	_, err = f.svc.GetSeries(context.Background(), "ghost", parisLat, parisLon, today, today.AddDays(7))
	assert.ErrorIs(t, err, climate.ErrUnknownProvider)
}

func TestDownloadSeries_RequiresRedistribution(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.DownloadSeries(context.Background(), catalog.WeatherAPI, parisLat, parisLon,
		today.AddDays(1), today.AddDays(7))
	require.ErrorIs(t, err, climate.ErrLicenseViolation)
	assert.Equal(t, catalog.WeatherAPI, climate.ProviderOf(err))
}

func TestComputeWeightsAndFusePassThrough(t *testing.T) {
	f := newFixture(t)

	w, err := f.svc.ComputeWeights([]string{catalog.OpenMeteo, catalog.NASAPower})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, w.Sum(), 1e-6)

	_, err = f.svc.Fuse(nil, climate.VarTempMax)
	assert.ErrorIs(t, err, climate.ErrInvalidRequest)
}

func TestLicenseReport(t *testing.T) {
	rep := newFixture(t).svc.LicenseReport()
	assert.Equal(t, 5, rep.Total)
	assert.Len(t, rep.ByStatus["active"], 5)
}
