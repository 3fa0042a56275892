package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/climate-sources/internal/catalog"
	"github.com/i474232898/climate-sources/internal/climate"
	"github.com/i474232898/climate-sources/internal/coverage"
	"github.com/i474232898/climate-sources/internal/fusion"
	"github.com/i474232898/climate-sources/internal/license"
	"github.com/i474232898/climate-sources/internal/metrics"
	"github.com/i474232898/climate-sources/internal/router"
)

// FusionRequest asks for a fused series at a point. Empty Providers lets the resolver pick
// every fusable provider covering the point; empty Variables means all canonical variables.
type FusionRequest struct {
	Latitude  float64
	Longitude float64
	Start     climate.Date
	End       climate.Date
	Variables []string
	Providers []string
}

// FusionResult carries one fused series per variable plus how it was produced.
type FusionResult struct {
	RequestID    string                     `json:"request_id"`
	Window       climate.Window             `json:"window"`
	Providers    []string                   `json:"providers"`
	Weights      fusion.WeightSet           `json:"weights"`
	Weighting    fusion.Weighting           `json:"weighting"`
	Plans        []router.Plan              `json:"plans"`
	Series       map[string]*climate.Series `json:"series"`
	Quality      map[string]fusion.Quality  `json:"quality"`
	Unavailable  []string                   `json:"unavailable_variables,omitempty"`
	Attributions []string                   `json:"attributions,omitempty"`
}

// Service wires resolve → select → fetch → fuse.
type Service struct {
	catalog  *catalog.Catalog
	resolver *coverage.Resolver
	router   *router.Router
	fusion   *fusion.Engine
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a new Service.
func NewService(cat *catalog.Catalog, resolver *coverage.Resolver, rt *router.Router, fe *fusion.Engine, opts ...Option) *Service {
	s := &Service{
		catalog:  cat,
		resolver: resolver,
		router:   rt,
		fusion:   fe,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LicenseReport is the registry's status report.
func (s *Service) LicenseReport() license.StatusReport {
	return s.catalog.Licenses.Report()
}

// ResolveSources lists every provider covering the point, sorted by priority then id.
func (s *Service) ResolveSources(lat, lon float64) ([]coverage.Availability, error) {
	avail, err := s.resolver.Resolve(lat, lon, false)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(avail, func(a, b coverage.Availability) int {
		if a.Priority != b.Priority {
			return a.Priority - b.Priority
		}
		switch {
		case a.ProviderID < b.ProviderID:
			return -1
		case a.ProviderID > b.ProviderID:
			return 1
		}
		return 0
	})
	return avail, nil
}

// GetSeries returns one provider's unmodified series. The provider needs a valid license.
func (s *Service) GetSeries(ctx context.Context, providerID string, lat, lon float64, start, end climate.Date) (*climate.Series, error) {
	if _, ok := s.catalog.Get(providerID); !ok {
		return nil, climate.InvalidRequest("provider",
			fmt.Sprintf("provider %q is not registered", providerID), climate.ErrUnknownProvider)
	}
	if ok, details := s.catalog.Licenses.Check(providerID, ""); !ok {
		return nil, climate.LicenseViolation(providerID, "no valid license ("+details.Reason+")")
	}
	return s.router.Fetch(ctx, router.Request{
		ProviderID: providerID,
		Latitude:   lat,
		Longitude:  lon,
		Start:      start,
		End:        end,
	})
}

// DownloadSeries is GetSeries for raw redistribution; the license must allow downloads.
func (s *Service) DownloadSeries(ctx context.Context, providerID string, lat, lon float64, start, end climate.Date) (*climate.Series, error) {
	if _, ok := s.catalog.Get(providerID); ok {
		if allowed, details := s.catalog.Licenses.CheckTerms(providerID, license.UsageDownload); !allowed {
			return nil, climate.LicenseViolation(providerID, "license does not permit download ("+details.Reason+")")
		}
	}
	return s.GetSeries(ctx, providerID, lat, lon, start, end)
}

func (s *Service) Fuse(seriesByProvider map[string]*climate.Series, variable string) (*climate.Series, error) {
	return s.fusion.Fuse(seriesByProvider, variable)
}

func (s *Service) ComputeWeights(ids []string) (fusion.WeightSet, error) {
	return s.fusion.ComputeWeights(ids)
}

// selection is one provider chosen for a fusion request.
type selection struct {
	id        string
	plan      router.Plan
	variables []string
}

// FusedSeries selects providers, checks their licenses before any fetch, fetches all of them
// concurrently and fuses every requested variable. A failed fetch fails the whole request.
func (s *Service) FusedSeries(ctx context.Context, req FusionRequest) (*FusionResult, error) {
	requestID := uuid.NewString()
	log := s.log.With("request_id", requestID)
	w := climate.Window{Start: req.Start, End: req.End}

	variables := req.Variables
	if len(variables) == 0 {
		variables = slices.Clone(climate.AllVariables)
	}
	for _, v := range variables {
		if !climate.IsKnownVariable(v) {
			return nil, climate.InvalidRequest("variables", fmt.Sprintf("unknown variable %q", v), nil)
		}
	}

	if err := s.router.ValidateWindow(req.Start, req.End); err != nil {
		return nil, err
	}

	selected, err := s.selectProviders(req, variables)
	if err != nil {
		if climate.KindOf(err) != climate.KindLicenseViolation {
			s.metrics.IncFusion("error")
		}
		log.Warn("fusion selection failed", "error", err)
		return nil, err
	}

	ids := make([]string, len(selected))
	for i, sel := range selected {
		ids[i] = sel.id
	}
	weights, err := s.fusion.ComputeWeights(ids)
	if err != nil {
		return nil, err
	}
	log.Info("fusion providers selected", "providers", ids, "window", w.String())

	fetched, err := s.fetchAll(ctx, req, selected)
	if err != nil {
		s.metrics.IncFusion("error")
		log.Warn("fusion fetch failed", "provider", climate.ProviderOf(err), "error", err)
		return nil, err
	}

	result := &FusionResult{
		RequestID: requestID,
		Window:    w,
		Providers: ids,
		Weights:   weights,
		Weighting: s.fusion.Weighting(),
		Series:    make(map[string]*climate.Series, len(variables)),
		Quality:   make(map[string]fusion.Quality, len(variables)),
	}
	for _, sel := range selected {
		result.Plans = append(result.Plans, sel.plan)
		if _, details := s.catalog.Licenses.Check(sel.id, ""); details.Attribution != "" {
			result.Attributions = append(result.Attributions, details.Attribution)
		}
	}

	for _, v := range variables {
		subset := make(map[string]*climate.Series)
		for id, series := range fetched {
			if series.HasVariable(v) {
				subset[id] = series
			}
		}
		if len(subset) == 0 {
			result.Unavailable = append(result.Unavailable, v)
			continue
		}

		fused, err := s.fusion.Fuse(subset, v)
		if err != nil {
			return nil, err
		}
		result.Series[v] = fused
		result.Quality[v] = fusion.Score(len(subset), fusion.Coverage(fused, w, v))
	}

	log.Info("fusion complete", "variables", len(result.Series), "unavailable", result.Unavailable)
	return result, nil
}

// selectProviders resolves the provider set and plans each one. Explicit providers must all
// be licensed for fusion, cover the point and accept the window; implicit candidates that
// cannot serve the window are dropped.
func (s *Service) selectProviders(req FusionRequest, variables []string) ([]selection, error) {
	explicit := len(req.Providers) > 0

	var ids []string
	if explicit {
		ids = uniq(req.Providers)
		// License check before anything touches the network.
		if _, err := s.fusion.ComputeWeights(ids); err != nil {
			return nil, err
		}
		if err := climate.ValidateCoordinate(req.Latitude, req.Longitude); err != nil {
			return nil, err
		}
		for _, id := range ids {
			desc, _ := s.catalog.Get(id)
			if !desc.Coverage.Covers(req.Latitude, req.Longitude) {
				return nil, climate.InvalidRequest("providers",
					fmt.Sprintf("provider %s does not cover %.4f,%.4f", id, req.Latitude, req.Longitude), nil)
			}
		}
	} else {
		candidates, err := s.resolver.FusionCandidates(req.Latitude, req.Longitude)
		if err != nil {
			return nil, err
		}
		ids = candidates
	}
	s.catalog.SortByPriority(ids)

	var (
		selected []selection
		firstErr error
	)
	for _, id := range ids {
		desc, _ := s.catalog.Get(id)
		plan, err := s.router.Plan(id, req.Start, req.End)
		if err == nil {
			sel := selection{id: id, plan: plan, variables: supported(desc, variables)}
			if len(sel.variables) > 0 {
				selected = append(selected, sel)
				continue
			}
			err = climate.InvalidRequest("variables",
				fmt.Sprintf("provider %s supplies none of %v", id, variables), nil)
		}
		if explicit {
			return nil, err
		}
		s.log.Debug("dropping fusion candidate", "provider", id, "reason", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	if len(selected) == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, climate.InvalidRequest("providers",
			fmt.Sprintf("no fusable provider covers %.4f,%.4f", req.Latitude, req.Longitude), nil)
	}
	return selected, nil
}

// fetchAll joins on every selected provider. The first failure cancels the others.
func (s *Service) fetchAll(ctx context.Context, req FusionRequest, selected []selection) (map[string]*climate.Series, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]*climate.Series, len(selected))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, sel := range selected {
		sel := sel
		g.Go(func() error {
			series, err := s.router.Fetch(gctx, router.Request{
				ProviderID: sel.id,
				Latitude:   req.Latitude,
				Longitude:  req.Longitude,
				Start:      req.Start,
				End:        req.End,
				Variables:  sel.variables,
			})
			if err != nil {
				return err
			}
			mu.Lock()
			out[sel.id] = series
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func supported(desc climate.ProviderDescriptor, variables []string) []string {
	out := make([]string, 0, len(variables))
	for _, v := range variables {
		if desc.SupportsVariable(v) {
			out = append(out, v)
		}
	}
	return out
}

func uniq(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
