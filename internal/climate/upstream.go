package climate

import "context"

//go:generate mockgen -source=upstream.go -destination=../router/mocks/upstream_mock.go -package=mocks

// Upstream abstracts one provider's query contract (NASA POWER, Open-Meteo, NWS, ...).
// Implementations normalize their payload into a Series whose Variables equal q.Variables and
// return *Error values classified by Kind.
type Upstream interface {
	ID() string
	Fetch(ctx context.Context, api API, q Query) (*Series, error)
}
