package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipwise/appraiser/internal/domain"
)

type stubProvider struct {
	text string
	err  error
}

func (p *stubProvider) Ask(ctx context.Context, prompt string) (string, error) {
	return p.text, p.err
}

type stubValidator struct {
	ok  bool
	ref float64
}

func (v *stubValidator) Validate(candidate float64, year int, title domain.TitleStatus) (bool, float64) {
	return v.ok, v.ref
}

func testQuery() *domain.VehicleQuery {
	return &domain.VehicleQuery{
		Make:        "chevrolet",
		Model:       "malibu",
		Year:        2014,
		Mileage:     160000,
		TitleStatus: domain.TitleClean,
		Location:    "spokane, wa",
	}
}

func newService(p *stubProvider, v *stubValidator) *Service {
	return NewService(p, v, DefaultConfig(), zerolog.Nop())
}

func TestBuildPrompt(t *testing.T) {
	q := testQuery()
	q.TitleStatus = domain.TitleRebuilt
	q.Trim = "lt"

	prompt := BuildPrompt(q)

	assert.Contains(t, prompt, "2014 chevrolet malibu lt")
	assert.Contains(t, prompt, "160000 miles")
	assert.Contains(t, prompt, "rebuilt title")
	assert.Contains(t, prompt, "spokane, wa")
	assert.Contains(t, prompt, "used private-party market value")
	assert.Contains(t, prompt, "Do not quote MSRP")
}

func TestBuildPrompt_CleanTitleOmitted(t *testing.T) {
	prompt := BuildPrompt(testQuery())
	assert.NotContains(t, prompt, "clean title")
}

func TestDiscover_HappyPath(t *testing.T) {
	p := &stubProvider{text: "Private party sales run $8,000 to $9,500 around there."}
	s := newService(p, &stubValidator{ok: true})

	est, err := s.Discover(context.Background(), testQuery())

	require.NoError(t, err)
	assert.Equal(t, domain.SourceDiscovered, est.Source)
	assert.InDelta(t, 8750, est.BaseValue, 0.01)
	assert.InDelta(t, 8750, est.RawValueBeforeAdjustment, 0.01)
}

func TestDiscover_StructuredBlockWins(t *testing.T) {
	p := &stubProvider{text: "Listings go for $12,000 or more.\n```json\n{\"low\": 8200, \"high\": 9000}\n```"}
	s := newService(p, &stubValidator{ok: true})

	est, err := s.Discover(context.Background(), testQuery())

	require.NoError(t, err)
	assert.InDelta(t, 8600, est.BaseValue, 0.01)
}

func TestDiscover_MalformedStructuredBlockFails(t *testing.T) {
	p := &stubProvider{text: "Private party sales run $8,000 to $9,500.\n```json\n{\"low\": \"oops\n```"}
	s := newService(p, &stubValidator{ok: true})

	_, err := s.Discover(context.Background(), testQuery())

	assert.ErrorIs(t, err, domain.ErrNoExtractablePrice)
}

func TestDiscover_MSRPOnlyContentFails(t *testing.T) {
	p := &stubProvider{text: "MSRP $35,000"}
	s := newService(p, &stubValidator{ok: true})

	_, err := s.Discover(context.Background(), testQuery())

	assert.ErrorIs(t, err, domain.ErrNoExtractablePrice)
}

func TestDiscover_NoCandidatesFails(t *testing.T) {
	p := &stubProvider{text: "Hard to say without seeing the car."}
	s := newService(p, &stubValidator{ok: true})

	_, err := s.Discover(context.Background(), testQuery())

	assert.ErrorIs(t, err, domain.ErrNoExtractablePrice)
}

func TestDiscover_ProviderErrorFails(t *testing.T) {
	p := &stubProvider{err: errors.New("upstream 503")}
	s := newService(p, &stubValidator{ok: true})

	_, err := s.Discover(context.Background(), testQuery())

	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestDiscover_EmptyResponseFails(t *testing.T) {
	p := &stubProvider{text: "   \n  "}
	s := newService(p, &stubValidator{ok: true})

	_, err := s.Discover(context.Background(), testQuery())

	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestDiscover_SanityRejectionFails(t *testing.T) {
	p := &stubProvider{text: "They sell for $50,000 privately."}
	s := newService(p, &stubValidator{ok: false, ref: 10000})

	_, err := s.Discover(context.Background(), testQuery())

	assert.ErrorIs(t, err, domain.ErrSanityRejected)
}

func TestDiscover_ImplausibleStructuredBlockFallsBackToText(t *testing.T) {
	p := &stubProvider{text: "Private party sales run $8,000 to $9,500.\n```json\n{\"low\": 1, \"high\": 2}\n```"}
	s := newService(p, &stubValidator{ok: true})

	est, err := s.Discover(context.Background(), testQuery())

	require.NoError(t, err)
	assert.InDelta(t, 8750, est.BaseValue, 0.01)
}
