package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/epi-metrics-service/internal/domain"
	"github.com/couchcryptid/epi-metrics-service/internal/pipeline"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// Explorer query parameters. Unset parameters fall back to the dashboard
// defaults of the current snapshot.
type caseParams struct {
	Region          string    `validate:"max=64"`
	Start           time.Time `validate:"-"`
	Rolling         int       `validate:"min=1,max=56"`
	GrowthInterval  int       `validate:"min=1,max=90"`
	GrowthSmoothing int       `validate:"min=1,max=29"`
	Dividers        []int     `validate:"max=12,dive,gt=0,lt=120"`
}

// noneValue requests an explicitly empty list, e.g. dividers=none for the
// single "0+ yrs" band.
const noneValue = "none"

type vaccinationParams struct {
	Start time.Time `validate:"-"`
	Bands []string  `validate:"max=4,dive,required"`
}

type ratioParams struct {
	Start   time.Time `validate:"-"`
	Rolling int       `validate:"min=1,max=56"`
	Offset  int       `validate:"min=0,max=56"`
	Bands   []string  `validate:"max=4,dive,required"`
}

type lagParams struct {
	Start   time.Time `validate:"-"`
	End     time.Time `validate:"-"`
	Rolling int       `validate:"min=1,max=56"`
	Lag     int       `validate:"min=0,max=56"`
	Band    string    `validate:"required"`
}

type regionsResponse struct {
	SnapshotID string   `json:"snapshot_id"`
	Regions    []string `json:"regions"`
}

type datesResponse struct {
	SnapshotID   string    `json:"snapshot_id"`
	BuiltAt      time.Time `json:"built_at"`
	Dates        []string  `json:"dates"`
	DefaultStart string    `json:"default_start"`
	LastDate     string    `json:"last_date"`
}

type casesResponse struct {
	SnapshotID    string        `json:"snapshot_id"`
	Region        string        `json:"region"`
	PerPopulation domain.Series `json:"per_population"`
	Growth        domain.Series `json:"growth"`
}

type seriesResponse struct {
	SnapshotID string        `json:"snapshot_id"`
	Series     domain.Series `json:"series"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error  string       `json:"error"`
	Fields []fieldError `json:"fields,omitempty"`
}

// paramError reports query parameters that failed to parse or validate.
type paramError struct {
	fields []fieldError
}

func (e *paramError) Error() string {
	parts := make([]string, len(e.fields))
	for i, f := range e.fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid query parameters: " + strings.Join(parts, "; ")
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	s.serveQuery(w, r, "regions", func(snap *pipeline.Snapshot, _ *queryParser) (any, error) {
		return regionsResponse{SnapshotID: snap.ID, Regions: snap.Regions}, nil
	})
}

func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	s.serveQuery(w, r, "dates", func(snap *pipeline.Snapshot, _ *queryParser) (any, error) {
		dates := make([]string, len(snap.Dates))
		for i, d := range snap.Dates {
			dates[i] = d.Format(domain.DateLayout)
		}
		return datesResponse{
			SnapshotID:   snap.ID,
			BuiltAt:      snap.BuiltAt,
			Dates:        dates,
			DefaultStart: pipeline.DefaultCaseQuery(snap).Start.Format(domain.DateLayout),
			LastDate:     snap.LastDate().Format(domain.DateLayout),
		}, nil
	})
}

func (s *Server) handleCases(w http.ResponseWriter, r *http.Request) {
	s.serveQuery(w, r, "cases", func(snap *pipeline.Snapshot, qp *queryParser) (any, error) {
		def := pipeline.DefaultCaseQuery(snap)
		p := caseParams{
			Region:          qp.string("region", domain.NationalAggregate),
			Start:           qp.date("start", def.Start),
			Rolling:         qp.int("rolling", def.Rolling),
			GrowthInterval:  qp.int("growth_interval", def.GrowthInterval),
			GrowthSmoothing: qp.int("growth_smoothing", def.GrowthSmoothing),
			Dividers:        qp.ints("dividers", def.Dividers),
		}
		if err := s.check(qp, p); err != nil {
			return nil, err
		}

		region := domain.ParseRegion(p.Region)
		res, err := snap.CaseAnalysis(pipeline.CaseQuery{
			Region:          region,
			Start:           p.Start,
			Rolling:         p.Rolling,
			GrowthInterval:  p.GrowthInterval,
			GrowthSmoothing: p.GrowthSmoothing,
			Dividers:        p.Dividers,
		})
		if err != nil {
			return nil, err
		}
		return casesResponse{
			SnapshotID:    snap.ID,
			Region:        region.String(),
			PerPopulation: res.PerPopulation,
			Growth:        res.Growth,
		}, nil
	})
}

func (s *Server) handleVaccinations(w http.ResponseWriter, r *http.Request) {
	s.serveQuery(w, r, "vaccinations", func(snap *pipeline.Snapshot, qp *queryParser) (any, error) {
		p := vaccinationParams{
			Start: qp.date("start", pipeline.DefaultCaseQuery(snap).Start),
			Bands: qp.strings("band", nil),
		}
		if err := s.check(qp, p); err != nil {
			return nil, err
		}

		vax, err := snap.VaccinationCoverage(pipeline.VaccinationQuery{Start: p.Start, Bands: p.Bands})
		if err != nil {
			return nil, err
		}
		return seriesResponse{SnapshotID: snap.ID, Series: vax}, nil
	})
}

func (s *Server) handleRatio(w http.ResponseWriter, r *http.Request) {
	s.serveQuery(w, r, "ratio", func(snap *pipeline.Snapshot, qp *queryParser) (any, error) {
		def := pipeline.DefaultRatioQuery(snap)
		p := ratioParams{
			Start:   qp.date("start", def.Start),
			Rolling: qp.int("rolling", def.Rolling),
			Offset:  qp.int("offset", def.Offset),
			Bands:   qp.strings("band", def.Bands),
		}
		if err := s.check(qp, p); err != nil {
			return nil, err
		}

		ratio, err := snap.AdmissionRatio(pipeline.RatioQuery{
			Start:   p.Start,
			Rolling: p.Rolling,
			Offset:  p.Offset,
			Bands:   p.Bands,
		})
		if err != nil {
			return nil, err
		}
		return seriesResponse{SnapshotID: snap.ID, Series: ratio}, nil
	})
}

func (s *Server) handleLag(w http.ResponseWriter, r *http.Request) {
	s.serveQuery(w, r, "lag", func(snap *pipeline.Snapshot, qp *queryParser) (any, error) {
		def := pipeline.DefaultLagQuery(snap)
		p := lagParams{
			Start:   qp.date("start", def.Start),
			End:     qp.date("end", def.End),
			Rolling: qp.int("rolling", def.Rolling),
			Lag:     qp.int("lag", def.Lag),
			Band:    qp.string("band", def.Band),
		}
		if err := s.check(qp, p); err != nil {
			return nil, err
		}

		table, err := snap.LagAnalysis(pipeline.LagQuery{
			Start:   p.Start,
			End:     p.End,
			Rolling: p.Rolling,
			Lag:     p.Lag,
			Band:    p.Band,
		})
		if err != nil {
			return nil, err
		}
		return seriesResponse{SnapshotID: snap.ID, Series: table}, nil
	})
}

type queryFunc func(snap *pipeline.Snapshot, qp *queryParser) (any, error)

// serveQuery resolves the current snapshot, runs fn and renders its result
// or the mapped error, recording query metrics.
func (s *Server) serveQuery(w http.ResponseWriter, r *http.Request, query string, fn queryFunc) {
	start := time.Now()
	defer func() {
		s.metrics.QueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
	}()

	snap, err := s.snapshots.Snapshot()
	if err == nil {
		var resp any
		resp, err = fn(snap, &queryParser{values: r.URL.Query()})
		if err == nil {
			s.metrics.QueryRequests.WithLabelValues(query, "success").Inc()
			render.JSON(w, r, resp)
			return
		}
	}

	status, body := errorStatus(err)
	outcome := "invalid"
	if status >= http.StatusInternalServerError {
		outcome = "error"
		s.logger.Error("query failed", "query", query, "error", err, "url", r.URL.String())
	}
	s.metrics.QueryRequests.WithLabelValues(query, outcome).Inc()
	render.Status(r, status)
	render.JSON(w, r, body)
}

// check reports parse failures first, then struct validation failures.
func (s *Server) check(qp *queryParser, params any) error {
	if len(qp.errs) > 0 {
		return &paramError{fields: qp.errs}
	}
	err := s.validate.Struct(params)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	pe := &paramError{fields: make([]fieldError, len(verrs))}
	for i, fe := range verrs {
		pe.fields[i] = fieldError{
			Field:   fe.Field(),
			Message: fmt.Sprintf("failed %q (%s)", fe.Tag(), fe.Param()),
		}
	}
	return pe
}

// errorStatus maps an error onto an HTTP status and response body.
func errorStatus(err error) (int, errorResponse) {
	var pe *paramError
	switch {
	case errors.As(err, &pe):
		return http.StatusBadRequest, errorResponse{Error: "invalid query parameters", Fields: pe.fields}
	case errors.Is(err, domain.ErrInvalidParameter), errors.Is(err, domain.ErrUnknownAgeBand):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrUnknownRegion):
		return http.StatusNotFound, errorResponse{Error: err.Error()}
	case errors.Is(err, pipeline.ErrNotReady):
		return http.StatusServiceUnavailable, errorResponse{Error: err.Error()}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal error"}
	}
}

// queryParser reads typed query parameters, collecting every parse failure.
type queryParser struct {
	values url.Values
	errs   []fieldError
}

func (p *queryParser) fail(name, msg string) {
	p.errs = append(p.errs, fieldError{Field: name, Message: msg})
}

func (p *queryParser) string(name, def string) string {
	if v := strings.TrimSpace(p.values.Get(name)); v != "" {
		return v
	}
	return def
}

func (p *queryParser) int(name string, def int) int {
	raw := strings.TrimSpace(p.values.Get(name))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(name, fmt.Sprintf("%q is not an integer", raw))
		return def
	}
	return v
}

func (p *queryParser) date(name string, def time.Time) time.Time {
	raw := strings.TrimSpace(p.values.Get(name))
	if raw == "" {
		return def
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		p.fail(name, fmt.Sprintf("%q is not a %s date", raw, domain.DateLayout))
		return def
	}
	return d
}

// strings accepts repeated parameters and comma-separated lists.
func (p *queryParser) strings(name string, def []string) []string {
	var out []string
	for _, v := range p.values[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func (p *queryParser) ints(name string, def []int) []int {
	raw := p.strings(name, nil)
	if raw == nil {
		return def
	}
	if len(raw) == 1 && raw[0] == noneValue {
		return []int{}
	}
	out := make([]int, 0, len(raw))
	for _, s := range raw {
		v, err := strconv.Atoi(s)
		if err != nil {
			p.fail(name, fmt.Sprintf("%q is not an integer", s))
			return def
		}
		out = append(out, v)
	}
	return out
}
