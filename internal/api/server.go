package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seawork/vacancy-crawler/internal/enrich"
	"github.com/seawork/vacancy-crawler/internal/scan"
	"github.com/seawork/vacancy-crawler/internal/store"
	"github.com/seawork/vacancy-crawler/internal/telemetry"
)

const (
	requestTimeout  = 60 * time.Second
	defaultVacLimit = 20
	maxVacLimit     = 100
	defaultRunLimit = 50
	maxRunLimit     = 500
)

// VacancyProcessor runs one ID through the fetch-parse-persist pipeline.
type VacancyProcessor interface {
	Process(ctx context.Context, id int64) bool
}

// ScanController serializes background scans.
type ScanController interface {
	Start(start int64, end *int64) (uuid.UUID, error)
	Stop() bool
	Status() scan.Status
}

// Enricher runs one company contact backfill batch.
type Enricher interface {
	Run(ctx context.Context) (enrich.Summary, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries everything the HTTP layer serves. Enricher and Pinger may be
// nil: enrichment then answers 503 and readiness is unconditional.
type Deps struct {
	Vacancies  store.VacancyRepository
	Companies  store.CompanyRepository
	Runs       store.RunRepository
	Processor  VacancyProcessor
	Controller ScanController
	Enricher   Enricher
	Pinger     Pinger
	Logger     *zap.Logger
	// APIKey guards /v1 when non-empty.
	APIKey string
}

// Server exposes the crawler's collaborator and operator interface.
type Server struct {
	router chi.Router
	deps   Deps
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{deps: deps, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(timeoutMiddleware(requestTimeout))
	r.Use(telemetry.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/v1", func(r chi.Router) {
		if deps.APIKey != "" {
			r.Use(apiKeyMiddleware(deps.APIKey))
		}
		r.Route("/vacancies", func(r chi.Router) {
			r.Get("/", s.listRecentVacancies)
			r.Get("/last-id", s.lastKnownID)
			r.Route("/{vacancy_id}", func(r chi.Router) {
				r.Get("/", s.getVacancy)
				r.Post("/process", s.processVacancy)
			})
		})
		r.Route("/companies", func(r chi.Router) {
			r.Post("/enrich", s.enrichCompanies)
			r.Get("/{company_id}", s.getCompany)
		})
		r.Route("/scans", func(r chi.Router) {
			r.Post("/", s.startScan)
			r.Get("/current", s.currentScan)
			r.Delete("/current", s.stopScan)
		})
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.listRuns)
			r.Get("/{run_id}", s.getRun)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.deps.Pinger.Ping(ctx); err != nil {
			s.logger.Warn("readiness probe failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) processVacancy(w http.ResponseWriter, r *http.Request) {
	id, err := parseInt64Param(r, "vacancy_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stored := s.deps.Processor.Process(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]bool{"stored": stored})
}

func (s *Server) lastKnownID(w http.ResponseWriter, r *http.Request) {
	last, err := s.deps.Vacancies.LastKnownID(r.Context())
	if err != nil {
		s.logger.Error("last known id failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read last id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"last_id": last})
}

func (s *Server) getVacancy(w http.ResponseWriter, r *http.Request) {
	id, err := parseInt64Param(r, "vacancy_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	vacancy, err := s.deps.Vacancies.GetVacancy(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "vacancy not found")
			return
		}
		s.logger.Error("get vacancy failed", zap.Int64("vacancy_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load vacancy")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vacancy": toVacancyDTO(vacancy)})
}

func (s *Server) listRecentVacancies(w http.ResponseWriter, r *http.Request) {
	limit, _, err := parseLimitOffset(r, defaultVacLimit, maxVacLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	vacancies, err := s.deps.Vacancies.RecentVacancies(r.Context(), limit)
	if err != nil {
		s.logger.Error("list vacancies failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list vacancies")
		return
	}
	out := make([]vacancyDTO, 0, len(vacancies))
	for _, v := range vacancies {
		out = append(out, toVacancyDTO(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"vacancies": out})
}

func (s *Server) getCompany(w http.ResponseWriter, r *http.Request) {
	id, err := parseInt64Param(r, "company_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	company, err := s.deps.Companies.GetCompany(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "company not found")
			return
		}
		s.logger.Error("get company failed", zap.Int64("company_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load company")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"company": toCompanyDTO(company)})
}

func (s *Server) enrichCompanies(w http.ResponseWriter, r *http.Request) {
	if s.deps.Enricher == nil {
		writeError(w, http.StatusServiceUnavailable, "enrichment is disabled")
		return
	}
	sum, err := s.deps.Enricher.Run(r.Context())
	if err != nil {
		s.logger.Error("enrichment batch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "enrichment batch failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"enriched": sum.Enriched, "skipped": sum.Skipped})
}

func parseInt64Param(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", requestIDFrom(r.Context())),
			)
		})
	}
}

func recoverer(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rec), zap.String("path", r.URL.Path))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	want := []byte(expected)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("X-API-Key"))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// vacancyDTO mirrors the persisted columns; the notification bot and the
// email dispatcher consume the same shapes.
type vacancyDTO struct {
	ID                   int64     `json:"id"`
	Title                string    `json:"title"`
	Published            string    `json:"published,omitempty"`
	Views                string    `json:"views,omitempty"`
	JoinDate             string    `json:"join_date,omitempty"`
	ContractLength       string    `json:"contract_length,omitempty"`
	SailingArea          string    `json:"sailing_area,omitempty"`
	VesselType           string    `json:"vessel_type,omitempty"`
	VesselName           string    `json:"vessel_name,omitempty"`
	BuiltYear            string    `json:"built_year,omitempty"`
	DWT                  string    `json:"dwt,omitempty"`
	EngineType           string    `json:"engine_type,omitempty"`
	EnginePower          string    `json:"engine_power,omitempty"`
	Crew                 string    `json:"crew,omitempty"`
	EnglishLevel         string    `json:"english_level,omitempty"`
	AgeLimit             string    `json:"age_limit,omitempty"`
	VisaRequired         string    `json:"visa_required,omitempty"`
	Experience           string    `json:"experience,omitempty"`
	ExperienceTypeVessel string    `json:"experience_type_vessel,omitempty"`
	Salary               string    `json:"salary,omitempty"`
	Phone                string    `json:"phone,omitempty"`
	Email                string    `json:"email,omitempty"`
	EmailSubject         string    `json:"email_subject,omitempty"`
	Manager              string    `json:"manager,omitempty"`
	Agency               string    `json:"agency,omitempty"`
	Website              string    `json:"website,omitempty"`
	AdditionalInfo       string    `json:"additional_info,omitempty"`
	CompanyID            *int64    `json:"company_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func toVacancyDTO(v store.Vacancy) vacancyDTO {
	return vacancyDTO{
		ID:                   v.ID,
		Title:                v.Title,
		Published:            v.Published,
		Views:                v.Views,
		JoinDate:             v.JoinDate,
		ContractLength:       v.ContractLength,
		SailingArea:          v.SailingArea,
		VesselType:           v.VesselType,
		VesselName:           v.VesselName,
		BuiltYear:            v.BuiltYear,
		DWT:                  v.DWT,
		EngineType:           v.EngineType,
		EnginePower:          v.EnginePower,
		Crew:                 v.Crew,
		EnglishLevel:         v.EnglishLevel,
		AgeLimit:             v.AgeLimit,
		VisaRequired:         v.VisaRequired,
		Experience:           v.Experience,
		ExperienceTypeVessel: v.ExperienceTypeVessel,
		Salary:               v.Salary,
		Phone:                v.Phone,
		Email:                v.Email,
		EmailSubject:         v.EmailSubject,
		Manager:              v.Manager,
		Agency:               v.Agency,
		Website:              v.Website,
		AdditionalInfo:       v.AdditionalInfo,
		CompanyID:            v.CompanyID,
		CreatedAt:            v.CreatedAt,
		UpdatedAt:            v.UpdatedAt,
	}
}

type companyDTO struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Country   string    `json:"country,omitempty"`
	City      string    `json:"city,omitempty"`
	URL       string    `json:"url,omitempty"`
	Phones    string    `json:"phones,omitempty"`
	Email     string    `json:"email,omitempty"`
	Website   string    `json:"website,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toCompanyDTO(c store.Company) companyDTO {
	return companyDTO{
		ID:        c.ID,
		Name:      c.Name,
		Country:   c.Country,
		City:      c.City,
		URL:       c.URL,
		Phones:    c.Phones,
		Email:     c.Email,
		Website:   c.Website,
		Address:   c.Address,
		CreatedAt: c.CreatedAt,
	}
}
