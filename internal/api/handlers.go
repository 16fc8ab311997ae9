package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	errorvalues "github.com/limbo/serenity/internal/error_values"
	"github.com/limbo/serenity/internal/service"
	"github.com/limbo/serenity/pkg/entity"
	"github.com/limbo/serenity/pkg/httputil"
)

type CreateMoodRequest struct {
	Mood            string   `json:"mood"`
	Value           float64  `json:"value"`
	DurationMinutes int      `json:"duration_minutes"`
	Factors         []string `json:"factors,omitempty"`
	Note            string   `json:"note,omitempty"`
}

type RadarResponse struct {
	UserID     string                 `json:"uid"`
	Categories []entity.CategoryScore `json:"categories"`
}

type InsightsResponse struct {
	UserID   string           `json:"uid"`
	Insights *entity.Insights `json:"insights"`
	Message  string           `json:"message,omitempty"`
}

func (s *Server) CompleteExercise(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("complete exercise error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	exerciseID := r.PathValue("id")
	if exerciseID == "" {
		logger.Error("complete exercise error: empty id in path value")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid exercise id in path value", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	result, err := s.completionService.CompleteExercise(ctx, uid, exerciseID)
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrExerciseNotFound):
			logger.Error("complete exercise error: unexist exercise")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "exercise doesn't exist", nil)
		case errors.Is(err, errorvalues.ErrUserNotFound):
			logger.Error("complete exercise error: unexist user")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "user doesn't exist", nil)
		default:
			logger.Error("complete exercise error: service error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while completing exercise", nil)
		}
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, result)
	logger.Info("exercise completion recorded")
}

func (s *Server) GetCategoryDistribution(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("radar error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	scores, err := s.radarService.GetCategoryDistribution(ctx, uid)
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrUserNotFound):
			logger.Error("radar error: unexist user")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "user doesn't exist", nil)
		case errors.Is(err, errorvalues.ErrNoTemplateAssigned):
			logger.Error("radar error: no template assigned")
			httputil.WriteErrorResponse(w, http.StatusConflict, "no template assigned", nil)
		case errors.Is(err, errorvalues.ErrTemplateNotFound), errors.Is(err, errorvalues.ErrEmptyTemplate):
			logger.Error("radar error: unusable template")
			httputil.WriteErrorResponse(w, http.StatusConflict, "assigned template has no exercises", nil)
		default:
			logger.Error("radar error: service error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while computing distribution", nil)
		}
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, RadarResponse{
		UserID:     uid,
		Categories: scores,
	})
	logger.Info("category distribution provided")
}

func (s *Server) GetInsights(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("insights error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		timeframe = service.TimeframeWeek
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	defer cancel()
	insights, err := s.insightsService.GenerateInsights(ctx, uid, timeframe)
	if err != nil {
		var rateLimited *errorvalues.RateLimitedError
		switch {
		case errors.Is(err, errorvalues.ErrInvalidTimeframe):
			logger.Error("insights error: invalid timeframe")
			httputil.WriteErrorResponse(w, http.StatusBadRequest, "timeframe must be one of week, month, year", nil)
		case errors.As(err, &rateLimited):
			logger.Warn("insights denied: rate limited")
			w.Header().Set("Retry-After", strconv.Itoa(rateLimited.MinutesToReset*60))
			httputil.WriteErrorResponse(w, http.StatusTooManyRequests, err.Error(), nil)
		default:
			logger.Error("insights error: service error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while generating insights", nil)
		}
		return
	}
	resp := InsightsResponse{UserID: uid, Insights: insights}
	if insights == nil {
		resp.Message = "not enough mood data for this timeframe yet"
	}
	httputil.WriteJSONResponse(w, http.StatusOK, resp)
	logger.Info("insights provided")
}

func (s *Server) CreateMoodEntry(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("create mood error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	var req CreateMoodRequest
	defer r.Body.Close()
	err = sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		logger.Error("create mood error: invalid body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	entry, err := s.insightsService.RecordMoodEntry(ctx, uid, &service.RecordMoodRequest{
		Mood:            req.Mood,
		Value:           req.Value,
		DurationMinutes: req.DurationMinutes,
		Factors:         req.Factors,
		Note:            req.Note,
	})
	if err != nil {
		logger.Error("create mood error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "couldn't save mood entry", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusCreated, entry)
	logger.Info("mood entry created")
}

func (s *Server) GetMyStats(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("get stats error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	stats, err := s.userService.GetStats(ctx, uid)
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			logger.Error("get stats error: unexist user")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "user doesn't exist", nil)
			return
		}
		logger.Error("get stats error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while getting stats", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, stats)
	logger.Info("stats provided")
}

func (s *Server) RunAggregation(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	force := r.URL.Query().Get("force") == "true"
	date := r.URL.Query().Get("date")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute*15)
	defer cancel()
	var (
		snap *entity.DailyStatsSnapshot
		err  error
	)
	if date == "" {
		snap, err = s.aggregation.RunDailyAggregation(ctx)
	} else {
		if _, parseErr := time.Parse(entity.DayFormat, date); parseErr != nil {
			logger.Error("aggregation error: invalid date param")
			httputil.WriteErrorResponse(w, http.StatusBadRequest, "date must be formatted YYYY-MM-DD", nil)
			return
		}
		snap, err = s.aggregation.RunForDate(ctx, date, force)
	}
	if err != nil {
		if errors.Is(err, errorvalues.ErrSnapshotExists) {
			logger.Error("aggregation error: snapshot already written")
			httputil.WriteErrorResponse(w, http.StatusConflict, "snapshot for this date already exists", nil)
			return
		}
		logger.Error("aggregation error: job error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "aggregation run failed", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, snap)
	logger.Info("aggregation run triggered", slog.String("date", snap.Date))
}
