package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tskoli/kaiwa/internal/domain"
	"github.com/tskoli/kaiwa/internal/service"
)

type fakeSettings struct {
	profile *domain.LearnerProfile

	gotValue     string
	gotConfirmed bool
	wiped        bool
	err          error
}

func (f *fakeSettings) UpdateDailyPromptTime(_ context.Context, _ uuid.UUID, value string) (*domain.LearnerProfile, error) {
	f.gotValue = value
	if f.err != nil {
		return nil, f.err
	}
	f.profile.DailyPromptTime = value
	return f.profile, nil
}

func (f *fakeSettings) UpdateMode(_ context.Context, _ uuid.UUID, value string) (*domain.LearnerProfile, error) {
	f.gotValue = value
	if f.err != nil {
		return nil, f.err
	}
	f.profile.Mode = domain.PracticeMode(value)
	return f.profile, nil
}

func (f *fakeSettings) UpdateIntensity(_ context.Context, _ uuid.UUID, value string) (*domain.LearnerProfile, error) {
	f.gotValue = value
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

func (f *fakeSettings) Wipe(_ context.Context, _ uuid.UUID, confirmed bool) error {
	f.gotConfirmed = confirmed
	if !confirmed {
		return service.NewServiceError("wipe", "confirmation step missing", service.ErrWipeNotConfirmed)
	}
	if f.err != nil {
		return f.err
	}
	f.wiped = true
	return nil
}

type fakeRescheduler struct {
	gotTime string
	err     error
}

func (f *fakeRescheduler) Reschedule(dailyTime string) error {
	f.gotTime = dailyTime
	return f.err
}

func newSettingsFixture(t *testing.T) (*SettingsHandler, *fakeSettings, *fakeRescheduler, *domain.LearnerProfile) {
	t.Helper()

	profile, err := domain.NewLearnerProfile(uuid.New(), "Aki", "UTC")
	require.NoError(t, err)
	settings := &fakeSettings{profile: profile}
	rescheduler := &fakeRescheduler{}
	return NewSettingsHandler(settings, rescheduler, testLogger()), settings, rescheduler, profile
}

func TestSettingsHandler_HandleDailyTime(t *testing.T) {
	t.Parallel()

	t.Run("updates and reschedules", func(t *testing.T) {
		t.Parallel()

		h, settings, rescheduler, profile := newSettingsFixture(t)
		req := authedRequest(t, http.MethodPut, "/api/settings/daily-time", profile.ID, SettingRequest{Value: "21:30"})
		rec := httptest.NewRecorder()
		h.HandleDailyTime(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "21:30", settings.gotValue)
		assert.Equal(t, "21:30", rescheduler.gotTime)

		var body domain.LearnerProfile
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "21:30", body.DailyPromptTime)
	})

	t.Run("reschedule failure still succeeds", func(t *testing.T) {
		t.Parallel()

		h, _, rescheduler, profile := newSettingsFixture(t)
		rescheduler.err = assert.AnError

		req := authedRequest(t, http.MethodPut, "/api/settings/daily-time", profile.ID, SettingRequest{Value: "07:00"})
		rec := httptest.NewRecorder()
		h.HandleDailyTime(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("invalid value", func(t *testing.T) {
		t.Parallel()

		h, settings, _, profile := newSettingsFixture(t)
		settings.err = service.NewServiceError("update_daily_prompt_time", "invalid time", service.ErrInvalidSetting)

		req := authedRequest(t, http.MethodPut, "/api/settings/daily-time", profile.ID, SettingRequest{Value: "25:00"})
		rec := httptest.NewRecorder()
		h.HandleDailyTime(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSettingsHandler_HandleMode(t *testing.T) {
	t.Parallel()

	h, settings, _, profile := newSettingsFixture(t)
	req := authedRequest(t, http.MethodPut, "/api/settings/mode", profile.ID, SettingRequest{Value: "drill"})
	rec := httptest.NewRecorder()
	h.HandleMode(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "drill", settings.gotValue)
}

func TestSettingsHandler_HandleWipe(t *testing.T) {
	t.Parallel()

	t.Run("without confirmation header", func(t *testing.T) {
		t.Parallel()

		h, settings, _, profile := newSettingsFixture(t)
		req := authedRequest(t, http.MethodDelete, "/api/learner", profile.ID, nil)
		rec := httptest.NewRecorder()
		h.HandleWipe(rec, req)

		assert.Equal(t, http.StatusPreconditionRequired, rec.Code)
		assert.False(t, settings.wiped)
	})

	t.Run("confirmation header with wrong value", func(t *testing.T) {
		t.Parallel()

		h, settings, _, profile := newSettingsFixture(t)
		req := authedRequest(t, http.MethodDelete, "/api/learner", profile.ID, nil)
		req.Header.Set(ConfirmWipeHeader, uuid.NewString())
		rec := httptest.NewRecorder()
		h.HandleWipe(rec, req)

		assert.Equal(t, http.StatusPreconditionRequired, rec.Code)
		assert.False(t, settings.wiped)
	})

	t.Run("confirmed wipe", func(t *testing.T) {
		t.Parallel()

		h, settings, _, profile := newSettingsFixture(t)
		req := authedRequest(t, http.MethodDelete, "/api/learner", profile.ID, nil)
		req.Header.Set(ConfirmWipeHeader, profile.ID.String())
		rec := httptest.NewRecorder()
		h.HandleWipe(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.True(t, settings.wiped)
		assert.True(t, settings.gotConfirmed)
	})
}
