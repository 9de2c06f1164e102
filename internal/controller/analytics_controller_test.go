package controller

import (
	"learner_insight/internal/model"
	"learner_insight/internal/util"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queryContext(rawQuery string) *gin.Context {
	gin.SetMode(gin.TestMode)
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Request = httptest.NewRequest(http.MethodGet, "/api/analytics/snapshot?"+rawQuery, nil)
	return ctx
}

func TestBuildQueryDefaults(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	c := &AnalyticsController{now: func() time.Time { return now }}

	q, err := c.buildQuery(queryContext(""), &util.Claims{LearnerID: "t-1", Role: "teacher"})
	require.NoError(t, err)
	assert.Equal(t, model.GranularityDay, q.Granularity)
	assert.Equal(t, now, q.To)
	assert.Equal(t, now.Add(-30*24*time.Hour), q.From)
	assert.Empty(t, q.LearnerID)
}

func TestBuildQueryScopesStudents(t *testing.T) {
	c := NewAnalyticsController(nil)

	q, err := c.buildQuery(queryContext("learnerId=l-2&classId=c-1&from=2024-03-01&to=2024-03-08T00:00:00Z&granularity=week"),
		&util.Claims{LearnerID: "l-1", Role: "Student"})
	require.NoError(t, err)
	assert.Equal(t, "l-1", q.LearnerID)
	assert.Equal(t, "c-1", q.ClassID)
	assert.Equal(t, model.GranularityWeek, q.Granularity)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), q.From)
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), q.To)

	q, err = c.buildQuery(queryContext("learnerId=l-2"), &util.Claims{LearnerID: "t-1", Role: "teacher"})
	require.NoError(t, err)
	assert.Equal(t, "l-2", q.LearnerID)
}

func TestBuildQueryRejectsBadInput(t *testing.T) {
	c := NewAnalyticsController(nil)
	user := &util.Claims{LearnerID: "l-1", Role: "student"}

	_, err := c.buildQuery(queryContext("granularity=decade"), user)
	assert.ErrorIs(t, err, util.ErrInvalidGranularity)

	_, err = c.buildQuery(queryContext("from=yesterday"), user)
	assert.ErrorIs(t, err, util.ErrInvalidTimeRange)
}
