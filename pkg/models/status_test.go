package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want StatusClass
	}{
		{0, StatusClassNone},
		{200, StatusClassSuccess},
		{299, StatusClassSuccess},
		{301, StatusClassRedirect},
		{404, StatusClassClientError},
		{503, StatusClassServerError},
		{FetchFailureUnknown, StatusClassFetchFailure},
		{FetchFailureBodyRead, StatusClassFetchFailure},
		{607, StatusClassOther},
		{100, StatusClassOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyStatus(tt.code), "ClassifyStatus(%d)", tt.code)
	}
}

func TestStatusClass_String(t *testing.T) {
	assert.Equal(t, "none", StatusClassNone.String())
	assert.Equal(t, "server_error", StatusClassServerError.String())
	assert.Equal(t, "fetch_failure", StatusClassFetchFailure.String())
}

func TestStatusClassifier_Default(t *testing.T) {
	c := DefaultStatusClassifier()
	assert.NoError(t, c.Validate())
	assert.Equal(t, "600-606", c.String())

	for code := 600; code <= 606; code++ {
		assert.True(t, c.IsReportable(code), "code %d", code)
	}
	for _, code := range []int{200, 404, 500, 503, 599, 607} {
		assert.False(t, c.IsReportable(code), "code %d", code)
	}
}

func TestStatusClassifier_Widened(t *testing.T) {
	c := StatusClassifier{ErrorMin: 500, ErrorMax: 606}
	assert.True(t, c.IsReportable(503))
	assert.True(t, c.IsReportable(FetchFailureTimeout))
	assert.False(t, c.IsReportable(404))
}

func TestStatusClassifier_Validate(t *testing.T) {
	assert.Error(t, StatusClassifier{ErrorMin: 0, ErrorMax: 10}.Validate())
	assert.Error(t, StatusClassifier{ErrorMin: 606, ErrorMax: 600}.Validate())
	assert.NoError(t, StatusClassifier{ErrorMin: 600, ErrorMax: 600}.Validate())
}
