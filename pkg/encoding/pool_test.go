package encoding

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()

	err := WriteJSON(rec, http.StatusConflict, map[string]string{"code": "SEQUENCE_COLLISION"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"code":"SEQUENCE_COLLISION"}`, rec.Body.String())
	assert.Equal(t, "30", rec.Header().Get("Content-Length"))
}

func TestWriteJSON_EncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()

	err := WriteJSON(rec, http.StatusOK, math.Inf(1))

	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPutBuffer_DropsLargeBuffers(t *testing.T) {
	buf := getBuffer()
	buf.Grow(maxPooledBuffer * 2)
	putBuffer(buf)

	assert.Equal(t, 0, getBuffer().Len())
}
