package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/stepwise/internal/logging"
	"github.com/copyleftdev/stepwise/internal/optimization"
)

func TestWrapAnnotatesOperation(t *testing.T) {
	err := Wrap(fs.ErrNotExist, "loading problems.yaml")
	assert.Equal(t, "loading problems.yaml: file does not exist", err.Error())
	assert.ErrorIs(t, err, fs.ErrNotExist)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "loading problems.yaml", e.Op)
	require.NotEmpty(t, e.Stack)
	assert.Contains(t, e.Stack[0], "TestWrapAnnotatesOperation")

	assert.Nil(t, Wrap(nil, "x"))
	assert.Nil(t, Wrapf(nil, "x %d", 1))
}

func TestWrapfKeepsEngineKinds(t *testing.T) {
	cause := optimization.Errorf(optimization.KindBracket, "no sign change")
	err := fmt.Errorf("solve: %w", Wrapf(cause, "POST %s", "/api/v1/solve/bisection"))

	assert.ErrorIs(t, err, optimization.ErrBracket)
	kind, ok := optimization.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, optimization.KindBracket, kind)
	assert.NotEmpty(t, StackOf(err))
	assert.Nil(t, StackOf(fs.ErrClosed))
}

func TestFields(t *testing.T) {
	fields := Fields(Wrap(fs.ErrPermission, "opening run file"))
	assert.Equal(t, "opening run file: permission denied", fields["error"])
	assert.Equal(t, "opening run file", fields["op"])
	assert.Contains(t, fields["stack"], "TestFields")

	assert.Equal(t, map[string]interface{}{"error": "file already closed"}, Fields(fs.ErrClosed))
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	h := RecoveryMiddleware(logging.New(logging.ErrorLevel, &buf))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/gmm", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body Body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Internal Server Error", body.Error)
	assert.Contains(t, buf.String(), "kaboom")
}

func TestErrorHandlerLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.DebugLevel, &buf)

	ok := ErrorHandler(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("fine"))
	}))
	ok.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, buf.String())

	bad := ErrorHandler(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusUnprocessableEntity, Body{Kind: "bracket", Message: "no sign change"})
	}))
	rec := httptest.NewRecorder()
	bad.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/solve/bisection", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, buf.String(), `"status":422`)
	assert.Contains(t, rec.Body.String(), `"kind":"bracket"`)
}
