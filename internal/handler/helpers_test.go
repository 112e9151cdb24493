package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"docsign/internal/domain"
	"docsign/internal/handler"
	"docsign/internal/middleware"
	"docsign/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testActor = service.Actor{ID: "user-1", Type: domain.ActorUser, Name: "Ana Souza", Email: "ana@example.com"}

// newContext builds a test context for one request. params are alternating
// name/value path parameters.
func newContext(method, target string, body io.Reader, params ...string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(method, target, body)
	for i := 0; i+1 < len(params); i += 2 {
		c.Params = append(c.Params, gin.Param{Key: params[i], Value: params[i+1]})
	}
	return c, w
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func withJSON(c *gin.Context) *gin.Context {
	c.Request.Header.Set("Content-Type", "application/json")
	return c
}

func withActor(c *gin.Context) *gin.Context {
	c.Set(middleware.ContextKeyActor, testActor)
	return c
}

// multipartBody encodes fields and a single file part.
func multipartBody(t *testing.T, fileField, fileName string, content []byte, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		part, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode(t *testing.T, w *httptest.ResponseRecorder) handler.APIResponse {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decode(t, w)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}
