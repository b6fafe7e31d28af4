package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/flowmium-io/flowmium/internal/platform/logger"
)

type fakeArtifactClient struct {
	content string
	err     error
}

func (f *fakeArtifactClient) Put(ctx context.Context, flowID uint64, outputName, localPath string) error {
	return errors.New("not used in this test")
}

func (f *fakeArtifactClient) Get(ctx context.Context, flowID uint64, outputName, localPath string) error {
	return errors.New("not used in this test")
}

func (f *fakeArtifactClient) GetToClient(ctx context.Context, flowID uint64, outputName string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.content)), nil
}

func testArtifactRouter(t *testing.T, client *fakeArtifactClient) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("test")
	require.NoError(t, err)
	h := NewArtifactHandler(client, log)
	r := gin.New()
	r.GET("/api/v1/artefact/:flow_id/:output_name", h.Download)
	return r
}

func TestArtifactDownloadStreamsTheBlob(t *testing.T) {
	r := testArtifactRouter(t, &fakeArtifactClient{content: "binary-payload"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/artefact/1/binary", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "binary-payload", rec.Body.String())
	require.Contains(t, rec.Header().Get("Content-Disposition"), "binary")
}

func TestArtifactDownloadRejectsNonNumericFlowID(t *testing.T) {
	r := testArtifactRouter(t, &fakeArtifactClient{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/artefact/not-a-number/binary", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArtifactDownloadReturns404WhenTheStoreErrors(t *testing.T) {
	r := testArtifactRouter(t, &fakeArtifactClient{err: errors.New("object not found")})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/artefact/1/missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
