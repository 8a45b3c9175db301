package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickup/internal/config"
	"pickup/internal/pickup"
	"pickup/internal/qrtoken"
)

func newVerifyRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	// The malformed-token path never touches storage, so a bare service is
	// enough to exercise binding plus error mapping.
	svc := pickup.NewService(nil, nil, qrtoken.NewIssuer("verify-test-key", "pickup-test"), nil, pickup.Policy{RadiusM: 200})
	h := New(config.App{}, svc, nil, nil)
	r := gin.New()
	r.POST("/verify-qr", h.verifyQR)
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestVerifyQRAcceptsZeroCoordinates(t *testing.T) {
	r := newVerifyRouter()

	// A scan at 0,0 must bind and reach token verification; the garbage
	// token then fails with the mapped message, not a binding error.
	w := postJSON(r, "/verify-qr", `{"token":"not-a-token","lat":0,"lng":0}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "qr code not recognized")
}

func TestVerifyQRRequiresCoordinates(t *testing.T) {
	r := newVerifyRouter()

	w := postJSON(r, "/verify-qr", `{"token":"not-a-token"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotContains(t, w.Body.String(), "qr code not recognized")
}
