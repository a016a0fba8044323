package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/ssedge/ssedge/internal/database"
	"github.com/ssedge/ssedge/internal/service"
	"github.com/ssedge/ssedge/pkg/ssh"
)

func TestRespondErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"invalid", fmt.Errorf("%w: ip is required", service.ErrInvalidArgument), http.StatusBadRequest, "INVALID_PARAMS"},
		{"not found", &database.StoreError{Op: "get device", Err: database.ErrNotFound}, http.StatusNotFound, "NOT_FOUND"},
		{"unknown device", &database.StoreError{Op: "insert tunnel", Err: database.ErrUnknownDevice}, http.StatusNotFound, "DEVICE_NOT_FOUND"},
		{"refused", &ssh.ConnectionError{Kind: ssh.KindRefused}, http.StatusBadGateway, "CONNECTION_FAILED"},
		{"timeout", &ssh.ConnectionError{Kind: ssh.KindTimeout}, http.StatusGatewayTimeout, "CONNECTION_FAILED"},
		{"format", &service.CollectionError{Kind: service.CollectFormat, Raw: "a|b"}, http.StatusBadGateway, "COLLECTION_FAILED"},
		{"busy", &database.StoreError{Op: "insert device", Err: errors.New("database is locked (5) (SQLITE_BUSY)")}, http.StatusServiceUnavailable, "STORE_BUSY"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondError(c, tt.err)
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"`+tt.code+`"`)
		})
	}
}

func TestParseLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for query, want := range map[string]int{"": 50, "?limit=10": 10, "?limit=-1": 50, "?limit=9999": 50, "?limit=x": 50} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/"+query, nil)
		assert.Equal(t, want, parseLimit(c, 50, 500), query)
	}
}
