package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paybridge/paybridge/internal/auth"
	"github.com/paybridge/paybridge/internal/engine"
)

const testOwner = "owner"

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	gateway *Gateway
	engine  *engine.Engine
	auth    *auth.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	e, err := engine.New(engine.Config{Owner: testOwner})
	require.NoError(t, err)

	authSvc := auth.NewService("test-secret", time.Hour)

	return &fixture{
		gateway: NewGateway(Config{Engine: e, Auth: authSvc}),
		engine:  e,
		auth:    authSvc,
	}
}

func (f *fixture) request(t *testing.T, method, path, account, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if account != "" {
		token, err := f.auth.IssueToken(account)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.gateway.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	w := f.request(t, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t)

	t.Run("should reject missing token", func(t *testing.T) {
		w := f.request(t, http.MethodPost, "/api/v1/deposits", "", `{"amount":100}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("should reject bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/deposits", strings.NewReader(`{"amount":100}`))
		req.Header.Set("Authorization", "Bearer garbage")
		w := httptest.NewRecorder()
		f.gateway.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestDeposit(t *testing.T) {
	f := newFixture(t)

	w := f.request(t, http.MethodPost, "/api/v1/deposits", "alice", `{"amount":5000}`)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "alice", body["account"])
	assert.Equal(t, float64(5000), body["balance"])
	assert.Equal(t, uint64(5000), f.engine.GetBalance("alice"))
}

func TestCreatePayment(t *testing.T) {
	t.Run("should create and report id", func(t *testing.T) {
		f := newFixture(t)
		f.request(t, http.MethodPost, "/api/v1/deposits", "alice", `{"amount":5000}`)

		w := f.request(t, http.MethodPost, "/api/v1/payments", "alice",
			`{"recipient":"bob","amount":1000,"destination_chain":2000,"kind":"payment"}`)

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, float64(0), decode(t, w)["payment_id"])
		assert.Equal(t, uint64(4000), f.engine.GetBalance("alice"))
	})

	t.Run("should default kind to payment", func(t *testing.T) {
		f := newFixture(t)
		f.request(t, http.MethodPost, "/api/v1/deposits", "alice", `{"amount":5000}`)

		w := f.request(t, http.MethodPost, "/api/v1/payments", "alice",
			`{"recipient":"bob","amount":1000,"destination_chain":2000}`)

		require.Equal(t, http.StatusCreated, w.Code)
		record, ok := f.engine.GetPaymentInfo(0)
		require.True(t, ok)
		assert.Equal(t, "payment", record.Kind.String())
	})

	t.Run("should reject unknown kind", func(t *testing.T) {
		f := newFixture(t)

		w := f.request(t, http.MethodPost, "/api/v1/payments", "alice",
			`{"recipient":"bob","amount":1000,"destination_chain":2000,"kind":"teleport"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should map zero amount to 400", func(t *testing.T) {
		f := newFixture(t)

		w := f.request(t, http.MethodPost, "/api/v1/payments", "alice",
			`{"recipient":"bob","amount":0,"destination_chain":2000}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should map unsupported chain to 400", func(t *testing.T) {
		f := newFixture(t)

		w := f.request(t, http.MethodPost, "/api/v1/payments", "alice",
			`{"recipient":"bob","amount":1000,"destination_chain":9999}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should map insufficient balance to 422", func(t *testing.T) {
		f := newFixture(t)

		w := f.request(t, http.MethodPost, "/api/v1/payments", "alice",
			`{"recipient":"bob","amount":1000,"destination_chain":2000}`)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestExecutePayment(t *testing.T) {
	setup := func(t *testing.T) *fixture {
		f := newFixture(t)
		f.request(t, http.MethodPut, "/api/v1/chains/2000", testOwner, `{"supported":true,"relayer":"charlie"}`)
		f.request(t, http.MethodPost, "/api/v1/deposits", "alice", `{"amount":5000}`)
		w := f.request(t, http.MethodPost, "/api/v1/payments", "alice",
			`{"recipient":"bob","amount":1000,"destination_chain":2000}`)
		require.Equal(t, http.StatusCreated, w.Code)
		return f
	}

	t.Run("should settle for the bound relayer", func(t *testing.T) {
		f := setup(t)

		w := f.request(t, http.MethodPost, "/api/v1/payments/0/execute", "charlie", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, uint64(1000), f.engine.GetBalance("bob"))
	})

	t.Run("should map unauthorized caller to 403", func(t *testing.T) {
		f := setup(t)

		w := f.request(t, http.MethodPost, "/api/v1/payments/0/execute", "mallory", "")

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("should map unknown payment to 404", func(t *testing.T) {
		f := setup(t)

		w := f.request(t, http.MethodPost, "/api/v1/payments/99/execute", "charlie", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("should map repeat execution to 409", func(t *testing.T) {
		f := setup(t)
		require.Equal(t, http.StatusOK, f.request(t, http.MethodPost, "/api/v1/payments/0/execute", "charlie", "").Code)

		w := f.request(t, http.MethodPost, "/api/v1/payments/0/execute", "charlie", "")

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("should reject malformed id", func(t *testing.T) {
		f := setup(t)

		w := f.request(t, http.MethodPost, "/api/v1/payments/abc/execute", "charlie", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestConfigureChain(t *testing.T) {
	t.Run("should map non-owner to 403", func(t *testing.T) {
		f := newFixture(t)

		w := f.request(t, http.MethodPut, "/api/v1/chains/2000", "mallory", `{"supported":false}`)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("should let the owner enable a chain", func(t *testing.T) {
		f := newFixture(t)

		w := f.request(t, http.MethodPut, "/api/v1/chains/5000", testOwner, `{"supported":true,"relayer":"erin"}`)

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, f.engine.IsChainSupported(5000))
	})
}

func TestQueries(t *testing.T) {
	f := newFixture(t)
	f.request(t, http.MethodPost, "/api/v1/deposits", "alice", `{"amount":5000}`)
	w := f.request(t, http.MethodPost, "/api/v1/payments", "alice",
		`{"recipient":"bob","amount":1000,"destination_chain":2000}`)
	require.Equal(t, http.StatusCreated, w.Code)

	t.Run("should expose payment info without auth", func(t *testing.T) {
		w := f.request(t, http.MethodGet, "/api/v1/payments/0", "", "")

		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "alice", body["sender"])
		assert.Equal(t, "bob", body["recipient"])
		assert.Equal(t, float64(1000), body["amount"])
		assert.Equal(t, false, body["executed"])
	})

	t.Run("should return 404 for unknown payment", func(t *testing.T) {
		w := f.request(t, http.MethodGet, "/api/v1/payments/99", "", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("should expose balances", func(t *testing.T) {
		w := f.request(t, http.MethodGet, "/api/v1/accounts/alice/balance", "", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(4000), decode(t, w)["balance"])
	})

	t.Run("should expose pending counts", func(t *testing.T) {
		for account, want := range map[string]float64{"alice": 1, "bob": 1, "carol": 0} {
			w := f.request(t, http.MethodGet, fmt.Sprintf("/api/v1/accounts/%s/pending", account), "", "")
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, want, decode(t, w)["pending"], account)
		}
	})

	t.Run("should expose chain support", func(t *testing.T) {
		w := f.request(t, http.MethodGet, "/api/v1/chains/2000", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decode(t, w)["supported"])

		w = f.request(t, http.MethodGet, "/api/v1/chains/9999", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, false, decode(t, w)["supported"])
	})
}
