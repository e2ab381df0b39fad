package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/api"
	"github.com/vladislavdragonenkov/storefront/internal/confirmation"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/navigation"
	"github.com/vladislavdragonenkov/storefront/internal/session"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

// stepBackend отвечает как backend магазина, но на шаге rejectAt возвращает 401.
type stepBackend struct {
	mu       sync.Mutex
	rejectAt string
	hits     []string
}

func (b *stepBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	step := r.Method + " " + r.URL.Path
	b.mu.Lock()
	b.hits = append(b.hits, step)
	reject := step == b.rejectAt
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if reject {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Token has expired"})
		return
	}

	var body any
	switch step {
	case "GET /checkout":
		body = map[string]any{
			"status":       "success",
			"total_amount": 9.0,
			"cart_items": []map[string]any{
				{"product_id": 1, "product_name": "Cupcake", "quantity": 2, "total_price": 9.0},
			},
		}
	case "POST /checkout":
		body = map[string]any{"success": true, "order_id": 42}
	case "POST /create-checkout-session":
		body = map[string]any{"success": true, "url": "https://pay.example/abc"}
	default:
		w.WriteHeader(http.StatusNotFound)
		body = map[string]string{"message": "not found"}
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (b *stepBackend) requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.hits...)
}

func TestUnauthorizedMidPipeline_ExpiresSessionAndStops(t *testing.T) {
	tests := []struct {
		name     string
		rejectAt string
		want     []string
	}{
		{
			name:     "loading cart",
			rejectAt: "GET /checkout",
			want:     []string{"GET /checkout"},
		},
		{
			name:     "placing order",
			rejectAt: "POST /checkout",
			want:     []string{"GET /checkout", "POST /checkout"},
		},
		{
			name:     "creating payment session",
			rejectAt: "POST /create-checkout-session",
			want:     []string{"GET /checkout", "POST /checkout", "POST /create-checkout-session"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			backend := &stepBackend{rejectAt: tt.rejectAt}
			srv := httptest.NewServer(backend)
			t.Cleanup(srv.Close)

			kv := memory.NewKVStore()
			require.NoError(t, kv.Set(ctx, domain.KeyToken, "tok-1"))
			require.NoError(t, kv.Set(ctx, domain.KeyUser, `{"id":9,"username":"ann","role":"customer"}`))

			rec := navigation.NewRecorder()
			var store *session.Store
			client := api.New(srv.URL,
				api.WithHTTPClient(srv.Client()),
				api.WithTokenSource(api.TokenSourceFunc(func() string { return store.Token() })),
				api.WithUnauthorizedHandler(func(ctx context.Context, err error) {
					session.ExpireOnUnauthorized(store, rec, rec)(ctx, err)
				}),
			)
			store = session.NewStore(kv, client, nil)
			_, err := store.Restore(ctx)
			require.NoError(t, err)

			orch := NewOrchestrator(store, client, nil, confirmation.NewView(client, rec, rec, nil), rec, rec)

			a, err := orch.Begin(ctx)
			if err == nil {
				err = orch.Submit(ctx, a, domain.ShippingDetails{Address: "12 Baker St"})
			}

			require.Error(t, err)
			assert.True(t, domain.IsAuthExpired(err))
			assert.Equal(t, Failed, a.State())
			assert.NotContains(t, a.History(), Redirecting)
			assert.Equal(t, tt.want, backend.requests())

			assert.False(t, store.Authenticated())
			_, err = kv.Get(ctx, domain.KeyToken)
			assert.ErrorIs(t, err, domain.ErrKeyNotFound)

			assert.Equal(t, []domain.Route{domain.RouteSignIn}, rec.Routes())
			assert.Equal(t, []string{session.ExpiredMessage}, rec.Errors())
			assert.Empty(t, rec.Redirects())
		})
	}
}
