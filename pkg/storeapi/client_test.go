package storeapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/pcstore-storefront/pkg/auth"
	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
	"github.com/angelmondragon/pcstore-storefront/pkg/storeapi/storeapitest"
)

func newTestClient(t *testing.T, backend *storeapitest.Server, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithHTTPClient(backend.Client())}, opts...)
	client, err := New(backend.URL(), backend.SignIn(), opts...)
	require.NoError(t, err)
	return client
}

func seedCatalog(backend *storeapitest.Server) {
	backend.AddProduct(storeapitest.Product{ID: "cpu-1", Name: "Ryzen 7 7800X3D", Price: 9_490_000, Stock: 5, ComponentType: "cpu"})
	backend.AddProduct(storeapitest.Product{ID: "gpu-1", Name: "RTX 4070 Super", Price: 16_990_000, DiscountPercent: 5, Stock: 2, ComponentType: "gpu"})
}

func TestGetCartDecodesMetadata(t *testing.T) {
	backend := storeapitest.NewServer()
	defer backend.Close()
	seedCatalog(backend)
	cartID := backend.PutCart("gpu-1", 2)

	client := newTestClient(t, backend)
	lines, err := client.GetCart(context.Background())
	require.NoError(t, err)
	require.Len(t, lines, 1)

	line := lines[0]
	assert.Equal(t, cartID, line.CartID)
	assert.Equal(t, "gpu-1", line.ProductID)
	assert.True(t, line.UnitPrice.Equal(decimal.NewFromInt(16_990_000)))
	assert.Equal(t, 5, line.DiscountPercent)
	assert.Equal(t, 2, line.StockAvailable)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, "gpu", line.ComponentType)
}

func TestBackendMessageIsSurfacedVerbatim(t *testing.T) {
	backend := storeapitest.NewServer()
	defer backend.Close()
	seedCatalog(backend)
	backend.PutCart("gpu-1", 1)

	client := newTestClient(t, backend)
	err := client.UpdateQuantity(context.Background(), "gpu-1", 3)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, "Chỉ còn 2 sản phẩm", typed.Message())
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, http.StatusBadRequest, typed.UpstreamStatus())
}

func TestBackendErrorWithoutMessageUsesFallback(t *testing.T) {
	backend := storeapitest.NewServer()
	defer backend.Close()
	backend.FailNext("/api/get-cart", http.StatusBadGateway, "")

	client := newTestClient(t, backend)
	_, err := client.GetCart(context.Background())

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, GenericErrorMessage, typed.Message())
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
	assert.Equal(t, http.StatusBadGateway, typed.UpstreamStatus())
}

func TestUnauthorizedRefreshesAndReplays(t *testing.T) {
	backend := storeapitest.NewServer()
	defer backend.Close()
	seedCatalog(backend)
	backend.PutCart("cpu-1", 1)

	var persisted atomic.Value
	client := newTestClient(t, backend, OnTokensChanged(func(tokens auth.Tokens) { persisted.Store(tokens) }))
	before := client.Tokens()

	backend.ExpireAccessTokens()
	lines, err := client.GetCart(context.Background())
	require.NoError(t, err)
	require.Len(t, lines, 1)

	assert.Equal(t, 1, backend.Refreshes())
	assert.Equal(t, 2, backend.Calls("/api/get-cart"))
	after := client.Tokens()
	assert.NotEqual(t, before.Access, after.Access)
	assert.Equal(t, before.Refresh, after.Refresh)
	assert.Equal(t, after, persisted.Load())
	assert.True(t, client.SignedIn())
}

func TestConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	backend := storeapitest.NewServer()
	defer backend.Close()
	seedCatalog(backend)
	backend.PutCart("cpu-1", 1)

	client := newTestClient(t, backend)
	backend.ExpireAccessTokens()

	release := backend.Hold("/api/auth/refresh-token")
	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.GetCart(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return backend.Calls("/api/auth/refresh-token") == 1 && backend.Calls("/api/get-cart") >= callers },
		2*time.Second, 5*time.Millisecond)
	release()
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "caller %d", i)
	}
	assert.Equal(t, 1, backend.Refreshes())
	assert.Equal(t, 1, backend.Calls("/api/auth/refresh-token"))
}

func TestRefreshFailureSignsOut(t *testing.T) {
	backend := storeapitest.NewServer()
	defer backend.Close()

	var signOuts atomic.Int32
	client := newTestClient(t, backend, OnSignOut(func() { signOuts.Add(1) }))
	backend.ExpireAccessTokens()
	backend.RevokeRefresh()

	_, err := client.GetCart(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	assert.False(t, client.SignedIn())
	assert.True(t, client.Tokens().Empty())
	assert.Equal(t, int32(1), signOuts.Load())

	calls := backend.Calls("/api/get-cart")
	_, err = client.GetCart(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	assert.Equal(t, calls, backend.Calls("/api/get-cart"), "signed out client must not hit the network")

	client.SignOut()
	assert.Equal(t, int32(1), signOuts.Load(), "sign-out hooks fire once")
}

func TestProactiveRefreshBeforeExpiry(t *testing.T) {
	backend := storeapitest.NewServer()
	defer backend.Close()
	backend.SetTokenTTL(10 * time.Second)

	client := newTestClient(t, backend, WithRefreshSkew(time.Minute))
	backend.SetTokenTTL(time.Hour)

	_, err := client.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, backend.Refreshes())
	assert.Equal(t, 1, backend.Calls("/api/get-categories"), "no 401 round trip expected")

	_, err = client.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, backend.Refreshes(), "fresh token must not be refreshed again")
}

func TestCatalogEndpoints(t *testing.T) {
	backend := storeapitest.NewServer()
	defer backend.Close()
	seedCatalog(backend)
	client := newTestClient(t, backend)
	ctx := context.Background()

	user, err := client.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)

	categories, err := client.Categories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 2)

	products, err := client.SearchProducts(ctx, "rtx 4070")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "gpu-1", products[0].ID)

	_, err = client.SearchProducts(ctx, "  ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestBuildEndpoints(t *testing.T) {
	backend := storeapitest.NewServer()
	defer backend.Close()
	seedCatalog(backend)
	backend.AddProduct(storeapitest.Product{ID: "cpu-2", Name: "Core i5", Price: 5_000_000, Stock: 3, ComponentType: "cpu"})
	client := newTestClient(t, backend)
	ctx := context.Background()

	require.NoError(t, client.AddBuildComponent(ctx, "cpu-1", 1, "cpu"))
	require.NoError(t, client.AddBuildComponent(ctx, "cpu-2", 1, "cpu"))
	lines, err := client.GetBuildCart(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 1, "a build holds one component per slot")
	assert.Equal(t, "cpu-2", lines[0].ProductID)

	require.NoError(t, client.UpdateBuildQuantity(ctx, "cpu-2", 2))
	assert.Equal(t, 2, backend.BuildQuantity("cpu-2"))

	require.NoError(t, client.DeleteBuildComponent(ctx, "cpu-2"))
	assert.Equal(t, 0, backend.BuildLen())

	require.NoError(t, client.AddBuildComponent(ctx, "gpu-1", 1, "gpu"))
	require.NoError(t, client.ClearBuild(ctx))
	assert.Equal(t, 0, backend.BuildLen())
}

func TestCreatePayment(t *testing.T) {
	backend := storeapitest.NewServer()
	defer backend.Close()
	seedCatalog(backend)
	client := newTestClient(t, backend)
	ctx := context.Background()

	backend.PutCart("cpu-1", 1)
	cod, err := client.CreatePayment(ctx, "COD")
	require.NoError(t, err)
	assert.Equal(t, "order-1", cod.OrderID)
	assert.Empty(t, cod.RedirectURL)

	backend.PutCart("cpu-1", 1)
	momo, err := client.CreatePayment(ctx, "MOMO")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.test/momo/order-2", momo.RedirectURL)
}

func TestParsePaymentMetadata(t *testing.T) {
	cases := []struct {
		raw  string
		want PaymentResult
	}{
		{`"order-9"`, PaymentResult{OrderID: "order-9"}},
		{`"https://gw.test/pay"`, PaymentResult{RedirectURL: "https://gw.test/pay"}},
		{`{"_id":"abc"}`, PaymentResult{OrderID: "abc"}},
		{`{"payUrl":"https://momo.test/x","orderId":"o1"}`, PaymentResult{OrderID: "o1", RedirectURL: "https://momo.test/x"}},
	}
	for _, tc := range cases {
		got, err := parsePaymentMetadata(json.RawMessage(tc.raw))
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}

	_, err := parsePaymentMetadata(json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://x", "http://", "::"} {
		_, err := New(raw, auth.Tokens{Access: "a"})
		assert.Error(t, err, raw)
	}
}

func TestNotSignedIn(t *testing.T) {
	client, err := New("https://api.pcstore.test", auth.Tokens{})
	require.NoError(t, err)
	_, err = client.GetCart(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}
