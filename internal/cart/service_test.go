package cart

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/pcstore-storefront/internal/cartpolicy"
	"github.com/angelmondragon/pcstore-storefront/internal/cartsync"
	"github.com/angelmondragon/pcstore-storefront/internal/notify"
	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
	"github.com/angelmondragon/pcstore-storefront/pkg/storeapi"
	"github.com/angelmondragon/pcstore-storefront/pkg/storeapi/storeapitest"
)

func setup(t *testing.T) (*storeapitest.Server, Service, *notify.Inbox) {
	t.Helper()
	backend := storeapitest.NewServer()
	t.Cleanup(backend.Close)
	backend.AddProduct(storeapitest.Product{ID: "cpu-1", Name: "Ryzen 5 7600", Price: 5_000_000, Stock: 10, ComponentType: "cpu"})
	backend.AddProduct(storeapitest.Product{ID: "gpu-1", Name: "RTX 4090", Price: 600_000_000, Stock: 5, ComponentType: "gpu"})
	backend.AddProduct(storeapitest.Product{ID: "fan-1", Name: "Arctic P12", Price: 150_000, Stock: 0})

	client, err := storeapi.New(backend.URL(), backend.SignIn(), storeapi.WithHTTPClient(backend.Client()))
	require.NoError(t, err)

	inbox := notify.NewInbox(10)
	svc, err := NewService(client, cartsync.Options{Debounce: time.Hour, Notifier: inbox})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return backend, svc, inbox
}

func product(id string, price int64, stock int) storeapi.Product {
	return storeapi.Product{ID: id, Name: id, Price: decimal.NewFromInt(price), Stock: stock}
}

func TestLoadRendersBackendCart(t *testing.T) {
	backend, svc, _ := setup(t)
	backend.PutCart("cpu-1", 2)

	view, err := svc.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "cart-cpu-1", view.Lines[0].CartID)
	assert.Equal(t, "10000000", view.Total)
	assert.Equal(t, 2, view.ItemCount)
	assert.True(t, view.Loaded)
}

func TestQuantityEditCommitsOnSync(t *testing.T) {
	backend, svc, _ := setup(t)
	backend.PutCart("cpu-1", 1)
	ctx := context.Background()

	res, err := svc.SetQuantity(ctx, "cpu-1", 4)
	require.NoError(t, err)
	assert.Equal(t, cartpolicy.ReasonOK, res.Reason)
	assert.Equal(t, 1, backend.CartQuantity("cpu-1"), "commit waits for the debounce")
	assert.Equal(t, []string{"cpu-1"}, svc.View().Pending)

	require.NoError(t, svc.Sync(ctx))
	assert.Equal(t, 4, backend.CartQuantity("cpu-1"))
	assert.Empty(t, svc.View().Pending)
}

func TestBackendRejectionRestoresServerState(t *testing.T) {
	backend, svc, inbox := setup(t)
	backend.PutCart("cpu-1", 1)
	ctx := context.Background()
	_, err := svc.Load(ctx)
	require.NoError(t, err)

	backend.SetStock("cpu-1", 1)
	res, err := svc.SetQuantityRaw(ctx, "cpu-1", "3")
	require.NoError(t, err)
	require.False(t, res.Rejected, "local stock still allows the edit")

	err = svc.Sync(ctx)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, pkgerrors.As(err).UpstreamStatus())

	line, _, ok := svc.Snapshot().Find("cpu-1")
	require.True(t, ok)
	assert.Equal(t, 1, line.Quantity)
	assert.Equal(t, 1, line.StockAvailable)

	got := inbox.Drain()
	require.Len(t, got, 1)
	assert.Equal(t, "Chỉ còn 1 sản phẩm", got[0].Message)
}

func TestRemoveDeletesLine(t *testing.T) {
	backend, svc, _ := setup(t)
	cartID := backend.PutCart("cpu-1", 1)
	ctx := context.Background()

	require.NoError(t, svc.Remove(ctx, cartID))
	assert.Equal(t, 0, backend.CartLen())
	assert.Empty(t, svc.View().Lines)

	err := svc.Remove(ctx, " ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAddNewAndExistingProducts(t *testing.T) {
	backend, svc, _ := setup(t)
	ctx := context.Background()

	res, err := svc.Add(ctx, product("cpu-1", 5_000_000, 10), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.AcceptedQuantity)
	assert.Equal(t, 2, backend.CartQuantity("cpu-1"))

	res, err = svc.Add(ctx, product("cpu-1", 5_000_000, 10), 20)
	require.NoError(t, err)
	assert.Equal(t, cartpolicy.ReasonStockAdjusted, res.Reason)
	assert.Equal(t, 10, res.AcceptedQuantity)
	assert.Equal(t, 10, backend.CartQuantity("cpu-1"))
	assert.Equal(t, 10, svc.View().ItemCount)
}

func TestAddCommitsPendingEditsFirst(t *testing.T) {
	backend, svc, _ := setup(t)
	backend.PutCart("cpu-1", 1)
	ctx := context.Background()

	_, err := svc.SetQuantity(ctx, "cpu-1", 3)
	require.NoError(t, err)
	_, err = svc.Add(ctx, product("cpu-1", 5_000_000, 10), 2)
	require.NoError(t, err)
	assert.Equal(t, 5, backend.CartQuantity("cpu-1"))
}

func TestAddRejectedLocallyNeverReachesBackend(t *testing.T) {
	backend, svc, _ := setup(t)
	ctx := context.Background()

	res, err := svc.Add(ctx, product("gpu-1", 600_000_000, 5), 2)
	require.NoError(t, err)
	assert.True(t, res.Rejected)
	assert.Equal(t, cartpolicy.ReasonBudgetExceeded, res.Reason)
	require.NotNil(t, res.MaxQuantityForBudget)
	assert.Equal(t, 1, *res.MaxQuantityForBudget)

	res, err = svc.Add(ctx, product("fan-1", 150_000, 0), 1)
	require.NoError(t, err)
	assert.Equal(t, cartpolicy.ReasonOutOfStock, res.Reason)

	assert.Equal(t, 0, backend.Calls("/api/add-to-cart"))
	assert.Equal(t, 0, backend.CartLen())

	_, err = svc.Add(ctx, storeapi.Product{}, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCloseCommitsPendingEdit(t *testing.T) {
	backend, svc, _ := setup(t)
	backend.PutCart("cpu-1", 1)
	ctx := context.Background()

	_, err := svc.SetQuantity(ctx, "cpu-1", 6)
	require.NoError(t, err)
	require.NoError(t, svc.Close(ctx))
	assert.Equal(t, 6, backend.CartQuantity("cpu-1"))
}

func TestNewServiceRequiresBackend(t *testing.T) {
	_, err := NewService(nil, cartsync.Options{})
	assert.Error(t, err)
}
