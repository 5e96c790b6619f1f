package buildpc

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/pcstore-storefront/internal/cartpolicy"
	"github.com/angelmondragon/pcstore-storefront/internal/cartsync"
	"github.com/angelmondragon/pcstore-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
	"github.com/angelmondragon/pcstore-storefront/pkg/storeapi"
	"github.com/angelmondragon/pcstore-storefront/pkg/storeapi/storeapitest"
)

var catalog = []storeapitest.Product{
	{ID: "cpu-a", Name: "Ryzen 5 7600", Price: 5_000_000, Stock: 5, ComponentType: "cpu"},
	{ID: "cpu-b", Name: "Ryzen 7 7700X", Price: 8_000_000, Stock: 5, ComponentType: "cpu"},
	{ID: "ram-a", Name: "32GB DDR5", Price: 2_500_000, Stock: 8, ComponentType: "ram"},
	{ID: "gpu-x", Name: "Server GPU", Price: 990_000_000, Stock: 2, ComponentType: "gpu"},
}

func toProduct(p storeapitest.Product) storeapi.Product {
	return storeapi.Product{ID: p.ID, Name: p.Name, Price: decimal.NewFromInt(p.Price), Stock: p.Stock, ComponentType: p.ComponentType}
}

func setup(t *testing.T) (*storeapitest.Server, Service) {
	t.Helper()
	backend := storeapitest.NewServer()
	t.Cleanup(backend.Close)
	for _, p := range catalog {
		backend.AddProduct(p)
	}
	client, err := storeapi.New(backend.URL(), backend.SignIn(), storeapi.WithHTTPClient(backend.Client()))
	require.NoError(t, err)
	svc, err := NewService(client, cartsync.Options{Debounce: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return backend, svc
}

func TestEmptyBuildListsEverySlot(t *testing.T) {
	_, svc := setup(t)
	view, err := svc.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, view.Slots, len(enums.ComponentTypes()))
	assert.Equal(t, enums.ComponentTypeCPU, view.Slots[0].ComponentType)
	assert.True(t, view.Slots[0].Required)
	assert.Nil(t, view.Slots[0].Line)
	assert.Contains(t, view.Missing, enums.ComponentTypeMainboard)
	assert.NotContains(t, view.Missing, enums.ComponentTypeGPU, "gpu is optional")
	assert.False(t, view.Complete)
}

func TestChooseReplacesOccupiedSlot(t *testing.T) {
	backend, svc := setup(t)
	ctx := context.Background()

	_, err := svc.Choose(ctx, enums.ComponentTypeCPU, toProduct(catalog[0]), 1)
	require.NoError(t, err)
	res, err := svc.Choose(ctx, enums.ComponentTypeCPU, toProduct(catalog[1]), 1)
	require.NoError(t, err)
	assert.Equal(t, cartpolicy.ReasonOK, res.Reason)

	assert.Equal(t, 1, backend.BuildLen())
	assert.Equal(t, 1, backend.BuildQuantity("cpu-b"))
	slots := svc.Slots()
	require.NotNil(t, slots[0].Line)
	assert.Equal(t, "cpu-b", slots[0].Line.ProductID)
	assert.NotContains(t, svc.Missing(), enums.ComponentTypeCPU)
}

func TestChooseSameProductChangesQuantity(t *testing.T) {
	backend, svc := setup(t)
	ctx := context.Background()

	_, err := svc.Choose(ctx, enums.ComponentTypeRAM, toProduct(catalog[2]), 1)
	require.NoError(t, err)
	res, err := svc.Choose(ctx, enums.ComponentTypeRAM, toProduct(catalog[2]), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.AcceptedQuantity)

	require.NoError(t, svc.Sync(ctx))
	assert.Equal(t, 2, backend.BuildQuantity("ram-a"))
	assert.Equal(t, 1, backend.Calls("/api/build-pc-cart"))
}

func TestChooseValidatesInput(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()

	_, err := svc.Choose(ctx, enums.ComponentType("sound"), toProduct(catalog[0]), 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Choose(ctx, enums.ComponentTypeGPU, toProduct(catalog[0]), 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "a cpu cannot fill the gpu slot")
}

func TestChooseOverBudgetIsRejectedLocally(t *testing.T) {
	backend, svc := setup(t)
	ctx := context.Background()

	_, err := svc.Choose(ctx, enums.ComponentTypeCPU, toProduct(catalog[1]), 2)
	require.NoError(t, err)
	res, err := svc.Choose(ctx, enums.ComponentTypeGPU, toProduct(catalog[3]), 1)
	require.NoError(t, err)
	assert.True(t, res.Rejected)
	assert.Equal(t, cartpolicy.ReasonBudgetExceeded, res.Reason)
	require.NotNil(t, res.MaxQuantityForBudget)
	assert.Equal(t, 0, *res.MaxQuantityForBudget)
	assert.Equal(t, 1, backend.BuildLen())
}

func TestSetQuantityAndRemoveBySlot(t *testing.T) {
	backend, svc := setup(t)
	backend.PutBuild("cpu-a", 1)
	backend.PutBuild("ram-a", 2)
	ctx := context.Background()

	res, err := svc.SetQuantity(ctx, enums.ComponentTypeRAM, 12)
	require.NoError(t, err)
	assert.Equal(t, cartpolicy.ReasonStockAdjusted, res.Reason)
	assert.Equal(t, 8, res.AcceptedQuantity)
	require.NoError(t, svc.Sync(ctx))
	assert.Equal(t, 8, backend.BuildQuantity("ram-a"))

	require.NoError(t, svc.Remove(ctx, enums.ComponentTypeCPU))
	assert.Equal(t, 0, backend.BuildQuantity("cpu-a"))
	assert.Contains(t, svc.Missing(), enums.ComponentTypeCPU)

	_, err = svc.SetQuantity(ctx, enums.ComponentTypeGPU, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.True(t, pkgerrors.IsCode(svc.Remove(ctx, enums.ComponentTypeGPU), pkgerrors.CodeNotFound))
}

func TestSetQuantityRawGoesThroughPolicy(t *testing.T) {
	backend, svc := setup(t)
	backend.PutBuild("ram-a", 2)
	ctx := context.Background()

	res, err := svc.SetQuantityRaw(ctx, enums.ComponentTypeRAM, "2.5")
	require.NoError(t, err)
	assert.True(t, res.Rejected)
	assert.Equal(t, cartpolicy.ReasonInvalidQuantity, res.Reason)
	assert.Equal(t, 2, res.AcceptedQuantity)

	res, err = svc.SetQuantityRaw(ctx, enums.ComponentTypeRAM, " 4 ")
	require.NoError(t, err)
	assert.Equal(t, cartpolicy.ReasonOK, res.Reason)
	require.NoError(t, svc.Sync(ctx))
	assert.Equal(t, 4, backend.BuildQuantity("ram-a"))

	_, err = svc.SetQuantityRaw(ctx, enums.ComponentTypeGPU, "1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestResetClearsBuild(t *testing.T) {
	backend, svc := setup(t)
	backend.PutBuild("cpu-a", 1)
	backend.PutBuild("ram-a", 1)
	ctx := context.Background()

	_, err := svc.SetQuantity(ctx, enums.ComponentTypeRAM, 3)
	require.NoError(t, err)
	require.NoError(t, svc.Reset(ctx))

	assert.Equal(t, 0, backend.BuildLen())
	view := svc.View()
	assert.Empty(t, view.Pending, "edits on removed lines are dropped")
	for _, slot := range view.Slots {
		assert.Nil(t, slot.Line)
	}
}
