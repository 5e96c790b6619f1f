// Package buildpc is the custom PC configurator: one build-cart line per component slot.
package buildpc

import (
	"context"
	"fmt"

	"github.com/angelmondragon/pcstore-storefront/internal/cartpolicy"
	"github.com/angelmondragon/pcstore-storefront/internal/cartsync"
	"github.com/angelmondragon/pcstore-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
	"github.com/angelmondragon/pcstore-storefront/pkg/storeapi"
)

const Screen = "build"

// Backend is the build-cart slice of the store API.
type Backend interface {
	GetBuildCart(ctx context.Context) ([]storeapi.CartLine, error)
	AddBuildComponent(ctx context.Context, productID string, quantity int, componentType string) error
	UpdateBuildQuantity(ctx context.Context, productID string, quantity int) error
	DeleteBuildComponent(ctx context.Context, productID string) error
	ClearBuild(ctx context.Context) error
}

// Slot is one component position of the build. Line is nil while the slot is empty.
type Slot struct {
	ComponentType enums.ComponentType `json:"componentType"`
	Required      bool                `json:"required"`
	Line          *cartpolicy.Line    `json:"line,omitempty"`
}

type View struct {
	Slots     []Slot                `json:"slots"`
	Missing   []enums.ComponentType `json:"missing"`
	Total     string                `json:"total"`
	ItemCount int                   `json:"itemCount"`
	Pending   []string              `json:"pending"`
	Loaded    bool                  `json:"loaded"`
	Complete  bool                  `json:"complete"`
}

type Service interface {
	Load(ctx context.Context) (View, error)
	View() View
	Slots() []Slot
	Missing() []enums.ComponentType
	Choose(ctx context.Context, component enums.ComponentType, product storeapi.Product, quantity int) (cartpolicy.Result, error)
	SetQuantity(ctx context.Context, component enums.ComponentType, requested int) (cartpolicy.Result, error)
	SetQuantityRaw(ctx context.Context, component enums.ComponentType, raw string) (cartpolicy.Result, error)
	Remove(ctx context.Context, component enums.ComponentType) error
	Reset(ctx context.Context) error
	Sync(ctx context.Context) error
	Close(ctx context.Context) error
}

type remote struct {
	api Backend
}

func (r remote) Fetch(ctx context.Context) ([]cartpolicy.Line, error) {
	rows, err := r.api.GetBuildCart(ctx)
	if err != nil {
		return nil, err
	}
	return cartsync.FromBackend(rows), nil
}

func (r remote) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	return r.api.UpdateBuildQuantity(ctx, productID, quantity)
}

type service struct {
	api     Backend
	session *cartsync.Session
}

func NewService(api Backend, opts cartsync.Options) (Service, error) {
	if api == nil {
		return nil, fmt.Errorf("build backend required")
	}
	opts.Screen = Screen
	return &service{
		api:     api,
		session: cartsync.New(remote{api: api}, opts),
	}, nil
}

func (s *service) Load(ctx context.Context) (View, error) {
	if _, err := s.session.Reload(ctx); err != nil {
		return View{}, err
	}
	return s.View(), nil
}

func (s *service) View() View {
	v := s.session.View()
	slots := slotsOf(cartpolicy.Snapshot{Lines: v.Lines})
	missing := missingOf(slots)
	return View{
		Slots:     slots,
		Missing:   missing,
		Total:     v.Total,
		ItemCount: v.ItemCount,
		Pending:   v.Pending,
		Loaded:    v.Loaded,
		Complete:  v.Loaded && len(missing) == 0,
	}
}

// Slots lists every component type in display order.
func (s *service) Slots() []Slot {
	return slotsOf(s.session.Snapshot())
}

// Missing lists the required slots that are still empty.
func (s *service) Missing() []enums.ComponentType {
	return missingOf(s.Slots())
}

// Choose puts product into the component slot, replacing whatever occupied it.
// Choosing the product already in the slot changes its quantity instead.
func (s *service) Choose(ctx context.Context, component enums.ComponentType, product storeapi.Product, quantity int) (cartpolicy.Result, error) {
	if !component.IsValid() {
		return cartpolicy.Result{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown component type %q", component))
	}
	if product.ID == "" {
		return cartpolicy.Result{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	candidate := cartsync.Candidate(product)
	if candidate.ComponentType != "" && candidate.ComponentType != component {
		return cartpolicy.Result{}, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("product %s is a %s, not a %s", product.ID, candidate.ComponentType, component))
	}
	candidate.ComponentType = component

	if err := s.ensureLoaded(ctx); err != nil {
		return cartpolicy.Result{}, err
	}
	if current, _, ok := s.session.Snapshot().FindComponent(component); ok && current.ProductID == product.ID {
		return s.session.SetQuantity(ctx, product.ID, quantity)
	}
	if err := s.session.Flush(ctx); err != nil {
		return cartpolicy.Result{}, err
	}

	res := cartpolicy.EvaluateAdd(s.session.Snapshot(), candidate, quantity)
	if res.Rejected {
		return res, nil
	}
	err := s.session.Mutate(ctx, "choose_component", func(ctx context.Context) error {
		return s.api.AddBuildComponent(ctx, product.ID, res.AcceptedQuantity, component.String())
	})
	return res, err
}

func (s *service) SetQuantity(ctx context.Context, component enums.ComponentType, requested int) (cartpolicy.Result, error) {
	line, err := s.occupant(ctx, component)
	if err != nil {
		return cartpolicy.Result{}, err
	}
	return s.session.SetQuantity(ctx, line.ProductID, requested)
}

// SetQuantityRaw is SetQuantity for text typed into the slot's quantity field.
func (s *service) SetQuantityRaw(ctx context.Context, component enums.ComponentType, raw string) (cartpolicy.Result, error) {
	line, err := s.occupant(ctx, component)
	if err != nil {
		return cartpolicy.Result{}, err
	}
	return s.session.SetQuantityRaw(ctx, line.ProductID, raw)
}

func (s *service) Remove(ctx context.Context, component enums.ComponentType) error {
	line, err := s.occupant(ctx, component)
	if err != nil {
		return err
	}
	return s.session.Mutate(ctx, "remove_component", func(ctx context.Context) error {
		return s.api.DeleteBuildComponent(ctx, line.ProductID)
	})
}

// Reset empties every slot.
func (s *service) Reset(ctx context.Context) error {
	return s.session.Mutate(ctx, "reset_build", s.api.ClearBuild)
}

func (s *service) Sync(ctx context.Context) error {
	return s.session.Flush(ctx)
}

func (s *service) Close(ctx context.Context) error {
	return s.session.Close(ctx)
}

func (s *service) occupant(ctx context.Context, component enums.ComponentType) (cartpolicy.Line, error) {
	if !component.IsValid() {
		return cartpolicy.Line{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown component type %q", component))
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return cartpolicy.Line{}, err
	}
	line, _, ok := s.session.Snapshot().FindComponent(component)
	if !ok {
		return cartpolicy.Line{}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no %s selected", component))
	}
	return line, nil
}

func (s *service) ensureLoaded(ctx context.Context) error {
	if s.session.Loaded() {
		return nil
	}
	_, err := s.session.Reload(ctx)
	return err
}

func slotsOf(snap cartpolicy.Snapshot) []Slot {
	types := enums.ComponentTypes()
	slots := make([]Slot, 0, len(types))
	for _, component := range types {
		slot := Slot{ComponentType: component, Required: component.IsRequired()}
		if line, _, ok := snap.FindComponent(component); ok {
			l := line
			slot.Line = &l
		}
		slots = append(slots, slot)
	}
	return slots
}

func missingOf(slots []Slot) []enums.ComponentType {
	missing := []enums.ComponentType{}
	for _, slot := range slots {
		if slot.Required && slot.Line == nil {
			missing = append(missing, slot.ComponentType)
		}
	}
	return missing
}
