// Package storeapitest provides an in-memory storefront backend for tests.
package storeapitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pcstore-storefront/pkg/auth"
)

const (
	tokenSecret   = "storeapitest-secret"
	refreshValue  = "refresh-cookie"
	refreshCookie = "refreshToken"
	accessCookie  = "token"
)

// Product is a catalog entry held by the fake backend.
type Product struct {
	ID              string
	Name            string
	Price           int64
	DiscountPercent int
	Stock           int
	ComponentType   string
	CategoryID      string
}

type line struct {
	cartID    string
	productID string
	quantity  int
}

type failure struct {
	status  int
	message string
}

// Server is a fake backend speaking the storefront wire contract.
type Server struct {
	srv *httptest.Server

	mu           sync.Mutex
	products     map[string]Product
	cart         []line
	build        []line
	categories   []map[string]string
	validTokens  map[string]bool
	refreshToken string
	refreshes    int
	calls        map[string]int
	failures     map[string][]failure
	gates        map[string]chan struct{}
	tokenTTL     time.Duration
	orders       int
}

// NewServer starts a fake backend. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		products:     make(map[string]Product),
		validTokens:  make(map[string]bool),
		refreshToken: refreshValue,
		calls:        make(map[string]int),
		failures:     make(map[string][]failure),
		gates:        make(map[string]chan struct{}),
		tokenTTL:     time.Hour,
		categories: []map[string]string{
			{"id": "cat-cpu", "name": "CPU"},
			{"id": "cat-gpu", "name": "VGA"},
		},
	}
	s.srv = httptest.NewServer(s.routes())
	return s
}

func (s *Server) URL() string { return s.srv.URL }

func (s *Server) Close() { s.srv.Close() }

// Client returns the HTTP client wired to the test server.
func (s *Server) Client() *http.Client { return s.srv.Client() }

// SetTokenTTL changes the lifetime of tokens minted from now on.
func (s *Server) SetTokenTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenTTL = ttl
}

// SignIn mints a fresh credential pair the way the login endpoint would.
func (s *Server) SignIn() auth.Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	return auth.Tokens{Access: s.mintLocked(), Refresh: s.refreshToken}
}

// ExpireAccessTokens makes every access token minted so far answer 401.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validTokens = make(map[string]bool)
}

// RevokeRefresh makes the next refresh attempt fail.
func (s *Server) RevokeRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshToken = uuid.NewString()
}

func (s *Server) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

// Calls counts requests received for path, including rejected ones.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// FailNext makes the next request to path answer status with message. An empty
// message sends a body without one.
func (s *Server) FailNext(path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], failure{status: status, message: message})
}

// Hold blocks requests to path until the returned release func is called.
func (s *Server) Hold(path string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[path] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, path)
			s.mu.Unlock()
			close(gate)
		})
	}
}

func (s *Server) AddProduct(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Server) SetStock(productID string, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[productID]
	p.Stock = stock
	s.products[productID] = p
}

func (s *Server) SetPrice(productID string, price int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[productID]
	p.Price = price
	s.products[productID] = p
}

// PutCart seeds a cart line directly.
func (s *Server) PutCart(productID string, quantity int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := "cart-" + productID
	s.cart = upsert(s.cart, line{cartID: id, productID: productID, quantity: quantity})
	return id
}

// PutBuild seeds a build line directly.
func (s *Server) PutBuild(productID string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.build = upsert(s.build, line{cartID: "build-" + productID, productID: productID, quantity: quantity})
}

// CartQuantity reports the stored quantity of productID, zero when absent.
func (s *Server) CartQuantity(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return quantityOf(s.cart, productID)
}

func (s *Server) BuildQuantity(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return quantityOf(s.build, productID)
}

func (s *Server) CartLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cart)
}

func (s *Server) BuildLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.build)
}

func (s *Server) Orders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.gate)
	r.Post("/api/auth/refresh-token", s.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/api/auth", s.handleMe)
		r.Get("/api/get-categories", s.handleCategories)
		r.Get("/api/search", s.handleSearch)

		r.Get("/api/get-cart", s.handleGetLines(func() []line { return s.cart }))
		r.Post("/api/update-quantity", s.handleUpdate(&s.cart))
		r.Post("/api/delete-cart", s.handleDeleteCart)
		r.Post("/api/add-to-cart", s.handleAddToCart)

		r.Get("/api/get-cart-build-pc", s.handleGetLines(func() []line { return s.build }))
		r.Post("/api/build-pc-cart", s.handleAddBuild)
		r.Post("/api/update-quantity-cart-build-pc", s.handleUpdate(&s.build))
		r.Post("/api/delete-cart-build-pc", s.handleDeleteBuild)
		r.Post("/api/delete-all-cart-build-pc", s.handleClearBuild)

		r.Post("/api/payments", s.handlePayments)
	})
	return r
}

func (s *Server) gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		gate := s.gates[r.URL.Path]
		var injected *failure
		if queue := s.failures[r.URL.Path]; len(queue) > 0 {
			injected = &queue[0]
			s.failures[r.URL.Path] = queue[1:]
		}
		s.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		if injected != nil {
			writeError(w, injected.status, injected.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		ok := s.validTokens[token]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookie)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil || cookie.Value != s.refreshToken {
		writeError(w, http.StatusUnauthorized, "Refresh token invalid")
		return
	}
	s.refreshes++
	access := s.mintLocked()
	http.SetCookie(w, &http.Cookie{Name: accessCookie, Value: access, HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]any{"metadata": map[string]string{"accessToken": access}})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"metadata": map[string]string{
		"id":       "user-1",
		"fullName": "Nguyen Van A",
		"email":    "a@pcstore.test",
	}})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"metadata": s.categories})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	keyword := strings.ToLower(r.URL.Query().Get("keyword"))
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []map[string]any{}
	for _, p := range s.products {
		if strings.Contains(strings.ToLower(p.Name), keyword) {
			out = append(out, map[string]any{
				"id":              p.ID,
				"name":            p.Name,
				"price":           p.Price,
				"discountPercent": p.DiscountPercent,
				"stock":           p.Stock,
				"componentType":   p.ComponentType,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"metadata": out})
}

func (s *Server) handleGetLines(source func() []line) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := make([]map[string]any, 0)
		for _, l := range source() {
			p := s.products[l.productID]
			out = append(out, map[string]any{
				"cartId":          l.cartID,
				"productId":       l.productID,
				"name":            p.Name,
				"componentType":   p.ComponentType,
				"unitPrice":       decimal.NewFromInt(p.Price),
				"discountPercent": p.DiscountPercent,
				"stockAvailable":  p.Stock,
				"quantity":        l.quantity,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"metadata": out})
	}
}

type quantityBody struct {
	ProductID     string `json:"productId"`
	Quantity      int    `json:"quantity"`
	ComponentType string `json:"componentType"`
	CartID        string `json:"cartId"`
	TypePayment   string `json:"typePayment"`
}

func (s *Server) handleUpdate(target *[]line) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := decode(w, r)
		if !ok {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		p, exists := s.products[body.ProductID]
		if !exists || quantityOf(*target, body.ProductID) == 0 {
			writeError(w, http.StatusNotFound, "Sản phẩm không tồn tại")
			return
		}
		if body.Quantity > p.Stock {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Chỉ còn %d sản phẩm", p.Stock))
			return
		}
		for i := range *target {
			if (*target)[i].productID == body.ProductID {
				(*target)[i].quantity = body.Quantity
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "ok"})
	}
}

func (s *Server) handleDeleteCart(w http.ResponseWriter, r *http.Request) {
	body, ok := decode(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cart[:0]
	for _, l := range s.cart {
		if l.cartID != body.CartID {
			next = append(next, l)
		}
	}
	s.cart = next
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	body, ok := decode(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, exists := s.products[body.ProductID]
	if !exists {
		writeError(w, http.StatusNotFound, "Sản phẩm không tồn tại")
		return
	}
	qty := quantityOf(s.cart, body.ProductID) + body.Quantity
	if qty > p.Stock {
		writeError(w, http.StatusBadRequest, "Sản phẩm đã hết hàng")
		return
	}
	s.cart = upsert(s.cart, line{cartID: "cart-" + p.ID, productID: p.ID, quantity: qty})
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleAddBuild(w http.ResponseWriter, r *http.Request) {
	body, ok := decode(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, exists := s.products[body.ProductID]
	if !exists {
		writeError(w, http.StatusNotFound, "Sản phẩm không tồn tại")
		return
	}
	next := s.build[:0]
	for _, l := range s.build {
		if s.products[l.productID].ComponentType != body.ComponentType {
			next = append(next, l)
		}
	}
	s.build = append(next, line{cartID: "build-" + p.ID, productID: p.ID, quantity: body.Quantity})
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleDeleteBuild(w http.ResponseWriter, r *http.Request) {
	body, ok := decode(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.build[:0]
	for _, l := range s.build {
		if l.productID != body.ProductID {
			next = append(next, l)
		}
	}
	s.build = next
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleClearBuild(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.build = nil
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handlePayments(w http.ResponseWriter, r *http.Request) {
	body, ok := decode(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cart) == 0 {
		writeError(w, http.StatusBadRequest, "Giỏ hàng trống")
		return
	}
	s.orders++
	orderID := fmt.Sprintf("order-%d", s.orders)
	s.cart = nil
	switch body.TypePayment {
	case "COD":
		writeJSON(w, http.StatusOK, map[string]any{"metadata": map[string]string{"orderId": orderID}})
	case "MOMO", "VNPAY":
		writeJSON(w, http.StatusOK, map[string]any{"metadata": "https://pay.example.test/" + strings.ToLower(body.TypePayment) + "/" + orderID})
	default:
		writeError(w, http.StatusBadRequest, "Phương thức thanh toán không hợp lệ")
	}
}

func (s *Server) mintLocked() string {
	token, err := auth.MintAccessToken(tokenSecret, time.Now(), s.tokenTTL, auth.AccessTokenPayload{
		UserID: "user-1",
		Email:  "a@pcstore.test",
		Role:   "user",
	})
	if err != nil {
		panic(err)
	}
	s.validTokens[token] = true
	return token
}

func decode(w http.ResponseWriter, r *http.Request) (quantityBody, bool) {
	var body quantityBody
	if r.ContentLength == 0 {
		return body, true
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return body, false
	}
	return body, true
}

func upsert(lines []line, l line) []line {
	for i := range lines {
		if lines[i].productID == l.productID {
			lines[i] = l
			return lines
		}
	}
	return append(lines, l)
}

func quantityOf(lines []line, productID string) int {
	for _, l := range lines {
		if l.productID == productID {
			return l.quantity
		}
	}
	return 0
}

func writeError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		writeJSON(w, status, map[string]any{})
		return
	}
	writeJSON(w, status, map[string]string{"message": message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
