// Package backendtest runs an in-memory imitation of the REST backend for
// tests of the packages built on the gateway.
package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Account is a user known to the fake backend.
type Account struct {
	ID       int
	Username string
	Email    string
	Password string
	IsStaff  bool
}

// Product is a catalog row served by the fake backend.
type Product struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Price    string  `json:"price"`
	Stock    int     `json:"stock"`
	Category string  `json:"category"`
	Image    *string `json:"image"`
}

type cartRow struct {
	ID        int
	ProductID int
	Quantity  int
}

// Server is the fake backend. Exported fields may be changed between
// requests; guard concurrent mutation with Lock/Unlock.
type Server struct {
	*httptest.Server

	sync.Mutex
	Accounts map[string]Account
	Products map[int]Product
	// RejectAll answers every credentialed request with 401.
	RejectAll bool
	// Requests counts handled requests by "METHOD path".
	Requests map[string]int
	// AuthHeaders records the Authorization header of every request.
	AuthHeaders []string
	Orders      []map[string]any
	// CollectionPageSize, when set, pages cart and wishlist listings in the
	// {count, next, previous, results} envelope.
	CollectionPageSize int

	tokens   map[string]string
	carts    map[string][]cartRow
	wishlist map[string][]cartRow
	nextID   int
}

// New starts a fake backend with one customer ("ana"/"secret123") and one
// administrator ("root"/"secret123"). Callers must Close it.
func New() *Server {
	img := "/media/lamp.png"
	s := &Server{
		Accounts: map[string]Account{
			"ana":  {ID: 1, Username: "ana", Email: "ana@example.com", Password: "secret123"},
			"root": {ID: 2, Username: "root", Email: "root@example.com", Password: "secret123", IsStaff: true},
		},
		Products: map[int]Product{
			10: {ID: 10, Name: "Lamp", Price: "1000.00", Stock: 5, Category: "Lighting", Image: &img},
			11: {ID: 11, Name: "Mug", Price: "500.00", Stock: 2, Category: "Kitchen"},
		},
		Requests: map[string]int{},
		tokens:   map[string]string{},
		carts:    map[string][]cartRow{},
		wishlist: map[string][]cartRow{},
		nextID:   100,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// BaseURL is the API root to hand to backend.New.
func (s *Server) BaseURL() string {
	return s.URL + "/api/"
}

// Count returns how many times "METHOD path" was requested.
func (s *Server) Count(key string) int {
	s.Lock()
	defer s.Unlock()
	return s.Requests[key]
}

// TokenFor returns a credential the fake accepts for username.
func (s *Server) TokenFor(username string) string {
	s.Lock()
	defer s.Unlock()
	return s.issue(username)
}

func (s *Server) issue(username string) string {
	s.nextID++
	tok := fmt.Sprintf("hdr.%s-%d.sig", username, s.nextID)
	s.tokens[tok] = username
	return tok
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.Lock()
	defer s.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/api/")
	s.Requests[r.Method+" "+path]++
	s.AuthHeaders = append(s.AuthHeaders, r.Header.Get("Authorization"))

	var body map[string]any
	if r.Body != nil && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	user, authed := s.authenticate(r)
	if r.Header.Get("Authorization") != "" && (!authed || s.RejectAll) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
		return
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case r.Method == http.MethodPost && path == "auth/login/":
		s.login(w, body)
	case r.Method == http.MethodGet && path == "auth/user/":
		if !authed {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
			return
		}
		writeJSON(w, http.StatusOK, s.payload(s.Accounts[user]))
	case r.Method == http.MethodGet && path == "products/":
		s.listProducts(w, r)
	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "products":
		id, _ := strconv.Atoi(parts[1])
		p, ok := s.Products[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
			return
		}
		writeJSON(w, http.StatusOK, p)
	case parts[0] == "cart" || parts[0] == "wishlist":
		if !authed {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
			return
		}
		s.collection(w, r, parts, user, body)
	case r.Method == http.MethodPost && path == "orders/":
		if !authed {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
			return
		}
		order := map[string]any{"id": len(s.Orders) + 1, "status": "pending", "items": []any{}}
		for k, v := range body {
			order[k] = v
		}
		s.Orders = append(s.Orders, order)
		s.carts[user] = nil
		writeJSON(w, http.StatusCreated, order)
	case r.Method == http.MethodGet && path == "orders/":
		writeJSON(w, http.StatusOK, map[string]any{"count": len(s.Orders), "next": nil, "previous": nil, "results": s.Orders})
	case r.Method == http.MethodGet && path == "notifications/":
		writeJSON(w, http.StatusOK, []map[string]any{{"id": 1, "title": "Welcome", "message": "Hi", "is_read": false, "created_at": "2024-01-01T00:00:00Z"}})
	case r.Method == http.MethodPost && len(parts) == 3 && parts[0] == "notifications" && parts[2] == "read":
		w.WriteHeader(http.StatusNoContent)
	case parts[0] == "admin":
		if !authed || !s.Accounts[user].IsStaff {
			writeJSON(w, http.StatusForbidden, map[string]string{"detail": "You do not have permission to perform this action."})
			return
		}
		s.admin(w, r, parts)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
}

func (s *Server) authenticate(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	for _, scheme := range []string{"Bearer ", "Token "} {
		if tok, ok := strings.CutPrefix(h, scheme); ok {
			user, known := s.tokens[tok]
			return user, known
		}
	}
	return "", false
}

func (s *Server) login(w http.ResponseWriter, body map[string]any) {
	name, _ := body["username"].(string)
	email, _ := body["email"].(string)
	password, _ := body["password"].(string)
	for _, acc := range s.Accounts {
		if (acc.Username == name || (email != "" && acc.Email == email)) && acc.Password == password {
			writeJSON(w, http.StatusOK, map[string]any{
				"user":    s.payload(acc),
				"access":  s.issue(acc.Username),
				"refresh": "refresh-" + acc.Username,
			})
			return
		}
	}
	writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
}

func (s *Server) payload(acc Account) map[string]any {
	return map[string]any{
		"id":       acc.ID,
		"username": acc.Username,
		"email":    acc.Email,
		"is_staff": acc.IsStaff,
	}
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	results := []Product{}
	for id := 0; id <= 1000; id++ {
		p, ok := s.Products[id]
		if !ok {
			continue
		}
		if c := q.Get("category"); c != "" && !strings.EqualFold(c, p.Category) {
			continue
		}
		if term := q.Get("search"); term != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(term)) {
			continue
		}
		results = append(results, p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(results), "next": nil, "previous": nil, "results": results})
}

func (s *Server) collection(w http.ResponseWriter, r *http.Request, parts []string, user string, body map[string]any) {
	rows := s.carts
	if parts[0] == "wishlist" {
		rows = s.wishlist
	}
	render := func(row cartRow) map[string]any {
		out := map[string]any{"id": row.ID, "product": s.Products[row.ProductID]}
		if parts[0] == "cart" {
			out["quantity"] = row.Quantity
		}
		return out
	}

	switch {
	case r.Method == http.MethodGet && len(parts) == 1:
		out := []map[string]any{}
		for _, row := range rows[user] {
			out = append(out, render(row))
		}
		if s.CollectionPageSize <= 0 {
			writeJSON(w, http.StatusOK, out)
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		start := min((page-1)*s.CollectionPageSize, len(out))
		end := min(start+s.CollectionPageSize, len(out))
		var next any
		if end < len(out) {
			next = fmt.Sprintf("%s/api/%s/?page=%d", s.URL, parts[0], page+1)
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "next": next, "previous": nil, "results": out[start:end]})
	case r.Method == http.MethodPost && len(parts) == 1:
		pid := toInt(body["product_id"])
		if _, ok := s.Products[pid]; !ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{"product_id": []string{"Invalid product."}})
			return
		}
		qty := toInt(body["quantity"])
		if qty == 0 {
			qty = 1
		}
		for i, row := range rows[user] {
			if row.ProductID == pid {
				rows[user][i].Quantity += qty
				writeJSON(w, http.StatusOK, render(rows[user][i]))
				return
			}
		}
		s.nextID++
		row := cartRow{ID: s.nextID, ProductID: pid, Quantity: qty}
		rows[user] = append(rows[user], row)
		writeJSON(w, http.StatusCreated, render(row))
	case r.Method == http.MethodPatch && len(parts) == 2:
		id, _ := strconv.Atoi(parts[1])
		for i, row := range rows[user] {
			if row.ID == id {
				rows[user][i].Quantity = toInt(body["quantity"])
				writeJSON(w, http.StatusOK, render(rows[user][i]))
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	case r.Method == http.MethodDelete && len(parts) == 2:
		id, _ := strconv.Atoi(parts[1])
		for i, row := range rows[user] {
			if row.ID == id {
				rows[user] = append(rows[user][:i], rows[user][i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "Method not allowed."})
	}
}

func (s *Server) admin(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case len(parts) == 2 && parts[1] == "stats":
		writeJSON(w, http.StatusOK, map[string]any{"total_orders": len(s.Orders), "total_users": len(s.Accounts), "total_products": len(s.Products)})
	case len(parts) == 2 && parts[1] == "orders":
		writeJSON(w, http.StatusOK, map[string]any{"count": len(s.Orders), "results": s.Orders})
	case len(parts) == 2 && parts[1] == "users":
		out := []map[string]any{}
		for _, acc := range s.Accounts {
			out = append(out, map[string]any{"id": acc.ID, "username": acc.Username, "email": acc.Email, "is_active": true, "is_staff": acc.IsStaff})
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "results": out})
	case len(parts) == 2 && parts[1] == "products" && r.Method == http.MethodPost:
		s.nextID++
		p := Product{ID: s.nextID, Name: r.FormValue("name"), Price: r.FormValue("price")}
		p.Stock, _ = strconv.Atoi(r.FormValue("stock"))
		s.Products[p.ID] = p
		writeJSON(w, http.StatusCreated, p)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
