package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/shibalab/souko/internal/auth"
	"github.com/shibalab/souko/internal/clock"
	"github.com/shibalab/souko/internal/model"
	"github.com/shibalab/souko/internal/rental"
	"github.com/shibalab/souko/internal/store"
)

// Options configures the router.
type Options struct {
	DB        *sql.DB
	JWTSecret string
	// Clock defaults to the system clock.
	Clock clock.Clock
	// BaseURL prefixes QR references.
	BaseURL string

	DefaultDuePeriod     time.Duration
	RentalNoticePeriod   time.Duration
	DashboardRentalLimit int
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(opts Options) http.Handler {
	if opts.Clock == nil {
		opts.Clock = clock.NewSystem()
	}
	if opts.DefaultDuePeriod <= 0 {
		opts.DefaultDuePeriod = 14 * 24 * time.Hour
	}
	if opts.RentalNoticePeriod <= 0 {
		opts.RentalNoticePeriod = 28 * 24 * time.Hour
	}
	if opts.DashboardRentalLimit <= 0 {
		opts.DashboardRentalLimit = 5
	}

	db := opts.DB
	issuer := auth.NewIssuer(opts.JWTSecret, opts.Clock)
	manager := rental.NewManager(&store.RentalStore{DB: db}, opts.Clock)

	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, Issuer: issuer, Clock: opts.Clock}
	usersHandler := &UsersHandler{DB: db}
	itemsHandler := &ItemsHandler{DB: db, Rentals: manager, BaseURL: opts.BaseURL}
	rentalsHandler := &RentalsHandler{DB: db, Rentals: manager, Clock: opts.Clock, DefaultDuePeriod: opts.DefaultDuePeriod}
	warehousesHandler := &WarehousesHandler{DB: db}
	categoriesHandler := &CategoriesHandler{DB: db}
	boxesHandler := &BoxesHandler{DB: db, Clock: opts.Clock, BaseURL: opts.BaseURL}
	scanHandler := &ScanHandler{DB: db}
	dashboardHandler := &DashboardHandler{
		DB:           db,
		Clock:        opts.Clock,
		NoticePeriod: opts.RentalNoticePeriod,
		RecentLimit:  opts.DashboardRentalLimit,
	}
	healthHandler := &HealthHandler{DB: db}

	authMW := AuthMiddleware(issuer, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	authed := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }

	// Public.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/health", healthHandler.Check)

	// Own account.
	mux.Handle("PUT /api/auth/password", authed(authHandler.ChangePassword))
	mux.Handle("POST /api/auth/logout", authed(authHandler.Logout))
	mux.Handle("GET /api/me", authed(usersHandler.Me))
	mux.Handle("PUT /api/me", authed(usersHandler.UpdateMe))

	// Users (admin only).
	mux.Handle("GET /api/users", admin(usersHandler.List))
	mux.Handle("POST /api/users", admin(usersHandler.Create))
	mux.Handle("GET /api/users/{id}", admin(usersHandler.Get))
	mux.Handle("PUT /api/users/{id}", admin(usersHandler.Update))
	mux.Handle("PUT /api/users/{id}/password", admin(usersHandler.ResetPassword))
	mux.Handle("DELETE /api/users/{id}", admin(usersHandler.Delete))

	// Items: read (all roles), write (admin).
	mux.Handle("GET /api/items", authed(itemsHandler.List))
	mux.Handle("POST /api/items", admin(itemsHandler.Create))
	mux.Handle("GET /api/items/{id}", authed(itemsHandler.Get))
	mux.Handle("PUT /api/items/{id}", admin(itemsHandler.Update))
	mux.Handle("DELETE /api/items/{id}", admin(itemsHandler.Delete))
	mux.Handle("POST /api/items/{id}/stock", admin(itemsHandler.AdjustStock))
	mux.Handle("PUT /api/items/{id}/image", admin(itemsHandler.UploadImage))
	mux.Handle("GET /api/items/{id}/image", authed(itemsHandler.GetImage))
	mux.Handle("GET /api/items/{id}/qr", authed(itemsHandler.QRCode))

	// Rentals.
	mux.Handle("POST /api/rentals", authed(rentalsHandler.Create))
	mux.Handle("PUT /api/rentals/{id}/return", authed(rentalsHandler.Return))
	mux.Handle("GET /api/rentals", admin(rentalsHandler.List))
	mux.Handle("GET /api/rentals/me", authed(rentalsHandler.Mine))

	// Warehouses.
	mux.Handle("GET /api/warehouses", authed(warehousesHandler.List))
	mux.Handle("POST /api/warehouses", admin(warehousesHandler.Create))
	mux.Handle("GET /api/warehouses/{id}", authed(warehousesHandler.Get))
	mux.Handle("PUT /api/warehouses/{id}", admin(warehousesHandler.Update))
	mux.Handle("DELETE /api/warehouses/{id}", admin(warehousesHandler.Delete))

	// Categories.
	mux.Handle("GET /api/categories", authed(categoriesHandler.List))
	mux.Handle("POST /api/categories", admin(categoriesHandler.Create))
	mux.Handle("GET /api/categories/{id}", authed(categoriesHandler.Get))
	mux.Handle("PUT /api/categories/{id}", admin(categoriesHandler.Update))
	mux.Handle("DELETE /api/categories/{id}", admin(categoriesHandler.Delete))

	// Boxes and movements.
	mux.Handle("GET /api/boxes", authed(boxesHandler.List))
	mux.Handle("POST /api/boxes", admin(boxesHandler.Create))
	mux.Handle("GET /api/boxes/{id}", authed(boxesHandler.Get))
	mux.Handle("PUT /api/boxes/{id}", admin(boxesHandler.Update))
	mux.Handle("DELETE /api/boxes/{id}", admin(boxesHandler.Delete))
	mux.Handle("POST /api/boxes/{id}/move", admin(boxesHandler.Move))
	mux.Handle("GET /api/boxes/{id}/qr", authed(boxesHandler.QRCode))
	mux.Handle("GET /api/movements", admin(boxesHandler.Movements))

	mux.Handle("POST /api/scan", authed(scanHandler.Resolve))
	mux.Handle("GET /api/dashboard", authed(dashboardHandler.Get))

	return mux
}
