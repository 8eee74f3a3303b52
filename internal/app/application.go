package app

import (
	"context"
	"fmt"
	"time"

	"github.com/travelties/service_layer/internal/app/jobs"
	"github.com/travelties/service_layer/internal/app/realtime"
	"github.com/travelties/service_layer/internal/app/services/access"
	"github.com/travelties/service_layer/internal/app/services/cards"
	"github.com/travelties/service_layer/internal/app/services/checklists"
	"github.com/travelties/service_layer/internal/app/services/expenses"
	"github.com/travelties/service_layer/internal/app/services/gallery"
	"github.com/travelties/service_layer/internal/app/services/payments"
	"github.com/travelties/service_layer/internal/app/services/polls"
	"github.com/travelties/service_layer/internal/app/services/posts"
	"github.com/travelties/service_layer/internal/app/services/trips"
	"github.com/travelties/service_layer/internal/app/services/users"
	"github.com/travelties/service_layer/internal/app/storage"
	"github.com/travelties/service_layer/internal/app/storage/memory"
	"github.com/travelties/service_layer/internal/app/system"
	"github.com/travelties/service_layer/internal/cache"
	"github.com/travelties/service_layer/internal/config"
	"github.com/travelties/service_layer/pkg/logger"
)

// Store is the full persistence surface. Both the memory and postgres stores
// implement it.
type Store interface {
	storage.UserStore
	storage.TripStore
	storage.CardStore
	storage.ChecklistStore
	storage.GalleryStore
	storage.PollStore
	storage.PostStore
	storage.ExpenseStore
	storage.Pinger
}

// Options carries the infrastructure the application is built on. Nil
// entries fall back to in-process implementations or disable the feature.
type Options struct {
	Store    Store
	Cache    cache.Cache
	CacheTTL time.Duration

	// Objects stores photo bytes. Nil disables uploads.
	Objects  gallery.ObjectStore
	Gallery  gallery.Options
	Payments payments.Options

	Jobs    config.JobsConfig
	Limiter jobs.LimiterSweeper
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Store  Store
	Cache  cache.Cache
	Hub    *realtime.Hub
	Access *access.Checker
	Jobs   *jobs.Scheduler

	Users      *users.Service
	Trips      *trips.Service
	Cards      *cards.Service
	Checklists *checklists.Service
	Gallery    *gallery.Service
	Polls      *polls.Service
	Posts      *posts.Service
	Expenses   *expenses.Service
	Payments   *payments.Service
}

// New builds a fully initialised application.
func New(opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if opts.Store == nil {
		opts.Store = memory.New()
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewMemory()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	store := opts.Store

	hub := realtime.NewHub(log.Named("realtime"))
	checker := access.NewChecker(store, opts.Cache, opts.CacheTTL, log.Named("access"))

	var deleter trips.ObjectDeleter
	if opts.Objects != nil {
		deleter = opts.Objects
	}

	userSvc := users.New(store, opts.Cache, opts.CacheTTL, log.Named("users"))
	tripSvc := trips.New(store, store, store, checker, deleter, hub, log.Named("trips"))
	userSvc.SetTripCleaner(tripSvc)
	cardSvc := cards.New(store, store, checker, hub, log.Named("cards"))
	checklistSvc := checklists.New(store, checker, log.Named("checklists"))
	gallerySvc := gallery.New(store, checker, opts.Objects, opts.Gallery, log.Named("gallery"))
	pollSvc := polls.New(store, checker, hub, log.Named("polls"))
	postSvc := posts.New(store, store, checker, hub, log.Named("posts"))
	expenseSvc := expenses.New(store, store, checker, hub, log.Named("expenses"))
	paymentSvc := payments.New(opts.Payments, expenseSvc, log.Named("payments"))

	scheduler := jobs.New(time.Minute, log.Named("jobs"))
	deps := jobs.Deps{Polls: pollSvc, Limiter: opts.Limiter}
	if opts.Objects != nil {
		deps.Uploads = gallerySvc
	}
	if err := jobs.Register(scheduler, opts.Jobs, deps); err != nil {
		return nil, fmt.Errorf("register jobs: %w", err)
	}

	manager := system.NewManager()
	for _, svc := range []system.Service{scheduler, hubService{hub}} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:    manager,
		log:        log,
		Store:      store,
		Cache:      opts.Cache,
		Hub:        hub,
		Access:     checker,
		Jobs:       scheduler,
		Users:      userSvc,
		Trips:      tripSvc,
		Cards:      cardSvc,
		Checklists: checklistSvc,
		Gallery:    gallerySvc,
		Polls:      pollSvc,
		Posts:      postSvc,
		Expenses:   expenseSvc,
		Payments:   paymentSvc,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// hubService closes websocket connections on shutdown.
type hubService struct{ hub *realtime.Hub }

func (hubService) Name() string                { return "realtime" }
func (hubService) Start(context.Context) error { return nil }
func (h hubService) Stop(context.Context) error {
	h.hub.Close()
	return nil
}
