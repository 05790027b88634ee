package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/drblury/apienvelope/apierror"
	"github.com/drblury/apienvelope/jsonutil"
	"github.com/drblury/apienvelope/responder"
)

type user struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name"`
	Email     string    `json:"email" gorm:"uniqueIndex"`
	CreatedAt time.Time `json:"createdAt"`
}

type createUser struct {
	Name  string `json:"name" validate:"required,min=2"`
	Email string `json:"email" validate:"required,email"`
}

// userPage is detected as a paginated result and hoisted into
// metadata.pagination.
type userPage struct {
	Items           []user
	Page            int
	PageSize        int
	TotalItems      int
	TotalPages      int
	HasNextPage     bool
	HasPreviousPage bool
}

func newUserPage(items []user, page, size, total int) userPage {
	pages := (total + size - 1) / size
	return userPage{
		Items:           items,
		Page:            page,
		PageSize:        size,
		TotalItems:      total,
		TotalPages:      pages,
		HasNextPage:     page < pages,
		HasPreviousPage: page > 1,
	}
}

type userStore interface {
	List(ctx context.Context, page, size int) (userPage, error)
	Get(ctx context.Context, id uint) (user, error)
	Create(ctx context.Context, u *user) error
}

type memoryStore struct {
	mu    sync.RWMutex
	next  uint
	users map[uint]user
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: map[uint]user{}}
}

func (s *memoryStore) List(_ context.Context, page, size int) (userPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]user, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	start := min((page-1)*size, len(all))
	end := min(start+size, len(all))
	return newUserPage(all[start:end], page, size, len(all)), nil
}

func (s *memoryStore) Get(_ context.Context, id uint) (user, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return user{}, apierror.NotFound(fmt.Sprintf("User (%d) was not found.", id))
	}
	return u, nil
}

func (s *memoryStore) Create(_ context.Context, u *user) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return apierror.Conflict("A user with this email already exists.")
		}
	}
	s.next++
	u.ID = s.next
	u.CreatedAt = time.Now().UTC()
	s.users[u.ID] = *u
	return nil
}

// gormStore lets gorm errors reach the classifier untouched:
// ErrRecordNotFound becomes 404 and ErrDuplicatedKey 409.
type gormStore struct {
	db *gorm.DB
}

func (s gormStore) List(ctx context.Context, page, size int) (userPage, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&user{}).Count(&total).Error; err != nil {
		return userPage{}, err
	}
	var items []user
	err := s.db.WithContext(ctx).Order("id").Offset((page - 1) * size).Limit(size).Find(&items).Error
	if err != nil {
		return userPage{}, err
	}
	return newUserPage(items, page, size, int(total)), nil
}

func (s gormStore) Get(ctx context.Context, id uint) (user, error) {
	var u user
	err := s.db.WithContext(ctx).First(&u, id).Error
	return u, err
}

func (s gormStore) Create(ctx context.Context, u *user) error {
	return s.db.WithContext(ctx).Create(u).Error
}

// cachedStore reads users through Redis; the hook on the client counts the
// hits and misses into the request scope.
type cachedStore struct {
	userStore
	cache *redis.Client
	ttl   time.Duration
}

func (s cachedStore) Get(ctx context.Context, id uint) (user, error) {
	key := "apidemo:user:" + strconv.FormatUint(uint64(id), 10)
	if raw, err := s.cache.Get(ctx, key).Bytes(); err == nil {
		var u user
		if jsonutil.Unmarshal(raw, &u) == nil {
			return u, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return user{}, err
	}

	u, err := s.userStore.Get(ctx, id)
	if err != nil {
		return u, err
	}
	if raw, err := jsonutil.Marshal(u); err == nil {
		s.cache.Set(ctx, key, raw, s.ttl)
	}
	return u, nil
}

type userHandlers struct {
	resp     *responder.Responder
	store    userStore
	validate *validator.Validate
	audit    *mongo.Collection
}

func (h *userHandlers) register(mux *http.ServeMux) {
	mux.Handle("GET /users", h.resp.Handle(h.list))
	mux.Handle("GET /users/{id}", h.resp.Handle(h.get))
	mux.Handle("POST /users", h.resp.Handle(h.create))
}

func (h *userHandlers) list(_ http.ResponseWriter, r *http.Request) (any, error) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		return nil, err
	}
	size, err := queryInt(r, "pageSize", 20)
	if err != nil {
		return nil, err
	}
	return h.store.List(r.Context(), page, min(size, 100))
}

func (h *userHandlers) get(_ http.ResponseWriter, r *http.Request) (any, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		return nil, apierror.BadRequest("The user id must be a positive number.")
	}
	return h.store.Get(r.Context(), uint(id))
}

func (h *userHandlers) create(_ http.ResponseWriter, r *http.Request) (any, error) {
	var in createUser
	if err := jsonutil.Decode(r.Body, &in); err != nil {
		return nil, apierror.Wrap(apierror.KindBadRequest, err, "The request body is not valid JSON.")
	}
	if err := h.validate.Struct(in); err != nil {
		return nil, err
	}

	u := user{Name: in.Name, Email: in.Email}
	if err := h.store.Create(r.Context(), &u); err != nil {
		return nil, err
	}
	if h.audit != nil {
		if _, err := h.audit.InsertOne(r.Context(), map[string]any{"event": "user.created", "userId": u.ID, "at": u.CreatedAt}); err != nil {
			return nil, err
		}
	}
	return responder.WithStatus(http.StatusCreated, u), nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, apierror.Validation("Invalid query parameter.", fmt.Sprintf("%s must be a positive integer", name))
	}
	return v, nil
}
